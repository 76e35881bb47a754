// Package search implements the context-enrichment capability: a web search
// whose top results are attached to the prompt as grounding snippets.
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/ferro-labs/survey-coder/generation"
)

// MaxResults caps the number of snippets any enricher returns.
const MaxResults = 10

// Request asks for up to MaxResults snippets about Query.
type Request struct {
	Query      string
	MaxResults int
}

// Validate checks required fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query is required")
	}
	if r.MaxResults < 0 {
		return errors.New("max results must be non-negative")
	}
	return nil
}

func (r Request) limit() int {
	if r.MaxResults <= 0 || r.MaxResults > MaxResults {
		return MaxResults
	}
	return r.MaxResults
}

// Response holds snippets in rank order.
type Response struct {
	Snippets []generation.Snippet
}

// Enricher fetches context snippets.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, req Request) (*Response, error)
}
