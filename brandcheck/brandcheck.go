// Package brandcheck decides whether a free-text name is a real brand by
// combining a model judgement with web-search evidence.
package brandcheck

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/cache"
	"github.com/ferro-labs/survey-coder/internal/logging"
	"github.com/ferro-labs/survey-coder/internal/search"
)

// Weights of the two evidence channels. They sum to 1.
const (
	ModelWeight  = 0.6
	SearchWeight = 0.4
	// Threshold is the confidence at or above which a name is a brand.
	Threshold = 0.5
	// MentionsForFullScore is the number of search mentions that saturate
	// the search score.
	MentionsForFullScore = 3
	// unknownScore is used when a channel failed or gave no clear answer.
	unknownScore = 0.5
)

// Generator runs a generation request. *surveycoder.Coordinator satisfies
// it.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// Verdict is the outcome of one check.
type Verdict struct {
	Name        string  `json:"name"`
	IsBrand     bool    `json:"is_brand"`
	Confidence  float64 `json:"confidence"`
	ModelScore  float64 `json:"model_score"`
	ModelAnswer string  `json:"model_answer,omitempty"`
	ModelError  string  `json:"model_error,omitempty"`
	SearchScore float64 `json:"search_score"`
	Mentions    int     `json:"mentions"`
	SearchError string  `json:"search_error,omitempty"`
}

// Validator checks names. It is safe for concurrent use.
type Validator struct {
	gen        Generator
	enricher   search.Enricher
	priority   generation.Priority
	maxResults int
}

// Option customises a Validator.
type Option func(*Validator)

// WithPriority sets the routing tier for the model judgement. Default fast.
func WithPriority(p generation.Priority) Option {
	return func(v *Validator) { v.priority = p }
}

// WithMaxResults caps the search results inspected. Default 5.
func WithMaxResults(n int) Option {
	return func(v *Validator) { v.maxResults = n }
}

// New creates a Validator. enricher may be nil, in which case the search
// channel always reports an unknown score.
func New(gen Generator, enricher search.Enricher, opts ...Option) *Validator {
	v := &Validator{gen: gen, enricher: enricher, priority: generation.PriorityFast, maxResults: 5}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check runs both channels concurrently and combines them. A failed channel
// counts as unknown; only an empty name or caller cancellation is an error.
func (v *Validator) Check(ctx context.Context, name string) (Verdict, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Verdict{}, errors.New("brandcheck: name is required")
	}
	log := logging.FromContext(ctx).With("brand", name)
	verdict := Verdict{Name: name, ModelScore: unknownScore, SearchScore: unknownScore}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		req := generation.NewRequest("Brand name: "+name, generation.TaskValidation, v.priority,
			generation.WithFlags(generation.Flags{UseAdaptiveRetry: true}))
		res, err := v.gen.Generate(gctx, req)
		if err != nil {
			log.Warn("brand model check failed", "error", err.Error())
			verdict.ModelError = err.Error()
			return nil
		}
		verdict.ModelAnswer = res.OutputText
		verdict.ModelScore = modelScore(res.OutputText)
		return nil
	})
	g.Go(func() error {
		if v.enricher == nil {
			verdict.SearchError = "no search backend configured"
			return nil
		}
		resp, err := v.enricher.Enrich(gctx, search.Request{Query: name + " brand", MaxResults: v.maxResults})
		if err != nil {
			log.Warn("brand search check failed", "error", err.Error())
			verdict.SearchError = err.Error()
			return nil
		}
		verdict.Mentions = countMentions(name, resp.Snippets)
		verdict.SearchScore = math.Min(1, float64(verdict.Mentions)/MentionsForFullScore)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Verdict{}, fmt.Errorf("brandcheck: %w", err)
	}

	verdict.Confidence = ModelWeight*verdict.ModelScore + SearchWeight*verdict.SearchScore
	verdict.IsBrand = verdict.Confidence >= Threshold
	log.Debug("brand checked", "confidence", verdict.Confidence, "is_brand", verdict.IsBrand)
	return verdict, nil
}

// modelScore reads a YES/NO answer. Anything else is unknown.
func modelScore(answer string) float64 {
	fields := strings.Fields(strings.ToUpper(answer))
	if len(fields) == 0 {
		return unknownScore
	}
	switch strings.Trim(fields[0], ".,!:;\"'") {
	case "YES", "Y", "TRUE":
		return 1
	case "NO", "N", "FALSE":
		return 0
	default:
		return unknownScore
	}
}

// countMentions counts snippets whose title or excerpt contains name after
// case and accent folding.
func countMentions(name string, snippets []generation.Snippet) int {
	needle := cache.NormalizeWhitelist(name)
	if needle == "" {
		return 0
	}
	n := 0
	for _, s := range snippets {
		if strings.Contains(cache.NormalizeWhitelist(s.Title+" "+s.Excerpt), needle) {
			n++
		}
	}
	return n
}
