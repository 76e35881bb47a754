// Package translate implements the translation capability used by the
// coordinator before a non-target-language input is sent to a model.
package translate

import (
	"context"
	"errors"
	"strings"
)

// Request asks for Text to be translated into TargetLanguage, a BCP 47 tag.
// SourceLanguage is a hint and may be empty.
type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
}

// Validate checks required fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text is required")
	}
	if strings.TrimSpace(r.TargetLanguage) == "" {
		return errors.New("target language is required")
	}
	return nil
}

// Response is a completed translation.
type Response struct {
	TranslatedText string
	// SourceLanguage is the language the backend detected, when it reports
	// one.
	SourceLanguage string
	CostUSD        float64
}

// Translator translates text.
type Translator interface {
	Name() string
	Translate(ctx context.Context, req Request) (*Response, error)
}
