package translate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ferro-labs/survey-coder/internal/routing"
	"github.com/ferro-labs/survey-coder/providers"
	textlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ProviderTranslator translates by prompting a language model.
type ProviderTranslator struct {
	provider providers.Provider
	model    routing.ModelDescriptor
}

// NewProviderTranslator returns a translator that calls model on provider.
func NewProviderTranslator(p providers.Provider, model routing.ModelDescriptor) *ProviderTranslator {
	return &ProviderTranslator{provider: p, model: model}
}

// Name returns "model:<id>".
func (t *ProviderTranslator) Name() string { return "model:" + t.model.ID }

// Translate asks the model for a bare translation and prices the call with
// the model's unit costs.
func (t *ProviderTranslator) Translate(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	target := languageName(req.TargetLanguage)
	temp := 0.0
	resp, err := t.provider.Complete(ctx, providers.Request{
		Model: t.model.ID,
		SystemPrompt: fmt.Sprintf("Translate the user's text into %s. Reply with the translation only, "+
			"keeping brand and product names unchanged.", target),
		Prompt:          req.Text,
		Temperature:     &temp,
		MaxOutputTokens: 64 + utf8.RuneCountInString(req.Text),
	})
	if err != nil {
		return nil, fmt.Errorf("translate via %s: %w", t.model.ID, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, fmt.Errorf("model %s returned an empty translation", t.model.ID)
	}
	return &Response{
		TranslatedText: text,
		SourceLanguage: req.SourceLanguage,
		CostUSD:        routing.EstimateCost(t.model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}, nil
}

// languageName renders a tag as its English name, falling back to the tag
// itself.
func languageName(code string) string {
	tag, err := textlang.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
