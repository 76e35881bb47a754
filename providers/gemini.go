package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiProvider calls Google Gemini through the generative-ai-go SDK.
type GeminiProvider struct {
	Base
	client *genai.Client
}

// NewGemini creates a Gemini provider authenticated with apiKey. Extra
// client options (endpoint, HTTP client) are passed through to the SDK.
func NewGemini(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{
		Base:   Base{name: "gemini", apiKey: apiKey, baseURL: "https://generativelanguage.googleapis.com"},
		client: client,
	}, nil
}

// Close releases the SDK client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// SupportedModels returns well-known model IDs.
func (p *GeminiProvider) SupportedModels() []string {
	return []string{
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
		"gemini-1.5-pro",
		"gemini-1.5-flash",
	}
}

// SupportsModel accepts any gemini- model.
func (p *GeminiProvider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "gemini-")
}

// Complete sends a single-turn GenerateContent request.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, &Error{Provider: p.name, Kind: KindMalformed, Err: err}
	}

	model := p.client.GenerativeModel(req.Model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if req.Temperature != nil {
		model.SetTemperature(float32(*req.Temperature))
	}
	model.SetMaxOutputTokens(int32(req.maxTokens()))

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, classifyGemini(p.name, err)
	}

	text, err := geminiText(resp)
	if err != nil {
		return nil, &Error{Provider: p.name, Kind: KindMalformed, Err: err}
	}
	out := &Response{Model: req.Model, Provider: p.name, Text: text}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("response contained no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

func classifyGemini(provider string, err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &Error{Provider: provider, Kind: KindMalformed, Message: "content blocked", Err: err}
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		e := NewError(provider, gErr.Code, gErr.Message)
		e.Err = err
		return e
	}
	return Classify(provider, err)
}
