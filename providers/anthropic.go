package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	Base
	httpClient *http.Client
}

// NewAnthropic creates an Anthropic provider. Pass "" as baseURL for the
// public endpoint.
func NewAnthropic(apiKey string, baseURL string) (*AnthropicProvider, error) {
	return &AnthropicProvider{
		Base:       Base{name: "anthropic", apiKey: apiKey, baseURL: trimBase(baseURL, "https://api.anthropic.com")},
		httpClient: defaultHTTPClient(),
	}, nil
}

// SupportedModels returns well-known model IDs.
func (p *AnthropicProvider) SupportedModels() []string {
	return []string{
		"claude-sonnet-4-20250514",
		"claude-3-5-haiku-20241022",
		"claude-3-5-sonnet-20241022",
		"claude-3-haiku-20240307",
	}
}

// SupportsModel accepts any claude- model.
func (p *AnthropicProvider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	ID      string                  `json:"id"`
	Content []anthropicContentBlock `json:"content"`
	Model   string                  `json:"model"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func anthropicErrorMessage(body []byte) string {
	var e anthropicErrorResponse
	if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
		return ""
	}
	// Overloaded responses carry type overloaded_error; keep the type so the
	// log line is searchable.
	return e.Error.Type + ": " + e.Error.Message
}

// Complete sends a single-turn request to /v1/messages.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, &Error{Provider: p.name, Kind: KindMalformed, Err: err}
	}

	var out anthropicResponse
	err := postJSON(ctx, p.httpClient, p.name, p.baseURL+"/v1/messages",
		map[string]string{
			"x-api-key":         p.apiKey,
			"anthropic-version": anthropicVersion,
		},
		anthropicRequest{
			Model:       req.Model,
			MaxTokens:   req.maxTokens(),
			System:      req.SystemPrompt,
			Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
			Temperature: req.Temperature,
		},
		&out, anthropicErrorMessage)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	model := out.Model
	if model == "" {
		model = req.Model
	}
	return &Response{
		ID:       out.ID,
		Model:    model,
		Provider: p.name,
		Text:     text.String(),
		Usage: Usage{
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		},
	}, nil
}
