package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider calls the Chat Completions API through the official SDK.
// With a custom baseURL and name it also serves OpenAI-compatible backends
// such as Groq, DeepSeek or Together.
type OpenAIProvider struct {
	Base
	client openai.Client
	models []string
}

// NewOpenAI creates an OpenAI provider. Pass "" as baseURL for the public
// endpoint.
func NewOpenAI(apiKey string, baseURL string) (*OpenAIProvider, error) {
	return NewOpenAICompatible("openai", apiKey, baseURL, nil)
}

// NewOpenAICompatible creates a provider named name for any endpoint that
// speaks the OpenAI chat completions protocol. When models is non-empty the
// provider only claims those IDs.
func NewOpenAICompatible(name, apiKey, baseURL string, models []string) (*OpenAIProvider, error) {
	if name == "" {
		return nil, errors.New("provider name is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// One attempt per model; the coordinator owns fallback.
		option.WithMaxRetries(0),
	}
	resolvedBase := "https://api.openai.com/v1"
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		resolvedBase = baseURL
	}
	return &OpenAIProvider{
		Base:   Base{name: name, apiKey: apiKey, baseURL: strings.TrimRight(resolvedBase, "/")},
		client: openai.NewClient(opts...),
		models: models,
	}, nil
}

// SupportedModels returns well-known model IDs, or the configured list.
func (p *OpenAIProvider) SupportedModels() []string {
	if len(p.models) > 0 {
		return append([]string(nil), p.models...)
	}
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4.1",
		"gpt-4.1-mini",
	}
}

// SupportsModel matches the configured list, or OpenAI model prefixes.
func (p *OpenAIProvider) SupportsModel(model string) bool {
	if len(p.models) > 0 {
		for _, m := range p.models {
			if m == model {
				return true
			}
		}
		return false
	}
	if hasAnyPrefix(model, "gpt-", "chatgpt-", "ft:") {
		return true
	}
	return len(model) >= 2 && model[0] == 'o' && model[1] >= '0' && model[1] <= '9'
}

// Complete sends a chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, &Error{Provider: p.name, Kind: KindMalformed, Err: err}
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:  msgs,
		Model:     req.Model,
		MaxTokens: openai.Int(int64(req.maxTokens())),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &Error{Provider: p.name, Kind: KindTransient, Message: "response contained no choices"}
	}

	return &Response{
		ID:       completion.ID,
		Model:    completion.Model,
		Provider: p.name,
		Text:     completion.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}, nil
}

func (p *OpenAIProvider) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Code != "" {
			msg = apiErr.Code + ": " + msg
		}
		e := NewError(p.name, apiErr.StatusCode, msg)
		e.Err = err
		return e
	}
	return Classify(p.name, err)
}
