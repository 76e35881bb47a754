package providers

import (
	"context"
	"encoding/json"
	"net/http"
)

// OllamaProvider calls a local Ollama server's native /api/chat endpoint.
type OllamaProvider struct {
	Base
	httpClient *http.Client
	models     []string
}

// NewOllama creates an Ollama provider. baseURL defaults to
// http://localhost:11434; models lists the locally pulled models to
// advertise.
func NewOllama(baseURL string, models []string) (*OllamaProvider, error) {
	if len(models) == 0 {
		models = []string{"llama3.2"}
	}
	return &OllamaProvider{
		Base:       Base{name: "ollama", baseURL: trimBase(baseURL, "http://localhost:11434")},
		httpClient: defaultHTTPClient(),
		models:     models,
	}, nil
}

// SupportedModels returns the configured model list.
func (p *OllamaProvider) SupportedModels() []string {
	return append([]string(nil), p.models...)
}

// SupportsModel reports whether model was configured for this server.
func (p *OllamaProvider) SupportsModel(model string) bool {
	for _, m := range p.models {
		if m == model {
			return true
		}
	}
	return false
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func ollamaErrorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}

// Complete sends a non-streaming chat request.
func (p *OllamaProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, &Error{Provider: p.name, Kind: KindMalformed, Err: err}
	}

	msgs := make([]ollamaMessage, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, ollamaMessage{Role: "user", Content: req.Prompt})

	var out ollamaResponse
	err := postJSON(ctx, p.httpClient, p.name, p.baseURL+"/api/chat", nil,
		ollamaRequest{
			Model:    req.Model,
			Messages: msgs,
			Options:  ollamaOptions{Temperature: req.Temperature, NumPredict: req.maxTokens()},
		},
		&out, ollamaErrorMessage)
	if err != nil {
		return nil, err
	}

	return &Response{
		Model:    req.Model,
		Provider: p.name,
		Text:     out.Message.Content,
		Usage: Usage{
			InputTokens:  out.PromptEvalCount,
			OutputTokens: out.EvalCount,
		},
	}, nil
}
