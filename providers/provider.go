// Package providers defines the Provider interface used by the coordinator
// to invoke language models, the shared request/response types and the
// typed failure taxonomy, plus implementations for OpenAI (and compatible
// endpoints), Anthropic, AWS Bedrock, Google Gemini and Ollama.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Provider is a single model backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	SupportedModels() []string
	SupportsModel(model string) bool
}

// DefaultMaxOutputTokens is used when a request leaves MaxOutputTokens unset.
const DefaultMaxOutputTokens = 256

// Request is a single-turn completion request.
type Request struct {
	Model           string   `json:"model"`
	SystemPrompt    string   `json:"system_prompt,omitempty"`
	Prompt          string   `json:"prompt"`
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`
}

// Validate checks required fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return errors.New("model is required")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if r.MaxOutputTokens < 0 {
		return errors.New("max_output_tokens must be non-negative")
	}
	return nil
}

func (r Request) maxTokens() int {
	if r.MaxOutputTokens > 0 {
		return r.MaxOutputTokens
	}
	return DefaultMaxOutputTokens
}

// Usage carries unit consumption for billing.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a completed generation.
type Response struct {
	ID       string `json:"id,omitempty"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Text     string `json:"text"`
	Usage    Usage  `json:"usage"`
}

// Kind classifies a provider failure.
type Kind string

// Failure kinds. Only rate_limit and transient are worth retrying on another
// model.
const (
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindTransient Kind = "transient"
	KindQuota     Kind = "quota"
	KindMalformed Kind = "malformed"
)

// Error is a typed provider failure.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" ")
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another model might succeed where this one
// failed.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindTransient
}

// NewError builds an Error for an HTTP status and response body.
func NewError(provider string, status int, message string) *Error {
	return &Error{
		Provider:   provider,
		Kind:       KindFromStatus(status, message),
		StatusCode: status,
		Message:    message,
	}
}

// KindFromStatus maps an HTTP status to a failure kind. A 429 whose body
// mentions an exhausted quota is a quota error, not a rate limit.
func KindFromStatus(status int, body string) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 402:
		return KindQuota
	case status == 429:
		lower := strings.ToLower(body)
		if strings.Contains(lower, "insufficient_quota") || strings.Contains(lower, "quota exceeded") ||
			strings.Contains(lower, "billing") {
			return KindQuota
		}
		return KindRateLimit
	case status == 408 || status >= 500:
		return KindTransient
	case status >= 400:
		return KindMalformed
	default:
		return KindTransient
	}
}

// Classify wraps err as an *Error. Errors that already are typed pass
// through; timeouts and network failures are transient; anything else is
// treated as malformed.
func Classify(provider string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	kind := KindMalformed
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTransient
	case errors.As(err, &netErr):
		kind = KindTransient
	case errors.Is(err, context.Canceled):
		kind = KindTransient
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}
