package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewAnthropic(t *testing.T) {
	p, err := NewAnthropic("sk-test-key", "")
	if err != nil {
		t.Fatalf("NewAnthropic() returned error: %v", err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("Name() = %v, want anthropic", p.Name())
	}
	if p.BaseURL() != "https://api.anthropic.com" {
		t.Errorf("BaseURL() = %v", p.BaseURL())
	}
}

func TestAnthropicProvider_SupportsModel(t *testing.T) {
	p, _ := NewAnthropic("sk-test-key", "")
	tests := []struct {
		model string
		want  bool
	}{
		{"claude-3-5-haiku-20241022", true},
		{"claude-99", true},
		{"gpt-4o", false},
	}
	for _, tt := range tests {
		if got := p.SupportsModel(tt.model); got != tt.want {
			t.Errorf("SupportsModel(%v) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("missing version header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","model":"claude-3-5-haiku-20241022","content":[{"type":"text","text":"Sensodyne"}],"usage":{"input_tokens":12,"output_tokens":3}}`))
	}))
	defer srv.Close()

	p, _ := NewAnthropic("sk-test", srv.URL)
	temp := 0.0
	resp, err := p.Complete(context.Background(), Request{
		Model:        "claude-3-5-haiku-20241022",
		SystemPrompt: "Return the brand name.",
		Prompt:       "sensodine",
		Temperature:  &temp,
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Text != "Sensodyne" || resp.Provider != "anthropic" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if got.System != "Return the brand name." || got.MaxTokens != DefaultMaxOutputTokens {
		t.Errorf("unexpected wire request %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "sensodine" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
}

func TestAnthropicProvider_CompleteErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  Kind
		retryable bool
	}{
		{"auth", 401, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, KindAuth, false},
		{"rate limit", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, KindRateLimit, true},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, KindTransient, true},
		{"bad request", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens"}}`, KindMalformed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, _ := NewAnthropic("sk-test", srv.URL)
			_, err := p.Complete(context.Background(), Request{Model: "claude-3-haiku-20240307", Prompt: "x"})
			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if pe.Kind != tt.wantKind || pe.Retryable() != tt.retryable || pe.StatusCode != tt.status {
				t.Errorf("got kind=%s retryable=%v status=%d", pe.Kind, pe.Retryable(), pe.StatusCode)
			}
		})
	}
}

func TestAnthropicProvider_CompleteTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p, _ := NewAnthropic("sk-test", srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, Request{Model: "claude-3-haiku-20240307", Prompt: "x"})
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindTransient {
		t.Fatalf("expected transient error on timeout, got %v", err)
	}
}
