package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

func TestNewGemini_RequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), ""); err == nil {
		t.Error("expected error for empty api key")
	}
}

func TestClassifyGemini(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"auth", &googleapi.Error{Code: 403, Message: "API key not valid"}, KindAuth},
		{"rate", &googleapi.Error{Code: 429, Message: "Resource has been exhausted"}, KindRateLimit},
		{"server", &googleapi.Error{Code: 503, Message: "unavailable"}, KindTransient},
		{"bad request", &googleapi.Error{Code: 400, Message: "invalid argument"}, KindMalformed},
		{"blocked", &genai.BlockedError{}, KindMalformed},
		{"deadline", context.DeadlineExceeded, KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyGemini("gemini", tt.err)
			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if pe.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", pe.Kind, tt.want)
			}
		})
	}
}

func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Sens"), genai.Text("odyne")}},
		}},
	}
	got, err := geminiText(resp)
	if err != nil || got != "Sensodyne" {
		t.Errorf("geminiText() = %q, %v", got, err)
	}
	if _, err := geminiText(&genai.GenerateContentResponse{}); err == nil {
		t.Error("expected error for empty candidates")
	}
}
