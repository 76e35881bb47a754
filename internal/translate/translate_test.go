package translate

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/routing"
	"github.com/ferro-labs/survey-coder/providers"
)

func TestLibreTranslate_Translate(t *testing.T) {
	var got libreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translatedText":"I like the toothpaste","detectedLanguage":{"confidence":92,"language":"es"}}`))
	}))
	defer srv.Close()

	lt := NewLibreTranslate(srv.URL+"/", "k")
	resp, err := lt.Translate(context.Background(), Request{Text: "me gusta la pasta", TargetLanguage: "en"})
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if resp.TranslatedText != "I like the toothpaste" || resp.SourceLanguage != "es" {
		t.Errorf("unexpected response %+v", resp)
	}
	if got.Source != "auto" || got.Target != "en" || got.APIKey != "k" || got.Format != "text" {
		t.Errorf("unexpected request body %+v", got)
	}
}

func TestLibreTranslate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"non-json error", http.StatusBadGateway, `bad gateway`},
		{"empty translation", http.StatusOK, `{"translatedText":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewLibreTranslate(srv.URL, "").Translate(context.Background(), Request{Text: "hola", TargetLanguage: "en"})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRequest_Validate(t *testing.T) {
	if err := (Request{TargetLanguage: "en"}).Validate(); err == nil {
		t.Error("expected error for empty text")
	}
	if err := (Request{Text: "hola"}).Validate(); err == nil {
		t.Error("expected error for empty target")
	}
}

type stubProvider struct {
	resp *providers.Response
	err  error
	last providers.Request
}

func (s *stubProvider) Name() string              { return "stub" }
func (s *stubProvider) SupportedModels() []string { return []string{"m"} }
func (s *stubProvider) SupportsModel(string) bool { return true }
func (s *stubProvider) Complete(_ context.Context, req providers.Request) (*providers.Response, error) {
	s.last = req
	return s.resp, s.err
}

func TestProviderTranslator_Translate(t *testing.T) {
	stub := &stubProvider{resp: &providers.Response{Text: " I like it \n", Usage: providers.Usage{InputTokens: 100, OutputTokens: 10}}}
	model := routing.ModelDescriptor{
		ID: "m", Provider: "stub", LatencyClass: generation.LatencyLow,
		CostPerInputUnit: 0.001, CostPerOutputUnit: 0.002,
		SupportedTasks: []generation.TaskKind{generation.TaskTranslation},
	}
	tr := NewProviderTranslator(stub, model)

	resp, err := tr.Translate(context.Background(), Request{Text: "me gusta", SourceLanguage: "es", TargetLanguage: "en"})
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if resp.TranslatedText != "I like it" || resp.SourceLanguage != "es" {
		t.Errorf("unexpected response %+v", resp)
	}
	if math.Abs(resp.CostUSD-0.12) > 1e-9 {
		t.Errorf("CostUSD = %v, want 0.12", resp.CostUSD)
	}
	if !strings.Contains(stub.last.SystemPrompt, "English") {
		t.Errorf("system prompt should name the target language: %q", stub.last.SystemPrompt)
	}
	if stub.last.Model != "m" || stub.last.Temperature == nil || *stub.last.Temperature != 0 {
		t.Errorf("unexpected provider request %+v", stub.last)
	}
	if tr.Name() != "model:m" {
		t.Errorf("Name() = %q", tr.Name())
	}
}

func TestProviderTranslator_ProviderError(t *testing.T) {
	cause := &providers.Error{Provider: "stub", Kind: providers.KindTransient, Message: "down"}
	tr := NewProviderTranslator(&stubProvider{err: cause}, routing.ModelDescriptor{ID: "m"})
	_, err := tr.Translate(context.Background(), Request{Text: "hola", TargetLanguage: "en"})
	var pe *providers.Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestLanguageName(t *testing.T) {
	if got := languageName("de"); got != "German" {
		t.Errorf("languageName(de) = %q", got)
	}
	if got := languageName("!!"); got != "!!" {
		t.Errorf("languageName(!!) = %q", got)
	}
}
