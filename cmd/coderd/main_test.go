package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	surveycoder "github.com/ferro-labs/survey-coder"
	"github.com/ferro-labs/survey-coder/brandcheck"
	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/ratelimit"
	"github.com/ferro-labs/survey-coder/internal/routing"
	"github.com/ferro-labs/survey-coder/providers"
)

type fakeProvider struct {
	name string
	text string
	err  error
}

func (f *fakeProvider) Name() string                { return f.name }
func (f *fakeProvider) SupportedModels() []string   { return []string{"test-model"} }
func (f *fakeProvider) SupportsModel(_ string) bool { return true }
func (f *fakeProvider) Complete(_ context.Context, req providers.Request) (*providers.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &providers.Response{ID: "fake-id", Model: req.Model, Provider: f.name, Text: f.text}, nil
}

func testServer(t *testing.T, p *fakeProvider, limiter *ratelimit.Store) http.Handler {
	t.Helper()
	tasks := []generation.TaskKind{generation.TaskCoding, generation.TaskValidation}
	var routes []surveycoder.RouteConfig
	for _, task := range tasks {
		for _, prio := range generation.Priorities() {
			routes = append(routes, surveycoder.RouteConfig{Task: task, Priority: prio, Models: []string{"test-model"}})
		}
	}
	cfg := surveycoder.Config{
		Models: []routing.ModelDescriptor{{ID: "test-model", Provider: "test", LatencyClass: generation.LatencyLow, QualityScore: 0.8, SupportedTasks: tasks}},
		Routes: routes,
	}
	registry := providers.NewRegistry()
	registry.Register(p)
	coord, err := surveycoder.New(cfg, surveycoder.WithProviders(p))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return newRouter(&server{
		coord:    coord,
		brands:   brandcheck.New(coord, nil),
		registry: registry,
		limiter:  limiter,
	}, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, testServer(t, &fakeProvider{name: "test", text: "ok"}, nil), "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestGenerate(t *testing.T) {
	h := testServer(t, &fakeProvider{name: "test", text: "Sensodyne"}, nil)
	w := do(t, h, "POST", "/v1/generate", `{"input_text":"sensodine","task_kind":"coding","priority":"fast","flags":{"use_adaptive_retry":true}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res generation.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.OutputText != "Sensodyne" || res.ModelUsed != "test-model" {
		t.Errorf("result = %+v", res)
	}
}

func TestGenerate_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		body     string
		want     int
	}{
		{"bad json", &fakeProvider{name: "test"}, `{`, http.StatusBadRequest},
		{"empty input", &fakeProvider{name: "test"}, `{"input_text":" ","task_kind":"coding"}`, http.StatusBadRequest},
		{"unrouted task", &fakeProvider{name: "test"}, `{"input_text":"x","task_kind":"extraction"}`, http.StatusUnprocessableEntity},
		{"auth failure", &fakeProvider{name: "test", err: &providers.Error{Provider: "test", Kind: providers.KindAuth}}, `{"input_text":"x","task_kind":"coding"}`, http.StatusBadGateway},
		{"rate limited", &fakeProvider{name: "test", err: &providers.Error{Provider: "test", Kind: providers.KindRateLimit}}, `{"input_text":"x","task_kind":"coding"}`, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, testServer(t, tt.provider, nil), "POST", "/v1/generate", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestGenerateBatch(t *testing.T) {
	h := testServer(t, &fakeProvider{name: "test", text: "ok"}, nil)
	w := do(t, h, "POST", "/v1/generate/batch", `{"requests":[{"input_text":"a","task_kind":"coding"},{"input_text":" ","task_kind":"coding"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Outcome string `json:"outcome"`
		Items   []struct {
			Error *failureBody `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Outcome != "partial" || len(body.Items) != 2 || body.Items[1].Error == nil {
		t.Errorf("body = %+v", body)
	}

	if w := do(t, h, "POST", "/v1/generate/batch", `{"requests":[]}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d", w.Code)
	}
}

func TestCheckBrand(t *testing.T) {
	h := testServer(t, &fakeProvider{name: "test", text: "YES"}, nil)
	w := do(t, h, "POST", "/v1/brands/check", `{"name":"Sensodyne"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var v brandcheck.Verdict
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if !v.IsBrand || v.ModelScore != 1 {
		t.Errorf("verdict = %+v", v)
	}
}

func TestRoutes(t *testing.T) {
	w := do(t, testServer(t, &fakeProvider{name: "test", text: "ok"}, nil), "GET", "/v1/routes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Routes []routeInfo `json:"routes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Routes) != 6 {
		t.Errorf("got %d routes, want 6", len(body.Routes))
	}
}

func TestRateLimit(t *testing.T) {
	h := testServer(t, &fakeProvider{name: "test", text: "ok"}, ratelimit.NewStore(0.001, 1))
	if w := do(t, h, "GET", "/v1/routes", ""); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	w := do(t, h, "GET", "/v1/routes", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w.Code)
	}
	if w := do(t, h, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health should not be rate limited, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(t, testServer(t, &fakeProvider{name: "test", text: "ok"}, nil), "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	h := corsMiddleware("https://app.example.com")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodOptions, "/v1/generate", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("status=%d origin=%q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRegisterProviders(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY": "sk-test",
		"GROQ_API_KEY":   "gsk-test",
		"OLLAMA_HOST":    "http://localhost:11434",
		"OLLAMA_MODELS":  "llama3,mistral",
	}
	registry := providers.NewRegistry()
	if err := registerProviders(context.Background(), registry, func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(registry.List(), ","); got != "groq,ollama,openai" {
		t.Errorf("registered = %s", got)
	}
}
