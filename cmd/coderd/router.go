package main

import (
	"encoding/json"
	"errors"
	"net/http"

	surveycoder "github.com/ferro-labs/survey-coder"
	"github.com/ferro-labs/survey-coder/brandcheck"
	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/logging"
	"github.com/ferro-labs/survey-coder/internal/ratelimit"
	"github.com/ferro-labs/survey-coder/internal/version"
	"github.com/ferro-labs/survey-coder/providers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBatchSize bounds POST /v1/generate/batch.
const maxBatchSize = 100

type server struct {
	coord    *surveycoder.Coordinator
	brands   *brandcheck.Validator
	registry *providers.Registry
	limiter  *ratelimit.Store
}

// newRouter builds the HTTP router.
func newRouter(s *server, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(corsMiddleware(corsOrigins...))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter, "ip", ratelimit.ByIP))
		}
		r.Post("/generate", s.generate)
		r.Post("/generate/batch", s.generateBatch)
		r.Post("/brands/check", s.checkBrand)
		r.Get("/routes", s.routes)
	})
	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   version.Short(),
		"providers": s.registry.List(),
	})
}

// generateRequest is the wire form of generation.Request. Omitted flags take
// their defaults.
type generateRequest struct {
	InputText    string               `json:"input_text"`
	TaskKind     generation.TaskKind  `json:"task_kind"`
	Priority     generation.Priority  `json:"priority"`
	Flags        *generation.Flags    `json:"flags,omitempty"`
	SystemPrompt string               `json:"system_prompt,omitempty"`
	Criteria     *generation.Criteria `json:"criteria,omitempty"`
	ForceRefresh bool                 `json:"force_refresh,omitempty"`
}

func (g generateRequest) toRequest() generation.Request {
	req := generation.NewRequest(g.InputText, g.TaskKind, g.Priority)
	if g.Flags != nil {
		req.Flags = *g.Flags
	}
	if g.Priority == "" {
		req.Priority = generation.PriorityBalanced
	}
	req.SystemPrompt = g.SystemPrompt
	req.Criteria = g.Criteria
	req.ForceRefresh = g.ForceRefresh
	return req
}

func (s *server) generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}
	res, err := s.coord.Generate(r.Context(), body.toRequest())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	Requests    []generateRequest `json:"requests"`
	Concurrency int               `json:"concurrency,omitempty"`
}

type batchItemResponse struct {
	Index  int                `json:"index"`
	Result *generation.Result `json:"result,omitempty"`
	Error  *failureBody       `json:"error,omitempty"`
}

func (s *server) generateBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}
	if len(body.Requests) == 0 || len(body.Requests) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "requests must contain between 1 and 100 items", "invalid_request_error")
		return
	}
	reqs := make([]generation.Request, len(body.Requests))
	for i, g := range body.Requests {
		reqs[i] = g.toRequest()
	}

	report := s.coord.GenerateBatch(r.Context(), reqs, body.Concurrency)
	items := make([]batchItemResponse, len(report.Items))
	for i, it := range report.Items {
		items[i] = batchItemResponse{Index: it.Index, Result: it.Result}
		if it.Err != nil {
			items[i].Error = newFailureBody(it.Err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":   report.Outcome(),
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"items":     items,
	})
}

func (s *server) checkBrand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}
	verdict, err := s.brands.Check(r.Context(), body.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

type routeInfo struct {
	Task     generation.TaskKind `json:"task"`
	Priority generation.Priority `json:"priority"`
	Models   []string            `json:"models"`
}

func (s *server) routes(w http.ResponseWriter, _ *http.Request) {
	router := s.coord.Router()
	var out []routeInfo
	for _, task := range router.Tasks() {
		for _, p := range generation.Priorities() {
			ri := routeInfo{Task: task, Priority: p}
			for _, m := range router.Candidates(task, p) {
				ri.Models = append(ri.Models, m.ID)
			}
			out = append(out, ri)
		}
	}
	breakers := make(map[string]string)
	for model, state := range s.coord.BreakerStates() {
		breakers[model] = state.String()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"routes":   out,
		"models":   router.Models(),
		"breakers": breakers,
	})
}

type failureBody struct {
	Message  string   `json:"message"`
	Type     string   `json:"type"`
	Category string   `json:"category"`
	Stage    string   `json:"stage"`
	Model    string   `json:"model,omitempty"`
	Attempts []string `json:"attempts,omitempty"`
}

func newFailureBody(f *surveycoder.Failure) *failureBody {
	return &failureBody{
		Message:  f.Error(),
		Type:     "generation_error",
		Category: string(f.Category),
		Stage:    string(f.Stage),
		Model:    f.Model,
		Attempts: f.Attempts,
	}
}

// failureStatus maps a failure to an HTTP status.
func failureStatus(f *surveycoder.Failure) int {
	switch {
	case f.Stage == surveycoder.StageValidate:
		return http.StatusBadRequest
	case f.Category == surveycoder.CategoryConfiguration:
		return http.StatusUnprocessableEntity
	case f.Category == surveycoder.CategoryRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	f, ok := surveycoder.AsFailure(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, err.Error(), "server_error")
		return
	}
	status := failureStatus(f)
	if status == http.StatusServiceUnavailable && !errors.Is(err, surveycoder.ErrCanceled) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]interface{}{"error": newFailureBody(f)})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message, errType string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

