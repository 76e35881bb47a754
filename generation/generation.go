// Package generation defines the request and result types that flow through
// the survey-coder pipeline.
//
// A Request is built once per input item and produces exactly one Result.
// The same Result shape is returned to callers and stored in the cache, so a
// cache hit carries every field a fresh computation does, with
// ServedFromCache and CacheTier set accordingly.
package generation

import (
	"strings"
	"time"
)

// TaskKind is the category of generation work requested. It is the primary
// routing axis of the model router.
type TaskKind string

// Task kinds used by the pipeline itself. The routing table may name others.
const (
	TaskClassification TaskKind = "classification"
	TaskTranslation    TaskKind = "translation"
	TaskExtraction     TaskKind = "extraction"
	TaskCoding         TaskKind = "coding"
	TaskValidation     TaskKind = "validation"
)

// Priority is a caller-selected tradeoff point between speed, cost and
// quality.
type Priority string

// Priority tiers, cheapest first.
const (
	PriorityFast     Priority = "fast"
	PriorityBalanced Priority = "balanced"
	PriorityAccurate Priority = "accurate"
)

// Priorities returns every priority tier in canonical order.
func Priorities() []Priority {
	return []Priority{PriorityFast, PriorityBalanced, PriorityAccurate}
}

// Valid reports whether p is one of the known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityFast, PriorityBalanced, PriorityAccurate:
		return true
	}
	return false
}

// LatencyClass orders models by expected response time.
type LatencyClass string

// Latency classes, fastest first. The empty class means "unconstrained" when
// used as a criterion.
const (
	LatencyLow    LatencyClass = "low"
	LatencyMedium LatencyClass = "medium"
	LatencyHigh   LatencyClass = "high"
)

// Rank returns a sortable rank for c (low=1, medium=2, high=3) and 0 for an
// unknown or empty class.
func (c LatencyClass) Rank() int {
	switch c {
	case LatencyLow:
		return 1
	case LatencyMedium:
		return 2
	case LatencyHigh:
		return 3
	}
	return 0
}

// Namespace partitions the cache. Capacity and TTL are tracked per namespace.
type Namespace string

// Cache namespaces written by the coordinator.
const (
	NamespacePromptResult  Namespace = "prompt-result"
	NamespaceTranslation   Namespace = "translation"
	NamespaceSearchContext Namespace = "search-context"
)

// Tier identifies which cache tier served a result.
type Tier string

// Cache tiers in lookup order. TierNone marks a freshly computed result.
const (
	TierNone      Tier = "none"
	TierWhitelist Tier = "whitelist"
	TierMemory    Tier = "memory"
	TierDurable   Tier = "durable"
)

// Flags toggles the optional pipeline steps.
type Flags struct {
	// UseContextEnrichment runs the web-search enrichment step and appends
	// the snippets to the prompt. Default true.
	UseContextEnrichment bool `json:"use_context_enrichment"`
	// UseAutoTranslate translates the input to the target language when the
	// detected language differs. Default true.
	UseAutoTranslate bool `json:"use_auto_translate"`
	// UseAdaptiveRetry allows one fallback-model attempt after a retryable
	// provider failure. When false the primary failure is returned as is.
	// Default true.
	UseAdaptiveRetry bool `json:"use_adaptive_retry"`
	// UseSecondaryEvaluation asks a second model to review the primary
	// answer. The review is reported alongside the answer and never replaces
	// it. Default false.
	UseSecondaryEvaluation bool `json:"use_secondary_evaluation"`
}

// DefaultFlags returns the documented flag defaults.
func DefaultFlags() Flags {
	return Flags{
		UseContextEnrichment:   true,
		UseAutoTranslate:       true,
		UseAdaptiveRetry:       true,
		UseSecondaryEvaluation: false,
	}
}

// Criteria are hard constraints for model selection. Zero values leave the
// matching dimension unconstrained.
type Criteria struct {
	MaxCostPerRequest float64      `json:"max_cost_per_request,omitempty"`
	MaxLatency        LatencyClass `json:"max_latency,omitempty"`
	MinQuality        float64      `json:"min_quality,omitempty"`
	PreferredProvider string       `json:"preferred_provider,omitempty"`
	// ExpectedInputUnits and ExpectedOutputUnits size the request for the
	// MaxCostPerRequest check. Defaults apply when zero.
	ExpectedInputUnits  int `json:"expected_input_units,omitempty"`
	ExpectedOutputUnits int `json:"expected_output_units,omitempty"`
}

// Request is one unit of generation work.
type Request struct {
	InputText    string    `json:"input_text"`
	TaskKind     TaskKind  `json:"task_kind"`
	Priority     Priority  `json:"priority"`
	Flags        Flags     `json:"flags"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Criteria     *Criteria `json:"criteria,omitempty"`
	// ForceRefresh skips the cache read. The result is still stored.
	ForceRefresh bool `json:"force_refresh,omitempty"`
}

// RequestOption customises a Request built with NewRequest.
type RequestOption func(*Request)

// WithFlags replaces the default flags.
func WithFlags(f Flags) RequestOption {
	return func(r *Request) { r.Flags = f }
}

// WithSystemPrompt sets the system prompt sent to the provider.
func WithSystemPrompt(s string) RequestOption {
	return func(r *Request) { r.SystemPrompt = s }
}

// WithCriteria constrains model selection.
func WithCriteria(c Criteria) RequestOption {
	return func(r *Request) { r.Criteria = &c }
}

// WithForceRefresh bypasses cache reads for this request.
func WithForceRefresh() RequestOption {
	return func(r *Request) { r.ForceRefresh = true }
}

// NewRequest builds a Request with DefaultFlags.
func NewRequest(input string, task TaskKind, priority Priority, opts ...RequestOption) Request {
	r := Request{
		InputText: input,
		TaskKind:  task,
		Priority:  priority,
		Flags:     DefaultFlags(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Snippet is a single context-enrichment hit.
type Snippet struct {
	Title     string `json:"title"`
	Excerpt   string `json:"excerpt"`
	SourceRef string `json:"source_ref"`
}

// Translation records a translation applied before generation.
type Translation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// SecondaryEvaluation is a second model's review of the primary answer.
type SecondaryEvaluation struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Output   string `json:"output"`
	// Agrees is true when the reviewer's answer matches the primary answer
	// after normalisation.
	Agrees bool `json:"agrees"`
}

// StepIssue records a degraded step that did not fail the request.
type StepIssue struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// Result is the outcome of one Request. It is also the cached value.
type Result struct {
	OutputText       string               `json:"output_text"`
	ModelUsed        string               `json:"model_used"`
	ProviderUsed     string               `json:"provider_used"`
	DetectedLanguage string               `json:"detected_language,omitempty"`
	Translation      *Translation         `json:"translation,omitempty"`
	ContextWasUsed   bool                 `json:"context_was_used"`
	ContextSnippets  []Snippet            `json:"context_snippets,omitempty"`
	LatencyMs        int64                `json:"latency_ms"`
	EstimatedCostUSD float64              `json:"estimated_cost_usd"`
	ServedFromCache  bool                 `json:"served_from_cache"`
	CacheTier        Tier                 `json:"cache_tier"`
	Timestamp        time.Time            `json:"timestamp"`
	Secondary        *SecondaryEvaluation `json:"secondary,omitempty"`
	Degraded         []StepIssue          `json:"degraded,omitempty"`
}

// Clone returns a deep copy of r so cached values cannot be mutated through
// a returned result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Translation != nil {
		t := *r.Translation
		cp.Translation = &t
	}
	if r.Secondary != nil {
		s := *r.Secondary
		cp.Secondary = &s
	}
	if r.ContextSnippets != nil {
		cp.ContextSnippets = append([]Snippet(nil), r.ContextSnippets...)
	}
	if r.Degraded != nil {
		cp.Degraded = append([]StepIssue(nil), r.Degraded...)
	}
	return &cp
}

// AsCacheHit returns a copy of r marked as served from tier. Measured cost
// and latency are zeroed because no billed step ran for this request.
func (r *Result) AsCacheHit(tier Tier, now time.Time) *Result {
	cp := r.Clone()
	cp.ServedFromCache = true
	cp.CacheTier = tier
	cp.LatencyMs = 0
	cp.EstimatedCostUSD = 0
	cp.Degraded = nil
	cp.Timestamp = now
	return cp
}

// SameAnswer compares two outputs ignoring case, surrounding quotes and
// whitespace.
func SameAnswer(a, b string) bool {
	clean := func(s string) string {
		s = strings.TrimSpace(s)
		s = strings.Trim(s, "\"'`.")
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	return clean(a) == clean(b)
}
