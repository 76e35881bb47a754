package surveycoder

import (
	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/cache"
	"github.com/ferro-labs/survey-coder/internal/routing"
)

// Config holds the configuration for a Coordinator. Durations are Go
// duration strings ("1h", "750ms").
type Config struct {
	// TargetLanguage is the language models are prompted in. Inputs detected
	// in another language are translated first. Default "en".
	TargetLanguage string `json:"target_language,omitempty" yaml:"target_language,omitempty"`
	// Models describes every model the router may select.
	Models []routing.ModelDescriptor `json:"models" yaml:"models"`
	// Routes lists, per task and priority tier, model IDs in preference
	// order. Every task named here must cover all priority tiers.
	Routes []RouteConfig `json:"routes" yaml:"routes"`
	// RequiredTasks must be routable even if Routes never mentions them.
	RequiredTasks []generation.TaskKind `json:"required_tasks,omitempty" yaml:"required_tasks,omitempty"`
	// Whitelist is the static exact-match tier.
	Whitelist []cache.WhitelistEntry `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`

	Cache          CacheConfig           `json:"cache,omitempty" yaml:"cache,omitempty"`
	Timeouts       TimeoutConfig         `json:"timeouts,omitempty" yaml:"timeouts,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
	Translation    TranslationConfig     `json:"translation,omitempty" yaml:"translation,omitempty"`
	Search         SearchConfig          `json:"search,omitempty" yaml:"search,omitempty"`
	Secondary      SecondaryConfig       `json:"secondary,omitempty" yaml:"secondary,omitempty"`
	RequestLog     RequestLogConfig      `json:"request_log,omitempty" yaml:"request_log,omitempty"`
}

// RouteConfig is one row of the routing table.
type RouteConfig struct {
	Task     generation.TaskKind `json:"task" yaml:"task"`
	Priority generation.Priority `json:"priority" yaml:"priority"`
	Models   []string            `json:"models" yaml:"models"`
}

// CacheConfig sizes the memory tier and configures the durable tier.
type CacheConfig struct {
	// DefaultCapacity and DefaultTTL apply to namespaces without an
	// override. Defaults 500 and 1h.
	DefaultCapacity int                        `json:"default_capacity,omitempty" yaml:"default_capacity,omitempty"`
	DefaultTTL      string                     `json:"default_ttl,omitempty" yaml:"default_ttl,omitempty"`
	Namespaces      map[string]NamespaceConfig `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
	// Durable selects the durable tier. An empty driver disables it.
	Durable DurableConfig `json:"durable,omitempty" yaml:"durable,omitempty"`
	// SweepInterval is how often expired entries are purged. Default 10m.
	SweepInterval string `json:"sweep_interval,omitempty" yaml:"sweep_interval,omitempty"`
	// PromoteDurableHits copies durable hits into memory. Default true.
	PromoteDurableHits *bool `json:"promote_durable_hits,omitempty" yaml:"promote_durable_hits,omitempty"`
}

// NamespaceConfig overrides the memory-tier limits for one namespace.
type NamespaceConfig struct {
	Capacity int    `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	TTL      string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// DurableConfig selects the durable cache substrate.
type DurableConfig struct {
	// Driver is "sqlite", "postgres" or empty.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Timeout bounds each durable read and write. A slower call is treated
	// as a durable-tier failure. Default 2s.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TimeoutConfig bounds each external call. Defaults: translate 5s, context
// 5s, provider 30s.
type TimeoutConfig struct {
	Translate string `json:"translate,omitempty" yaml:"translate,omitempty"`
	Context   string `json:"context,omitempty" yaml:"context,omitempty"`
	Provider  string `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// CircuitBreakerConfig configures the per-model breakers. Omit it to disable
// them.
type CircuitBreakerConfig struct {
	FailureThreshold int    `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	SuccessThreshold int    `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty"`
	Timeout          string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TranslationConfig selects the translation backend.
type TranslationConfig struct {
	// Backend is "libretranslate", "model" or empty (disabled).
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// Model is the model ID used by the "model" backend.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
}

// SearchConfig selects the context-enrichment backend.
type SearchConfig struct {
	// Backend is "duckduckgo" or empty (disabled).
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	// MaxResults caps snippets per request. Default 5, at most 10.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`
}

// SecondaryConfig configures secondary evaluation.
type SecondaryConfig struct {
	// Model reviews primary answers. When empty the router's fallback for
	// the request's route is used.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
}

// RequestLogConfig enables the SQL request log.
type RequestLogConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}
