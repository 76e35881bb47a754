package surveycoder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/routing"
)

const testYAML = `
target_language: en
models:
  - id: small
    provider: stub
    latency_class: low
    quality_score: 0.6
    supported_tasks: [coding, validation]
  - id: large
    provider: stub
    latency_class: medium
    quality_score: 0.9
    supported_tasks: [coding, validation]
routes:
  - {task: coding, priority: fast, models: [small]}
  - {task: coding, priority: balanced, models: [small, large]}
  - {task: coding, priority: accurate, models: [large]}
whitelist:
  - {input: colgate, output: Colgate}
cache:
  default_capacity: 100
  default_ttl: 30m
  namespaces:
    translation: {ttl: 24h}
timeouts:
  provider: ${SURVEYCODER_TEST_PROVIDER_TIMEOUT}
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("SURVEYCODER_TEST_PROVIDER_TIMEOUT", "12s")
	cfg, err := LoadConfig(writeConfig(t, "config.yaml", testYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Models) != 2 || len(cfg.Routes) != 3 {
		t.Fatalf("got %d models and %d routes", len(cfg.Models), len(cfg.Routes))
	}
	if cfg.Timeouts.Provider != "12s" {
		t.Errorf("env expansion: got provider timeout %q", cfg.Timeouts.Provider)
	}
	if cfg.Whitelist[0].Output != "Colgate" {
		t.Errorf("whitelist output = %q", cfg.Whitelist[0].Output)
	}
	if err := ValidateConfig(*cfg); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
	to, err := cfg.timeouts()
	if err != nil {
		t.Fatal(err)
	}
	if to.provider != 12*time.Second || to.translate != DefaultTranslateTimeout {
		t.Errorf("timeouts = %+v", to)
	}
}

func TestLoadConfig_YML(t *testing.T) {
	t.Setenv("SURVEYCODER_TEST_PROVIDER_TIMEOUT", "1s")
	if _, err := LoadConfig(writeConfig(t, "config.yml", testYAML)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	body := `{
  "models": [{"id": "small", "provider": "stub", "latency_class": "low", "supported_tasks": ["coding"]}],
  "routes": [
    {"task": "coding", "priority": "fast", "models": ["small"]},
    {"task": "coding", "priority": "balanced", "models": ["small"]},
    {"task": "coding", "priority": "accurate", "models": ["small"]}
  ],
  "circuit_breaker": {"failure_threshold": 3, "timeout": "10s"}
}`
	cfg, err := LoadConfig(writeConfig(t, "config.json", body))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CircuitBreaker == nil || cfg.CircuitBreaker.FailureThreshold != 3 {
		t.Errorf("circuit breaker = %+v", cfg.CircuitBreaker)
	}
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "bad.json", "{not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseConfig_BareDollarIsLiteral(t *testing.T) {
	t.Setenv("SURVEYCODER_TEST_PROVIDER_TIMEOUT", "5s")
	t.Setenv("HOME", "/root")
	doc := strings.Replace(testYAML,
		"  - {input: colgate, output: Colgate}",
		"  - {input: \"$5 footlong\", output: \"Subway $5 Footlong\"}\n  - {input: \"$HOME brand\", output: \"Home$\"}",
		1)
	cfg, err := ParseConfig([]byte(doc), "yaml")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	want := []struct{ in, out string }{
		{"$5 footlong", "Subway $5 Footlong"},
		{"$HOME brand", "Home$"},
	}
	if len(cfg.Whitelist) != len(want) {
		t.Fatalf("got %d whitelist entries", len(cfg.Whitelist))
	}
	for i, w := range want {
		if cfg.Whitelist[i].Input != w.in || cfg.Whitelist[i].Output != w.out {
			t.Errorf("whitelist[%d] = %q -> %q, want %q -> %q", i, cfg.Whitelist[i].Input, cfg.Whitelist[i].Output, w.in, w.out)
		}
	}
	if cfg.Timeouts.Provider != "5s" {
		t.Errorf("${VAR} reference not expanded: provider timeout %q", cfg.Timeouts.Provider)
	}
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "config.toml", "x = 1"))
	if err == nil || !strings.Contains(err.Error(), "unsupported config file extension") {
		t.Fatalf("got %v", err)
	}
}

func TestParseConfig_SchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", `{"models": [], "routes": [], "strategy": "x"}`},
		{"missing routes", `{"models": [{"id": "a", "provider": "p", "latency_class": "low", "supported_tasks": ["coding"]}]}`},
		{"bad priority", `{"models": [{"id": "a", "provider": "p", "latency_class": "low", "supported_tasks": ["coding"]}], "routes": [{"task": "coding", "priority": "urgent", "models": ["a"]}]}`},
		{"bad duration", `{"models": [{"id": "a", "provider": "p", "latency_class": "low", "supported_tasks": ["coding"]}], "routes": [{"task": "coding", "priority": "fast", "models": ["a"]}], "timeouts": {"provider": "soon"}}`},
		{"bad latency class", `{"models": [{"id": "a", "provider": "p", "latency_class": "instant", "supported_tasks": ["coding"]}], "routes": [{"task": "coding", "priority": "fast", "models": ["a"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.body), "json")
			if err == nil || !strings.Contains(err.Error(), "schema") {
				t.Fatalf("expected schema error, got %v", err)
			}
		})
	}
}

func testConfig() Config {
	tasks := []generation.TaskKind{generation.TaskCoding, generation.TaskValidation}
	return Config{
		Models: []routing.ModelDescriptor{
			{ID: "small", Provider: "primary", LatencyClass: generation.LatencyLow, CostPerInputUnit: 0.001, CostPerOutputUnit: 0.002, QualityScore: 0.6, SupportedTasks: tasks},
			{ID: "large", Provider: "backup", LatencyClass: generation.LatencyMedium, CostPerInputUnit: 0.01, CostPerOutputUnit: 0.02, QualityScore: 0.9, SupportedTasks: tasks},
		},
		Routes: []RouteConfig{
			{Task: generation.TaskCoding, Priority: generation.PriorityFast, Models: []string{"small"}},
			{Task: generation.TaskCoding, Priority: generation.PriorityBalanced, Models: []string{"small", "large"}},
			{Task: generation.TaskCoding, Priority: generation.PriorityAccurate, Models: []string{"large"}},
			{Task: generation.TaskValidation, Priority: generation.PriorityFast, Models: []string{"small"}},
			{Task: generation.TaskValidation, Priority: generation.PriorityBalanced, Models: []string{"small"}},
			{Task: generation.TaskValidation, Priority: generation.PriorityAccurate, Models: []string{"large"}},
		},
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	if err := ValidateConfig(testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateConfig_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"incomplete routes", func(c *Config) { c.Routes = c.Routes[:2] }, "coding/accurate"},
		{"duplicate route", func(c *Config) { c.Routes = append(c.Routes, c.Routes[0]) }, "listed more than once"},
		{"unknown model", func(c *Config) { c.Routes[0].Models = []string{"ghost"} }, "ghost"},
		{"bad language", func(c *Config) { c.TargetLanguage = "not a tag!" }, "target_language"},
		{"zero timeout", func(c *Config) { c.Timeouts.Provider = "0s" }, "timeouts"},
		{"negative sweep", func(c *Config) { c.Cache.SweepInterval = "-1m" }, "sweep_interval"},
		{"libretranslate without url", func(c *Config) { c.Translation.Backend = "libretranslate" }, "translation.url"},
		{"unknown translation model", func(c *Config) {
			c.Translation = TranslationConfig{Backend: "model", Model: "ghost"}
		}, "translation.model"},
		{"unknown search backend", func(c *Config) { c.Search.Backend = "bing" }, "search.backend"},
		{"too many results", func(c *Config) { c.Search.MaxResults = 50 }, "search.max_results"},
		{"unknown secondary", func(c *Config) { c.Secondary.Model = "ghost" }, "secondary.model"},
		{"bad durable timeout", func(c *Config) { c.Cache.Durable.Timeout = "soon" }, "cache.durable.timeout"},
		{"bad breaker timeout", func(c *Config) {
			c.CircuitBreaker = &CircuitBreakerConfig{Timeout: "later"}
		}, "circuit_breaker.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestConfig_MemoryLimitsInheritDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Cache = CacheConfig{
		DefaultCapacity: 50,
		DefaultTTL:      "2h",
		Namespaces:      map[string]NamespaceConfig{"translation": {TTL: "24h"}},
	}
	limits, err := cfg.memoryLimits()
	if err != nil {
		t.Fatal(err)
	}
	got := limits.namespaces[generation.NamespaceTranslation]
	if got.Capacity != 50 || got.TTL != 24*time.Hour {
		t.Errorf("translation limits = %+v", got)
	}
	if limits.defaults.TTL != 2*time.Hour {
		t.Errorf("default ttl = %v", limits.defaults.TTL)
	}
}

func TestConfig_ListPricesFillZeroCosts(t *testing.T) {
	cfg := testConfig()
	cfg.Models[0] = routing.ModelDescriptor{ID: "gpt-4o-mini", Provider: "openai", LatencyClass: generation.LatencyLow, SupportedTasks: cfg.Models[0].SupportedTasks}
	for i := range cfg.Routes {
		for j, id := range cfg.Routes[i].Models {
			if id == "small" {
				cfg.Routes[i].Models[j] = "gpt-4o-mini"
			}
		}
	}
	r, err := cfg.router()
	if err != nil {
		t.Fatal(err)
	}
	m, _ := r.Model("gpt-4o-mini")
	if m.CostPerInputUnit != 0.15/1_000_000 {
		t.Errorf("input cost = %v", m.CostPerInputUnit)
	}
}
