package surveycoder

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/cache"
	"github.com/ferro-labs/survey-coder/internal/language"
	"github.com/ferro-labs/survey-coder/internal/routing"
	"github.com/ferro-labs/survey-coder/internal/search"
	"github.com/ferro-labs/survey-coder/providers"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding config field is empty.
const (
	DefaultTargetLanguage   = "en"
	DefaultTranslateTimeout = 5 * time.Second
	DefaultContextTimeout   = 5 * time.Second
	DefaultProviderTimeout  = 30 * time.Second
	DefaultSweepInterval    = 10 * time.Minute
	DefaultContextResults   = 5
)

//go:embed config.schema.json
var configSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("config.schema.json", configSchemaJSON)
	})
	return schema, schemaErr
}

// envRef matches the ${NAME} form only. A bare $ is literal so whitelist
// text such as "$5 footlong" survives loading.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(envRef.FindSubmatch(m)[1])))
	})
}

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml). ${VAR} references are
// expanded from the environment before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return ParseConfig(data, "yaml")
	case ".json":
		return ParseConfig(data, "json")
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}
}

// ParseConfig parses a "json" or "yaml" document, checks it against the
// embedded schema and decodes it. ${NAME} references are replaced from the
// environment first.
func ParseConfig(data []byte, format string) (*Config, error) {
	data = expandEnv(data)

	var (
		doc any
		cfg Config
	)
	switch format {
	case "yaml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		asJSON, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		if doc, err = decodeJSONDocument(asJSON); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case "json":
		var err error
		if doc, err = decodeJSONDocument(data); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	s, err := configSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("config does not match schema: %w", err)
	}
	return &cfg, nil
}

func decodeJSONDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ValidateConfig checks a Config for semantic errors the schema cannot
// express: duration syntax, language tags, and a complete routing table.
func ValidateConfig(cfg Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, err := cfg.targetLanguage(); err != nil {
		add("target_language: %v", err)
	}
	if _, err := cfg.router(); err != nil {
		var cerr *routing.ConfigError
		if errors.As(err, &cerr) {
			problems = append(problems, cerr.Problems...)
		} else {
			add("routes: %v", err)
		}
	}
	if _, err := cache.NewWhitelist(cfg.Whitelist); err != nil {
		add("whitelist: %v", err)
	}
	if _, err := cfg.memoryLimits(); err != nil {
		add("cache: %v", err)
	}
	if _, err := cfg.timeouts(); err != nil {
		add("timeouts: %v", err)
	}
	if _, err := parseDuration(cfg.Cache.Durable.Timeout, cache.DefaultDurableTimeout); err != nil {
		add("cache.durable.timeout: %v", err)
	}
	if _, err := cfg.sweepInterval(); err != nil {
		add("cache.sweep_interval: %v", err)
	}
	if cfg.CircuitBreaker != nil {
		if _, err := parseDuration(cfg.CircuitBreaker.Timeout, 0); err != nil {
			add("circuit_breaker.timeout: %v", err)
		}
	}

	models := make(map[string]routing.ModelDescriptor, len(cfg.Models))
	for _, m := range cfg.Models {
		models[m.ID] = m
	}
	switch cfg.Translation.Backend {
	case "":
	case "libretranslate":
		if cfg.Translation.URL == "" {
			add("translation.url is required for the libretranslate backend")
		}
	case "model":
		if _, ok := models[cfg.Translation.Model]; !ok {
			add("translation.model %q is not a configured model", cfg.Translation.Model)
		}
	default:
		add("translation.backend %q is not supported", cfg.Translation.Backend)
	}
	switch cfg.Search.Backend {
	case "", "duckduckgo":
	default:
		add("search.backend %q is not supported", cfg.Search.Backend)
	}
	if cfg.Search.MaxResults < 0 || cfg.Search.MaxResults > search.MaxResults {
		add("search.max_results must be between 1 and %d", search.MaxResults)
	}
	if id := cfg.Secondary.Model; id != "" {
		if _, ok := models[id]; !ok {
			add("secondary.model %q is not a configured model", id)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// resolvedTimeouts are the parsed per-step deadlines.
type resolvedTimeouts struct {
	translate time.Duration
	context   time.Duration
	provider  time.Duration
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func (c Config) timeouts() (resolvedTimeouts, error) {
	var (
		t   resolvedTimeouts
		err error
	)
	if t.translate, err = parseDuration(c.Timeouts.Translate, DefaultTranslateTimeout); err != nil {
		return t, fmt.Errorf("translate: %w", err)
	}
	if t.context, err = parseDuration(c.Timeouts.Context, DefaultContextTimeout); err != nil {
		return t, fmt.Errorf("context: %w", err)
	}
	if t.provider, err = parseDuration(c.Timeouts.Provider, DefaultProviderTimeout); err != nil {
		return t, fmt.Errorf("provider: %w", err)
	}
	return t, nil
}

func (c Config) sweepInterval() (time.Duration, error) {
	return parseDuration(c.Cache.SweepInterval, DefaultSweepInterval)
}

// SweepInterval returns the configured cache maintenance interval.
func (c Config) SweepInterval() time.Duration {
	d, err := c.sweepInterval()
	if err != nil {
		return DefaultSweepInterval
	}
	return d
}

func (c Config) targetLanguage() (string, error) {
	code := c.TargetLanguage
	if code == "" {
		code = DefaultTargetLanguage
	}
	if _, err := language.Parse(code); err != nil {
		return "", err
	}
	return code, nil
}

type memoryLimits struct {
	defaults   cache.Limits
	namespaces map[generation.Namespace]cache.Limits
}

func (c Config) memoryLimits() (memoryLimits, error) {
	ttl, err := parseDuration(c.Cache.DefaultTTL, cache.DefaultTTL)
	if err != nil {
		return memoryLimits{}, fmt.Errorf("default_ttl: %w", err)
	}
	out := memoryLimits{
		defaults:   cache.Limits{Capacity: c.Cache.DefaultCapacity, TTL: ttl},
		namespaces: make(map[generation.Namespace]cache.Limits, len(c.Cache.Namespaces)),
	}
	for ns, nc := range c.Cache.Namespaces {
		nsTTL, err := parseDuration(nc.TTL, 0)
		if err != nil {
			return memoryLimits{}, fmt.Errorf("namespaces.%s.ttl: %w", ns, err)
		}
		if nc.Capacity < 0 {
			return memoryLimits{}, fmt.Errorf("namespaces.%s.capacity must be positive", ns)
		}
		l := cache.Limits{Capacity: nc.Capacity, TTL: nsTTL}
		if l.Capacity == 0 {
			l.Capacity = out.defaults.Capacity
		}
		if l.TTL == 0 {
			l.TTL = out.defaults.TTL
		}
		out.namespaces[generation.Namespace(ns)] = l
	}
	return out, nil
}

// modelsWithListPrices fills unit costs left at zero from the providers'
// public price list.
func (c Config) modelsWithListPrices() []routing.ModelDescriptor {
	out := make([]routing.ModelDescriptor, len(c.Models))
	for i, m := range c.Models {
		if m.CostPerInputUnit == 0 && m.CostPerOutputUnit == 0 {
			if p, ok := providers.ListPrice(m.Provider, m.ID); ok {
				m.CostPerInputUnit, m.CostPerOutputUnit = p.PerUnit()
			}
		}
		m.SupportedTasks = append([]generation.TaskKind(nil), m.SupportedTasks...)
		out[i] = m
	}
	return out
}

func (c Config) router() (*routing.Router, error) {
	table := make(routing.Table, len(c.Routes))
	var dups []string
	for _, rc := range c.Routes {
		route := routing.Route{Task: rc.Task, Priority: rc.Priority}
		if _, ok := table[route]; ok {
			dups = append(dups, fmt.Sprintf("route %s: listed more than once", route))
			continue
		}
		table[route] = append([]string(nil), rc.Models...)
	}
	r, err := routing.New(c.modelsWithListPrices(), table, c.RequiredTasks...)
	if len(dups) == 0 {
		return r, err
	}
	var cerr *routing.ConfigError
	if errors.As(err, &cerr) {
		dups = append(dups, cerr.Problems...)
	}
	return nil, &routing.ConfigError{Problems: dups}
}

// Model returns the configured descriptor for id, with list prices filled in
// where costs were left unset.
func (c Config) Model(id string) (routing.ModelDescriptor, bool) {
	for _, m := range c.modelsWithListPrices() {
		if m.ID == id {
			return m, true
		}
	}
	return routing.ModelDescriptor{}, false
}
