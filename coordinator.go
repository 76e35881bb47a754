// Package surveycoder turns free-text survey answers into normalized
// results by orchestrating interchangeable language-model providers behind a
// three-tier cache and a policy-driven model router.
//
// The Coordinator type is the main entry point: create one with New,
// register providers with RegisterProvider, check the wiring with Validate,
// and run requests with Generate or GenerateBatch.
//
// Routing tables, the whitelist, cache limits and per-step timeouts are
// configured via [Config], which can be loaded from a YAML or JSON file
// using [LoadConfig].
package surveycoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/cache"
	"github.com/ferro-labs/survey-coder/internal/circuitbreaker"
	"github.com/ferro-labs/survey-coder/internal/language"
	"github.com/ferro-labs/survey-coder/internal/logging"
	"github.com/ferro-labs/survey-coder/internal/metrics"
	"github.com/ferro-labs/survey-coder/internal/routing"
	"github.com/ferro-labs/survey-coder/internal/search"
	"github.com/ferro-labs/survey-coder/internal/translate"
	"github.com/ferro-labs/survey-coder/providers"
	textlang "golang.org/x/text/language"
)

// EventHookFunc is called asynchronously after every generation, completed
// or failed.
type EventHookFunc func(ctx context.Context, subject string, data map[string]interface{})

// Event subject constants used when invoking hooks.
const (
	SubjectGenerationCompleted = "generation.completed"
	SubjectGenerationFailed    = "generation.failed"
)

// Coordinator runs the generation pipeline. It is safe for concurrent use.
type Coordinator struct {
	mu        sync.RWMutex
	providers map[string]providers.Provider
	hooks     []EventHookFunc

	router     *routing.Router
	cache      *cache.Hierarchy
	detector   *language.Detector
	target     textlang.Tag
	targetCode string
	translator translate.Translator
	enricher   search.Enricher
	breakers   *circuitbreaker.Set
	timeouts   resolvedTimeouts
	maxContext int
	secondary  string
	now        func() time.Time
}

type options struct {
	durable    cache.Substrate
	translator translate.Translator
	enricher   search.Enricher
	providers  []providers.Provider
	now        func() time.Time
}

// Option customises a Coordinator built with New.
type Option func(*options)

// WithDurable attaches the durable cache tier.
func WithDurable(s cache.Substrate) Option {
	return func(o *options) { o.durable = s }
}

// WithTranslator sets the translation backend. Without one, translation is
// skipped.
func WithTranslator(t translate.Translator) Option {
	return func(o *options) { o.translator = t }
}

// WithEnricher sets the context-enrichment backend. Without one, enrichment
// is skipped.
func WithEnricher(e search.Enricher) Option {
	return func(o *options) { o.enricher = e }
}

// WithProviders registers providers at construction.
func WithProviders(ps ...providers.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, ps...) }
}

// WithClock replaces time.Now for cache expiry and latency measurement.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New validates cfg and builds a Coordinator. Configuration errors are
// returned here rather than at request time.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	router, err := cfg.router()
	if err != nil {
		return nil, err
	}
	whitelist, err := cache.NewWhitelist(cfg.Whitelist)
	if err != nil {
		return nil, err
	}
	limits, err := cfg.memoryLimits()
	if err != nil {
		return nil, err
	}
	timeouts, err := cfg.timeouts()
	if err != nil {
		return nil, err
	}
	code, err := cfg.targetLanguage()
	if err != nil {
		return nil, err
	}
	target, err := language.Parse(code)
	if err != nil {
		return nil, err
	}

	memOpts := []cache.MemoryOption{cache.WithClock(o.now)}
	for ns, l := range limits.namespaces {
		memOpts = append(memOpts, cache.WithNamespaceLimits(ns, l))
	}
	hOpts := []cache.HierarchyOption{cache.WithHierarchyClock(o.now)}
	if o.durable != nil {
		hOpts = append(hOpts, cache.WithDurable(o.durable))
	}
	if d, err := parseDuration(cfg.Cache.Durable.Timeout, cache.DefaultDurableTimeout); err == nil {
		hOpts = append(hOpts, cache.WithDurableTimeout(d))
	}
	if p := cfg.Cache.PromoteDurableHits; p != nil {
		hOpts = append(hOpts, cache.WithPromotion(*p))
	}

	c := &Coordinator{
		providers:  make(map[string]providers.Provider),
		router:     router,
		cache:      cache.NewHierarchy(whitelist, cache.NewMemory(limits.defaults, memOpts...), hOpts...),
		detector:   language.NewDetector(target),
		target:     target,
		targetCode: code,
		translator: o.translator,
		enricher:   o.enricher,
		timeouts:   timeouts,
		maxContext: cfg.Search.MaxResults,
		secondary:  cfg.Secondary.Model,
		now:        o.now,
	}
	if c.maxContext == 0 {
		c.maxContext = DefaultContextResults
	}
	if cb := cfg.CircuitBreaker; cb != nil {
		timeout, _ := parseDuration(cb.Timeout, 0)
		c.breakers = circuitbreaker.NewSet(circuitbreaker.Settings{
			FailureThreshold: cb.FailureThreshold,
			SuccessThreshold: cb.SuccessThreshold,
			Timeout:          timeout,
		})
	}
	for _, p := range o.providers {
		c.RegisterProvider(p)
	}
	return c, nil
}

// RegisterProvider registers a provider under its name, replacing any
// provider with the same name.
func (c *Coordinator) RegisterProvider(p providers.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[p.Name()] = p
}

// AddHook registers an EventHookFunc that is called asynchronously on each
// completed or failed generation.
func (c *Coordinator) AddHook(fn EventHookFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Router returns the model router.
func (c *Coordinator) Router() *routing.Router { return c.router }

// Cache returns the cache hierarchy, for maintenance.
func (c *Coordinator) Cache() *cache.Hierarchy { return c.cache }

// BreakerStates returns per-model circuit states, or nil when breakers are
// disabled.
func (c *Coordinator) BreakerStates() map[string]circuitbreaker.State {
	if c.breakers == nil {
		return nil
	}
	return c.breakers.States()
}

func (c *Coordinator) provider(name string) (providers.Provider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[name]
	return p, ok
}

// Validate checks that every routed model has a registered provider. Call it
// once after registering providers so that gaps fail at startup.
func (c *Coordinator) Validate() error {
	seen := make(map[string]bool)
	var missing []string
	for _, task := range c.router.Tasks() {
		for _, prio := range generation.Priorities() {
			for _, m := range c.router.Candidates(task, prio) {
				if seen[m.ID] {
					continue
				}
				seen[m.ID] = true
				p, ok := c.provider(m.Provider)
				if !ok {
					missing = append(missing, fmt.Sprintf("model %s: provider %q is not registered", m.ID, m.Provider))
					continue
				}
				if !p.SupportsModel(m.ID) {
					slog.Warn("provider does not advertise routed model", "provider", m.Provider, "model", m.ID)
				}
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("provider configuration: %s", strings.Join(missing, "; "))
	}
	return nil
}

// Generate runs one request through the pipeline. Errors are always a
// *Failure.
func (c *Coordinator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	ctx, requestID := logging.EnsureRequestID(ctx)
	r := &run{
		c:         c,
		req:       req,
		requestID: requestID,
		log:       logging.FromContext(ctx).With("task", string(req.TaskKind), "priority", string(req.Priority)),
	}

	res, fail := r.execute(ctx)
	if fail != nil {
		fail.Attempts = r.attempts
		c.recordFailure(ctx, r, fail)
		return nil, fail
	}
	c.recordSuccess(ctx, r, res)
	return res, nil
}

// run carries the state of one request through the pipeline.
type run struct {
	c         *Coordinator
	req       generation.Request
	requestID string
	log       *slog.Logger

	prompt      string
	detected    string
	translation *generation.Translation
	snippets    []generation.Snippet
	secondary   *generation.SecondaryEvaluation
	issues      []generation.StepIssue
	attempts    []string
	cost        float64
	latency     time.Duration
}

func (r *run) degrade(step string, err error) {
	metrics.DegradedSteps.WithLabelValues(step).Inc()
	r.log.Warn("optional step failed, continuing without it", "step", step, "error", err.Error())
	r.issues = append(r.issues, generation.StepIssue{Step: step, Error: err.Error()})
}

func (r *run) addLatency(start time.Time) {
	r.latency += r.c.now().Sub(start)
}

func (r *run) execute(ctx context.Context) (*generation.Result, *Failure) {
	c, req := r.c, r.req
	if strings.TrimSpace(req.InputText) == "" {
		return nil, &Failure{Category: CategoryNonRetryable, Stage: StageValidate, Err: errors.New("input text is required")}
	}
	if !req.Priority.Valid() {
		return nil, &Failure{Category: CategoryNonRetryable, Stage: StageValidate, Err: fmt.Errorf("unknown priority %q", req.Priority)}
	}

	if res, ok := c.cache.LookupWhitelist(generation.NamespacePromptResult, req.InputText); ok {
		return res, nil
	}

	params := c.cacheParams(req)
	if !req.ForceRefresh {
		if res, ok := c.cache.LookupComputed(ctx, generation.NamespacePromptResult, req.InputText, params); ok {
			return res, nil
		}
	}

	r.prompt = req.InputText
	det, err := c.detector.Detect(req.InputText)
	if err != nil {
		r.degrade("language", err)
		r.detected = c.targetCode
	} else {
		r.detected = det.Code()
		if req.Flags.UseAutoTranslate && !language.SameLanguage(det.Tag, c.target) {
			if f := r.translate(ctx, det); f != nil {
				return nil, f
			}
		}
	}

	if req.Flags.UseContextEnrichment {
		if f := r.enrich(ctx); f != nil {
			return nil, f
		}
	}

	primary, f := r.selectModel()
	if f != nil {
		return nil, f
	}

	preq := r.providerRequest()
	resp, model, f := r.invokeWithFallback(ctx, primary, preq)
	if f != nil {
		return nil, f
	}
	output := strings.TrimSpace(resp.Text)

	if req.Flags.UseSecondaryEvaluation {
		if f := r.secondaryEval(ctx, model, preq, output); f != nil {
			return nil, f
		}
	}

	res := &generation.Result{
		OutputText:       output,
		ModelUsed:        model.ID,
		ProviderUsed:     model.Provider,
		DetectedLanguage: r.detected,
		Translation:      r.translation,
		ContextWasUsed:   len(r.snippets) > 0,
		ContextSnippets:  r.snippets,
		LatencyMs:        r.latency.Milliseconds(),
		EstimatedCostUSD: r.cost,
		CacheTier:        generation.TierNone,
		Timestamp:        c.now(),
		Secondary:        r.secondary,
		Degraded:         r.issues,
	}

	if ctx.Err() != nil {
		return nil, canceled(ctx, StageCacheStore, model.ID)
	}
	c.cache.Store(context.WithoutCancel(ctx), generation.NamespacePromptResult, req.InputText, params, res, 0)
	return res, nil
}

// cacheParams lists the request settings that change the output.
func (c *Coordinator) cacheParams(req generation.Request) cache.Params {
	p := cache.Params{
		"task":      string(req.TaskKind),
		"priority":  string(req.Priority),
		"target":    c.targetCode,
		"translate": strconv.FormatBool(req.Flags.UseAutoTranslate),
		"context":   strconv.FormatBool(req.Flags.UseContextEnrichment),
		"secondary": strconv.FormatBool(req.Flags.UseSecondaryEvaluation),
	}
	if req.SystemPrompt != "" {
		p["system"] = req.SystemPrompt
	}
	if req.Criteria != nil {
		p["criteria"] = fmt.Sprintf("%+v", *req.Criteria)
	}
	return p
}

func (r *run) translate(ctx context.Context, det language.Detection) *Failure {
	c := r.c
	if c.translator == nil {
		r.log.Debug("translation skipped, no translator configured", "detected", det.Code())
		return nil
	}

	from := det.Code()
	params := cache.Params{"from": from, "to": c.targetCode}
	if hit, ok := c.cache.LookupComputed(ctx, generation.NamespaceTranslation, r.req.InputText, params); ok {
		r.applyTranslation(hit.DetectedLanguage, hit.OutputText)
		return nil
	}

	tctx, cancel := context.WithTimeout(ctx, c.timeouts.translate)
	defer cancel()
	start := c.now()
	resp, err := c.translator.Translate(tctx, translate.Request{
		Text:           r.req.InputText,
		SourceLanguage: from,
		TargetLanguage: c.targetCode,
	})
	r.addLatency(start)
	if err != nil {
		if ctx.Err() != nil {
			return canceled(ctx, StageTranslate, "")
		}
		r.degrade("translate", err)
		return nil
	}

	if resp.SourceLanguage != "" {
		from = resp.SourceLanguage
	}
	r.cost += resp.CostUSD
	r.applyTranslation(from, resp.TranslatedText)
	c.cache.Store(context.WithoutCancel(ctx), generation.NamespaceTranslation, r.req.InputText, params, &generation.Result{
		OutputText:       resp.TranslatedText,
		DetectedLanguage: from,
		Timestamp:        c.now(),
	}, 0)
	return nil
}

func (r *run) applyTranslation(from, text string) {
	if from == "" {
		from = r.detected
	}
	r.translation = &generation.Translation{From: from, To: r.c.targetCode, Text: text}
	r.prompt = text
}

func (r *run) enrich(ctx context.Context) *Failure {
	c := r.c
	if c.enricher == nil {
		r.log.Debug("context enrichment skipped, no enricher configured")
		return nil
	}

	params := cache.Params{"max": strconv.Itoa(c.maxContext)}
	if hit, ok := c.cache.LookupComputed(ctx, generation.NamespaceSearchContext, r.prompt, params); ok {
		r.snippets = hit.ContextSnippets
		return nil
	}

	ectx, cancel := context.WithTimeout(ctx, c.timeouts.context)
	defer cancel()
	start := c.now()
	resp, err := c.enricher.Enrich(ectx, search.Request{Query: r.prompt, MaxResults: c.maxContext})
	r.addLatency(start)
	if err != nil {
		if ctx.Err() != nil {
			return canceled(ctx, StageContextEnrich, "")
		}
		r.degrade("context", err)
		return nil
	}

	r.snippets = resp.Snippets
	c.cache.Store(context.WithoutCancel(ctx), generation.NamespaceSearchContext, r.prompt, params, &generation.Result{
		ContextWasUsed:  len(resp.Snippets) > 0,
		ContextSnippets: resp.Snippets,
		Timestamp:       c.now(),
	}, 0)
	return nil
}

func (r *run) selectModel() (routing.ModelDescriptor, *Failure) {
	c, req := r.c, r.req
	var (
		m   routing.ModelDescriptor
		err error
	)
	if req.Criteria != nil {
		var ok bool
		m, ok = c.router.SelectByCriteria(req.TaskKind, req.Priority, *req.Criteria)
		if !ok {
			err = fmt.Errorf("%w: no model for %s/%s satisfies the selection criteria", routing.ErrNoCandidate, req.TaskKind, req.Priority)
		}
	} else {
		m, err = c.router.SelectModel(req.TaskKind, req.Priority)
	}
	if err != nil {
		return m, &Failure{Category: CategoryConfiguration, Stage: StageModelSelect, Err: err}
	}
	if _, ok := c.provider(m.Provider); !ok {
		return m, &Failure{
			Category: CategoryConfiguration,
			Stage:    StageModelSelect,
			Model:    m.ID,
			Err:      fmt.Errorf("provider %q for model %s is not registered", m.Provider, m.ID),
		}
	}
	return m, nil
}

// nextModel returns the router's next candidate after excluded that has a
// registered provider, a closed circuit and, when the request carries
// criteria, satisfies them.
func (r *run) nextModel(excluded ...string) (routing.ModelDescriptor, bool) {
	c, req := r.c, r.req
	excluded = append([]string(nil), excluded...)
	for {
		m, ok := c.router.SelectFallback(req.TaskKind, req.Priority, excluded...)
		if !ok {
			return routing.ModelDescriptor{}, false
		}
		excluded = append(excluded, m.ID)
		if req.Criteria != nil && !routing.Satisfies(m, *req.Criteria) {
			continue
		}
		if _, ok := c.provider(m.Provider); !ok {
			continue
		}
		if c.breakers != nil && c.breakers.For(m.ID).State() == circuitbreaker.StateOpen {
			continue
		}
		return m, true
	}
}

// invokeWithFallback calls primary and, on a retryable failure, exactly one
// fallback model.
func (r *run) invokeWithFallback(ctx context.Context, primary routing.ModelDescriptor, preq providers.Request) (*providers.Response, routing.ModelDescriptor, *Failure) {
	resp, err := r.invoke(ctx, primary, preq)
	if err == nil {
		return resp, primary, nil
	}
	if ctx.Err() != nil {
		return nil, primary, canceled(ctx, StageProviderInvoke, primary.ID)
	}
	fail := &Failure{Category: categorize(err), Stage: StageProviderInvoke, Model: primary.ID, Err: err}
	if fail.Category != CategoryRetryable || !r.req.Flags.UseAdaptiveRetry {
		return nil, primary, fail
	}

	fallback, ok := r.nextModel(primary.ID)
	if !ok {
		metrics.FallbackAttempts.WithLabelValues("unavailable").Inc()
		r.log.Warn("primary model failed and no fallback is available", "model", primary.ID, "error", err.Error())
		return nil, primary, fail
	}

	r.log.Warn("primary model failed, trying fallback", "model", primary.ID, "fallback", fallback.ID, "error", err.Error())
	resp, ferr := r.invoke(ctx, fallback, preq)
	if ferr == nil {
		metrics.FallbackAttempts.WithLabelValues("success").Inc()
		return resp, fallback, nil
	}
	metrics.FallbackAttempts.WithLabelValues("failure").Inc()
	if ctx.Err() != nil {
		return nil, fallback, canceled(ctx, StageProviderInvoke, fallback.ID)
	}
	return nil, fallback, &Failure{
		Category: categorize(ferr),
		Stage:    StageProviderInvoke,
		Model:    fallback.ID,
		Err: errors.Join(
			fmt.Errorf("fallback %s: %w", fallback.ID, ferr),
			fmt.Errorf("primary %s: %w", primary.ID, err),
		),
	}
}

// invoke makes one provider call bounded by the provider timeout and guarded
// by the model's circuit breaker. Successful calls add their cost.
func (r *run) invoke(ctx context.Context, m routing.ModelDescriptor, preq providers.Request) (*providers.Response, error) {
	c := r.c
	p, ok := c.provider(m.Provider)
	if !ok {
		return nil, &providers.Error{Provider: m.Provider, Kind: providers.KindMalformed, Message: "provider not registered"}
	}
	r.attempts = append(r.attempts, m.ID)

	var cb *circuitbreaker.CircuitBreaker
	if c.breakers != nil {
		cb = c.breakers.For(m.ID)
		if err := cb.Allow(); err != nil {
			metrics.ProviderErrors.WithLabelValues(m.Provider, errorKind(err)).Inc()
			return nil, fmt.Errorf("model %s: %w", m.ID, err)
		}
	}

	preq.Model = m.ID
	pctx, cancel := context.WithTimeout(ctx, c.timeouts.provider)
	defer cancel()

	start := c.now()
	wall := time.Now()
	resp, err := p.Complete(pctx, preq)
	metrics.ProviderDuration.WithLabelValues(m.Provider, m.ID).Observe(time.Since(wall).Seconds())
	r.addLatency(start)

	if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
		err = &providers.Error{Provider: m.Provider, Kind: providers.KindTransient, Message: "empty completion"}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		err = providers.Classify(m.Provider, err)
		metrics.ProviderErrors.WithLabelValues(m.Provider, errorKind(err)).Inc()
		if cb != nil && isRetryable(err) {
			cb.RecordFailure()
		}
		return nil, err
	}
	if cb != nil {
		cb.RecordSuccess()
	}

	metrics.TokensInput.WithLabelValues(m.Provider, m.ID).Add(float64(resp.Usage.InputTokens))
	metrics.TokensOutput.WithLabelValues(m.Provider, m.ID).Add(float64(resp.Usage.OutputTokens))
	r.cost += routing.EstimateCost(m, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}

func (r *run) secondaryEval(ctx context.Context, primary routing.ModelDescriptor, preq providers.Request, answer string) *Failure {
	m, ok := r.secondaryModel(primary.ID)
	if !ok {
		r.degrade("secondary", errors.New("no secondary model available"))
		return nil
	}
	resp, err := r.invoke(ctx, m, preq)
	if err != nil {
		if ctx.Err() != nil {
			return canceled(ctx, StageSecondaryEval, m.ID)
		}
		r.degrade("secondary", err)
		return nil
	}
	out := strings.TrimSpace(resp.Text)
	r.secondary = &generation.SecondaryEvaluation{
		Model:    m.ID,
		Provider: m.Provider,
		Output:   out,
		Agrees:   generation.SameAnswer(answer, out),
	}
	return nil
}

func (r *run) secondaryModel(primaryID string) (routing.ModelDescriptor, bool) {
	c := r.c
	if c.secondary != "" && c.secondary != primaryID {
		if m, ok := c.router.Model(c.secondary); ok {
			if _, ok := c.provider(m.Provider); ok {
				return m, true
			}
		}
	}
	return r.nextModel(primaryID)
}

func (c *Coordinator) recordSuccess(ctx context.Context, r *run, res *generation.Result) {
	metrics.GenerationsTotal.WithLabelValues(string(r.req.TaskKind), "success").Inc()
	if res.EstimatedCostUSD > 0 {
		metrics.GenerationCost.WithLabelValues(res.ModelUsed).Add(res.EstimatedCostUSD)
	}

	r.log.Info("generation completed",
		"model", res.ModelUsed,
		"tier", string(res.CacheTier),
		"latency_ms", res.LatencyMs,
		"cost_usd", res.EstimatedCostUSD,
		"degraded", len(res.Degraded),
	)

	c.publishEvent(ctx, SubjectGenerationCompleted, map[string]interface{}{
		"request_id":        r.requestID,
		"task":              string(r.req.TaskKind),
		"priority":          string(r.req.Priority),
		"model":             res.ModelUsed,
		"provider":          res.ProviderUsed,
		"cache_tier":        string(res.CacheTier),
		"latency_ms":        res.LatencyMs,
		"cost_usd":          res.EstimatedCostUSD,
		"degraded_steps":    len(res.Degraded),
		"detected_language": res.DetectedLanguage,
		"timestamp":         res.Timestamp,
	})
}

func (c *Coordinator) recordFailure(ctx context.Context, r *run, f *Failure) {
	metrics.GenerationsTotal.WithLabelValues(string(r.req.TaskKind), string(f.Category)).Inc()

	r.log.Error("generation failed",
		"category", string(f.Category),
		"stage", string(f.Stage),
		"model", f.Model,
		"attempts", strings.Join(f.Attempts, ","),
		"latency_ms", r.latency.Milliseconds(),
		"error", f.Error(),
	)

	c.publishEvent(ctx, SubjectGenerationFailed, map[string]interface{}{
		"request_id":     r.requestID,
		"task":           string(r.req.TaskKind),
		"priority":       string(r.req.Priority),
		"category":       string(f.Category),
		"stage":          string(f.Stage),
		"model":          f.Model,
		"latency_ms":     r.latency.Milliseconds(),
		"cost_usd":       r.cost,
		"degraded_steps": len(r.issues),
		"error":          f.Error(),
		"timestamp":      c.now(),
	})
}

// publishEvent calls all registered hooks asynchronously. Hooks receive a
// context that outlives the request.
func (c *Coordinator) publishEvent(ctx context.Context, subject string, data map[string]interface{}) {
	c.mu.RLock()
	hooks := make([]EventHookFunc, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.RUnlock()

	hctx := context.WithoutCancel(ctx)
	for _, h := range hooks {
		fn := h
		go fn(hctx, subject, data)
	}
}
