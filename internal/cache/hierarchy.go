package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/logging"
	"github.com/ferro-labs/survey-coder/internal/metrics"
)

// Substrate is the durable key/value store behind the slowest tier. Values
// are opaque bytes; the hierarchy owns serialisation. Get must report an
// expired entry as absent.
type Substrate interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error
	SweepExpired(ctx context.Context) (int64, error)
}

// DefaultDurableTimeout bounds each durable-tier call when no timeout is
// configured.
const DefaultDurableTimeout = 2 * time.Second

// durableRecord is the msgpack envelope written to the substrate. ExpiresAt
// lets a promoted entry keep its remaining lifetime instead of restarting it.
type durableRecord struct {
	ExpiresAt int64              `msgpack:"exp"`
	Result    *generation.Result `msgpack:"res"`
}

// Hierarchy is the single lookup/store entry point over the three tiers.
// Lookups try whitelist, memory and durable in that order. Stores write
// memory and durable, never the whitelist. Durable-tier failures are logged
// and counted but never returned.
type Hierarchy struct {
	whitelist *Whitelist
	memory    *Memory
	durable   Substrate
	promote   bool
	timeout   time.Duration
	now       func() time.Time
}

// HierarchyOption configures a Hierarchy.
type HierarchyOption func(*Hierarchy)

// WithDurable attaches a durable substrate. Without one the hierarchy runs
// memory-only.
func WithDurable(s Substrate) HierarchyOption {
	return func(h *Hierarchy) { h.durable = s }
}

// WithPromotion controls whether durable hits are copied into memory.
// Enabled by default.
func WithPromotion(enabled bool) HierarchyOption {
	return func(h *Hierarchy) { h.promote = enabled }
}

// WithDurableTimeout bounds each durable-tier Get and Set. A call that
// exceeds it counts as a durable failure. d <= 0 keeps the default.
func WithDurableTimeout(d time.Duration) HierarchyOption {
	return func(h *Hierarchy) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithHierarchyClock replaces time.Now, for tests.
func WithHierarchyClock(now func() time.Time) HierarchyOption {
	return func(h *Hierarchy) { h.now = now }
}

// NewHierarchy assembles the tiers. whitelist may be nil; memory must not be.
func NewHierarchy(whitelist *Whitelist, memory *Memory, opts ...HierarchyOption) *Hierarchy {
	h := &Hierarchy{
		whitelist: whitelist,
		memory:    memory,
		promote:   true,
		timeout:   DefaultDurableTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HasDurable reports whether a durable substrate is attached.
func (h *Hierarchy) HasDurable() bool { return h.durable != nil }

// LookupWhitelist checks only the static tier. A hit is a complete result
// with zero cost and latency.
func (h *Hierarchy) LookupWhitelist(ns generation.Namespace, input string) (*generation.Result, bool) {
	out, ok := h.whitelist.Lookup(ns, input)
	if !ok {
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues(string(ns), string(generation.TierWhitelist)).Inc()
	return &generation.Result{
		OutputText:      out,
		ServedFromCache: true,
		CacheTier:       generation.TierWhitelist,
		Timestamp:       h.now(),
	}, true
}

// Lookup returns the first live entry across the tiers. It never fails: any
// durable error degrades to a miss.
func (h *Hierarchy) Lookup(ctx context.Context, ns generation.Namespace, input string, params Params) (*generation.Result, bool) {
	if res, ok := h.LookupWhitelist(ns, input); ok {
		return res, true
	}
	return h.LookupComputed(ctx, ns, input, params)
}

// LookupComputed is Lookup without the whitelist tier: memory first, then
// durable.
func (h *Hierarchy) LookupComputed(ctx context.Context, ns generation.Namespace, input string, params Params) (*generation.Result, bool) {
	key := DeriveKey(ns, input, params)
	now := h.now()

	if res, ok := h.memory.Get(key); ok {
		metrics.CacheLookups.WithLabelValues(string(ns), string(generation.TierMemory)).Inc()
		return res.AsCacheHit(generation.TierMemory, now), true
	}

	if h.durable != nil {
		if res, ok := h.durableGet(ctx, key, now); ok {
			metrics.CacheLookups.WithLabelValues(string(ns), string(generation.TierDurable)).Inc()
			return res.AsCacheHit(generation.TierDurable, now), true
		}
	}

	metrics.CacheLookups.WithLabelValues(string(ns), "miss").Inc()
	return nil, false
}

func (h *Hierarchy) durableGet(ctx context.Context, key Key, now time.Time) (*generation.Result, bool) {
	log := logging.FromContext(ctx)

	dctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	raw, ok, err := h.durable.Get(dctx, key)
	if err != nil {
		h.durableFailed(log, "get", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var rec durableRecord
	if err := msgpack.Unmarshal(raw, &rec); err != nil || rec.Result == nil {
		if err == nil {
			err = fmt.Errorf("empty record")
		}
		h.durableFailed(log, "decode", key, err)
		return nil, false
	}

	remaining := time.Unix(0, rec.ExpiresAt).Sub(now)
	if remaining <= 0 {
		return nil, false
	}
	if h.promote {
		h.memory.Set(key, rec.Result, remaining)
	}
	return rec.Result, true
}

// Store writes result to memory and, when attached, the durable tier. ttl <=
// 0 uses the namespace TTL of the memory tier. The stored copy is stripped
// of cache-hit markers.
func (h *Hierarchy) Store(ctx context.Context, ns generation.Namespace, input string, params Params, result *generation.Result, ttl time.Duration) {
	if result == nil {
		return
	}
	if ttl <= 0 {
		ttl = h.memory.Limits(ns).TTL
	}
	key := DeriveKey(ns, input, params)
	stored := result.Clone()
	stored.ServedFromCache = false
	stored.CacheTier = generation.TierNone

	h.memory.Set(key, stored, ttl)

	if h.durable == nil {
		return
	}
	log := logging.FromContext(ctx)
	raw, err := msgpack.Marshal(&durableRecord{
		ExpiresAt: h.now().Add(ttl).UnixNano(),
		Result:    stored,
	})
	if err != nil {
		h.durableFailed(log, "encode", key, err)
		return
	}
	dctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.durable.Set(dctx, key, raw, ttl); err != nil {
		h.durableFailed(log, "set", key, err)
	}
}

func (h *Hierarchy) durableFailed(log *slog.Logger, op string, key Key, err error) {
	metrics.CacheDurableErrors.WithLabelValues(op).Inc()
	log.Warn("durable cache tier unavailable, continuing memory-only",
		"op", op, "namespace", string(key.Namespace), "error", err.Error())
}

// SweepReport summarises one maintenance pass.
type SweepReport struct {
	MemoryPurged  int
	DurablePurged int64
}

// Sweep physically removes expired entries from every tier. The durable
// error, if any, is returned for the caller to log; memory is swept either
// way.
func (h *Hierarchy) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	report.MemoryPurged = h.memory.PurgeExpired()
	metrics.CacheSwept.WithLabelValues(string(generation.TierMemory)).Add(float64(report.MemoryPurged))

	if h.durable == nil {
		return report, nil
	}
	n, err := h.durable.SweepExpired(ctx)
	if err != nil {
		metrics.CacheDurableErrors.WithLabelValues("sweep").Inc()
		return report, fmt.Errorf("sweep durable tier: %w", err)
	}
	report.DurablePurged = n
	metrics.CacheSwept.WithLabelValues(string(generation.TierDurable)).Add(float64(n))
	return report, nil
}

// StartSweeper runs Sweep every interval in a background goroutine until ctx
// is cancelled. interval must be greater than zero.
func (h *Hierarchy) StartSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("StartSweeper: interval must be greater than zero, got %v", interval)
	}
	log := logging.FromContext(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := h.Sweep(ctx)
				if err != nil {
					log.Error("cache sweep failed", "error", err.Error())
				}
				log.Debug("cache sweep completed",
					"memory_purged", report.MemoryPurged,
					"durable_purged", report.DurablePurged)
			}
		}
	}()
	return nil
}
