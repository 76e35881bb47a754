// Package circuitbreaker implements per-model circuit breakers for provider
// calls.
//
// State transitions:
//
//	Closed → Open        when consecutive failures ≥ FailureThreshold
//	Open   → HalfOpen   after Timeout elapses
//	HalfOpen → Closed   when consecutive successes ≥ SuccessThreshold
//	HalfOpen → Open     on any failure
package circuitbreaker

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ferro-labs/survey-coder/internal/metrics"
)

// State represents the circuit breaker's current state.
type State int

const (
	// StateClosed: normal operation; requests pass through.
	StateClosed State = iota
	// StateOpen: the model is considered failing; calls are rejected immediately.
	StateOpen
	// StateHalfOpen: a probe call is allowed through to test recovery.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Settings configures a breaker. Zero values take the defaults:
// FailureThreshold=5, SuccessThreshold=1, Timeout=30s.
type Settings struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold" yaml:"success_threshold"`
	Timeout          time.Duration `json:"-" yaml:"-"`
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 1
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	return s
}

// CircuitBreaker guards a single model.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string
	settings     Settings
	now          func() time.Time
	state        State
	failureCount int
	successCount int
	openUntil    time.Time
}

// New creates a breaker for the model called name.
func New(name string, s Settings) *CircuitBreaker {
	return newWithClock(name, s, time.Now)
}

func newWithClock(name string, s Settings, now func() time.Time) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:     name,
		settings: s.withDefaults(),
		now:      now,
		state:    StateClosed,
	}
	cb.publish()
	return cb
}

// Name returns the guarded model ID.
func (cb *CircuitBreaker) Name() string { return cb.name }

// State returns the current state, transitioning Open→HalfOpen if the timeout
// has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.resolveState()
}

// resolveState must be called with cb.mu held.
func (cb *CircuitBreaker) resolveState() State {
	if cb.state == StateOpen && cb.now().After(cb.openUntil) {
		cb.setState(StateHalfOpen)
		cb.successCount = 0
	}
	return cb.state
}

// setState must be called with cb.mu held.
func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	cb.publish()
}

func (cb *CircuitBreaker) publish() {
	metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(float64(cb.state))
}

// Allow returns nil if the call should proceed (circuit is Closed or
// HalfOpen) and ErrCircuitOpen otherwise.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.resolveState() == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess notifies the breaker that a call succeeded.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.resolveState() {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.settings.SuccessThreshold {
			cb.setState(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

// RecordFailure notifies the breaker that a call failed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.resolveState() {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.settings.FailureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

// trip must be called with cb.mu held.
func (cb *CircuitBreaker) trip() {
	cb.setState(StateOpen)
	cb.openUntil = cb.now().Add(cb.settings.Timeout)
	cb.successCount = 0
}

// Set lazily creates one breaker per model ID, all sharing the same
// settings.
type Set struct {
	mu       sync.Mutex
	settings Settings
	now      func() time.Time
	breakers map[string]*CircuitBreaker
}

// NewSet creates an empty Set.
func NewSet(s Settings) *Set {
	return &Set{settings: s, now: time.Now, breakers: make(map[string]*CircuitBreaker)}
}

// For returns the breaker for model, creating it on first use.
func (s *Set) For(model string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[model]
	if !ok {
		cb = newWithClock(model, s.settings, s.now)
		s.breakers[model] = cb
	}
	return cb
}

// States snapshots every known breaker's state, keyed by model ID.
func (s *Set) States() map[string]State {
	s.mu.Lock()
	names := make([]string, 0, len(s.breakers))
	for name := range s.breakers {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	out := make(map[string]State, len(names))
	for _, name := range names {
		out[name] = s.For(name).State()
	}
	return out
}
