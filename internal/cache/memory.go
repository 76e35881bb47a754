package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/ferro-labs/survey-coder/generation"
)

// Defaults for namespaces without explicit limits.
const (
	DefaultCapacity = 500
	DefaultTTL      = time.Hour
)

// Limits bounds one namespace of the memory tier.
type Limits struct {
	Capacity int
	TTL      time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.Capacity <= 0 {
		l.Capacity = DefaultCapacity
	}
	if l.TTL <= 0 {
		l.TTL = DefaultTTL
	}
	return l
}

type memoryEntry struct {
	key       string
	result    *generation.Result
	expiresAt time.Time
}

type namespaceStore struct {
	limits Limits
	items  map[string]*list.Element
	order  *list.List // front is the oldest insertion
}

// Memory is the bounded in-process tier. Each namespace has its own capacity
// and TTL, and eviction is by insertion order: when a namespace is full the
// oldest-inserted entry goes first, regardless of how recently it was read.
// Expired entries are dropped lazily on read and by PurgeExpired.
type Memory struct {
	mu       sync.Mutex
	defaults Limits
	limits   map[generation.Namespace]Limits
	spaces   map[generation.Namespace]*namespaceStore
	now      func() time.Time
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithNamespaceLimits overrides the limits of a single namespace.
func WithNamespaceLimits(ns generation.Namespace, l Limits) MemoryOption {
	return func(m *Memory) { m.limits[ns] = l.withDefaults() }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a memory tier. Zero fields in defaults fall back to
// DefaultCapacity and DefaultTTL.
func NewMemory(defaults Limits, opts ...MemoryOption) *Memory {
	m := &Memory{
		defaults: defaults.withDefaults(),
		limits:   make(map[generation.Namespace]Limits),
		spaces:   make(map[generation.Namespace]*namespaceStore),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Limits returns the effective limits for ns.
func (m *Memory) Limits(ns generation.Namespace) Limits {
	if l, ok := m.limits[ns]; ok {
		return l
	}
	return m.defaults
}

// Get returns a copy of the live entry for key. An expired entry is removed
// and reported as a miss.
func (m *Memory) Get(key Key) (*generation.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.spaces[key.Namespace]
	if !ok {
		return nil, false
	}
	elem, ok := s.items[key.Hash]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*memoryEntry)
	if m.now().After(entry.expiresAt) {
		s.remove(elem)
		return nil, false
	}
	return entry.result.Clone(), true
}

// Set stores result under key for ttl, or the namespace TTL when ttl <= 0.
// Overwriting a key counts as a fresh insertion for eviction purposes.
func (m *Memory) Set(key Key, result *generation.Result, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.space(key.Namespace)
	if ttl <= 0 {
		ttl = s.limits.TTL
	}
	if elem, ok := s.items[key.Hash]; ok {
		s.remove(elem)
	}
	for s.order.Len() >= s.limits.Capacity {
		s.remove(s.order.Front())
	}
	entry := &memoryEntry{
		key:       key.Hash,
		result:    result.Clone(),
		expiresAt: m.now().Add(ttl),
	}
	s.items[key.Hash] = s.order.PushBack(entry)
}

// Delete removes key if present.
func (m *Memory) Delete(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.spaces[key.Namespace]; ok {
		if elem, ok := s.items[key.Hash]; ok {
			s.remove(elem)
		}
	}
}

// Len returns the number of entries held for ns, including expired entries
// not yet purged.
func (m *Memory) Len(ns generation.Namespace) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.spaces[ns]; ok {
		return s.order.Len()
	}
	return 0
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (m *Memory) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for _, s := range m.spaces {
		for elem := s.order.Front(); elem != nil; {
			next := elem.Next()
			if now.After(elem.Value.(*memoryEntry).expiresAt) {
				s.remove(elem)
				removed++
			}
			elem = next
		}
	}
	return removed
}

// Clear removes all entries of every namespace.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spaces = make(map[generation.Namespace]*namespaceStore)
}

func (m *Memory) space(ns generation.Namespace) *namespaceStore {
	s, ok := m.spaces[ns]
	if !ok {
		s = &namespaceStore{
			limits: m.Limits(ns),
			items:  make(map[string]*list.Element),
			order:  list.New(),
		}
		m.spaces[ns] = s
	}
	return s
}

func (s *namespaceStore) remove(elem *list.Element) {
	s.order.Remove(elem)
	delete(s.items, elem.Value.(*memoryEntry).key)
}
