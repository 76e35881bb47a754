package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestAllowWithinBurst(t *testing.T) {
	l := New(10, 5)
	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("expected allow on request %d within burst", i+1)
		}
	}
}

func TestBlockWhenDepleted(t *testing.T) {
	l := New(10, 2)
	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Fatal("expected rate limit after burst exhausted")
	}
}

func TestRefillOverTime(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := newWithClock(2, 1, clock.Now)
	l.Allow()
	if l.Allow() {
		t.Fatal("expected rate limit before refill")
	}
	if got := l.RetryAfter(); got != 500*time.Millisecond {
		t.Errorf("RetryAfter() = %v, want 500ms", got)
	}
	clock.Advance(500 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("expected allow after refill")
	}
}

func TestStoreCreatesPerKeyLimiters(t *testing.T) {
	s := NewStore(100, 10)
	for i := 0; i < 10; i++ {
		if !s.Allow("key-a") {
			t.Fatalf("expected allow on key-a request %d", i+1)
		}
	}
	if !s.Allow("key-b") {
		t.Fatal("expected allow on key-b (fresh limiter)")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestStorePrune(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := NewStore(1, 1)
	s.now = clock.Now

	s.Allow("old")
	clock.Advance(time.Minute)
	s.Allow("new")

	if removed := s.Prune(30 * time.Second); removed != 1 {
		t.Fatalf("Prune() = %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMiddleware(t *testing.T) {
	s := NewStore(1, 2)
	h := Middleware(s, "ip", ByIP)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("10.0.0.1:1234"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
	rec := do("10.0.0.1:5678")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec := do("10.0.0.2:1234"); rec.Code != http.StatusNoContent {
		t.Errorf("other client should not be limited, got %d", rec.Code)
	}
}

func TestByIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4000"
	if got := ByIP(req); got != "192.0.2.7" {
		t.Errorf("ByIP() = %q", got)
	}
	req.RemoteAddr = "no-port"
	if got := ByIP(req); got != "no-port" {
		t.Errorf("ByIP() = %q", got)
	}
}
