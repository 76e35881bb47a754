package providers

import (
	"context"
	"testing"
)

type stubProvider struct {
	name   string
	models []string
}

func (s *stubProvider) Name() string              { return s.name }
func (s *stubProvider) SupportedModels() []string { return s.models }
func (s *stubProvider) SupportsModel(m string) bool {
	for _, mm := range s.models {
		if mm == m {
			return true
		}
	}
	return false
}
func (s *stubProvider) Complete(_ context.Context, req Request) (*Response, error) {
	return &Response{Model: req.Model, Provider: s.name, Text: "stub"}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "a", models: []string{"m1"}})

	p, ok := r.Get("a")
	if !ok {
		t.Fatal("expected provider a")
	}
	if p.Name() != "a" {
		t.Errorf("got %q", p.Name())
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("expected not found")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "y"})
	r.Register(&stubProvider{name: "x"})

	names := r.List()
	if len(names) != 2 || names[0] != "x" || names[1] != "y" {
		t.Errorf("List() = %v, want [x y]", names)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistry_MustGetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for missing provider")
		}
	}()
	NewRegistry().MustGet("nope")
}
