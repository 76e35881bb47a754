package cache

import (
	"fmt"

	"github.com/ferro-labs/survey-coder/generation"
)

// WhitelistEntry maps a canonical input to its fixed output. An empty
// Namespace means prompt-result.
type WhitelistEntry struct {
	Namespace generation.Namespace `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Input     string               `json:"input" yaml:"input"`
	Output    string               `json:"output" yaml:"output"`
}

// Whitelist is the static exact-match tier. It is built once and never
// modified, so lookups need no locking.
type Whitelist struct {
	entries map[string]string
}

// NewWhitelist indexes entries by namespace and normalised input. Two
// entries that normalise to the same input with different outputs are
// rejected.
func NewWhitelist(entries []WhitelistEntry) (*Whitelist, error) {
	w := &Whitelist{entries: make(map[string]string, len(entries))}
	for i, e := range entries {
		ns := e.Namespace
		if ns == "" {
			ns = generation.NamespacePromptResult
		}
		norm := NormalizeWhitelist(e.Input)
		if norm == "" {
			return nil, fmt.Errorf("whitelist entry %d: input is empty", i)
		}
		if e.Output == "" {
			return nil, fmt.Errorf("whitelist entry %d (%q): output is empty", i, e.Input)
		}
		k := whitelistKey(ns, norm)
		if prev, ok := w.entries[k]; ok && prev != e.Output {
			return nil, fmt.Errorf("whitelist entry %d (%q): conflicts with an earlier entry mapping to %q", i, e.Input, prev)
		}
		w.entries[k] = e.Output
	}
	return w, nil
}

// Lookup returns the whitelisted output for input in ns. A nil Whitelist
// never matches.
func (w *Whitelist) Lookup(ns generation.Namespace, input string) (string, bool) {
	if w == nil {
		return "", false
	}
	out, ok := w.entries[whitelistKey(ns, NormalizeWhitelist(input))]
	return out, ok
}

// Len returns the number of distinct entries.
func (w *Whitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.entries)
}

func whitelistKey(ns generation.Namespace, normalized string) string {
	return string(ns) + "\x00" + normalized
}
