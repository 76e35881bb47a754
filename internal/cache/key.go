// Package cache implements the three-tier result cache: a static whitelist,
// a bounded in-process memory tier and an optional durable tier behind the
// Substrate interface. Hierarchy ties the tiers together behind a single
// lookup/store contract.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ferro-labs/survey-coder/generation"
)

// Params is the subset of request configuration that changes the output for
// a given input, e.g. task kind, priority and flags.
type Params map[string]string

// Key identifies a cache entry. Keys from different namespaces never collide.
type Key struct {
	Namespace generation.Namespace
	Hash      string
}

// String returns the namespace-qualified key, "namespace:hash".
func (k Key) String() string {
	return string(k.Namespace) + ":" + k.Hash
}

// DeriveKey fingerprints (namespace, input, params). It performs no I/O and
// returns the same key for inputs that differ only in case, Unicode
// compatibility form or whitespace.
func DeriveKey(ns generation.Namespace, input string, params Params) Key {
	var b strings.Builder
	b.WriteString("ns=")
	b.WriteString(string(ns))
	b.WriteString("|input=")
	b.WriteString(normalizeInput(input))

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return Key{Namespace: ns, Hash: hex.EncodeToString(sum[:])}
}

func normalizeInput(s string) string {
	s = norm.NFKC.String(s)
	return collapseSpace(strings.ToLower(s))
}

// NormalizeWhitelist folds case and diacritics so that "Crème Brûlée" and
// "creme brulee" compare equal.
func NormalizeWhitelist(s string) string {
	decomposed, _, err := transform.String(norm.NFKD, s)
	if err != nil {
		decomposed = s
	}
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return collapseSpace(strings.ToLower(b.String()))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
