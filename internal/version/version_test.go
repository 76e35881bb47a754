package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Short()+" (commit ") {
		t.Errorf("String() = %q", s)
	}
}
