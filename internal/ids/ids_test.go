package ids

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestNewIsMonotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("expected increasing ids, got %s after %s", next, prev)
		}
		prev = next
	}
}

func TestNewWithPrefix(t *testing.T) {
	id := NewWithPrefix(PrefixOrganization)
	rest, ok := strings.CutPrefix(id, "org_")
	if !ok {
		t.Fatalf("missing prefix: %s", id)
	}
	if _, err := ulid.ParseStrict(rest); err != nil {
		t.Fatalf("suffix is not a ulid: %v", err)
	}
	if got := NewWithPrefix(""); strings.Contains(got, "_") {
		t.Fatalf("unexpected separator without prefix: %s", got)
	}
}
