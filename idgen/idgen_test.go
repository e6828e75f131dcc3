package idgen

import "testing"

func TestUUIDv7Unique(t *testing.T) {
	// WHAT: Consecutive IDs are distinct and well-formed.
	// WHY: Every table keys on these.
	gen := UUIDv7()
	seen := make(map[string]bool)
	for range 100 {
		id := gen()
		if len(id) != 36 {
			t.Fatalf("unexpected length: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id: %q", id)
		}
		seen[id] = true
	}
}

func TestNanoIDLength(t *testing.T) {
	// WHAT: NanoID honours the requested length.
	gen := NanoID(12)
	if got := gen(); len(got) != 12 {
		t.Errorf("length: got %d, want 12", len(got))
	}
}

func TestPrefixed(t *testing.T) {
	// WHAT: Prefixed prepends the prefix to the inner generator's output.
	gen := Prefixed("run_", NanoID(8))
	id := gen()
	if len(id) != 12 || id[:4] != "run_" {
		t.Errorf("unexpected id: %q", id)
	}
}
