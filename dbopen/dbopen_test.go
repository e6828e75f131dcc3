package dbopen

import (
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenMemory(t *testing.T) {
	// WHAT: OpenMemory returns a usable in-memory database.
	// WHY: All store tests depend on this helper.
	db := OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("pragma foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys: got %d, want 1", fk)
	}
}

func TestOpenWithSchema(t *testing.T) {
	// WHAT: WithSchema executes SQL during open.
	// WHY: Components pass their schema at open time.
	db := OpenMemory(t, WithSchema(`CREATE TABLE t (id TEXT PRIMARY KEY)`))

	if _, err := db.Exec(`INSERT INTO t (id) VALUES ('a')`); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}

func TestOpenBadDriver(t *testing.T) {
	// WHAT: Unknown driver name fails with a wrapped error.
	// WHY: Misconfiguration should surface at startup, not first query.
	if _, err := Open(":memory:", WithDriver("no-such-driver")); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
