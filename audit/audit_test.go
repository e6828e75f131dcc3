package audit

import (
	"context"
	"testing"

	"github.com/lienwatch/lienwatch/store"
)

func TestAsyncLoggingDrainsOnClose(t *testing.T) {
	// WHAT: Entries queued before Close are all persisted.
	// WHY: The pipeline logs its final summary right before shutdown.
	mem := store.NewMemory()
	a := New(mem, 16, nil)

	a.Info("pipeline", "run started", map[string]any{"run_id": "r-1"})
	a.Error("acquire", "navigation timeout", nil)
	a.Success("syncgw", "batch pushed", map[string]any{"count": 3})

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := mem.ListAuditEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries: got %d, want 3", len(entries))
	}
	for _, e := range entries {
		if e.ID == "" || e.CreatedAt == 0 {
			t.Errorf("defaults missing: %+v", e)
		}
	}
}

func TestBufferFullFallsBackToSync(t *testing.T) {
	// WHAT: With a full buffer, entries are written inline instead of
	// being dropped.
	mem := store.NewMemory()
	a := New(mem, 1, nil)
	// Stop the flush goroutine from draining so the buffer stays full.
	close(a.stop)
	<-a.done

	a.Info("pipeline", "first", nil)  // fills the buffer
	a.Info("pipeline", "second", nil) // sync fallback

	entries, _ := mem.ListAuditEntries(context.Background(), 10)
	if len(entries) != 1 {
		t.Fatalf("sync fallback entries: got %d, want 1", len(entries))
	}
	if entries[0].Message != "second" {
		t.Errorf("message: got %q", entries[0].Message)
	}
}
