package store

import (
	"context"
	"testing"
	"time"

	"github.com/lienwatch/lienwatch/dbopen"

	_ "modernc.org/sqlite"
)

// implementations returns both Store implementations so every contract test
// runs against SQLite and Memory alike.
func implementations(t *testing.T) map[string]Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return map[string]Store{
		"sqlite": NewSQLite(db, nil),
		"memory": NewMemory(),
	}
}

func TestApplySchema(t *testing.T) {
	// WHAT: Schema creates all tables without error.
	// WHY: Everything else depends on it.
	db := dbopen.OpenMemory(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	for _, table := range []string{"liens", "runs", "sub_runs", "audit_entries"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestCreateOrGetLienIdempotent(t *testing.T) {
	// WHAT: Same doc_id twice yields the same stored record both times.
	// WHY: Dedup on the natural key is the core persistence invariant.
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, created, err := s.CreateOrGetLien(ctx, &Lien{
				DocID:       "20260812001234",
				DebtorName:  "JANE DOE",
				AmountCents: 2_500_000,
			})
			if err != nil {
				t.Fatalf("first create: %v", err)
			}
			if !created {
				t.Fatal("first call should create")
			}
			if first.Status != StatusPending {
				t.Errorf("status: got %q, want pending", first.Status)
			}

			second, created, err := s.CreateOrGetLien(ctx, &Lien{
				DocID:       "20260812001234",
				DebtorName:  "SOMEONE ELSE",
				AmountCents: 1,
			})
			if err != nil {
				t.Fatalf("second create: %v", err)
			}
			if created {
				t.Error("second call should not create")
			}
			if second.ID != first.ID {
				t.Errorf("id: got %q, want %q", second.ID, first.ID)
			}
			if second.DebtorName != "JANE DOE" {
				t.Errorf("existing record overwritten: %q", second.DebtorName)
			}
		})
	}
}

func TestLienStatusAndExternalID(t *testing.T) {
	// WHAT: UpdateLienStatus overwrites freely; SetLienExternalID moves to synced.
	// WHY: Transitions are unenforced by design; sync must set both fields.
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, _, err := s.CreateOrGetLien(ctx, &Lien{DocID: "D-1", AmountCents: 100})
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			if err := s.UpdateLienStatus(ctx, l.ID, StatusProcessing); err != nil {
				t.Fatalf("update status: %v", err)
			}
			if err := s.SetLienExternalID(ctx, l.ID, "ext-42"); err != nil {
				t.Fatalf("set external id: %v", err)
			}

			got, _ := s.GetLien(ctx, l.ID)
			if got.Status != StatusSynced {
				t.Errorf("status: got %q, want synced", got.Status)
			}
			if got.ExternalID != "ext-42" {
				t.Errorf("external id: got %q", got.ExternalID)
			}

			// Any state can be reset to pending (retry semantics).
			if err := s.UpdateLienStatus(ctx, l.ID, StatusPending); err != nil {
				t.Fatalf("reset: %v", err)
			}
			got, _ = s.GetLien(ctx, l.ID)
			if got.Status != StatusPending {
				t.Errorf("status after reset: got %q", got.Status)
			}
		})
	}
}

func TestListLiensPendingOver(t *testing.T) {
	// WHAT: Only pending liens at/above the threshold are returned.
	// WHY: This query is the sync gateway's outbound set; a below-threshold
	// record must never appear in it.
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s.CreateOrGetLien(ctx, &Lien{DocID: "low", AmountCents: 500_000})
			s.CreateOrGetLien(ctx, &Lien{DocID: "high", AmountCents: 2_000_000})
			synced, _, _ := s.CreateOrGetLien(ctx, &Lien{DocID: "done", AmountCents: 3_000_000})
			s.SetLienExternalID(ctx, synced.ID, "ext-1")

			out, err := s.ListLiensPendingOver(ctx, 1_000_000)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(out) != 1 {
				t.Fatalf("count: got %d, want 1", len(out))
			}
			if out[0].DocID != "high" {
				t.Errorf("doc_id: got %q, want high", out[0].DocID)
			}
		})
	}
}

func TestLienDateRange(t *testing.T) {
	// WHAT: Date-range query bounds on recorded_date, inclusive.
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s.CreateOrGetLien(ctx, &Lien{DocID: "a", RecordedDate: "2026-08-01"})
			s.CreateOrGetLien(ctx, &Lien{DocID: "b", RecordedDate: "2026-08-15"})
			s.CreateOrGetLien(ctx, &Lien{DocID: "c", RecordedDate: "2026-08-31"})

			out, err := s.ListLiensByDateRange(ctx, "2026-08-10", "2026-08-20")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(out) != 1 || out[0].DocID != "b" {
				t.Fatalf("got %d liens, want only b", len(out))
			}

			all, _ := s.ListLiensByDateRange(ctx, "", "")
			if len(all) != 3 {
				t.Errorf("open bounds: got %d, want 3", len(all))
			}
		})
	}
}

func TestRunLifecycle(t *testing.T) {
	// WHAT: Create a run and sub-runs, finish them, read them back.
	// WHY: The orchestrator's bookkeeping depends on these round-trips.
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			r := &Run{RunType: RunManual}
			if err := s.CreateRun(ctx, r); err != nil {
				t.Fatalf("create run: %v", err)
			}
			if r.Status != RunRunning {
				t.Errorf("status: got %q, want running", r.Status)
			}

			sr := &SubRun{RunID: r.ID, SourceID: "src-1", SourceName: "County A"}
			if err := s.CreateSubRun(ctx, sr); err != nil {
				t.Fatalf("create sub-run: %v", err)
			}
			sr.Status = RunFailed
			sr.ErrorMessage = "navigation timeout"
			if err := s.FinishSubRun(ctx, sr); err != nil {
				t.Fatalf("finish sub-run: %v", err)
			}

			r.Status = RunCompleted
			r.RecordsFound = 3
			r.RecordsAccepted = 2
			if err := s.FinishRun(ctx, r); err != nil {
				t.Fatalf("finish run: %v", err)
			}

			got, err := s.GetRun(ctx, r.ID)
			if err != nil || got == nil {
				t.Fatalf("get run: %v", err)
			}
			if got.Status != RunCompleted || got.RecordsFound != 3 {
				t.Errorf("run: got %+v", got)
			}
			if got.EndedAt == nil {
				t.Error("ended_at should be set")
			}

			subs, err := s.ListSubRuns(ctx, r.ID)
			if err != nil || len(subs) != 1 {
				t.Fatalf("sub-runs: %v (n=%d)", err, len(subs))
			}
			if subs[0].Status != RunFailed || subs[0].ErrorMessage == "" {
				t.Errorf("sub-run: got %+v", subs[0])
			}
		})
	}
}

func TestLatestRun(t *testing.T) {
	// WHAT: LatestRun returns the most recently started run.
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if r, err := s.LatestRun(ctx); err != nil || r != nil {
				t.Fatalf("empty store: got %v, %v", r, err)
			}
			now := time.Now().UnixMilli()
			s.CreateRun(ctx, &Run{ID: "old", RunType: RunScheduled, StartedAt: now - 1000})
			s.CreateRun(ctx, &Run{ID: "new", RunType: RunManual, StartedAt: now})

			got, err := s.LatestRun(ctx)
			if err != nil || got == nil {
				t.Fatalf("latest: %v", err)
			}
			if got.ID != "new" {
				t.Errorf("latest: got %q, want new", got.ID)
			}
		})
	}
}

func TestAuditAppendAndQuery(t *testing.T) {
	// WHAT: Audit entries append with defaults and query newest-first.
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UnixMilli()
			s.InsertAuditEntry(ctx, &AuditEntry{Component: "pipeline", Message: "run started", CreatedAt: now - 500})
			s.InsertAuditEntry(ctx, &AuditEntry{Level: LevelError, Component: "acquire", Message: "navigation timeout", CreatedAt: now})

			entries, err := s.ListAuditEntries(ctx, 10)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("count: got %d, want 2", len(entries))
			}
			if entries[0].Level != LevelError {
				t.Errorf("order: newest first expected, got %q", entries[0].Level)
			}
			if entries[1].Level != LevelInfo {
				t.Errorf("default level: got %q, want info", entries[1].Level)
			}

			bounded, _ := s.ListAuditEntriesByDateRange(ctx, now-100, 0, 10)
			if len(bounded) != 1 {
				t.Errorf("bounded: got %d, want 1", len(bounded))
			}
		})
	}
}
