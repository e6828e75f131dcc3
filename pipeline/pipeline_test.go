package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lienwatch/lienwatch/acquire"
	"github.com/lienwatch/lienwatch/audit"
	"github.com/lienwatch/lienwatch/extract"
	"github.com/lienwatch/lienwatch/registry"
	"github.com/lienwatch/lienwatch/store"
)

type fakeSources struct {
	sources []*registry.Source
}

func (f *fakeSources) ListEnabled(context.Context) ([]*registry.Source, error) {
	return f.sources, nil
}

type fakeStream struct {
	docs []*acquire.Document
	pos  int
}

func (s *fakeStream) Size() int { return len(s.docs) }

func (s *fakeStream) Next(context.Context) (*acquire.Document, error) {
	if s.pos >= len(s.docs) {
		return nil, nil
	}
	d := s.docs[s.pos]
	s.pos++
	return d, nil
}

// fakeAcquirer serves per-source canned documents, or a discovery error.
type fakeAcquirer struct {
	docs map[string][]*acquire.Document
	errs map[string]error
}

func (f *fakeAcquirer) Acquire(_ context.Context, src *registry.Source, _, _ string) (DocumentStream, error) {
	if err := f.errs[src.Name]; err != nil {
		return nil, err
	}
	return &fakeStream{docs: f.docs[src.Name]}, nil
}

// fakeExtractor parses "amount-cents|debtor" document bodies.
type fakeExtractor struct{}

func (fakeExtractor) ExtractDoc(_ context.Context, _, docID string, data []byte) (*extract.Candidate, error) {
	var cents int64
	var debtor string
	if _, err := fmt.Sscanf(string(data), "%d|%s", &cents, &debtor); err != nil {
		return nil, nil // unparsable document, no candidate
	}
	return &extract.Candidate{DocID: docID, AmountCents: cents, DebtorName: debtor}, nil
}

type fakeSyncer struct {
	pushed [][]*store.Lien
	err    error
}

func (f *fakeSyncer) Push(ctx context.Context, liens []*store.Lien) (int, error) {
	f.pushed = append(f.pushed, liens)
	if f.err != nil {
		return 0, f.err
	}
	return len(liens), nil
}

func doc(id, body string) *acquire.Document {
	return &acquire.Document{DocID: id, Bytes: []byte(body), PageURL: "https://x.test/doc?rec=" + id}
}

func newTestPipeline(t *testing.T, sources []*registry.Source, acq Acquirer, syncer Syncer) (*Pipeline, *store.Memory, *audit.Logger) {
	t.Helper()
	mem := store.NewMemory()
	auditLog := audit.New(mem, 64, nil)
	t.Cleanup(func() { auditLog.Close() })
	p := New(Config{ThresholdCents: 1_000_000},
		&fakeSources{sources: sources}, acq, fakeExtractor{}, syncer, mem, auditLog)
	return p, mem, auditLog
}

func TestRunTwoSourcesWithFailureIsolation(t *testing.T) {
	// WHAT: Source A yields three documents, source B fails discovery.
	// B's sub-run is failed, A's records land, the run completes.
	sources := []*registry.Source{
		{ID: "a", Name: "County A"},
		{ID: "b", Name: "County B"},
	}
	acq := &fakeAcquirer{
		docs: map[string][]*acquire.Document{
			"County A": {
				doc("d1", "2500000|DOE"),
				doc("d2", "500000|ROE"),  // below threshold, still persisted
				doc("d3", "not-a-record"), // no candidate
			},
		},
		errs: map[string]error{"County B": errors.New("navigation timeout")},
	}
	syncer := &fakeSyncer{}
	p, mem, auditLog := newTestPipeline(t, sources, acq, syncer)

	runID, err := p.Trigger(context.Background(), store.RunManual, "", "")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	p.Wait()

	run, err := mem.GetRun(context.Background(), runID)
	if err != nil || run == nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != store.RunCompleted {
		t.Errorf("run status: got %q, want completed", run.Status)
	}
	if run.RecordsFound != 3 {
		t.Errorf("found: got %d, want 3", run.RecordsFound)
	}
	if run.RecordsAccepted != 2 {
		t.Errorf("accepted: got %d, want 2", run.RecordsAccepted)
	}
	if run.RecordsOverThreshold != 1 {
		t.Errorf("over threshold: got %d, want 1", run.RecordsOverThreshold)
	}

	subs, _ := mem.ListSubRuns(context.Background(), runID)
	if len(subs) != 2 {
		t.Fatalf("sub-runs: got %d, want 2", len(subs))
	}
	if subs[0].Status != store.RunCompleted {
		t.Errorf("sub-run A: got %q", subs[0].Status)
	}
	if subs[1].Status != store.RunFailed || subs[1].ErrorMessage == "" {
		t.Errorf("sub-run B: got %+v", subs[1])
	}

	// Only the over-threshold record went out.
	if len(syncer.pushed) != 1 || len(syncer.pushed[0]) != 1 {
		t.Fatalf("pushed: %+v", syncer.pushed)
	}
	if syncer.pushed[0][0].DocID != "d1" {
		t.Errorf("pushed doc: got %q, want d1", syncer.pushed[0][0].DocID)
	}

	// B's failure is on the audit trail: one error entry naming the source.
	// The writer is async, so drain it before reading.
	auditLog.Close()
	entries, err := mem.ListAuditEntries(context.Background(), 50)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	var errEntries []*store.AuditEntry
	for _, e := range entries {
		if e.Level == store.LevelError {
			errEntries = append(errEntries, e)
		}
	}
	if len(errEntries) != 1 {
		t.Fatalf("error audit entries: got %d, want 1 (%+v)", len(errEntries), errEntries)
	}
	if !strings.Contains(errEntries[0].MetadataJSON, "County B") {
		t.Errorf("error entry metadata: got %q, want it to name County B", errEntries[0].MetadataJSON)
	}
}

func TestSingleFlight(t *testing.T) {
	// WHAT: A second trigger while a run is active gets ErrAlreadyRunning;
	// after the run finishes, triggering works again.
	release := make(chan struct{})
	blockingAcq := acquireFunc(func(context.Context, *registry.Source, string, string) (DocumentStream, error) {
		<-release
		return &fakeStream{}, nil
	})
	p, _, _ := newTestPipeline(t, []*registry.Source{{ID: "a", Name: "A"}}, blockingAcq, &fakeSyncer{})

	if _, err := p.Trigger(context.Background(), store.RunManual, "", ""); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if _, err := p.Trigger(context.Background(), store.RunManual, "", ""); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second trigger: got %v, want ErrAlreadyRunning", err)
	}

	close(release)
	p.Wait()

	if _, err := p.Trigger(context.Background(), store.RunManual, "", ""); err != nil {
		t.Fatalf("trigger after completion: %v", err)
	}
	p.Wait()
}

type acquireFunc func(context.Context, *registry.Source, string, string) (DocumentStream, error)

func (f acquireFunc) Acquire(ctx context.Context, src *registry.Source, from, to string) (DocumentStream, error) {
	return f(ctx, src, from, to)
}

func TestStopBetweenSources(t *testing.T) {
	// WHAT: The stop flag raised during source A keeps source B from
	// starting; the run still finalizes cleanly.
	var visited []string
	p := (*Pipeline)(nil)
	acq := acquireFunc(func(_ context.Context, src *registry.Source, _, _ string) (DocumentStream, error) {
		visited = append(visited, src.Name)
		p.Stop()
		return &fakeStream{}, nil
	})
	sources := []*registry.Source{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
	p, mem, _ := newTestPipeline(t, sources, acq, &fakeSyncer{})

	runID, err := p.Trigger(context.Background(), store.RunManual, "", "")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	p.Wait()

	if len(visited) != 1 || visited[0] != "A" {
		t.Errorf("visited: got %v, want [A]", visited)
	}
	run, _ := mem.GetRun(context.Background(), runID)
	if run.Status != store.RunCompleted {
		t.Errorf("run status: got %q", run.Status)
	}
}

func TestDuplicateDocumentsNotDoubleCounted(t *testing.T) {
	// WHAT: A document already in the store is not accepted again.
	sources := []*registry.Source{{ID: "a", Name: "A"}}
	acq := &fakeAcquirer{docs: map[string][]*acquire.Document{
		"A": {doc("d1", "2500000|DOE"), doc("d1", "2500000|DOE")},
	}}
	p, mem, _ := newTestPipeline(t, sources, acq, &fakeSyncer{})

	runID, err := p.Trigger(context.Background(), store.RunManual, "", "")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	p.Wait()

	run, _ := mem.GetRun(context.Background(), runID)
	if run.RecordsAccepted != 1 {
		t.Errorf("accepted: got %d, want 1", run.RecordsAccepted)
	}
	liens, _ := mem.ListRecentLiens(context.Background(), 10)
	if len(liens) != 1 {
		t.Errorf("liens: got %d, want 1", len(liens))
	}
}

func TestTriggerRejectsBadWindow(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil, &fakeAcquirer{}, &fakeSyncer{})

	cases := []struct{ from, to string }{
		{"2026-08-28", ""},
		{"", "2026-08-28"},
		{"2026-08-28", "2026-08-27"},
		{"28/08/2026", "2026-08-28"},
	}
	for _, tc := range cases {
		if _, err := p.Trigger(context.Background(), store.RunManual, tc.from, tc.to); err == nil {
			t.Errorf("Trigger(%q, %q): expected error", tc.from, tc.to)
			p.Wait()
		}
	}
}

func TestSyncFailureDoesNotFailRun(t *testing.T) {
	// WHAT: A failed sync push leaves liens pending and the run completed;
	// the next run will retry them.
	sources := []*registry.Source{{ID: "a", Name: "A"}}
	acq := &fakeAcquirer{docs: map[string][]*acquire.Document{
		"A": {doc("d1", "2500000|DOE")},
	}}
	syncer := &fakeSyncer{err: errors.New("service down")}
	p, mem, _ := newTestPipeline(t, sources, acq, syncer)

	runID, err := p.Trigger(context.Background(), store.RunManual, "", "")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	p.Wait()

	run, _ := mem.GetRun(context.Background(), runID)
	if run.Status != store.RunCompleted {
		t.Errorf("run status: got %q", run.Status)
	}
	pending, _ := mem.ListLiensPendingOver(context.Background(), 0)
	if len(pending) != 1 {
		t.Errorf("pending: got %d, want 1", len(pending))
	}
}
