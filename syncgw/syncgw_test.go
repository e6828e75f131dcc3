package syncgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lienwatch/lienwatch/store"
)

func recordsServer(t *testing.T, handle func(recs []record) []pushResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/records" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req pushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(pushResponse{Results: handle(req.Records)})
	}))
}

func seedLien(t *testing.T, s store.Store, docID string, cents int64) *store.Lien {
	t.Helper()
	l, _, err := s.CreateOrGetLien(context.Background(), &store.Lien{
		DocID:       docID,
		DebtorName:  "JANE DOE",
		AmountCents: cents,
		DocURL:      "https://recorder.example.gov/doc?rec=" + docID,
	})
	if err != nil {
		t.Fatalf("seed lien: %v", err)
	}
	return l
}

func TestPushMarksSynced(t *testing.T) {
	// WHAT: Created and already-existing records both end up synced with
	// the service's external ID; rejected ones stay pending.
	mem := store.NewMemory()
	a := seedLien(t, mem, "doc-a", 2_000_000)
	b := seedLien(t, mem, "doc-b", 3_000_000)
	c := seedLien(t, mem, "doc-c", 4_000_000)

	srv := recordsServer(t, func(recs []record) []pushResult {
		out := make([]pushResult, 0, len(recs))
		for _, rec := range recs {
			switch rec.DocID {
			case "doc-a":
				out = append(out, pushResult{DocID: rec.DocID, ExternalID: "ext-a", Status: "created"})
			case "doc-b":
				out = append(out, pushResult{DocID: rec.DocID, ExternalID: "ext-b", Status: "exists"})
			default:
				out = append(out, pushResult{DocID: rec.DocID, Status: "error", Error: "bad record"})
			}
		}
		return out
	})
	defer srv.Close()

	g := New(Config{BaseURL: srv.URL}, mem)
	synced, err := g.Push(context.Background(), []*store.Lien{a, b, c})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if synced != 2 {
		t.Errorf("synced: got %d, want 2", synced)
	}

	got, _ := mem.GetLien(context.Background(), a.ID)
	if got.Status != store.StatusSynced || got.ExternalID != "ext-a" {
		t.Errorf("a: %+v", got)
	}
	got, _ = mem.GetLien(context.Background(), b.ID)
	if got.Status != store.StatusSynced || got.ExternalID != "ext-b" {
		t.Errorf("b: %+v", got)
	}
	got, _ = mem.GetLien(context.Background(), c.ID)
	if got.Status != store.StatusPending {
		t.Errorf("c should stay pending: %+v", got)
	}
}

func TestPushSubBatches(t *testing.T) {
	// WHAT: More than maxBatchSize liens go out in several POSTs.
	mem := store.NewMemory()
	liens := make([]*store.Lien, 0, 150)
	for i := 0; i < 150; i++ {
		liens = append(liens, seedLien(t, mem, fmt.Sprintf("doc-%03d", i), 2_000_000))
	}

	var calls int
	srv := recordsServer(t, func(recs []record) []pushResult {
		calls++
		if len(recs) > maxBatchSize {
			t.Errorf("batch size %d exceeds cap", len(recs))
		}
		out := make([]pushResult, 0, len(recs))
		for _, rec := range recs {
			out = append(out, pushResult{DocID: rec.DocID, ExternalID: "ext-" + rec.DocID, Status: "created"})
		}
		return out
	})
	defer srv.Close()

	g := New(Config{BaseURL: srv.URL}, mem)
	synced, err := g.Push(context.Background(), liens)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if synced != 150 {
		t.Errorf("synced: got %d, want 150", synced)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestPushAllBatchesFailed(t *testing.T) {
	mem := store.NewMemory()
	l := seedLien(t, mem, "doc-a", 2_000_000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := New(Config{BaseURL: srv.URL}, mem)
	if _, err := g.Push(context.Background(), []*store.Lien{l}); err == nil {
		t.Fatal("expected error when every batch fails")
	}
	got, _ := mem.GetLien(context.Background(), l.ID)
	if got.Status != store.StatusPending {
		t.Errorf("lien should stay pending: %+v", got)
	}
}

func TestRetryOne(t *testing.T) {
	mem := store.NewMemory()
	l := seedLien(t, mem, "doc-a", 2_000_000)

	srv := recordsServer(t, func(recs []record) []pushResult {
		return []pushResult{{DocID: recs[0].DocID, ExternalID: "ext-a", Status: "created"}}
	})
	defer srv.Close()

	g := New(Config{BaseURL: srv.URL}, mem)
	got, err := g.RetryOne(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.Status != store.StatusSynced || got.ExternalID != "ext-a" {
		t.Errorf("lien: %+v", got)
	}

	// Second retry is a no-op: the service is not called again.
	srv.Close()
	again, err := g.RetryOne(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("retry synced: %v", err)
	}
	if again.ExternalID != "ext-a" {
		t.Errorf("no-op retry: %+v", again)
	}
}

func TestRetryOneNoDocURL(t *testing.T) {
	mem := store.NewMemory()
	l, _, _ := mem.CreateOrGetLien(context.Background(), &store.Lien{
		DocID:       "doc-x",
		AmountCents: 2_000_000,
	})

	g := New(Config{BaseURL: "http://unused.test"}, mem)
	if _, err := g.RetryOne(context.Background(), l.ID); !errors.Is(err, ErrNoDocURL) {
		t.Fatalf("got %v, want ErrNoDocURL", err)
	}
}
