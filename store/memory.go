package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lienwatch/lienwatch/idgen"
)

// Memory is an in-memory Store for tests. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	liens   map[string]*Lien // by id
	byDoc   map[string]string
	runs    map[string]*Run
	subRuns map[string]*SubRun
	audit   []*AuditEntry
	newID   idgen.Generator
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		liens:   make(map[string]*Lien),
		byDoc:   make(map[string]string),
		runs:    make(map[string]*Run),
		subRuns: make(map[string]*SubRun),
		newID:   idgen.Default,
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) CreateOrGetLien(_ context.Context, l *Lien) (*Lien, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byDoc[l.DocID]; ok {
		cp := *m.liens[id]
		return &cp, false, nil
	}
	now := time.Now().UnixMilli()
	cp := *l
	if cp.ID == "" {
		cp.ID = m.newID()
	}
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	if cp.EnrichmentJSON == "" {
		cp.EnrichmentJSON = "{}"
	}
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.liens[cp.ID] = &cp
	m.byDoc[cp.DocID] = cp.ID
	out := cp
	return &out, true, nil
}

func (m *Memory) GetLien(_ context.Context, id string) (*Lien, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.liens[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *Memory) GetLienByDocID(_ context.Context, docID string) (*Lien, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byDoc[docID]
	if !ok {
		return nil, nil
	}
	cp := *m.liens[id]
	return &cp, nil
}

func (m *Memory) UpdateLienStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.liens[id]; ok {
		l.Status = status
		l.UpdatedAt = time.Now().UnixMilli()
	}
	return nil
}

func (m *Memory) SetLienExternalID(_ context.Context, id, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.liens[id]; ok {
		l.ExternalID = externalID
		l.Status = StatusSynced
		l.UpdatedAt = time.Now().UnixMilli()
	}
	return nil
}

func (m *Memory) ListLiensByStatus(_ context.Context, status string, limit int) ([]*Lien, error) {
	if limit <= 0 {
		limit = 100
	}
	out := m.filterLiens(func(l *Lien) bool { return l.Status == status })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListLiensPendingOver(_ context.Context, minCents int64) ([]*Lien, error) {
	out := m.filterLiens(func(l *Lien) bool {
		return l.Status == StatusPending && l.AmountCents >= minCents
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (m *Memory) ListRecentLiens(_ context.Context, limit int) ([]*Lien, error) {
	if limit <= 0 {
		limit = 100
	}
	out := m.filterLiens(func(*Lien) bool { return true })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListLiensByDateRange(_ context.Context, from, to string) ([]*Lien, error) {
	out := m.filterLiens(func(l *Lien) bool {
		if from != "" && l.RecordedDate < from {
			return false
		}
		if to != "" && l.RecordedDate > to {
			return false
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordedDate != out[j].RecordedDate {
			return out[i].RecordedDate < out[j].RecordedDate
		}
		return out[i].DocID < out[j].DocID
	})
	return out, nil
}

func (m *Memory) filterLiens(keep func(*Lien) bool) []*Lien {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Lien
	for _, l := range m.liens {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out
}

func (m *Memory) CreateRun(_ context.Context, r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = m.newID()
	}
	if r.Status == "" {
		r.Status = RunRunning
	}
	if r.StartedAt == 0 {
		r.StartedAt = time.Now().UnixMilli()
	}
	if r.MetadataJSON == "" {
		r.MetadataJSON = "{}"
	}
	cp := *r
	m.runs[r.ID] = &cp
	return nil
}

func (m *Memory) FinishRun(_ context.Context, r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.EndedAt == nil {
		now := time.Now().UnixMilli()
		r.EndedAt = &now
	}
	cp := *r
	m.runs[r.ID] = &cp
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) LatestRun(_ context.Context) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *Run
	for _, r := range m.runs {
		if latest == nil || r.StartedAt > latest.StartedAt {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *Memory) CreateSubRun(_ context.Context, sr *SubRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sr.ID == "" {
		sr.ID = m.newID()
	}
	if sr.Status == "" {
		sr.Status = RunRunning
	}
	if sr.StartedAt == 0 {
		sr.StartedAt = time.Now().UnixMilli()
	}
	cp := *sr
	m.subRuns[sr.ID] = &cp
	return nil
}

func (m *Memory) FinishSubRun(_ context.Context, sr *SubRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sr.EndedAt == nil {
		now := time.Now().UnixMilli()
		sr.EndedAt = &now
	}
	cp := *sr
	m.subRuns[sr.ID] = &cp
	return nil
}

func (m *Memory) ListSubRuns(_ context.Context, runID string) ([]*SubRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*SubRun
	for _, sr := range m.subRuns {
		if sr.RunID == runID {
			cp := *sr
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt < out[j].StartedAt })
	return out, nil
}

func (m *Memory) InsertAuditEntry(_ context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	if cp.ID == "" {
		cp.ID = m.newID()
	}
	if cp.Level == "" {
		cp.Level = LevelInfo
	}
	if cp.MetadataJSON == "" {
		cp.MetadataJSON = "{}"
	}
	if cp.CreatedAt == 0 {
		cp.CreatedAt = time.Now().UnixMilli()
	}
	m.audit = append(m.audit, &cp)
	return nil
}

func (m *Memory) ListAuditEntries(ctx context.Context, limit int) ([]*AuditEntry, error) {
	return m.ListAuditEntriesByDateRange(ctx, 0, 0, limit)
}

func (m *Memory) ListAuditEntriesByDateRange(_ context.Context, fromMs, toMs int64, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*AuditEntry
	for _, e := range m.audit {
		if fromMs > 0 && e.CreatedAt < fromMs {
			continue
		}
		if toMs > 0 && e.CreatedAt > toMs {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
