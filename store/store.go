package store

import "context"

// Store is the persistence contract shared by the SQLite and in-memory
// implementations. Getters return (nil, nil) when the row does not exist.
type Store interface {
	// CreateOrGetLien inserts the lien, or returns the existing record when
	// one with the same DocID is already stored. The returned bool is true
	// when a new record was created. Idempotent by natural key; a collision
	// is not an error.
	CreateOrGetLien(ctx context.Context, l *Lien) (*Lien, bool, error)
	GetLien(ctx context.Context, id string) (*Lien, error)
	GetLienByDocID(ctx context.Context, docID string) (*Lien, error)
	// UpdateLienStatus overwrites the status unconditionally. Transitions
	// are not enforced (see package comment on statuses).
	UpdateLienStatus(ctx context.Context, id, status string) error
	// SetLienExternalID records the external service's identifier and
	// transitions the lien to StatusSynced.
	SetLienExternalID(ctx context.Context, id, externalID string) error
	ListLiensByStatus(ctx context.Context, status string, limit int) ([]*Lien, error)
	// ListLiensPendingOver returns pending liens with amount >= minCents,
	// the sync gateway's outbound set.
	ListLiensPendingOver(ctx context.Context, minCents int64) ([]*Lien, error)
	ListRecentLiens(ctx context.Context, limit int) ([]*Lien, error)
	// ListLiensByDateRange bounds on recorded_date, inclusive, YYYY-MM-DD.
	// Empty bounds are open.
	ListLiensByDateRange(ctx context.Context, from, to string) ([]*Lien, error)

	CreateRun(ctx context.Context, r *Run) error
	// FinishRun writes final status, counters, error message and end time.
	FinishRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	CreateSubRun(ctx context.Context, sr *SubRun) error
	FinishSubRun(ctx context.Context, sr *SubRun) error
	ListSubRuns(ctx context.Context, runID string) ([]*SubRun, error)

	InsertAuditEntry(ctx context.Context, e *AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]*AuditEntry, error)
	// ListAuditEntriesByDateRange bounds on created_at (unix ms, inclusive).
	// Zero bounds are open.
	ListAuditEntriesByDateRange(ctx context.Context, fromMs, toMs int64, limit int) ([]*AuditEntry, error)
}
