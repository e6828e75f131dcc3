// Package store provides the data access layer for lienwatch: discovered
// lien records, pipeline runs and sub-runs, and the append-only audit log.
//
// Store is an interface with two implementations: SQLite for production and
// an in-memory map store for tests.
package store

// Lien lifecycle statuses. Transitions are deliberately unenforced: any
// caller may overwrite any state, and a retry action resets a record to
// StatusPending from anywhere. Last write wins.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSynced     = "synced"
	StatusMailerSent = "mailer_sent"
	StatusCompleted  = "completed"
)

// Run types.
const (
	RunScheduled = "scheduled"
	RunManual    = "manual"
)

// Run / sub-run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Audit levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// Lien is one discovered financial filing. DocID is the natural key: the
// recorder-issued instrument number, unique across all sources.
type Lien struct {
	ID              string `json:"id"`
	DocID           string `json:"doc_id"`
	RecordedDate    string `json:"recorded_date"` // YYYY-MM-DD
	DebtorName      string `json:"debtor_name"`
	DebtorAddress   string `json:"debtor_address"`
	AmountCents     int64  `json:"amount_cents"`
	CreditorName    string `json:"creditor_name"`
	CreditorAddress string `json:"creditor_address"`
	DocURL          string `json:"doc_url"`
	Status          string `json:"status"`
	ExternalID      string `json:"external_id"`
	EnrichmentJSON  string `json:"enrichment_json"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

// Run is one pipeline execution.
type Run struct {
	ID                   string `json:"id"`
	RunType              string `json:"run_type"` // scheduled | manual
	Status               string `json:"status"`   // running | completed | failed
	StartedAt            int64  `json:"started_at"`
	EndedAt              *int64 `json:"ended_at,omitempty"`
	RecordsFound         int    `json:"records_found"`
	RecordsAccepted      int    `json:"records_accepted"`
	RecordsOverThreshold int    `json:"records_over_threshold"`
	ErrorMessage         string `json:"error_message"`
	MetadataJSON         string `json:"metadata_json"`
}

// SubRun is one run's execution against a single source.
type SubRun struct {
	ID              string `json:"id"`
	RunID           string `json:"run_id"`
	SourceID        string `json:"source_id"`
	SourceName      string `json:"source_name"`
	Status          string `json:"status"`
	StartedAt       int64  `json:"started_at"`
	EndedAt         *int64 `json:"ended_at,omitempty"`
	RecordsFound    int    `json:"records_found"`
	RecordsAccepted int    `json:"records_accepted"`
	ErrorMessage    string `json:"error_message"`
}

// AuditEntry is one append-only audit log record. Never mutated or deleted.
type AuditEntry struct {
	ID           string `json:"id"`
	Level        string `json:"level"` // info | warning | error | success
	Component    string `json:"component"`
	Message      string `json:"message"`
	MetadataJSON string `json:"metadata_json"`
	CreatedAt    int64  `json:"created_at"`
}
