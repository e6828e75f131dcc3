package store

import "database/sql"

// Schema is the complete lienwatch record schema.
const Schema = `
-- Discovered lien records; doc_id is the recorder-issued instrument number.
CREATE TABLE IF NOT EXISTS liens (
    id               TEXT PRIMARY KEY,
    doc_id           TEXT NOT NULL UNIQUE,
    recorded_date    TEXT NOT NULL DEFAULT '',
    debtor_name      TEXT NOT NULL DEFAULT '',
    debtor_address   TEXT NOT NULL DEFAULT '',
    amount_cents     INTEGER NOT NULL DEFAULT 0,
    creditor_name    TEXT NOT NULL DEFAULT '',
    creditor_address TEXT NOT NULL DEFAULT '',
    doc_url          TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending',
    external_id      TEXT NOT NULL DEFAULT '',
    enrichment_json  TEXT NOT NULL DEFAULT '{}',
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_liens_status ON liens(status, amount_cents);
CREATE INDEX IF NOT EXISTS idx_liens_recorded ON liens(recorded_date);

-- Pipeline runs
CREATE TABLE IF NOT EXISTS runs (
    id                     TEXT PRIMARY KEY,
    run_type               TEXT NOT NULL,
    status                 TEXT NOT NULL DEFAULT 'running',
    started_at             INTEGER NOT NULL,
    ended_at               INTEGER,
    records_found          INTEGER NOT NULL DEFAULT 0,
    records_accepted       INTEGER NOT NULL DEFAULT 0,
    records_over_threshold INTEGER NOT NULL DEFAULT 0,
    error_message          TEXT NOT NULL DEFAULT '',
    metadata_json          TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

-- Per-source portions of a run
CREATE TABLE IF NOT EXISTS sub_runs (
    id               TEXT PRIMARY KEY,
    run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    source_id        TEXT NOT NULL,
    source_name      TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'running',
    started_at       INTEGER NOT NULL,
    ended_at         INTEGER,
    records_found    INTEGER NOT NULL DEFAULT 0,
    records_accepted INTEGER NOT NULL DEFAULT 0,
    error_message    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sub_runs_run ON sub_runs(run_id);

-- Append-only audit trail
CREATE TABLE IF NOT EXISTS audit_entries (
    id            TEXT PRIMARY KEY,
    level         TEXT NOT NULL DEFAULT 'info',
    component     TEXT NOT NULL DEFAULT '',
    message       TEXT NOT NULL,
    metadata_json TEXT NOT NULL DEFAULT '{}',
    created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_entries(created_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
