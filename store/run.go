package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const runCols = `id, run_type, status, started_at, ended_at, records_found,
	records_accepted, records_over_threshold, error_message, metadata_json`

// CreateRun inserts a new run in the running state.
func (s *SQLite) CreateRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = s.newID()
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
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (`+runCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunType, r.Status, r.StartedAt, r.EndedAt, r.RecordsFound,
		r.RecordsAccepted, r.RecordsOverThreshold, r.ErrorMessage, r.MetadataJSON,
	)
	return err
}

// FinishRun writes the final status, counters and end time.
func (s *SQLite) FinishRun(ctx context.Context, r *Run) error {
	if r.EndedAt == nil {
		now := time.Now().UnixMilli()
		r.EndedAt = &now
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=?, ended_at=?, records_found=?,
		records_accepted=?, records_over_threshold=?, error_message=?,
		metadata_json=? WHERE id=?`,
		r.Status, r.EndedAt, r.RecordsFound, r.RecordsAccepted,
		r.RecordsOverThreshold, r.ErrorMessage, r.MetadataJSON, r.ID,
	)
	return err
}

// GetRun retrieves a run by ID.
func (s *SQLite) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+runCols+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// LatestRun returns the most recently started run, or nil if none exist.
func (s *SQLite) LatestRun(ctx context.Context) (*Run, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+runCols+` FROM runs ORDER BY started_at DESC LIMIT 1`)
	return scanRun(row)
}

// CreateSubRun inserts a sub-run in the running state.
func (s *SQLite) CreateSubRun(ctx context.Context, sr *SubRun) error {
	if sr.ID == "" {
		sr.ID = s.newID()
	}
	if sr.Status == "" {
		sr.Status = RunRunning
	}
	if sr.StartedAt == 0 {
		sr.StartedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sub_runs (id, run_id, source_id, source_name, status,
		started_at, ended_at, records_found, records_accepted, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, sr.SourceID, sr.SourceName, sr.Status,
		sr.StartedAt, sr.EndedAt, sr.RecordsFound, sr.RecordsAccepted,
		sr.ErrorMessage,
	)
	return err
}

// FinishSubRun writes the final status, counters and end time.
func (s *SQLite) FinishSubRun(ctx context.Context, sr *SubRun) error {
	if sr.EndedAt == nil {
		now := time.Now().UnixMilli()
		sr.EndedAt = &now
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sub_runs SET status=?, ended_at=?, records_found=?,
		records_accepted=?, error_message=? WHERE id=?`,
		sr.Status, sr.EndedAt, sr.RecordsFound, sr.RecordsAccepted,
		sr.ErrorMessage, sr.ID,
	)
	return err
}

// ListSubRuns returns all sub-runs of a run, in start order.
func (s *SQLite) ListSubRuns(ctx context.Context, runID string) ([]*SubRun, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, run_id, source_id, source_name, status, started_at,
		ended_at, records_found, records_accepted, error_message
		FROM sub_runs WHERE run_id = ? ORDER BY started_at ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*SubRun
	for rows.Next() {
		var sr SubRun
		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.SourceID, &sr.SourceName,
			&sr.Status, &sr.StartedAt, &sr.EndedAt, &sr.RecordsFound,
			&sr.RecordsAccepted, &sr.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan sub_run: %w", err)
		}
		subs = append(subs, &sr)
	}
	return subs, rows.Err()
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	err := row.Scan(
		&r.ID, &r.RunType, &r.Status, &r.StartedAt, &r.EndedAt,
		&r.RecordsFound, &r.RecordsAccepted, &r.RecordsOverThreshold,
		&r.ErrorMessage, &r.MetadataJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}
