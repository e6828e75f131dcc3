package store

import (
	"context"
	"fmt"
	"time"
)

// InsertAuditEntry appends one entry to the audit trail.
func (s *SQLite) InsertAuditEntry(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	if e.MetadataJSON == "" {
		e.MetadataJSON = "{}"
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO audit_entries (id, level, component, message, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Level, e.Component, e.Message, e.MetadataJSON, e.CreatedAt,
	)
	return err
}

// ListAuditEntries returns the most recent entries, newest first.
func (s *SQLite) ListAuditEntries(ctx context.Context, limit int) ([]*AuditEntry, error) {
	return s.ListAuditEntriesByDateRange(ctx, 0, 0, limit)
}

// ListAuditEntriesByDateRange bounds on created_at (unix ms, inclusive).
// Zero bounds are open.
func (s *SQLite) ListAuditEntriesByDateRange(ctx context.Context, fromMs, toMs int64, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	q := `SELECT id, level, component, message, metadata_json, created_at
		FROM audit_entries WHERE 1=1`
	var args []any
	if fromMs > 0 {
		q += ` AND created_at >= ?`
		args = append(args, fromMs)
	}
	if toMs > 0 {
		q += ` AND created_at <= ?`
		args = append(args, toMs)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Level, &e.Component, &e.Message,
			&e.MetadataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
