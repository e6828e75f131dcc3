package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const lienCols = `id, doc_id, recorded_date, debtor_name, debtor_address,
	amount_cents, creditor_name, creditor_address, doc_url, status,
	external_id, enrichment_json, created_at, updated_at`

// CreateOrGetLien inserts the lien or returns the existing record with the
// same doc_id. Collisions are expected during re-crawls of overlapping date
// windows; they are logged at debug and never propagated as errors.
func (s *SQLite) CreateOrGetLien(ctx context.Context, l *Lien) (*Lien, bool, error) {
	existing, err := s.GetLienByDocID(ctx, l.DocID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.logger.Debug("store: lien already exists", "doc_id", l.DocID)
		return existing, false, nil
	}

	now := time.Now().UnixMilli()
	if l.ID == "" {
		l.ID = s.newID()
	}
	if l.Status == "" {
		l.Status = StatusPending
	}
	if l.EnrichmentJSON == "" {
		l.EnrichmentJSON = "{}"
	}
	l.CreatedAt = now
	l.UpdatedAt = now

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO liens (`+lienCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.DocID, l.RecordedDate, l.DebtorName, l.DebtorAddress,
		l.AmountCents, l.CreditorName, l.CreditorAddress, l.DocURL, l.Status,
		l.ExternalID, l.EnrichmentJSON, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		// Concurrent insert of the same doc_id: fall back to the winner.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			winner, getErr := s.GetLienByDocID(ctx, l.DocID)
			if getErr == nil && winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, fmt.Errorf("insert lien: %w", err)
	}
	return l, true, nil
}

// GetLien retrieves a lien by ID.
func (s *SQLite) GetLien(ctx context.Context, id string) (*Lien, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+lienCols+` FROM liens WHERE id = ?`, id)
	return scanLien(row)
}

// GetLienByDocID retrieves a lien by its natural key.
func (s *SQLite) GetLienByDocID(ctx context.Context, docID string) (*Lien, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+lienCols+` FROM liens WHERE doc_id = ?`, docID)
	return scanLien(row)
}

// UpdateLienStatus overwrites the status. No transition enforcement.
func (s *SQLite) UpdateLienStatus(ctx context.Context, id, status string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE liens SET status=?, updated_at=? WHERE id=?`,
		status, time.Now().UnixMilli(), id)
	return err
}

// SetLienExternalID records the external id and marks the lien synced.
func (s *SQLite) SetLienExternalID(ctx context.Context, id, externalID string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE liens SET external_id=?, status=?, updated_at=? WHERE id=?`,
		externalID, StatusSynced, time.Now().UnixMilli(), id)
	return err
}

// ListLiensByStatus returns liens in a given status, newest first.
func (s *SQLite) ListLiensByStatus(ctx context.Context, status string, limit int) ([]*Lien, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+lienCols+` FROM liens WHERE status = ?
		ORDER BY created_at DESC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	return collectLiens(rows)
}

// ListLiensPendingOver returns pending liens at or above the threshold.
func (s *SQLite) ListLiensPendingOver(ctx context.Context, minCents int64) ([]*Lien, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+lienCols+` FROM liens
		WHERE status = ? AND amount_cents >= ?
		ORDER BY created_at ASC`, StatusPending, minCents)
	if err != nil {
		return nil, err
	}
	return collectLiens(rows)
}

// ListRecentLiens returns the most recently created liens.
func (s *SQLite) ListRecentLiens(ctx context.Context, limit int) ([]*Lien, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+lienCols+` FROM liens ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collectLiens(rows)
}

// ListLiensByDateRange returns liens recorded within [from, to]. Empty
// bounds are open.
func (s *SQLite) ListLiensByDateRange(ctx context.Context, from, to string) ([]*Lien, error) {
	q := `SELECT ` + lienCols + ` FROM liens WHERE 1=1`
	var args []any
	if from != "" {
		q += ` AND recorded_date >= ?`
		args = append(args, from)
	}
	if to != "" {
		q += ` AND recorded_date <= ?`
		args = append(args, to)
	}
	q += ` ORDER BY recorded_date ASC, doc_id ASC`
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectLiens(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLienFrom(r rowScanner) (*Lien, error) {
	var l Lien
	err := r.Scan(
		&l.ID, &l.DocID, &l.RecordedDate, &l.DebtorName, &l.DebtorAddress,
		&l.AmountCents, &l.CreditorName, &l.CreditorAddress, &l.DocURL,
		&l.Status, &l.ExternalID, &l.EnrichmentJSON, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanLien(row *sql.Row) (*Lien, error) {
	l, err := scanLienFrom(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan lien: %w", err)
	}
	return l, nil
}

func collectLiens(rows *sql.Rows) ([]*Lien, error) {
	defer rows.Close()
	var liens []*Lien
	for rows.Next() {
		l, err := scanLienFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lien: %w", err)
		}
		liens = append(liens, l)
	}
	return liens, rows.Err()
}
