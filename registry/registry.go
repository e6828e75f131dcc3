// Package registry stores and validates the source configurations that
// drive acquisition: one row per county portal, with URL templates,
// paging selectors and timing knobs.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lienwatch/lienwatch/idgen"
)

// Schema creates the source_configs table.
const Schema = `
CREATE TABLE IF NOT EXISTS source_configs (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL UNIQUE,
	strategy            TEXT NOT NULL DEFAULT 'render',
	base_url            TEXT NOT NULL,
	search_url_template TEXT NOT NULL,
	doc_url_template    TEXT NOT NULL,
	results_selector    TEXT NOT NULL DEFAULT '',
	next_page_selector  TEXT NOT NULL DEFAULT '',
	disabled_class      TEXT NOT NULL DEFAULT '',
	patterns_json       TEXT NOT NULL DEFAULT '{}',
	request_delay_ms    INTEGER NOT NULL DEFAULT 1000,
	load_wait_ms        INTEGER NOT NULL DEFAULT 2000,
	max_pages           INTEGER NOT NULL DEFAULT 10,
	enabled             INTEGER NOT NULL DEFAULT 1,
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL
);
`

const sourceCols = `id, name, strategy, base_url, search_url_template,
	doc_url_template, results_selector, next_page_selector, disabled_class,
	patterns_json, request_delay_ms, load_wait_ms, max_pages, enabled,
	created_at, updated_at`

// Registry is the source-configuration store.
type Registry struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
}

// New creates a Registry over an already-opened database and ensures its
// table exists.
func New(db *sql.DB, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("registry: apply schema: %w", err)
	}
	return &Registry{db: db, newID: idgen.Default, logger: logger}, nil
}

// Create validates and inserts a new source configuration.
func (r *Registry) Create(ctx context.Context, s *Source) error {
	applyDefaults(s)
	if err := validateSourceInput(s); err != nil {
		return err
	}

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM source_configs`).Scan(&n); err != nil {
		return err
	}
	if n >= MaxSources {
		return fmt.Errorf("%w: at most %d sources", ErrInvalidInput, MaxSources)
	}

	now := time.Now().UnixMilli()
	if s.ID == "" {
		s.ID = r.newID()
	}
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO source_configs (`+sourceCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Strategy, s.BaseURL, s.SearchURLTemplate,
		s.DocURLTemplate, s.ResultsSelector, s.NextPageSelector,
		s.DisabledClass, s.PatternsJSON, s.RequestDelayMs, s.LoadWaitMs,
		s.MaxPages, s.Enabled, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateSource
		}
		return fmt.Errorf("registry: insert source: %w", err)
	}
	r.logger.Info("registry: source created", "source_id", s.ID, "name", s.Name)
	return nil
}

// Get retrieves a source by ID, or nil if it does not exist.
func (r *Registry) Get(ctx context.Context, id string) (*Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceCols+` FROM source_configs WHERE id = ?`, id)
	return scanSource(row)
}

// List returns all configured sources, oldest first.
func (r *Registry) List(ctx context.Context) ([]*Source, error) {
	return r.list(ctx, `SELECT `+sourceCols+` FROM source_configs ORDER BY created_at ASC`)
}

// ListEnabled returns the sources a pipeline run will visit, oldest first.
func (r *Registry) ListEnabled(ctx context.Context) ([]*Source, error) {
	return r.list(ctx, `SELECT `+sourceCols+` FROM source_configs WHERE enabled = 1 ORDER BY created_at ASC`)
}

func (r *Registry) list(ctx context.Context, q string) ([]*Source, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		s, err := scanSourceFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("registry: scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// Update validates and overwrites a source's mutable fields.
func (r *Registry) Update(ctx context.Context, s *Source) error {
	applyDefaults(s)
	if err := validateSourceInput(s); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UnixMilli()
	res, err := r.db.ExecContext(ctx,
		`UPDATE source_configs SET name=?, strategy=?, base_url=?,
		search_url_template=?, doc_url_template=?, results_selector=?,
		next_page_selector=?, disabled_class=?, patterns_json=?,
		request_delay_ms=?, load_wait_ms=?, max_pages=?, enabled=?,
		updated_at=? WHERE id=?`,
		s.Name, s.Strategy, s.BaseURL, s.SearchURLTemplate, s.DocURLTemplate,
		s.ResultsSelector, s.NextPageSelector, s.DisabledClass, s.PatternsJSON,
		s.RequestDelayMs, s.LoadWaitMs, s.MaxPages, s.Enabled, s.UpdatedAt, s.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateSource
		}
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled toggles a source without touching the rest of its config.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE source_configs SET enabled=?, updated_at=? WHERE id=?`,
		enabled, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a source configuration.
func (r *Registry) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM source_configs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed inserts the built-in default source when the table is empty, so a
// fresh deployment has something to run against.
func (r *Registry) Seed(ctx context.Context) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM source_configs`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return r.Create(ctx, DefaultSource())
}

// DefaultSource returns the built-in Maricopa County recorder config.
func DefaultSource() *Source {
	return &Source{
		Name:              "Maricopa County Recorder",
		Strategy:          StrategyRender,
		BaseURL:           "https://recorder.maricopa.gov",
		SearchURLTemplate: "https://recorder.maricopa.gov/recdocdata/GetRecDataList.aspx?doc=HL&bdt={from}&edt={to}",
		DocURLTemplate:    "https://recorder.maricopa.gov/recdocdata/unofficialdocs.aspx?rec={id}",
		NextPageSelector:  "a#ctl00_ContentPlaceHolder1_lnkNext",
		DisabledClass:     "aspNetDisabled",
		RequestDelayMs:    1500,
		LoadWaitMs:        2500,
		MaxPages:          10,
		Enabled:           true,
	}
}

func applyDefaults(s *Source) {
	if s.Strategy == "" {
		s.Strategy = StrategyRender
	}
	if s.PatternsJSON == "" {
		s.PatternsJSON = "{}"
	}
	if s.RequestDelayMs == 0 {
		s.RequestDelayMs = 1000
	}
	if s.LoadWaitMs == 0 {
		s.LoadWaitMs = 2000
	}
	if s.MaxPages == 0 {
		s.MaxPages = 10
	}
}

// SearchURL expands the search template for a date range. Dates are in the
// portal's MM/DD/YYYY form.
func (s *Source) SearchURL(from, to string) string {
	return strings.NewReplacer("{from}", from, "{to}", to).Replace(s.SearchURLTemplate)
}

// DocURL expands the document template for one document ID.
func (s *Source) DocURL(id string) string {
	return strings.ReplaceAll(s.DocURLTemplate, "{id}", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSourceFrom(row rowScanner) (*Source, error) {
	var s Source
	err := row.Scan(
		&s.ID, &s.Name, &s.Strategy, &s.BaseURL, &s.SearchURLTemplate,
		&s.DocURLTemplate, &s.ResultsSelector, &s.NextPageSelector,
		&s.DisabledClass, &s.PatternsJSON, &s.RequestDelayMs, &s.LoadWaitMs,
		&s.MaxPages, &s.Enabled, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSource(row *sql.Row) (*Source, error) {
	s, err := scanSourceFrom(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: scan source: %w", err)
	}
	return s, nil
}
