package store

import (
	"database/sql"
	"log/slog"

	"github.com/lienwatch/lienwatch/idgen"
)

// SQLite is the production Store backed by an SQLite database.
type SQLite struct {
	DB     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
}

// NewSQLite creates a Store from an already-opened database connection.
// The caller is responsible for ApplySchema.
func NewSQLite(db *sql.DB, logger *slog.Logger) *SQLite {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLite{DB: db, newID: idgen.Default, logger: logger}
}

var _ Store = (*SQLite)(nil)
