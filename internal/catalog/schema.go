// Package catalog provides the SQLite-backed record of subjects and notes.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS subjects (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	slug       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (length(name) <= 128)
);

CREATE TABLE IF NOT EXISTS notes (
	id                INTEGER PRIMARY KEY,
	subject_id        INTEGER NOT NULL REFERENCES subjects(id) ON DELETE CASCADE ON UPDATE CASCADE,
	title             TEXT NOT NULL,
	stem              TEXT NOT NULL,
	main              INTEGER NOT NULL DEFAULT 0,
	compiled_checksum TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(subject_id, title),
	UNIQUE(subject_id, stem)
);

CREATE INDEX IF NOT EXISTS idx_notes_subject ON notes(subject_id);
`

// Store wraps a sql.DB with catalog operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the catalog database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
