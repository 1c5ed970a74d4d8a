// Package journal keeps a SQLite log of review-document returns.
package journal

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN keeps the journal in process memory.
const MemoryDSN = "file:dagaz-journal?mode=memory&cache=shared"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS returns (
	id                 TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL,
	document_type_uuid TEXT NOT NULL,
	feedback_added     INTEGER NOT NULL DEFAULT 0,
	document_uploaded  INTEGER NOT NULL DEFAULT 0,
	document_sha256    TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	message            TEXT NOT NULL DEFAULT '',
	email_sent         INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_returns_document ON returns(project_id, document_type_uuid);
CREATE INDEX IF NOT EXISTS idx_returns_created ON returns(created_at);
`

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the journal database and applies the schema.
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", dsn+sep+"_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if strings.Contains(dsn, "mode=memory") {
		// Shared-cache memory databases vanish when the last connection closes.
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
