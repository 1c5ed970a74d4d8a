package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultRecentLimit = 50

// Append stores e, assigning an id and timestamp when they are empty.
func (db *DB) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO returns (id, project_id, document_type_uuid, feedback_added, document_uploaded,
			document_sha256, status, message, email_sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.ProjectID, e.DocumentTypeUUID, e.FeedbackAdded, e.DocumentUploaded,
		e.DocumentSHA256, e.Status, e.Message, e.EmailSent, e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: append: %w", err)
	}
	return e, nil
}

// Recent lists the newest entries first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, project_id, document_type_uuid, feedback_added, document_uploaded,
			document_sha256, status, message, email_sent, created_at
		FROM returns
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return scanEntries(rows)
}

// ForDocument lists the entries of one document, newest first.
func (db *DB) ForDocument(ctx context.Context, projectID, documentTypeUUID string) ([]Entry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, project_id, document_type_uuid, feedback_added, document_uploaded,
			document_sha256, status, message, email_sent, created_at
		FROM returns
		WHERE project_id = ? AND document_type_uuid = ?
		ORDER BY created_at DESC, rowid DESC
	`, projectID, documentTypeUUID)
	if err != nil {
		return nil, fmt.Errorf("journal: for document: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.DocumentTypeUUID, &e.FeedbackAdded, &e.DocumentUploaded,
			&e.DocumentSHA256, &e.Status, &e.Message, &e.EmailSent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}
	return out, nil
}
