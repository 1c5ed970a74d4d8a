package journal

import (
	"context"
	"time"
)

// Outcomes of a return submission.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Entry records one completed return submission.
type Entry struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	DocumentTypeUUID string    `json:"document_type_uuid"`
	FeedbackAdded    bool      `json:"feedback_added"`
	DocumentUploaded bool      `json:"document_uploaded"`
	DocumentSHA256   string    `json:"document_sha256,omitempty"`
	Status           string    `json:"status"`
	Message          string    `json:"message,omitempty"`
	EmailSent        bool      `json:"email_sent"`
	CreatedAt        time.Time `json:"created_at"`
}

// Journal is the store of return submissions.
// Consumers should depend on this interface rather than *DB.
type Journal interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
	ForDocument(ctx context.Context, projectID, documentTypeUUID string) ([]Entry, error)
	Close() error
}

// Verify *DB satisfies Journal at compile time.
var _ Journal = (*DB)(nil)
