package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/starford/dagaz/internal/apperr"
)

const (
	getDocumentPath    = "get-review-document"
	returnDocumentPath = "return-review-document"
)

// DocumentRef identifies one review document.
type DocumentRef struct {
	ProjectID        string `json:"project_id"`
	DocumentTypeUUID string `json:"document_type_uuid"`
}

// DocumentFile is the encoded .docx returned by the platform.
type DocumentFile struct {
	Filename   string `json:"filename"`
	DocxBase64 string `json:"docxBase64"`
}

// ReturnRequest sends a reviewed document back to its author.
type ReturnRequest struct {
	DocumentRef
	Feedback     string `json:"feedback,omitempty"`
	DocumentText string `json:"document_text,omitempty"`
}

// ReturnResponse is the platform's answer to a return.
type ReturnResponse struct {
	Message                  string          `json:"message"`
	Status                   string          `json:"status"`
	FeedbackAdded            bool            `json:"feedback_added"`
	ReturnedDocumentUploaded bool            `json:"returned_document_uploaded"`
	ReturnedS3URL            string          `json:"returned_s3_url"`
	PresignedDownloadURL     string          `json:"presigned_download_url,omitempty"`
	EmailSent                bool            `json:"email_sent"`
	EmailResponse            json.RawMessage `json:"email_response,omitempty"`
}

// GetReviewDocument fetches the encoded document for ref.
func (c *Client) GetReviewDocument(ctx context.Context, ref DocumentRef) (*DocumentFile, error) {
	var out DocumentFile
	if err := c.mutate(ctx, getDocumentPath, ref, &out, "Failed to download document"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReturnReviewDocument submits feedback and/or a replacement document.
func (c *Client) ReturnReviewDocument(ctx context.Context, req ReturnRequest) (*ReturnResponse, error) {
	var out ReturnResponse
	if err := c.mutate(ctx, returnDocumentPath, req, &out, "Failed to return document"); err != nil {
		return nil, err
	}
	return &out, nil
}

// mutate posts payload and decodes a 2xx body into out. Failures become
// *apperr.SubmissionError carrying the server message or fallback.
func (c *Client) mutate(ctx context.Context, path string, payload, out any, fallback string) error {
	resp, err := c.post(ctx, path, payload)
	if err != nil {
		return &apperr.SubmissionError{Message: fallback, Err: err}
	}
	if !resp.ok() {
		msg := serverMessage(resp.body)
		if msg == "" {
			msg = fallback
		}
		return &apperr.SubmissionError{
			Message: msg,
			Status:  resp.status,
			Err:     fmt.Errorf("remote: %s: status %d", path, resp.status),
		}
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &apperr.SubmissionError{
			Message: fallback,
			Status:  http.StatusBadGateway,
			Err:     fmt.Errorf("remote: %s: decode json: %w", path, err),
		}
	}
	return nil
}
