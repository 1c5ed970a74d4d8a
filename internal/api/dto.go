package api

import (
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/remote"
	"github.com/starford/dagaz/internal/viewservice"
)

// ViewInfo describes one view (aliased from the domain layer).
type ViewInfo = viewservice.ViewInfo

// Page is one page of a view (aliased from the domain layer).
type Page = viewservice.Page

// RecordDetail is a detail dialog payload (aliased from the domain layer).
type RecordDetail = viewservice.RecordDetail

// RefreshResult reports a refetch (aliased from the domain layer).
type RefreshResult = viewservice.RefreshResult

// Dashboard is the overview payload (aliased from the domain layer).
type Dashboard = viewservice.Dashboard

// ReturnResult is the outcome of a return (aliased from the domain layer).
type ReturnResult = viewservice.ReturnResult

// ViewsResponse lists the view catalog.
type ViewsResponse struct {
	Views []ViewInfo `json:"views" validate:"required"`
}

// OptionsResponse holds the categorical choices of a view.
type OptionsResponse struct {
	Options map[string][]string `json:"options" validate:"required"`
}

// DocumentRequest identifies a review document.
type DocumentRequest struct {
	ProjectID        string `json:"project_id" example:"p-123" validate:"required"`
	DocumentTypeUUID string `json:"document_type_uuid" example:"5f0c..." validate:"required"`
}

func (d DocumentRequest) ref() remote.DocumentRef {
	return remote.DocumentRef{ProjectID: d.ProjectID, DocumentTypeUUID: d.DocumentTypeUUID}
}

// ReturnRequest is the JSON form of a return. DocumentBase64 carries an
// already-encoded .docx named by FileName.
type ReturnRequest struct {
	DocumentRequest
	Feedback       string `json:"feedback,omitempty" example:"Please expand section 2"`
	FileName       string `json:"file_name,omitempty" example:"brief.docx"`
	DocumentBase64 string `json:"document_base64,omitempty"`
}

// ReturnsResponse lists journaled submissions.
type ReturnsResponse struct {
	Returns []journal.Entry `json:"returns" validate:"required"`
}
