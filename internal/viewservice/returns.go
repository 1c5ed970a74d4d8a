package viewservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/remote"
	"github.com/starford/dagaz/internal/review"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/views"
)

const backgroundRefreshTimeout = 30 * time.Second

// Download fetches and decodes the document of ref.
func (s *Service) Download(ctx context.Context, ref remote.DocumentRef) (*review.Download, error) {
	if err := review.ValidateRef(ref); err != nil {
		return nil, err
	}
	file, err := s.platform.GetReviewDocument(ctx, ref)
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("viewservice: download: %w", err)
	}
	dl, err := review.DecodeDownload(file, s.documentType(ref))
	downloadsTotal.WithLabelValues(result(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.log.Info("document downloaded",
		slog.String("project_id", ref.ProjectID),
		slog.String("document_type_uuid", ref.DocumentTypeUUID),
		slog.String("sha256", checksum.Short(dl.Data)),
	)
	return dl, nil
}

// documentType names a document after its type when it is in the loaded
// review list, falling back to the type id.
func (s *Service) documentType(ref remote.DocumentRef) string {
	src, err := s.sources.Source(views.ReviewDocuments)
	if err != nil {
		return ref.DocumentTypeUUID
	}
	def, err := s.catalog.Get(views.ReviewDocuments)
	if err != nil {
		return ref.DocumentTypeUUID
	}
	for _, r := range src.Snapshot().Records {
		if r.ID(def.IDField) != ref.DocumentTypeUUID {
			continue
		}
		if pid := r.String("project_id"); pid != "" && pid != ref.ProjectID {
			continue
		}
		if name := r.String("document_type"); name != "" {
			return name
		}
	}
	return ref.DocumentTypeUUID
}

// ReturnInput is one return submission.
type ReturnInput struct {
	Ref      remote.DocumentRef
	Feedback string
	FileName string
	File     []byte
}

// HasFile reports whether a replacement document was attached.
func (in ReturnInput) HasFile() bool { return in.FileName != "" || len(in.File) > 0 }

// ReturnResult is the outcome of a submission.
type ReturnResult struct {
	Response *remote.ReturnResponse `json:"response,omitempty"`
	Dialog   review.Status          `json:"dialog"`
	Journal  *journal.Entry         `json:"journal,omitempty"`
}

// Return submits feedback and/or a replacement .docx for a review document.
// Input is validated before any remote call. Only one submission per
// document runs at a time; a concurrent one gets apperr.ErrSubmitInFlight.
func (s *Service) Return(ctx context.Context, in ReturnInput) (*ReturnResult, error) {
	if err := review.ValidateRef(in.Ref); err != nil {
		return nil, err
	}

	d := s.dialog(in.Ref)
	resp, err := d.SubmitInput(ctx, review.Input{
		Feedback: in.Feedback,
		FileName: in.FileName,
		File:     in.File,
		HasFile:  in.HasFile(),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrSubmitInFlight) || errors.Is(err, apperr.ErrNotReady) {
			return nil, err
		}
		returnsTotal.WithLabelValues("failed").Inc()
		s.log.Warn("document return failed",
			slog.String("project_id", in.Ref.ProjectID),
			slog.String("document_type_uuid", in.Ref.DocumentTypeUUID),
			slog.String("error", err.Error()),
		)
		res := &ReturnResult{Dialog: d.Status()}
		res.Journal = s.record(ctx, in, nil, res.Dialog.Error)
		return res, err
	}

	returnsTotal.WithLabelValues("succeeded").Inc()
	s.log.Info("document returned",
		slog.String("project_id", in.Ref.ProjectID),
		slog.String("document_type_uuid", in.Ref.DocumentTypeUUID),
		slog.Bool("email_sent", resp.EmailSent),
	)
	res := &ReturnResult{Response: resp, Dialog: d.Status()}
	res.Journal = s.record(ctx, in, resp, resp.Message)

	if s.events != nil {
		s.events.Publish(sse.Event{Type: sse.TypeDocumentReturned, Data: map[string]any{
			"project_id":         in.Ref.ProjectID,
			"document_type_uuid": in.Ref.DocumentTypeUUID,
			"status":             resp.Status,
			"email_sent":         resp.EmailSent,
		}})
	}
	s.refreshInBackground(views.ReviewDocuments)
	return res, nil
}

// DialogStatus reports the workflow state of ref's open dialog.
func (s *Service) DialogStatus(ref remote.DocumentRef) (review.Status, bool) {
	s.mu.Lock()
	d, ok := s.dialogs[ref]
	s.mu.Unlock()
	if !ok {
		return review.Status{}, false
	}
	return d.Status(), true
}

// dialog returns the open dialog of ref. A dialog that already succeeded
// or closed is replaced by a fresh one.
func (s *Service) dialog(ref remote.DocumentRef) *review.Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.dialogs[ref]; ok {
		switch d.Status().State {
		case review.StateSucceeded, review.StateClosed:
		default:
			return d
		}
	}

	var d *review.Dialog
	d = review.NewDialog(ref, s.platform,
		review.WithAutoCloseDelay(s.autoClose),
		review.WithOnClose(func() { s.forget(ref, d) }),
	)
	s.dialogs[ref] = d
	return d
}

func (s *Service) forget(ref remote.DocumentRef, d *review.Dialog) {
	s.mu.Lock()
	if s.dialogs[ref] == d {
		delete(s.dialogs, ref)
	}
	s.mu.Unlock()
}

func (s *Service) record(ctx context.Context, in ReturnInput, resp *remote.ReturnResponse, message string) *journal.Entry {
	if s.journal == nil {
		return nil
	}
	e := journal.Entry{
		ProjectID:        in.Ref.ProjectID,
		DocumentTypeUUID: in.Ref.DocumentTypeUUID,
		Status:           journal.StatusFailed,
		Message:          message,
	}
	if in.HasFile() {
		e.DocumentSHA256 = checksum.Sum(in.File)
	}
	if resp != nil {
		e.Status = journal.StatusSucceeded
		e.FeedbackAdded = resp.FeedbackAdded
		e.DocumentUploaded = resp.ReturnedDocumentUploaded
		e.EmailSent = resp.EmailSent
	}
	saved, err := s.journal.Append(context.WithoutCancel(ctx), e)
	if err != nil {
		s.log.Error("journal append failed", slog.String("error", err.Error()))
		return nil
	}
	return &saved
}

// refreshInBackground refetches name when it has been loaded, so the
// dashboard sees status changes.
func (s *Service) refreshInBackground(name views.Name) {
	src, err := s.sources.Source(name)
	if err != nil || !src.Snapshot().Loaded {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
		defer cancel()
		_, _ = src.Refresh(ctx)
	}()
}

// Returns lists the most recent submissions.
func (s *Service) Returns(ctx context.Context, limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return []journal.Entry{}, nil
	}
	return s.journal.Recent(ctx, limit)
}

// ReturnHistory lists the submissions of one document, newest first.
func (s *Service) ReturnHistory(ctx context.Context, ref remote.DocumentRef) ([]journal.Entry, error) {
	if err := review.ValidateRef(ref); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return []journal.Entry{}, nil
	}
	return s.journal.ForDocument(ctx, ref.ProjectID, ref.DocumentTypeUUID)
}
