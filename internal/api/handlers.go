package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/views"
	"github.com/starford/dagaz/internal/viewservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc            *viewservice.Service
	maxUploadBytes int64
}

// NewHandler creates a new Handler. maxUploadBytes caps return uploads.
func NewHandler(svc *viewservice.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

func viewName(r *http.Request) views.Name {
	return views.Name(chi.URLParam(r, "view"))
}

// ListViews handles GET /api/views.
//
//	@Summary		List the dashboard views
//	@Tags			views
//	@Produce		json
//	@Success		200	{object}	ViewsResponse
//	@Security		BearerAuth
//	@Router			/views [get]
func (h *Handler) ListViews(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ViewsResponse{Views: h.svc.Views()})
}

// Rows handles GET /api/views/{view}/rows.
//
//	@Summary		Query one page of a view
//	@Tags			views
//	@Produce		json
//	@Param			view		path		string	true	"View name"
//	@Param			q			query		string	false	"Free-text search"
//	@Param			start		query		string	false	"Start date (YYYY-MM-DD)"
//	@Param			end			query		string	false	"End date (YYYY-MM-DD), inclusive"
//	@Param			preset		query		string	false	"Relative date preset"	Enums(all, today, week, month, year)
//	@Param			quick		query		string	false	"Grid quick filter"
//	@Param			sort		query		string	false	"field:asc|desc"
//	@Param			page		query		int		false	"Zero-based page"
//	@Param			page_size	query		int		false	"Rows per page"
//	@Success		200			{object}	Page
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/{view}/rows [get]
func (h *Handler) Rows(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, "rows", err)
		return
	}
	page, err := h.svc.Rows(r.Context(), viewName(r), q)
	if err != nil {
		writeError(w, "rows", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Options handles GET /api/views/{view}/options.
//
//	@Summary		Categorical filter choices of a view
//	@Tags			views
//	@Produce		json
//	@Param			view	path		string	true	"View name"
//	@Success		200		{object}	OptionsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/{view}/options [get]
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.svc.Options(r.Context(), viewName(r))
	if err != nil {
		writeError(w, "options", err)
		return
	}
	writeJSON(w, http.StatusOK, OptionsResponse{Options: opts})
}

// Export handles GET /api/views/{view}/export.
//
//	@Summary		Export every filtered row of a view
//	@Tags			views
//	@Produce		text/csv
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Param			view	path		string	true	"View name"
//	@Param			format	query		string	false	"Export format"	Enums(csv, xlsx)
//	@Success		200		{file}		file
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/{view}/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, "export", err)
		return
	}
	exp, err := h.svc.Export(r.Context(), viewName(r), q, r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, "export", err)
		return
	}

	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.Header().Set("X-Export-Rows", strconv.Itoa(exp.Rows))
	if exp.Stale {
		w.Header().Set("X-Export-Stale", "true")
	}
	w.WriteHeader(http.StatusOK)
	if err := exp.Write(w); err != nil {
		// Headers are gone; the client sees a truncated file.
		slog.Error("export write failed", slog.String("view", string(exp.View)), slog.String("error", err.Error()))
	}
}

// Refresh handles POST /api/views/{view}/refresh.
//
//	@Summary		Refetch a view from the platform
//	@Tags			views
//	@Produce		json
//	@Param			view	path		string	true	"View name"
//	@Success		200		{object}	RefreshResult
//	@Failure		502		{object}	RefreshResult
//	@Security		BearerAuth
//	@Router			/views/{view}/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context(), viewName(r))
	if err != nil {
		if res != nil && errors.Is(err, apperr.ErrFetch) {
			writeJSON(w, http.StatusBadGateway, res)
			return
		}
		writeError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Record handles GET /api/views/{view}/records/{id}.
//
//	@Summary		Detail payload of one record
//	@Tags			views
//	@Produce		json
//	@Param			view	path		string	true	"View name"
//	@Param			id		path		string	true	"Record id"
//	@Success		200		{object}	RecordDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/{view}/records/{id} [get]
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Record(r.Context(), viewName(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "record", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Dashboard handles GET /api/dashboard.
//
//	@Summary		Overview counts, activity, balance and payment stats
//	@Tags			dashboard
//	@Produce		json
//	@Success		200	{object}	Dashboard
//	@Security		BearerAuth
//	@Router			/dashboard [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Download handles POST /api/review-documents/download.
//
//	@Summary		Download a review document
//	@Tags			review-documents
//	@Accept			json
//	@Produce		application/vnd.openxmlformats-officedocument.wordprocessingml.document
//	@Param			body	body		DocumentRequest	true	"Document"
//	@Success		200		{file}		file
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/review-documents/download [post]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	dl, err := h.svc.Download(r.Context(), req.ref())
	if err != nil {
		writeError(w, "download", err)
		return
	}
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}

// Returns handles GET /api/review-documents/returns.
//
//	@Summary		Recent document returns
//	@Tags			review-documents
//	@Produce		json
//	@Param			limit				query		int		false	"Max entries"
//	@Param			project_id			query		string	false	"Only this document's project"
//	@Param			document_type_uuid	query		string	false	"Only this document"
//	@Success		200					{object}	ReturnsResponse
//	@Security		BearerAuth
//	@Router			/review-documents/returns [get]
func (h *Handler) Returns(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	doc := DocumentRequest{ProjectID: v.Get("project_id"), DocumentTypeUUID: v.Get("document_type_uuid")}
	if doc.ProjectID != "" || doc.DocumentTypeUUID != "" {
		entries, err := h.svc.ReturnHistory(r.Context(), doc.ref())
		if err != nil {
			writeError(w, "return history", err)
			return
		}
		writeJSON(w, http.StatusOK, ReturnsResponse{Returns: entries})
		return
	}

	limit, err := intParam(v, "limit", 500)
	if err != nil {
		writeError(w, "returns", err)
		return
	}
	entries, err := h.svc.Returns(r.Context(), limit)
	if err != nil {
		writeError(w, "returns", err)
		return
	}
	writeJSON(w, http.StatusOK, ReturnsResponse{Returns: entries})
}
