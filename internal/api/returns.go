package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/review"
	"github.com/starford/dagaz/internal/viewservice"
)

const defaultMaxUploadBytes = 20 << 20 // 20 MB

// Return handles POST /api/review-documents/return.
//
// It accepts multipart/form-data (fields project_id, document_type_uuid,
// feedback and an optional .docx "file") or a JSON ReturnRequest.
//
//	@Summary		Return a review document with feedback and/or a revised file
//	@Tags			review-documents
//	@Accept			multipart/form-data
//	@Accept			json
//	@Produce		json
//	@Param			project_id			formData	string	true	"Project id"
//	@Param			document_type_uuid	formData	string	true	"Document type id"
//	@Param			feedback			formData	string	false	"Reviewer feedback"
//	@Param			file				formData	file	false	"Revised .docx"
//	@Success		200					{object}	ReturnResult
//	@Failure		400					{object}	errResponse
//	@Failure		409					{object}	errResponse
//	@Failure		502					{object}	ReturnResult
//	@Security		BearerAuth
//	@Router			/review-documents/return [post]
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	in, err := h.readReturn(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("upload too large"))
			return
		}
		writeError(w, "return", err)
		return
	}

	res, err := h.svc.Return(r.Context(), in)
	if err != nil {
		var se *apperr.SubmissionError
		if res != nil && errors.As(err, &se) {
			writeJSON(w, http.StatusBadGateway, res)
			return
		}
		writeError(w, "return", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) readReturn(r *http.Request) (viewservice.ReturnInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.readMultipartReturn(r)
	}

	var req ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return viewservice.ReturnInput{}, err
		}
		return viewservice.ReturnInput{}, apperr.Validation("body", "invalid JSON body")
	}
	in := viewservice.ReturnInput{Ref: req.ref(), Feedback: req.Feedback, FileName: req.FileName}
	if req.DocumentBase64 != "" {
		data, err := review.Decode(req.DocumentBase64)
		if err != nil {
			return viewservice.ReturnInput{}, apperr.Validation("document_base64", "must be standard base64")
		}
		in.File = data
		if in.FileName == "" {
			return viewservice.ReturnInput{}, apperr.Validation("file_name", "is required with document_base64")
		}
	}
	return in, nil
}

func (h *Handler) readMultipartReturn(r *http.Request) (viewservice.ReturnInput, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return viewservice.ReturnInput{}, err
		}
		return viewservice.ReturnInput{}, apperr.Validation("body", "invalid multipart form")
	}
	in := viewservice.ReturnInput{
		Ref: DocumentRequest{
			ProjectID:        r.FormValue("project_id"),
			DocumentTypeUUID: r.FormValue("document_type_uuid"),
		}.ref(),
		Feedback: r.FormValue("feedback"),
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return viewservice.ReturnInput{}, apperr.Validation("file", "unreadable upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return viewservice.ReturnInput{}, apperr.Validation("file", "unreadable upload")
	}
	in.FileName = header.Filename
	in.File = data
	return in, nil
}
