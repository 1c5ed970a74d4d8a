package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/dagaz/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a service error to its status code. Unexpected errors are
// logged under op and reported as "internal error".
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		ve *apperr.ValidationError
		se *apperr.SubmissionError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody(ve.Error()))
	case errors.Is(err, apperr.ErrUnknownView):
		writeJSON(w, http.StatusNotFound, errorBody("unknown view"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrSubmitInFlight):
		writeJSON(w, http.StatusConflict, errorBody("a submission is already in progress"))
	case errors.Is(err, apperr.ErrNotReady):
		writeJSON(w, http.StatusConflict, errorBody("not ready"))
	case errors.As(err, &se):
		writeJSON(w, http.StatusBadGateway, errorBody(se.Message))
	case errors.Is(err, apperr.ErrFetch):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("request cancelled"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
