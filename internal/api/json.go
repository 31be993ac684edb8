package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/marksman/internal/apperr"
	"github.com/starford/marksman/internal/markservice"
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
	Kind  string `json:"kind,omitempty" example:"not_found"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps an error kind to its HTTP status and wire name.
func statusFor(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.ErrInvalidName:
		return http.StatusBadRequest, "invalid_name"
	case apperr.ErrInvalidMarkData:
		return http.StatusBadRequest, "invalid_mark_data"
	case apperr.ErrInvalidIndex:
		return http.StatusBadRequest, "invalid_index"
	case apperr.ErrInvalidFormat:
		return http.StatusBadRequest, "invalid_format"
	case apperr.ErrNoFile:
		return http.StatusBadRequest, "no_file"
	case apperr.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.ErrNoMarks:
		return http.StatusNotFound, "no_marks"
	case apperr.ErrNothingToExport:
		return http.StatusNotFound, "nothing_to_export"
	case apperr.ErrDuplicateName:
		return http.StatusConflict, "duplicate_name"
	case apperr.ErrLimitReached:
		return http.StatusConflict, "limit_reached"
	case apperr.ErrUnreadable:
		return http.StatusUnprocessableEntity, "unreadable"
	case apperr.ErrStaleFile:
		return http.StatusGone, "stale_file"
	}
	if errors.Is(err, markservice.ErrIndexDisabled) {
		return http.StatusServiceUnavailable, "index_disabled"
	}
	return http.StatusInternalServerError, ""
}

// writeError writes err as a JSON error response. Unclassified errors are
// logged and reported as "internal error".
func writeError(w http.ResponseWriter, op string, err error) {
	status, kind := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errResponse{Error: err.Error(), Kind: kind})
}
