package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"taschengeld/internal/core"
	"taschengeld/internal/log"
	"taschengeld/internal/middleware/trace"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeError maps a service error to a status code and a JSON body. Internal
// errors are logged with their full chain but presented opaquely.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			"request_id", trace.GetRequestID(r.Context()),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusForError sorts the sentinel taxonomy into HTTP classes: malformed
// input 400, well-formed but rejected 422, lost races 409, missing child 404.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrChildNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrContention):
		return http.StatusConflict
	case errors.Is(err, core.ErrSliceMismatch),
		errors.Is(err, core.ErrPolicyViolation),
		errors.Is(err, core.ErrInsufficientFunds),
		errors.Is(err, core.ErrBelowThreshold):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errMalformedRequest),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrUnknownPot),
		errors.Is(err, core.ErrUnknownKind),
		errors.Is(err, core.ErrEmptyBatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
