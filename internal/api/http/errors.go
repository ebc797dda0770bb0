package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/attempt"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps the engine's closed error taxonomy onto HTTP statuses.
// The UI keys user-facing messages off the "error" kind, so unknown
// internals collapse to a generic internal_error rather than leaking.
func writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	msg := err.Error()
	if kind == "internal_error" {
		msg = "internal error"
	}
	_ = json.NewEncoder(w).Encode(errorBody{Error: kind, Message: msg})
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, exam.ErrNotFound):
		return "exam_not_found", http.StatusNotFound
	case errors.Is(err, exam.ErrNotPublished):
		return "exam_not_published", http.StatusForbidden
	case errors.Is(err, exam.ErrInvalidOption):
		return "invalid_option", http.StatusBadRequest
	case errors.Is(err, exam.ErrPublished):
		return "exam_already_published", http.StatusConflict
	case errors.Is(err, attempt.ErrNotFound):
		return "attempt_not_found", http.StatusNotFound
	case errors.Is(err, attempt.ErrAlreadySubmitted):
		return "attempt_already_submitted", http.StatusConflict
	case errors.Is(err, attempt.ErrStoreUnavailable):
		return "store_unavailable", http.StatusServiceUnavailable
	default:
		return "internal_error", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}
