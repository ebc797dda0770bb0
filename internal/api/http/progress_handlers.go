package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/auth"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/progress"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/rbac"
)

// GetProgressHandler serves the longitudinal skill report. Students may
// read their own; parents, teachers, and admins may read any student's.
// Zero submitted attempts yields an empty report, not an error.
func GetProgressHandler(agg *progress.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := chi.URLParam(r, "studentID")
		sub := auth.SubjectFromContext(r.Context())
		role := auth.RoleFromContext(r.Context())
		if sub != studentID && !rbac.Has(role, "progress:view-all") {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "cannot view another student's progress"})
			return
		}
		rep, err := agg.Report(r.Context(), studentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}
