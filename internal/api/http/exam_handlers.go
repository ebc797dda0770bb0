package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/attempt"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/auth"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/scoring"
)

// UploadExamHandler accepts a full exam definition from a teacher. Drafts
// may be re-uploaded; a published exam is immutable.
func UploadExamHandler(store exam.AuthoringStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			badRequest(w, "bad json")
			return
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.Status = exam.StatusDraft
		e.CreatedBy = auth.SubjectFromContext(r.Context())
		e.CreatedAt = time.Now().UTC()
		if err := store.PutExam(r.Context(), e); err != nil {
			if errors.Is(err, exam.ErrPublished) {
				writeError(w, err)
				return
			}
			badRequest(w, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"exam_id": e.ID})
	}
}

func PublishExamHandler(store exam.AuthoringStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		e, err := store.Publish(r.Context(), id, time.Now().UTC())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"exam_id": e.ID,
			"status":  e.Status,
		})
	}
}

// GetExamHandler serves an exam. Students only see published exams, and
// never the answer key; teachers and admins get the full definition.
func GetExamHandler(catalog exam.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		e, err := catalog.GetExam(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		role := auth.RoleFromContext(r.Context())
		if role == "teacher" || role == "admin" {
			writeJSON(w, http.StatusOK, e)
			return
		}
		if e.Status != exam.StatusPublished {
			writeError(w, exam.ErrNotPublished)
			return
		}
		writeJSON(w, http.StatusOK, e.Sanitized())
	}
}

// MarkPaper2Handler records a teacher's marks for the subjective paper.
func MarkPaper2Handler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m attempt.Paper2Mark
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			badRequest(w, "bad json")
			return
		}
		if m.ExamID == "" || m.StudentID == "" {
			badRequest(w, "exam_id and student_id required")
			return
		}
		if err := scoring.ValidatePaper2(&m); err != nil {
			badRequest(w, err.Error())
			return
		}
		m.MarkedBy = auth.SubjectFromContext(r.Context())
		m.MarkedAt = time.Now().UTC()
		if err := store.PutPaper2Mark(r.Context(), m); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"total_marks": m.Total})
	}
}
