package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/auth"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/session"
)

// StartAttemptHandler starts or resumes the caller's attempt for an exam.
// The student identity comes from the token, never the body.
func StartAttemptHandler(eng *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID string `json:"exam_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if req.ExamID == "" {
			badRequest(w, "exam_id required")
			return
		}
		res, err := eng.StartOrResume(r.Context(), auth.SubjectFromContext(r.Context()), req.ExamID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func SaveAnswerHandler(eng *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req struct {
			QuestionID string `json:"question_id"`
			OptionID   string `json:"option_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if req.QuestionID == "" || req.OptionID == "" {
			badRequest(w, "question_id and option_id required")
			return
		}
		err := eng.SaveAnswer(r.Context(), auth.SubjectFromContext(r.Context()), attemptID, req.QuestionID, req.OptionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
	}
}

// SubmitAttemptHandler finalizes the attempt. The optional answers map is
// a last best-effort sync; submission is idempotent so retries are safe.
func SubmitAttemptHandler(eng *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req struct {
			Answers map[string]string `json:"answers"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				badRequest(w, "bad json")
				return
			}
		}
		score, err := eng.Submit(r.Context(), auth.SubjectFromContext(r.Context()), attemptID, req.Answers)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, score)
	}
}

func GetAttemptHandler(eng *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		res, err := eng.GetAttempt(r.Context(), auth.SubjectFromContext(r.Context()), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
