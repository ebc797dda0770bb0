// Package session orchestrates a student's timed exam attempt: start or
// resume, durable answer autosave, the server-authoritative deadline, and
// exactly-once submission.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/attempt"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/logging"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/scoring"
)

// Engine is the attempt state machine:
//
//	in_progress --[deadline reached | explicit submit]--> submitted
//
// submitted is terminal. The deadline is evaluated lazily on every call;
// there is no background timer per attempt, and the client countdown is
// advisory only.
type Engine struct {
	catalog exam.Catalog
	store   attempt.Store
	log     *logging.Logger
	now     func() time.Time
}

type Option func(*Engine)

// WithClock overrides the engine's time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(catalog exam.Catalog, store attempt.Store, log *logging.Logger, opts ...Option) *Engine {
	e := &Engine{catalog: catalog, store: store, log: log, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// StartResult is what the UI needs to render the exam screen.
type StartResult struct {
	Exam             exam.Exam       `json:"exam"`
	Attempt          attempt.Attempt `json:"attempt"`
	RemainingSeconds int64           `json:"remaining_seconds"`
	Resumed          bool            `json:"resumed"`
}

// StartOrResume returns the student's single attempt for the exam,
// creating it atomically on first call. The exam in the result is
// sanitized. If the attempt's time has already run out, it is auto-
// submitted here before returning.
func (e *Engine) StartOrResume(ctx context.Context, studentID, examID string) (StartResult, error) {
	ex, err := e.catalog.GetExam(ctx, examID)
	if err != nil {
		return StartResult{}, err
	}
	if ex.Status != exam.StatusPublished {
		return StartResult{}, exam.ErrNotPublished
	}

	now := e.now()
	a, created, err := e.store.CreateIfAbsent(ctx, attempt.New(examID, studentID, now))
	if err != nil {
		return StartResult{}, err
	}
	if created {
		e.log.Info("attempt started", "attempt_id", a.ID, "exam_id", examID, "student_id", studentID)
	}

	if a.Status == attempt.StatusInProgress && a.RemainingSeconds(ex, now) == 0 {
		a, err = e.finalize(ctx, ex, a)
		if err != nil {
			return StartResult{}, err
		}
	}

	return StartResult{
		Exam:             ex.Sanitized(),
		Attempt:          a,
		RemainingSeconds: a.RemainingSeconds(ex, now),
		Resumed:          !created,
	}, nil
}

// SaveAnswer durably upserts one answer. Safe to retry: the same
// (question, option) pair writes the same state. A non-owner is told the
// attempt does not exist.
func (e *Engine) SaveAnswer(ctx context.Context, studentID, attemptID, questionID, optionID string) error {
	a, ex, err := e.ownedAttempt(ctx, studentID, attemptID)
	if err != nil {
		return err
	}
	if a.Status == attempt.StatusSubmitted {
		return attempt.ErrAlreadySubmitted
	}
	if a.RemainingSeconds(ex, e.now()) == 0 {
		if _, err := e.finalize(ctx, ex, a); err != nil {
			return err
		}
		return attempt.ErrAlreadySubmitted
	}
	q, ok := ex.Question(questionID)
	if !ok || !q.HasOption(optionID) {
		return exam.ErrInvalidOption
	}
	return e.store.UpsertAnswer(ctx, attemptID, questionID, optionID)
}

// Submit finalizes the attempt and returns its score. Idempotent: repeat
// calls (including the race between a deadline auto-submit and a user
// submit) all observe the one frozen ScoreResult. clientAnswers is a
// best-effort final sync of anything the autosave stream missed; invalid
// entries are ignored rather than failing the submission.
func (e *Engine) Submit(ctx context.Context, studentID, attemptID string, clientAnswers map[string]string) (attempt.ScoreResult, error) {
	a, ex, err := e.ownedAttempt(ctx, studentID, attemptID)
	if err != nil {
		return attempt.ScoreResult{}, err
	}
	if a.Status == attempt.StatusSubmitted {
		return *a.Score, nil
	}

	expired := a.RemainingSeconds(ex, e.now()) == 0
	for qid, oid := range clientAnswers {
		if expired {
			break
		}
		if _, saved := a.Answers[qid]; saved {
			continue
		}
		q, ok := ex.Question(qid)
		if !ok || !q.HasOption(oid) {
			continue
		}
		if err := e.store.UpsertAnswer(ctx, attemptID, qid, oid); err != nil {
			if errors.Is(err, attempt.ErrAlreadySubmitted) {
				break
			}
			return attempt.ScoreResult{}, err
		}
	}

	a, err = e.finalize(ctx, ex, a)
	if err != nil {
		return attempt.ScoreResult{}, err
	}
	return *a.Score, nil
}

// GetAttempt returns the student's own attempt with the authoritative
// remaining time. Expiry is enforced here too, so a stale in-progress
// record reads back as submitted.
func (e *Engine) GetAttempt(ctx context.Context, studentID, attemptID string) (StartResult, error) {
	a, ex, err := e.ownedAttempt(ctx, studentID, attemptID)
	if err != nil {
		return StartResult{}, err
	}
	now := e.now()
	if a.Status == attempt.StatusInProgress && a.RemainingSeconds(ex, now) == 0 {
		a, err = e.finalize(ctx, ex, a)
		if err != nil {
			return StartResult{}, err
		}
	}
	return StartResult{
		Exam:             ex.Sanitized(),
		Attempt:          a,
		RemainingSeconds: a.RemainingSeconds(ex, now),
		Resumed:          true,
	}, nil
}

// finalize scores the attempt's saved answers and runs the compare-and-set
// transition. Losing the race is not an error: the winner's frozen record
// is re-read and returned, so both callers observe the identical result.
func (e *Engine) finalize(ctx context.Context, ex exam.Exam, a attempt.Attempt) (attempt.Attempt, error) {
	fresh, err := e.store.Get(ctx, a.ID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	if fresh.Status == attempt.StatusSubmitted {
		return fresh, nil
	}

	score := scoring.Score(ex, fresh.Answers)
	submittedAt := e.now()
	err = e.store.Finalize(ctx, a.ID, submittedAt, score)
	switch {
	case err == nil:
		e.log.Info("attempt submitted",
			"attempt_id", a.ID, "exam_id", a.ExamID, "student_id", a.StudentID,
			"score", score.Total, "out_of", score.TotalPossible)
	case errors.Is(err, attempt.ErrSubmitConflict):
		// Concurrent submitter won; fall through to the frozen record.
	default:
		return attempt.Attempt{}, err
	}

	final, err := e.store.Get(ctx, a.ID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	if final.Status != attempt.StatusSubmitted || final.Score == nil {
		return attempt.Attempt{}, fmt.Errorf("attempt %s not finalized after submit", a.ID)
	}
	return final, nil
}

func (e *Engine) ownedAttempt(ctx context.Context, studentID, attemptID string) (attempt.Attempt, exam.Exam, error) {
	a, err := e.store.Get(ctx, attemptID)
	if err != nil {
		return attempt.Attempt{}, exam.Exam{}, err
	}
	if a.StudentID != studentID {
		// Existence of another student's attempt is not disclosed.
		return attempt.Attempt{}, exam.Exam{}, attempt.ErrNotFound
	}
	ex, err := e.catalog.GetExam(ctx, a.ExamID)
	if err != nil {
		return attempt.Attempt{}, exam.Exam{}, err
	}
	return a, ex, nil
}
