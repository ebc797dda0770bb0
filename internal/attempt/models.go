package attempt

import (
	"time"

	"github.com/google/uuid"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
)

// ScoreResult is the frozen Paper 1 outcome embedded in a submitted
// attempt. Skills with no questions in the exam are absent from
// SkillPercentages: no data, not poor performance.
type ScoreResult struct {
	Total            int                    `json:"total"`
	TotalPossible    int                    `json:"total_possible"`
	Percentage       int                    `json:"percentage"`
	SkillPercentages map[exam.SkillArea]int `json:"skill_percentages"`
}

// Attempt is one student's single timed engagement with one exam. At most
// one exists per (student, exam); the store enforces the uniqueness and the
// immutability of submitted records.
type Attempt struct {
	ID          string            `json:"id"`
	ExamID      string            `json:"exam_id"`
	StudentID   string            `json:"student_id"`
	Status      Status            `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	Answers     map[string]string `json:"answers"` // question id -> option id
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	Score       *ScoreResult      `json:"score,omitempty"`
}

// New returns a fresh in-progress attempt. StartedAt is set here, exactly
// once; the store never updates it.
func New(examID, studentID string, startedAt time.Time) Attempt {
	return Attempt{
		ID:        uuid.NewString(),
		ExamID:    examID,
		StudentID: studentID,
		Status:    StatusInProgress,
		StartedAt: startedAt.UTC(),
		Answers:   map[string]string{},
	}
}

// Deadline is the instant Paper 1 time runs out for this attempt.
func (a Attempt) Deadline(ex exam.Exam) time.Time {
	return a.StartedAt.Add(time.Duration(ex.DurationSeconds()) * time.Second)
}

// RemainingSeconds is the authoritative server-side countdown, clamped at
// zero. Clients display it; they never decide expiry. A submitted attempt
// has no time left regardless of its deadline.
func (a Attempt) RemainingSeconds(ex exam.Exam, now time.Time) int64 {
	if a.Status == StatusSubmitted {
		return 0
	}
	rem := int64(a.Deadline(ex).Sub(now) / time.Second)
	if rem < 0 {
		return 0
	}
	return rem
}

// Paper2Mark is the human-marked subjective paper, recorded per
// (exam, student) by a teacher and merged into reports.
type Paper2Mark struct {
	ExamID           string    `json:"exam_id"`
	StudentID        string    `json:"student_id"`
	EssayMarks       int       `json:"essay_marks"`
	ShortAnswerMarks []int     `json:"short_answer_marks"`
	Total            int       `json:"total_marks"`
	MarkedBy         string    `json:"marked_by"`
	Comments         string    `json:"comments,omitempty"`
	MarkedAt         time.Time `json:"marked_at"`
}
