package attempt

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("attempt not found")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrSubmitConflict is returned by Finalize when another submission won
	// the compare-and-set. The session engine resolves it by re-reading the
	// frozen attempt; it is never surfaced to callers of the engine.
	ErrSubmitConflict = errors.New("attempt submitted concurrently")
	// ErrStoreUnavailable wraps timeouts and connectivity failures. It is
	// retryable: autosave callers are expected to try again.
	ErrStoreUnavailable = errors.New("attempt store unavailable")
	ErrMarkNotFound     = errors.New("paper 2 mark not found")
)

// Store is durable keyed storage for attempts. Implementations enforce the
// record invariants themselves rather than trusting callers: one attempt
// per (student, exam), answers writable only while in progress, submitted
// records immutable.
type Store interface {
	// CreateIfAbsent atomically creates a when no attempt exists for its
	// (student, exam) pair, or returns the existing one. created reports
	// which happened. Two concurrent calls must agree on a single record.
	CreateIfAbsent(ctx context.Context, a Attempt) (Attempt, bool, error)

	Get(ctx context.Context, id string) (Attempt, error)
	GetByStudentExam(ctx context.Context, studentID, examID string) (Attempt, error)

	// UpsertAnswer durably sets answers[questionID] = optionID at per-key
	// granularity. Concurrent upserts for different questions must not lose
	// each other's writes. Fails with ErrAlreadySubmitted once the attempt
	// is finalized.
	UpsertAnswer(ctx context.Context, attemptID, questionID, optionID string) error

	// Finalize transitions in_progress -> submitted via compare-and-set,
	// freezing submittedAt and the score. Exactly one caller wins; losers
	// get ErrSubmitConflict.
	Finalize(ctx context.Context, attemptID string, submittedAt time.Time, score ScoreResult) error

	// ListSubmittedByStudent returns every finalized attempt for the
	// student, for progress reporting.
	ListSubmittedByStudent(ctx context.Context, studentID string) ([]Attempt, error)

	PutPaper2Mark(ctx context.Context, m Paper2Mark) error
	GetPaper2Mark(ctx context.Context, studentID, examID string) (Paper2Mark, error)
	ListPaper2Marks(ctx context.Context, studentID string) ([]Paper2Mark, error)
}
