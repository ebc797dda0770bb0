package attempt

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// SQLStore persists attempts on sqlite or postgres. Answers live in their
// own table keyed by (attempt_id, question_id) so concurrent autosaves for
// different questions never overwrite each other through a stale snapshot,
// and the submitted transition is a compare-and-set UPDATE so exactly one
// submission wins.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) CreateIfAbsent(ctx context.Context, a Attempt) (Attempt, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, exam_id, student_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (exam_id, student_id) DO NOTHING`,
		a.ID, a.ExamID, a.StudentID, string(a.Status), a.StartedAt.Unix())
	if err != nil {
		return Attempt{}, false, storeErr("create attempt", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Attempt{}, false, storeErr("create attempt", err)
	}
	got, err := s.GetByStudentExam(ctx, a.StudentID, a.ExamID)
	if err != nil {
		return Attempt{}, false, err
	}
	return got, n == 1 && got.ID == a.ID, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, exam_id, student_id, status, started_at, submitted_at, score_json
		FROM attempts WHERE id = $1`, id)
	return s.scanAttempt(ctx, row)
}

func (s *SQLStore) GetByStudentExam(ctx context.Context, studentID, examID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, exam_id, student_id, status, started_at, submitted_at, score_json
		FROM attempts WHERE student_id = $1 AND exam_id = $2`, studentID, examID)
	return s.scanAttempt(ctx, row)
}

func (s *SQLStore) UpsertAnswer(ctx context.Context, attemptID, questionID, optionID string) error {
	// The guard subquery makes the status check and the write one
	// statement: no window where a concurrent Finalize slips between them.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attempt_answers (attempt_id, question_id, option_id, updated_at)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (SELECT 1 FROM attempts WHERE id = $1 AND status = 'in_progress')
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			option_id = EXCLUDED.option_id,
			updated_at = EXCLUDED.updated_at`,
		attemptID, questionID, optionID, time.Now().Unix())
	if err != nil {
		return storeErr("save answer", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("save answer", err)
	}
	if n == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM attempts WHERE id = $1`, attemptID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return storeErr("save answer", err)
		}
		return ErrAlreadySubmitted
	}
	return nil
}

func (s *SQLStore) Finalize(ctx context.Context, attemptID string, submittedAt time.Time, score ScoreResult) error {
	scoreJSON, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE attempts SET status = 'submitted', submitted_at = $1, score_json = $2
		WHERE id = $3 AND status = 'in_progress'`,
		submittedAt.Unix(), string(scoreJSON), attemptID)
	if err != nil {
		return storeErr("finalize attempt", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("finalize attempt", err)
	}
	if n == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM attempts WHERE id = $1`, attemptID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return storeErr("finalize attempt", err)
		}
		return ErrSubmitConflict
	}
	return nil
}

func (s *SQLStore) ListSubmittedByStudent(ctx context.Context, studentID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, exam_id, student_id, status, started_at, submitted_at, score_json
		FROM attempts
		WHERE student_id = $1 AND status = 'submitted'
		ORDER BY submitted_at ASC`, studentID)
	if err != nil {
		return nil, storeErr("list attempts", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := s.scanAttempt(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list attempts", err)
	}
	return out, nil
}

func (s *SQLStore) PutPaper2Mark(ctx context.Context, m Paper2Mark) error {
	shortJSON, err := json.Marshal(m.ShortAnswerMarks)
	if err != nil {
		return fmt.Errorf("marshal short answer marks: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO paper2_marks (exam_id, student_id, essay_marks, short_marks_json, total_marks, marked_by, comments, marked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (exam_id, student_id) DO UPDATE SET
			essay_marks = EXCLUDED.essay_marks,
			short_marks_json = EXCLUDED.short_marks_json,
			total_marks = EXCLUDED.total_marks,
			marked_by = EXCLUDED.marked_by,
			comments = EXCLUDED.comments,
			marked_at = EXCLUDED.marked_at`,
		m.ExamID, m.StudentID, m.EssayMarks, string(shortJSON), m.Total, m.MarkedBy, m.Comments, m.MarkedAt.Unix())
	if err != nil {
		return storeErr("put paper2 mark", err)
	}
	return nil
}

func (s *SQLStore) GetPaper2Mark(ctx context.Context, studentID, examID string) (Paper2Mark, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT exam_id, student_id, essay_marks, short_marks_json, total_marks, marked_by, comments, marked_at
		FROM paper2_marks WHERE student_id = $1 AND exam_id = $2`, studentID, examID)
	m, err := scanMark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Paper2Mark{}, ErrMarkNotFound
	}
	if err != nil {
		return Paper2Mark{}, storeErr("get paper2 mark", err)
	}
	return m, nil
}

func (s *SQLStore) ListPaper2Marks(ctx context.Context, studentID string) ([]Paper2Mark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exam_id, student_id, essay_marks, short_marks_json, total_marks, marked_by, comments, marked_at
		FROM paper2_marks WHERE student_id = $1 ORDER BY exam_id ASC`, studentID)
	if err != nil {
		return nil, storeErr("list paper2 marks", err)
	}
	defer rows.Close()
	var out []Paper2Mark
	for rows.Next() {
		m, err := scanMark(rows)
		if err != nil {
			return nil, storeErr("list paper2 marks", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list paper2 marks", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanAttempt(ctx context.Context, row rowScanner) (Attempt, error) {
	var (
		a           Attempt
		status      string
		startedAt   int64
		submittedAt sql.NullInt64
		scoreJSON   sql.NullString
	)
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &status, &startedAt, &submittedAt, &scoreJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, storeErr("scan attempt", err)
	}
	a.Status = Status(status)
	a.StartedAt = time.Unix(startedAt, 0).UTC()
	if submittedAt.Valid {
		t := time.Unix(submittedAt.Int64, 0).UTC()
		a.SubmittedAt = &t
	}
	if scoreJSON.Valid && scoreJSON.String != "" {
		var sc ScoreResult
		if err := json.Unmarshal([]byte(scoreJSON.String), &sc); err != nil {
			return Attempt{}, fmt.Errorf("unmarshal score: %w", err)
		}
		a.Score = &sc
	}
	a.Answers, err = s.loadAnswers(ctx, a.ID)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) loadAnswers(ctx context.Context, attemptID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, option_id FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, storeErr("load answers", err)
	}
	defer rows.Close()
	answers := map[string]string{}
	for rows.Next() {
		var qid, oid string
		if err := rows.Scan(&qid, &oid); err != nil {
			return nil, storeErr("load answers", err)
		}
		answers[qid] = oid
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load answers", err)
	}
	return answers, nil
}

func scanMark(row rowScanner) (Paper2Mark, error) {
	var (
		m         Paper2Mark
		shortJSON string
		markedAt  int64
	)
	err := row.Scan(&m.ExamID, &m.StudentID, &m.EssayMarks, &shortJSON, &m.Total, &m.MarkedBy, &m.Comments, &markedAt)
	if err != nil {
		return Paper2Mark{}, err
	}
	if err := json.Unmarshal([]byte(shortJSON), &m.ShortAnswerMarks); err != nil {
		return Paper2Mark{}, fmt.Errorf("unmarshal short answer marks: %w", err)
	}
	m.MarkedAt = time.Unix(markedAt, 0).UTC()
	return m, nil
}

// storeErr classifies driver failures. Timeouts and connectivity failures
// become the retryable ErrStoreUnavailable so autosave callers can try
// again; everything else is wrapped as-is.
func storeErr(op string, err error) error {
	if retryable(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// database/sql does not export its closed-pool error.
	return strings.Contains(err.Error(), "database is closed")
}
