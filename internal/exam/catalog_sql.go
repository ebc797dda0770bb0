package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLCatalog stores exams in the exams table with the question list as a
// JSON column, same shape on sqlite and postgres.
type SQLCatalog struct {
	db *sql.DB
}

func NewSQLCatalog(db *sql.DB) *SQLCatalog { return &SQLCatalog{db: db} }

type examPayload struct {
	Questions            []Question `json:"paper1_questions"`
	Paper2EssayPrompt    string     `json:"paper2_essay_prompt,omitempty"`
	Paper2ShortQuestions []string   `json:"paper2_short_questions,omitempty"`
}

func (s *SQLCatalog) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, grade, month, status, duration_minutes, questions_json, created_by, created_at, published_at
		FROM exams WHERE id = $1`, id)
	return scanExam(row)
}

func (s *SQLCatalog) IsPublished(ctx context.Context, id string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM exams WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("query exam status: %w", err)
	}
	return Status(status) == StatusPublished, nil
}

func (s *SQLCatalog) PutExam(ctx context.Context, e Exam) error {
	if err := e.Validate(); err != nil {
		return err
	}
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM exams WHERE id = $1`, e.ID).Scan(&status)
	if err == nil && Status(status) != StatusDraft {
		return ErrPublished
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("query exam status: %w", err)
	}
	if e.Status == "" {
		e.Status = StatusDraft
	}
	payload, err := json.Marshal(examPayload{
		Questions:            e.Questions,
		Paper2EssayPrompt:    e.Paper2EssayPrompt,
		Paper2ShortQuestions: e.Paper2ShortQuestions,
	})
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exams (id, title, grade, month, status, duration_minutes, questions_json, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			grade = EXCLUDED.grade,
			month = EXCLUDED.month,
			duration_minutes = EXCLUDED.duration_minutes,
			questions_json = EXCLUDED.questions_json`,
		e.ID, e.Title, string(e.Grade), e.Month, string(e.Status), e.DurationMinutes,
		string(payload), e.CreatedBy, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert exam: %w", err)
	}
	return nil
}

func (s *SQLCatalog) Publish(ctx context.Context, id string, at time.Time) (Exam, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exams SET status = $1, published_at = $2 WHERE id = $3 AND status = $4`,
		string(StatusPublished), at.Unix(), id, string(StatusDraft))
	if err != nil {
		return Exam{}, fmt.Errorf("publish exam: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either absent or already published; GetExam disambiguates.
		e, err := s.GetExam(ctx, id)
		if err != nil {
			return Exam{}, err
		}
		return e, nil
	}
	return s.GetExam(ctx, id)
}

func (s *SQLCatalog) ListExams(ctx context.Context, grade Grade) ([]Exam, error) {
	q := `
		SELECT id, title, grade, month, status, duration_minutes, questions_json, created_by, created_at, published_at
		FROM exams`
	args := []any{}
	if grade != "" {
		q += ` WHERE grade = $1`
		args = append(args, string(grade))
	}
	q += ` ORDER BY month ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()
	var out []Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (Exam, error) {
	var (
		e           Exam
		grade       string
		status      string
		payloadJSON string
		createdAt   int64
		publishedAt sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.Title, &grade, &e.Month, &status, &e.DurationMinutes,
		&payloadJSON, &e.CreatedBy, &createdAt, &publishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrNotFound
	}
	if err != nil {
		return Exam{}, fmt.Errorf("scan exam: %w", err)
	}
	e.Grade = Grade(grade)
	e.Status = Status(status)
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	if publishedAt.Valid {
		t := time.Unix(publishedAt.Int64, 0).UTC()
		e.PublishedAt = &t
	}
	var payload examPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return Exam{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	e.Questions = payload.Questions
	e.Paper2EssayPrompt = payload.Paper2EssayPrompt
	e.Paper2ShortQuestions = payload.Paper2ShortQuestions
	return e, nil
}
