package exam

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound     = errors.New("exam not found")
	ErrNotPublished = errors.New("exam not published")
	// ErrInvalidOption is reported when an answer names an option (or a
	// question) that is not part of the exam.
	ErrInvalidOption = errors.New("invalid option")
	// ErrPublished guards authoring writes: a published exam is immutable.
	ErrPublished = errors.New("exam already published")
)

// Catalog is the read side consumed by the session engine. Exams served
// through it retain their answer keys; sanitizing is the caller's job.
type Catalog interface {
	GetExam(ctx context.Context, id string) (Exam, error)
	IsPublished(ctx context.Context, id string) (bool, error)
}

// AuthoringStore extends Catalog with the teacher-facing writes.
type AuthoringStore interface {
	Catalog
	PutExam(ctx context.Context, e Exam) error
	Publish(ctx context.Context, id string, at time.Time) (Exam, error)
	ListExams(ctx context.Context, grade Grade) ([]Exam, error)
}

type memoryCatalog struct {
	mu    sync.RWMutex
	exams map[string]Exam
}

// NewMemoryCatalog returns an in-memory AuthoringStore for tests and
// offline single-node deployments.
func NewMemoryCatalog() AuthoringStore {
	return &memoryCatalog{exams: map[string]Exam{}}
}

func (m *memoryCatalog) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryCatalog) IsPublished(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return false, ErrNotFound
	}
	return e.Status == StatusPublished, nil
}

func (m *memoryCatalog) PutExam(_ context.Context, e Exam) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.exams[e.ID]; ok && existing.Status != StatusDraft {
		return ErrPublished
	}
	if e.Status == "" {
		e.Status = StatusDraft
	}
	m.exams[e.ID] = e
	return nil
}

func (m *memoryCatalog) Publish(_ context.Context, id string, at time.Time) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	if e.Status == StatusPublished {
		return e, nil
	}
	e.Status = StatusPublished
	e.PublishedAt = &at
	m.exams[id] = e
	return e, nil
}

func (m *memoryCatalog) ListExams(_ context.Context, grade Grade) ([]Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Exam, 0, len(m.exams))
	for _, e := range m.exams {
		if grade != "" && e.Grade != grade {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
