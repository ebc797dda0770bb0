package attempt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
)

type memoryStore struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt          // by attempt id
	byPair   map[pairKey]string           // (student, exam) -> attempt id
	marks    map[pairKey]Paper2Mark
}

type pairKey struct{ studentID, examID string }

// NewMemoryStore returns an in-memory Store with the same invariants as
// the SQL store. Used by tests and offline single-node deployments.
func NewMemoryStore() Store {
	return &memoryStore{
		attempts: map[string]*Attempt{},
		byPair:   map[pairKey]string{},
		marks:    map[pairKey]Paper2Mark{},
	}
}

func (m *memoryStore) CreateIfAbsent(_ context.Context, a Attempt) (Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{a.StudentID, a.ExamID}
	if id, ok := m.byPair[k]; ok {
		return cloneAttempt(m.attempts[id]), false, nil
	}
	stored := cloneAttempt(&a)
	m.attempts[a.ID] = &stored
	m.byPair[k] = a.ID
	return cloneAttempt(&stored), true, nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) GetByStudentExam(_ context.Context, studentID, examID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[pairKey{studentID, examID}]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return cloneAttempt(m.attempts[id]), nil
}

func (m *memoryStore) UpsertAnswer(_ context.Context, attemptID, questionID, optionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.Status != StatusInProgress {
		return ErrAlreadySubmitted
	}
	a.Answers[questionID] = optionID
	return nil
}

func (m *memoryStore) Finalize(_ context.Context, attemptID string, submittedAt time.Time, score ScoreResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.Status != StatusInProgress {
		return ErrSubmitConflict
	}
	t := submittedAt.UTC()
	a.Status = StatusSubmitted
	a.SubmittedAt = &t
	s := cloneScore(score)
	a.Score = &s
	return nil
}

func (m *memoryStore) ListSubmittedByStudent(_ context.Context, studentID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.StudentID == studentID && a.Status == StatusSubmitted {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(*out[j].SubmittedAt)
	})
	return out, nil
}

func (m *memoryStore) PutPaper2Mark(_ context.Context, mark Paper2Mark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[pairKey{mark.StudentID, mark.ExamID}] = mark
	return nil
}

func (m *memoryStore) GetPaper2Mark(_ context.Context, studentID, examID string) (Paper2Mark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mark, ok := m.marks[pairKey{studentID, examID}]
	if !ok {
		return Paper2Mark{}, ErrMarkNotFound
	}
	return mark, nil
}

func (m *memoryStore) ListPaper2Marks(_ context.Context, studentID string) ([]Paper2Mark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Paper2Mark
	for k, mark := range m.marks {
		if k.studentID == studentID {
			out = append(out, mark)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExamID < out[j].ExamID })
	return out, nil
}

func cloneAttempt(a *Attempt) Attempt {
	out := *a
	out.Answers = make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		out.Answers[k] = v
	}
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		out.SubmittedAt = &t
	}
	if a.Score != nil {
		s := cloneScore(*a.Score)
		out.Score = &s
	}
	return out
}

func cloneScore(s ScoreResult) ScoreResult {
	out := s
	out.SkillPercentages = make(map[exam.SkillArea]int, len(s.SkillPercentages))
	for k, v := range s.SkillPercentages {
		out.SkillPercentages[k] = v
	}
	return out
}
