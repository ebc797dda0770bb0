package attempt_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/attempt"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/db"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
)

// The two Store implementations must be interchangeable, so every test in
// this file runs against both.
func withStores(t *testing.T, fn func(t *testing.T, st attempt.Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, attempt.NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		ctx := context.Background()
		dsn := "file:" + filepath.Join(t.TempDir(), "attempts.db") + "?_pragma=busy_timeout(5000)"
		conn, err := db.Open(ctx, db.DriverSQLite, dsn)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		seedExams(t, exam.NewSQLCatalog(conn))
		fn(t, attempt.NewSQLStore(conn))
	})
}

// seedExams satisfies the attempts table's foreign key on exams.
func seedExams(t *testing.T, catalog exam.AuthoringStore) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []string{"exam-1", "exam-2", "exam-3"} {
		e := exam.Exam{
			ID:              id,
			Title:           "Model Paper " + id,
			Grade:           exam.Grade5,
			Month:           "2025-03",
			DurationMinutes: 60,
		}
		q := exam.Question{
			ID:              "q01",
			Number:          1,
			Text:            "placeholder",
			SkillArea:       exam.SkillMathematicalReasoning,
			CorrectOptionID: "q01-a",
		}
		for _, s := range []string{"a", "b", "c", "d", "e"} {
			q.Options = append(q.Options, exam.Option{ID: "q01-" + s, Text: s})
		}
		e.Questions = []exam.Question{q}
		require.NoError(t, catalog.PutExam(ctx, e))
	}
}

func startedAt() time.Time {
	return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
}

func TestCreateIfAbsent(t *testing.T) {
	withStores(t, func(t *testing.T, st attempt.Store) {
		ctx := context.Background()

		a := attempt.New("exam-1", "stu-1", startedAt())
		got, created, err := st.CreateIfAbsent(ctx, a)
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, a.ID, got.ID)
		require.Equal(t, attempt.StatusInProgress, got.Status)
		require.True(t, got.StartedAt.Equal(startedAt()))

		// A second create for the same pair yields the first record.
		dup := attempt.New("exam-1", "stu-1", startedAt().Add(time.Hour))
		got2, created, err := st.CreateIfAbsent(ctx, dup)
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, a.ID, got2.ID)
		require.True(t, got2.StartedAt.Equal(startedAt()))

		// Other exams and other students get their own records.
		_, created, err = st.CreateIfAbsent(ctx, attempt.New("exam-2", "stu-1", startedAt()))
		require.NoError(t, err)
		require.True(t, created)
		_, created, err = st.CreateIfAbsent(ctx, attempt.New("exam-1", "stu-2", startedAt()))
		require.NoError(t, err)
		require.True(t, created)
	})
}

func TestCreateIfAbsentConcurrent(t *testing.T) {
	withStores(t, func(t *testing.T, st attempt.Store) {
		ctx := context.Background()
		const callers = 16

		ids := make([]string, callers)
		createdCount := 0
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				got, created, err := st.CreateIfAbsent(ctx, attempt.New("exam-1", "stu-1", startedAt()))
				require.NoError(t, err)
				ids[i] = got.ID
				if created {
					mu.Lock()
					createdCount++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		require.Equal(t, 1, createdCount, "exactly one caller creates")
		for i := 1; i < callers; i++ {
			require.Equal(t, ids[0], ids[i], "all callers agree on one attempt")
		}
	})
}

func TestGetUnknown(t *testing.T) {
	withStores(t, func(t *testing.T, st attempt.Store) {
		ctx := context.Background()
		_, err := st.Get(ctx, "no-such-id")
		require.ErrorIs(t, err, attempt.ErrNotFound)
		_, err = st.GetByStudentExam(ctx, "stu-1", "exam-1")
		require.ErrorIs(t, err, attempt.ErrNotFound)
	})
}

func TestUpsertAnswer(t *testing.T) {
	withStores(t, func(t *testing.T, st attempt.Store) {
		ctx := context.Background()
		a, _, err := st.CreateIfAbsent(ctx, attempt.New("exam-1", "stu-1", startedAt()))
		require.NoError(t, err)

		require.NoError(t, st.UpsertAnswer(ctx, a.ID, "q01", "q01-b"))
		require.NoError(t, st.UpsertAnswer(ctx, a.ID, "q02", "q02-c"))
		// Changing an answer replaces only that key.
		require.NoError(t, st.UpsertAnswer(ctx, a.ID, "q01", "q01-d"))

		got, err := st.Get(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"q01": "q01-d", "q02": "q02-c"}, got.Answers)

		require.ErrorIs(t, st.UpsertAnswer(ctx, "no-such-id", "q01", "q01-a"), attempt.ErrNotFound)
	})
}

func TestUpsertAnswerConcurrentKeys(t *testing.T) {
	withStores(t, func(t *testing.T, st attempt.Store) {
		ctx := context.Background()
		a, _, err := st.CreateIfAbsent(ctx, attempt.New("exam-1", "stu-1", startedAt()))
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				qid := fmt.Sprintf("q%02d", i)
				require.NoError(t, st.UpsertAnswer(ctx, a.ID, qid, qid+"-a"))
			}(i)
		}
		wg.Wait()

		got, err := st.Get(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, got.Answers, n, "no concurrent write may be lost")
	})
}

func TestFinalize(t *testing.T) {
	withStores(t, func(t *testing.T, st attempt.Store) {
		ctx := context.Background()
		a, _, err := st.CreateIfAbsent(ctx, attempt.New("exam-1", "stu-1", startedAt()))
		require.NoError(t, err)
		require.NoError(t, st.UpsertAnswer(ctx, a.ID, "q01", "q01-a"))

		score := attempt.ScoreResult{
			Total:         1,
			TotalPossible: 1,
			Percentage:    100,
			SkillPercentages: map[exam.SkillArea]int{
				exam.SkillMathematicalReasoning: 100,
			},
		}
		submittedAt := startedAt().Add(30 * time.Minute)
		require.NoError(t, st.Finalize(ctx, a.ID, submittedAt, score))

		got, err := st.Get(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, attempt.StatusSubmitted, got.Status)
		require.NotNil(t, got.SubmittedAt)
		require.True(t, got.SubmittedAt.Equal(submittedAt))
		require.NotNil(t, got.Score)
		require.Equal(t, score, *got.Score)

		// The record is now immutable.
		require.ErrorIs(t, st.UpsertAnswer(ctx, a.ID, "q01", "q01-b"), attempt.ErrAlreadySubmitted)
		require.ErrorIs(t, st.Finalize(ctx, a.ID, submittedAt.Add(time.Minute), score), attempt.ErrSubmitConflict)

		// The loser's Finalize changed nothing.
		again, err := st.Get(ctx, a.ID)
		require.NoError(t, err)
		require.True(t, again.SubmittedAt.Equal(submittedAt))
		require.Equal(t, map[string]string{"q01": "q01-a"}, again.Answers)

		require.ErrorIs(t, st.Finalize(ctx, "no-such-id", submittedAt, score), attempt.ErrNotFound)
	})
}

func TestFinalizeConcurrent(t *testing.T) {
	withStores(t, func(t *testing.T, st attempt.Store) {
		ctx := context.Background()
		a, _, err := st.CreateIfAbsent(ctx, attempt.New("exam-1", "stu-1", startedAt()))
		require.NoError(t, err)

		const callers = 8
		wins := 0
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				score := attempt.ScoreResult{Total: i, TotalPossible: 10, Percentage: i * 10}
				err := st.Finalize(ctx, a.ID, startedAt().Add(time.Duration(i)*time.Second), score)
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				require.ErrorIs(t, err, attempt.ErrSubmitConflict)
			}(i)
		}
		wg.Wait()
		require.Equal(t, 1, wins, "exactly one Finalize wins")
	})
}

func TestListSubmittedByStudent(t *testing.T) {
	withStores(t, func(t *testing.T, st attempt.Store) {
		ctx := context.Background()

		mk := func(examID string, submitOffset time.Duration) {
			a, _, err := st.CreateIfAbsent(ctx, attempt.New(examID, "stu-1", startedAt()))
			require.NoError(t, err)
			if submitOffset >= 0 {
				score := attempt.ScoreResult{Total: 1, TotalPossible: 1, Percentage: 100}
				require.NoError(t, st.Finalize(ctx, a.ID, startedAt().Add(submitOffset), score))
			}
		}
		mk("exam-2", 40*time.Minute)
		mk("exam-1", 20*time.Minute)
		mk("exam-3", -1) // still in progress, must not appear

		got, err := st.ListSubmittedByStudent(ctx, "stu-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "exam-1", got[0].ExamID, "ordered by submission time")
		require.Equal(t, "exam-2", got[1].ExamID)

		other, err := st.ListSubmittedByStudent(ctx, "stu-9")
		require.NoError(t, err)
		require.Empty(t, other)
	})
}

func TestSQLStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "attempts.db") + "?_pragma=busy_timeout(5000)"
	conn, err := db.Open(ctx, db.DriverSQLite, dsn)
	require.NoError(t, err)
	seedExams(t, exam.NewSQLCatalog(conn))
	st := attempt.NewSQLStore(conn)

	a, _, err := st.CreateIfAbsent(ctx, attempt.New("exam-1", "stu-1", startedAt()))
	require.NoError(t, err)

	// A dead pool is a connectivity failure: every operation must
	// surface the retryable error, never a bare internal one.
	require.NoError(t, conn.Close())

	_, _, err = st.CreateIfAbsent(ctx, attempt.New("exam-2", "stu-1", startedAt()))
	require.ErrorIs(t, err, attempt.ErrStoreUnavailable)
	_, err = st.Get(ctx, a.ID)
	require.ErrorIs(t, err, attempt.ErrStoreUnavailable)
	err = st.UpsertAnswer(ctx, a.ID, "q01", "q01-a")
	require.ErrorIs(t, err, attempt.ErrStoreUnavailable)
	err = st.Finalize(ctx, a.ID, startedAt().Add(time.Minute), attempt.ScoreResult{})
	require.ErrorIs(t, err, attempt.ErrStoreUnavailable)
	_, err = st.ListSubmittedByStudent(ctx, "stu-1")
	require.ErrorIs(t, err, attempt.ErrStoreUnavailable)
}

func TestSQLStoreCancelledContext(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "attempts.db") + "?_pragma=busy_timeout(5000)"
	conn, err := db.Open(ctx, db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	seedExams(t, exam.NewSQLCatalog(conn))
	st := attempt.NewSQLStore(conn)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = st.CreateIfAbsent(cancelled, attempt.New("exam-1", "stu-1", startedAt()))
	require.ErrorIs(t, err, attempt.ErrStoreUnavailable)
}

func TestPaper2Marks(t *testing.T) {
	withStores(t, func(t *testing.T, st attempt.Store) {
		ctx := context.Background()

		_, err := st.GetPaper2Mark(ctx, "stu-1", "exam-1")
		require.ErrorIs(t, err, attempt.ErrMarkNotFound)

		m := attempt.Paper2Mark{
			ExamID:           "exam-1",
			StudentID:        "stu-1",
			EssayMarks:       15,
			ShortAnswerMarks: []int{2, 2, 1, 0, 2, 2, 2, 1, 2, 2},
			Total:            31,
			MarkedBy:         "teacher-1",
			Comments:         "strong essay",
			MarkedAt:         startedAt().Add(48 * time.Hour),
		}
		require.NoError(t, st.PutPaper2Mark(ctx, m))

		got, err := st.GetPaper2Mark(ctx, "stu-1", "exam-1")
		require.NoError(t, err)
		require.Equal(t, m, got)

		// Re-marking replaces the record.
		m.EssayMarks = 17
		m.Total = 33
		require.NoError(t, st.PutPaper2Mark(ctx, m))
		got, err = st.GetPaper2Mark(ctx, "stu-1", "exam-1")
		require.NoError(t, err)
		require.Equal(t, 33, got.Total)

		m2 := m
		m2.ExamID = "exam-2"
		require.NoError(t, st.PutPaper2Mark(ctx, m2))
		list, err := st.ListPaper2Marks(ctx, "stu-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "exam-1", list[0].ExamID)
		require.Equal(t, "exam-2", list[1].ExamID)
	})
}
