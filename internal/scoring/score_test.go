package scoring_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/attempt"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/scoring"
)

// buildExam makes an exam with count questions per listed skill, each with
// five options where option "a" is correct.
func buildExam(perSkill int, skills ...exam.SkillArea) exam.Exam {
	e := exam.Exam{
		ID:              "exam-1",
		Title:           "Model Paper",
		Grade:           exam.Grade5,
		Month:           "2025-02",
		Status:          exam.StatusPublished,
		DurationMinutes: 60,
	}
	n := 0
	for _, skill := range skills {
		for i := 0; i < perSkill; i++ {
			n++
			qid := fmt.Sprintf("q%03d", n)
			q := exam.Question{
				ID:              qid,
				Number:          n,
				Text:            fmt.Sprintf("Question %d", n),
				SkillArea:       skill,
				CorrectOptionID: qid + "-a",
			}
			for _, suffix := range []string{"a", "b", "c", "d", "e"} {
				q.Options = append(q.Options, exam.Option{ID: qid + "-" + suffix, Text: suffix})
			}
			e.Questions = append(e.Questions, q)
		}
	}
	return e
}

func TestScoreSixSkillScenario(t *testing.T) {
	// 60 questions, 6 skills of 10; 7 correct per skill = 42 overall.
	skills := exam.SkillAreas[:6]
	ex := buildExam(10, skills...)

	answers := map[string]string{}
	perSkillSeen := map[exam.SkillArea]int{}
	for _, q := range ex.Questions {
		perSkillSeen[q.SkillArea]++
		if perSkillSeen[q.SkillArea] <= 7 {
			answers[q.ID] = q.CorrectOptionID
		} else {
			answers[q.ID] = q.ID + "-b"
		}
	}

	res := scoring.Score(ex, answers)
	require.Equal(t, 42, res.Total)
	require.Equal(t, 60, res.TotalPossible)
	require.Equal(t, 70, res.Percentage)
	require.Len(t, res.SkillPercentages, 6)
	for _, skill := range skills {
		require.Equal(t, 70, res.SkillPercentages[skill], "skill %s", skill)
	}
}

func TestScoreOmitsSkillsWithNoQuestions(t *testing.T) {
	ex := buildExam(4, exam.SkillProblemSolving)
	res := scoring.Score(ex, nil)

	require.Len(t, res.SkillPercentages, 1)
	_, present := res.SkillPercentages[exam.SkillMathematicalReasoning]
	require.False(t, present, "skill with no questions must be omitted, not zero")
}

func TestScoreNoAnswers(t *testing.T) {
	ex := buildExam(5, exam.SkillLogicalThinking, exam.SkillMemoryRecall)
	res := scoring.Score(ex, map[string]string{})

	require.Equal(t, 0, res.Total)
	require.Equal(t, 0, res.Percentage)
	require.Equal(t, 0, res.SkillPercentages[exam.SkillLogicalThinking])
	require.Equal(t, 0, res.SkillPercentages[exam.SkillMemoryRecall])
}

func TestScoreRounding(t *testing.T) {
	ex := buildExam(3, exam.SkillCriticalThinking)
	answers := map[string]string{ex.Questions[0].ID: ex.Questions[0].CorrectOptionID}

	res := scoring.Score(ex, answers)
	require.Equal(t, 33, res.Percentage)
	require.Equal(t, 33, res.SkillPercentages[exam.SkillCriticalThinking])

	answers[ex.Questions[1].ID] = ex.Questions[1].CorrectOptionID
	res = scoring.Score(ex, answers)
	require.Equal(t, 67, res.Percentage)
}

func TestScoreDeterministic(t *testing.T) {
	ex := buildExam(10, exam.SkillAreas...)
	answers := map[string]string{}
	for i, q := range ex.Questions {
		if i%3 == 0 {
			answers[q.ID] = q.CorrectOptionID
		} else if i%3 == 1 {
			answers[q.ID] = q.ID + "-c"
		}
	}

	first := scoring.Score(ex, answers)
	second := scoring.Score(ex, answers)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("score is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestCombinedWithPaper2(t *testing.T) {
	p1 := attempt.ScoreResult{Total: 42, TotalPossible: 60, Percentage: 70}
	p2 := &attempt.Paper2Mark{Total: 30}

	res := scoring.Combined(p1, p2)
	require.Equal(t, 42, res.Paper1Score)
	require.Equal(t, 30, res.Paper2Score)
	require.True(t, res.Paper2Marked)
	require.Equal(t, 72, res.Total)
	require.Equal(t, 100, res.TotalPossible)
	require.Equal(t, 72, res.Percentage)
}

func TestCombinedWithoutPaper2(t *testing.T) {
	p1 := attempt.ScoreResult{Total: 42, TotalPossible: 60, Percentage: 70}

	res := scoring.Combined(p1, nil)
	require.False(t, res.Paper2Marked)
	require.Equal(t, 42, res.Total)
	require.Equal(t, 60, res.TotalPossible)
	require.Equal(t, 70, res.Percentage, "unmarked paper 2 must not drag the percentage down")
}

func TestValidatePaper2(t *testing.T) {
	ok := attempt.Paper2Mark{
		EssayMarks:       15,
		ShortAnswerMarks: []int{2, 2, 1, 0, 2, 1, 2, 2, 0, 1},
	}
	require.NoError(t, scoring.ValidatePaper2(&ok))
	require.Equal(t, 28, ok.Total)

	tooHighEssay := attempt.Paper2Mark{EssayMarks: 21, ShortAnswerMarks: make([]int, 10)}
	require.Error(t, scoring.ValidatePaper2(&tooHighEssay))

	wrongCount := attempt.Paper2Mark{EssayMarks: 10, ShortAnswerMarks: []int{2, 2}}
	require.Error(t, scoring.ValidatePaper2(&wrongCount))

	tooHighShort := attempt.Paper2Mark{EssayMarks: 10, ShortAnswerMarks: []int{3, 0, 0, 0, 0, 0, 0, 0, 0, 0}}
	require.Error(t, scoring.ValidatePaper2(&tooHighShort))
}
