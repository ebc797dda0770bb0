// Package scoring turns a finalized answer set into a score breakdown.
// Everything here is a pure function of its inputs: deterministic,
// store-free, independently testable.
package scoring

import (
	"fmt"
	"math"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/attempt"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
)

// Score marks Paper 1. Each question is worth one mark, correct iff the
// selected option is the question's correct option; unanswered counts as
// incorrect. Skills with no questions in the exam are omitted from the
// breakdown entirely.
func Score(ex exam.Exam, answers map[string]string) attempt.ScoreResult {
	total := 0
	correctBySkill := map[exam.SkillArea]int{}
	countBySkill := map[exam.SkillArea]int{}

	for _, q := range ex.Questions {
		countBySkill[q.SkillArea]++
		if answers[q.ID] == q.CorrectOptionID {
			total++
			correctBySkill[q.SkillArea]++
		}
	}

	skillPct := make(map[exam.SkillArea]int, len(countBySkill))
	for skill, count := range countBySkill {
		skillPct[skill] = percent(correctBySkill[skill], count)
	}

	return attempt.ScoreResult{
		Total:            total,
		TotalPossible:    ex.TotalMarks(),
		Percentage:       percent(total, ex.TotalMarks()),
		SkillPercentages: skillPct,
	}
}

// CombinedResult merges the auto-scored Paper 1 with an optional
// human-marked Paper 2 for reporting.
type CombinedResult struct {
	Paper1Score   int  `json:"paper1_score"`
	Paper2Score   int  `json:"paper2_score"`
	Paper2Marked  bool `json:"paper2_marked"`
	Total         int  `json:"total_score"`
	TotalPossible int  `json:"total_possible"`
	Percentage    int  `json:"percentage"`
}

// Combined folds a Paper 2 mark record into the Paper 1 result. When the
// subjective paper has not been marked yet, the percentage is computed over
// Paper 1 alone so an unmarked paper does not read as a failed one.
func Combined(p1 attempt.ScoreResult, p2 *attempt.Paper2Mark) CombinedResult {
	out := CombinedResult{
		Paper1Score:   p1.Total,
		Total:         p1.Total,
		TotalPossible: p1.TotalPossible,
	}
	if p2 != nil {
		out.Paper2Marked = true
		out.Paper2Score = p2.Total
		out.Total += p2.Total
		out.TotalPossible += exam.Paper2TotalMarks
	}
	out.Percentage = percent(out.Total, out.TotalPossible)
	return out
}

// ValidatePaper2 checks a mark record against the fixed Paper 2 structure
// and fills in its total.
func ValidatePaper2(m *attempt.Paper2Mark) error {
	if m.EssayMarks < 0 || m.EssayMarks > exam.Paper2EssayMarks {
		return fmt.Errorf("essay marks %d out of range 0..%d", m.EssayMarks, exam.Paper2EssayMarks)
	}
	if len(m.ShortAnswerMarks) != exam.Paper2ShortCount {
		return fmt.Errorf("want %d short answer marks, got %d", exam.Paper2ShortCount, len(m.ShortAnswerMarks))
	}
	total := m.EssayMarks
	for i, v := range m.ShortAnswerMarks {
		if v < 0 || v > exam.Paper2ShortMarksEach {
			return fmt.Errorf("short answer %d: marks %d out of range 0..%d", i+1, v, exam.Paper2ShortMarksEach)
		}
		total += v
	}
	m.Total = total
	return nil
}

// percent rounds to the nearest integer, half away from zero.
func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
