// Package progress folds a student's scored attempts into the longitudinal
// report backing the monthly "blood report" screen: per-month scores, skill
// trends, and current strengths and weaknesses.
package progress

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/attempt"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/scoring"
)

// rankedCount is how many skills appear in each of the strengths and
// weaknesses lists when enough skills have data.
const rankedCount = 3

type MonthlyProgress struct {
	Month            string                 `json:"month"`
	ExamID           string                 `json:"exam_id"`
	ExamTitle        string                 `json:"exam_title"`
	Paper1Score      int                    `json:"paper1_score"`
	Paper2Score      int                    `json:"paper2_score"`
	Paper2Marked     bool                   `json:"paper2_marked"`
	TotalScore       int                    `json:"total_score"`
	TotalPossible    int                    `json:"total_possible"`
	Percentage       int                    `json:"percentage"`
	SkillPercentages map[exam.SkillArea]int `json:"skill_percentages"`
	SubmittedAt      time.Time              `json:"submitted_at"`
}

type SkillRank struct {
	Skill      exam.SkillArea `json:"skill"`
	Percentage int            `json:"percentage"`
}

type TrendPoint struct {
	Month      string `json:"month"`
	Percentage int    `json:"percentage"`
}

// Report is the full progress view for one student. Zero submitted
// attempts is a valid, displayable state: Monthly is empty and nothing
// errors.
type Report struct {
	StudentID       string                          `json:"student_id"`
	Monthly         []MonthlyProgress               `json:"monthly_progress"`
	SkillTrends     map[exam.SkillArea][]TrendPoint `json:"skill_trends"`
	Strengths       []SkillRank                     `json:"strengths"`
	Weaknesses      []SkillRank                     `json:"weaknesses"`
	OverallAverage  int                             `json:"overall_average"`
	TotalExamsTaken int                             `json:"total_exams_taken"`
}

type Aggregator struct {
	catalog exam.Catalog
	store   attempt.Store
}

func NewAggregator(catalog exam.Catalog, store attempt.Store) *Aggregator {
	return &Aggregator{catalog: catalog, store: store}
}

// Report reads every submitted attempt for the student and derives the
// monthly series (ascending by exam month), the per-skill trend lines, the
// latest month's top and bottom three skills, and the overall average.
func (g *Aggregator) Report(ctx context.Context, studentID string) (Report, error) {
	rep := Report{
		StudentID:   studentID,
		Monthly:     []MonthlyProgress{},
		SkillTrends: map[exam.SkillArea][]TrendPoint{},
		Strengths:   []SkillRank{},
		Weaknesses:  []SkillRank{},
	}

	attempts, err := g.store.ListSubmittedByStudent(ctx, studentID)
	if err != nil {
		return Report{}, err
	}
	if len(attempts) == 0 {
		return rep, nil
	}

	for _, a := range attempts {
		if a.Score == nil {
			continue
		}
		ex, err := g.catalog.GetExam(ctx, a.ExamID)
		if err != nil {
			if errors.Is(err, exam.ErrNotFound) {
				continue
			}
			return Report{}, err
		}
		var p2 *attempt.Paper2Mark
		if m, err := g.store.GetPaper2Mark(ctx, studentID, a.ExamID); err == nil {
			p2 = &m
		} else if !errors.Is(err, attempt.ErrMarkNotFound) {
			return Report{}, err
		}
		combined := scoring.Combined(*a.Score, p2)
		rep.Monthly = append(rep.Monthly, MonthlyProgress{
			Month:            ex.Month,
			ExamID:           ex.ID,
			ExamTitle:        ex.Title,
			Paper1Score:      combined.Paper1Score,
			Paper2Score:      combined.Paper2Score,
			Paper2Marked:     combined.Paper2Marked,
			TotalScore:       combined.Total,
			TotalPossible:    combined.TotalPossible,
			Percentage:       combined.Percentage,
			SkillPercentages: a.Score.SkillPercentages,
			SubmittedAt:      *a.SubmittedAt,
		})
	}
	if len(rep.Monthly) == 0 {
		return rep, nil
	}

	sort.SliceStable(rep.Monthly, func(i, j int) bool {
		return rep.Monthly[i].Month < rep.Monthly[j].Month
	})

	sum := 0
	for _, m := range rep.Monthly {
		sum += m.Percentage
		for skill, pct := range m.SkillPercentages {
			rep.SkillTrends[skill] = append(rep.SkillTrends[skill], TrendPoint{Month: m.Month, Percentage: pct})
		}
	}
	rep.OverallAverage = int(math.Round(float64(sum) / float64(len(rep.Monthly))))
	rep.TotalExamsTaken = len(rep.Monthly)

	latest := rep.Monthly[len(rep.Monthly)-1].SkillPercentages
	rep.Strengths, rep.Weaknesses = rankSkills(latest)
	return rep, nil
}

// rankSkills picks the current strengths (top by percentage descending) and
// weaknesses (bottom ascending) from the latest month. Ties break by skill
// enumeration order. Fewer than three skills with data yields shorter
// lists, never an error.
func rankSkills(latest map[exam.SkillArea]int) (strengths, weaknesses []SkillRank) {
	ranked := make([]SkillRank, 0, len(latest))
	for _, skill := range exam.SkillAreas {
		if pct, ok := latest[skill]; ok {
			ranked = append(ranked, SkillRank{Skill: skill, Percentage: pct})
		}
	}
	desc := make([]SkillRank, len(ranked))
	copy(desc, ranked)
	sort.SliceStable(desc, func(i, j int) bool { return desc[i].Percentage > desc[j].Percentage })

	asc := make([]SkillRank, len(ranked))
	copy(asc, ranked)
	sort.SliceStable(asc, func(i, j int) bool { return asc[i].Percentage < asc[j].Percentage })

	n := rankedCount
	if len(ranked) < n {
		n = len(ranked)
	}
	return desc[:n], asc[:n]
}
