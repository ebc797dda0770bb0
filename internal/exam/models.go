package exam

import (
	"fmt"
	"time"
)

// SkillArea is one of the fixed cognitive categories tagged per question.
type SkillArea string

const (
	SkillMathematicalReasoning SkillArea = "mathematical_reasoning"
	SkillLanguageProficiency   SkillArea = "language_proficiency"
	SkillGeneralKnowledge      SkillArea = "general_knowledge"
	SkillComprehension         SkillArea = "comprehension_skills"
	SkillProblemSolving        SkillArea = "problem_solving"
	SkillLogicalThinking       SkillArea = "logical_thinking"
	SkillSpatialReasoning      SkillArea = "spatial_reasoning"
	SkillMemoryRecall          SkillArea = "memory_recall"
	SkillAnalytical            SkillArea = "analytical_skills"
	SkillCriticalThinking      SkillArea = "critical_thinking"
)

// SkillAreas lists every skill area in enumeration order. Ranking ties in
// progress reports are broken by this order.
var SkillAreas = []SkillArea{
	SkillMathematicalReasoning,
	SkillLanguageProficiency,
	SkillGeneralKnowledge,
	SkillComprehension,
	SkillProblemSolving,
	SkillLogicalThinking,
	SkillSpatialReasoning,
	SkillMemoryRecall,
	SkillAnalytical,
	SkillCriticalThinking,
}

func (s SkillArea) Valid() bool {
	for _, k := range SkillAreas {
		if s == k {
			return true
		}
	}
	return false
}

type Grade string

const (
	Grade2 Grade = "grade_2"
	Grade3 Grade = "grade_3"
	Grade4 Grade = "grade_4"
	Grade5 Grade = "grade_5"
)

func (g Grade) Valid() bool {
	switch g {
	case Grade2, Grade3, Grade4, Grade5:
		return true
	}
	return false
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"
)

// OptionsPerQuestion is the fixed option count for Paper 1 MCQs.
const OptionsPerQuestion = 5

// Paper 2 has a fixed structure: one essay plus ten short answers.
const (
	Paper2EssayMarks     = 20
	Paper2ShortCount     = 10
	Paper2ShortMarksEach = 2
	Paper2TotalMarks     = Paper2EssayMarks + Paper2ShortCount*Paper2ShortMarksEach
)

type Option struct {
	ID   string `json:"option_id"`
	Text string `json:"text"`
}

type Question struct {
	ID              string    `json:"id"`
	Number          int       `json:"question_number"`
	Text            string    `json:"question_text"`
	Options         []Option  `json:"options"`
	CorrectOptionID string    `json:"correct_option_id,omitempty"`
	SkillArea       SkillArea `json:"skill_area"`
}

// Exam is immutable once published. Paper 1 is the timed objective paper
// scored by the engine; Paper 2 is human-marked out of band.
type Exam struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Grade           Grade      `json:"grade"`
	Month           string     `json:"month"` // "2025-02"
	Status          Status     `json:"status"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"paper1_questions"`

	Paper2EssayPrompt    string   `json:"paper2_essay_prompt,omitempty"`
	Paper2ShortQuestions []string `json:"paper2_short_questions,omitempty"`

	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// TotalMarks is the Paper 1 total: one mark per question.
func (e Exam) TotalMarks() int { return len(e.Questions) }

func (e Exam) DurationSeconds() int64 { return int64(e.DurationMinutes) * 60 }

// Question returns the question with the given id, if present.
func (e Exam) Question(id string) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// HasOption reports whether optionID is one of q's options.
func (q Question) HasOption(optionID string) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Sanitized returns a copy safe to serve to students: the answer key is
// stripped from every question.
func (e Exam) Sanitized() Exam {
	qs := make([]Question, len(e.Questions))
	copy(qs, e.Questions)
	for i := range qs {
		qs[i].CorrectOptionID = ""
	}
	e.Questions = qs
	return e
}

// Validate checks authoring invariants: a valid grade and month, a positive
// duration, and for each question exactly five options with exactly one of
// them marked correct and a known skill area.
func (e Exam) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("exam id required")
	}
	if e.Title == "" {
		return fmt.Errorf("exam title required")
	}
	if !e.Grade.Valid() {
		return fmt.Errorf("invalid grade %q", e.Grade)
	}
	if _, err := time.Parse("2006-01", e.Month); err != nil {
		return fmt.Errorf("invalid month %q (want YYYY-MM)", e.Month)
	}
	if e.DurationMinutes <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if len(e.Questions) == 0 {
		return fmt.Errorf("exam has no questions")
	}
	seen := make(map[string]struct{}, len(e.Questions))
	for _, q := range e.Questions {
		if q.ID == "" {
			return fmt.Errorf("question %d: id required", q.Number)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = struct{}{}
		if len(q.Options) != OptionsPerQuestion {
			return fmt.Errorf("question %q: want %d options, got %d", q.ID, OptionsPerQuestion, len(q.Options))
		}
		if !q.SkillArea.Valid() {
			return fmt.Errorf("question %q: unknown skill area %q", q.ID, q.SkillArea)
		}
		if !q.HasOption(q.CorrectOptionID) {
			return fmt.Errorf("question %q: correct option %q not among options", q.ID, q.CorrectOptionID)
		}
		optSeen := make(map[string]struct{}, len(q.Options))
		for _, o := range q.Options {
			if o.ID == "" {
				return fmt.Errorf("question %q: option id required", q.ID)
			}
			if _, dup := optSeen[o.ID]; dup {
				return fmt.Errorf("question %q: duplicate option id %q", q.ID, o.ID)
			}
			optSeen[o.ID] = struct{}{}
		}
	}
	if len(e.Paper2ShortQuestions) != 0 && len(e.Paper2ShortQuestions) != Paper2ShortCount {
		return fmt.Errorf("paper 2 wants %d short questions, got %d", Paper2ShortCount, len(e.Paper2ShortQuestions))
	}
	return nil
}
