package questionbank

import (
	"fmt"
	"math/rand"
	"strings"
)

// PlanSize is the number of questions in every plan: the opener plus one
// question per drawn category.
const PlanSize = 5

// DefaultOpener is the fixed first question of every plan.
const DefaultOpener = "Tell me about yourself."

type Category string

const (
	Behavioral        Category = "behavioral"
	Situational       Category = "situational"
	TechnicalConcepts Category = "technical_concepts"
	ProjectExperience Category = "project_experience"
	ProblemSolving    Category = "problem_solving"
)

// DrawOrder lists the categories a plan draws from, in plan order.
var DrawOrder = []Category{Behavioral, Situational, TechnicalConcepts, ProjectExperience}

// EmptyCategoryError reports a drawn category with no usable questions.
type EmptyCategoryError struct {
	Category Category
}

func (e *EmptyCategoryError) Error() string {
	return fmt.Sprintf("questionbank: category %q has no questions", e.Category)
}

// Bank holds the categorized question pools. Every plan opens with
// DefaultOpener regardless of the bank.
type Bank struct {
	Categories map[Category][]string `yaml:"categories"`
}

// Rand is the subset of *rand.Rand used to draw questions.
type Rand interface {
	Intn(n int) int
}

// Validate checks every drawn category has at least one non-blank question.
// Call it once at startup; SelectPlan assumes a valid bank.
func (b *Bank) Validate() error {
	for _, c := range DrawOrder {
		if len(usable(b.Categories[c])) == 0 {
			return &EmptyCategoryError{Category: c}
		}
	}
	return nil
}

// SelectPlan draws one question uniformly from each category in DrawOrder.
func (b *Bank) SelectPlan(rng Rand) Plan {
	questions := make([]string, 0, PlanSize)
	questions = append(questions, DefaultOpener)
	for _, c := range DrawOrder {
		pool := usable(b.Categories[c])
		questions = append(questions, pool[intn(rng, len(pool))])
	}
	return Plan{questions: questions}
}

// Clone returns a deep copy of the bank.
func (b *Bank) Clone() *Bank {
	out := &Bank{Categories: make(map[Category][]string, len(b.Categories))}
	for c, qs := range b.Categories {
		out.Categories[c] = append([]string(nil), qs...)
	}
	return out
}

func usable(pool []string) []string {
	out := make([]string, 0, len(pool))
	for _, q := range pool {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func intn(rng Rand, n int) int {
	if rng == nil {
		return rand.Intn(n)
	}
	return rng.Intn(n)
}

// Plan is the ordered, immutable list of questions for one session.
type Plan struct {
	questions []string
}

// NewPlan builds a plan from explicit questions.
func NewPlan(questions ...string) Plan {
	return Plan{questions: append([]string(nil), questions...)}
}

func (p Plan) Len() int { return len(p.questions) }

// At returns the i-th question, or "" when out of range.
func (p Plan) At(i int) string {
	if i < 0 || i >= len(p.questions) {
		return ""
	}
	return p.questions[i]
}

// Questions returns a copy of the questions.
func (p Plan) Questions() []string {
	return append([]string(nil), p.questions...)
}
