package lifecycle

import (
	"fmt"
	"strings"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/types"
	"github.com/tggeco/challenge-api/internal/validator"
)

const (
	FirstStep = 1
	LastStep  = 6
)

type wordLimit struct {
	field string
	limit int
	get   func(types.SubmissionContent) string
}

var wordLimits = []wordLimit{
	{"problem_statement", 500, func(c types.SubmissionContent) string { return c.ProblemStatement }},
	{"proposed_solution", 800, func(c types.SubmissionContent) string { return c.ProposedSolution }},
	{"innovation_approach", 300, func(c types.SubmissionContent) string { return c.InnovationApproach }},
	{"expected_impact", 300, func(c types.SubmissionContent) string { return c.ExpectedImpact }},
}

type required struct {
	field string
	get   func(types.SubmissionContent) string
}

// checked in this order, the first blank one is reported
var requiredForSubmit = []required{
	{"title", func(c types.SubmissionContent) string { return c.Title }},
	{"category", func(c types.SubmissionContent) string { return c.Category }},
	{"problem_statement", func(c types.SubmissionContent) string { return c.ProblemStatement }},
	{"proposed_solution", func(c types.SubmissionContent) string { return c.ProposedSolution }},
	{"expected_impact", func(c types.SubmissionContent) string { return c.ExpectedImpact }},
}

// Returns the step to persist and the new furthest step reached. Owners may go
// back to any step already reached but only ever one step past the furthest.
func Navigate(step int, furthest int) (int, int, error) {
	if step < FirstStep || step > LastStep {
		return 0, 0, srverr.NewValidationError(
			"step",
			fmt.Sprintf("must be between %d and %d", FirstStep, LastStep),
		)
	}

	furthest = max(furthest, FirstStep)
	if step > furthest+1 {
		return 0, 0, srverr.NewValidationError(
			"step",
			fmt.Sprintf("cannot skip ahead to step %d from step %d", step, furthest),
		)
	}

	return step, max(step, furthest), nil
}

func CheckWordLimits(c types.SubmissionContent) error {
	for _, wl := range wordLimits {
		if n := validator.WordCount(wl.get(c)); n > wl.limit {
			return srverr.NewValidationError(
				wl.field,
				fmt.Sprintf("%d words exceeds the limit of %d", n, wl.limit),
			)
		}
	}
	return nil
}

// Preconditions for submit, besides being a draft
func CheckComplete(c types.SubmissionContent) error {
	for _, r := range requiredForSubmit {
		if strings.TrimSpace(r.get(c)) == "" {
			return srverr.NewValidationError(r.field, "required before submitting")
		}
	}

	return CheckWordLimits(c)
}

// Applies the fields present in a draft save over the stored content
func Merge(c types.SubmissionContent, req *types.SubmissionDraftRequest) types.SubmissionContent {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}

	set(&c.Title, req.Title)
	set(&c.Category, req.Category)
	set(&c.ProblemStatement, req.ProblemStatement)
	set(&c.ProposedSolution, req.ProposedSolution)
	set(&c.InnovationApproach, req.InnovationApproach)
	set(&c.ExpectedImpact, req.ExpectedImpact)
	set(&c.VideoLink, req.VideoLink)

	return c
}
