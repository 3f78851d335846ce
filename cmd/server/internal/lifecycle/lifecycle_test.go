package lifecycle

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/types"
)

func TestCheckTransition(t *testing.T) {
	type transitionCase struct {
		from  types.SubmissionStatus
		to    types.SubmissionStatus
		legal bool
	}

	cases := []transitionCase{
		{types.SubmissionStatusSubmitted, types.SubmissionStatusUnderReview, true},
		{types.SubmissionStatusSubmitted, types.SubmissionStatusShortlisted, true},
		{types.SubmissionStatusUnderReview, types.SubmissionStatusShortlisted, true},
		{types.SubmissionStatusShortlisted, types.SubmissionStatusWinner, true},
		{types.SubmissionStatusSubmitted, types.SubmissionStatusNotSelected, true},
		{types.SubmissionStatusUnderReview, types.SubmissionStatusNotSelected, true},
		{types.SubmissionStatusShortlisted, types.SubmissionStatusNotSelected, true},
		{types.SubmissionStatusDraft, types.SubmissionStatusDisqualified, true},
		{types.SubmissionStatusWinner, types.SubmissionStatusDisqualified, true},
		{types.SubmissionStatusNotSelected, types.SubmissionStatusDisqualified, true},

		{types.SubmissionStatusShortlisted, types.SubmissionStatusDraft, false},
		{types.SubmissionStatusSubmitted, types.SubmissionStatusDraft, false},
		{types.SubmissionStatusDraft, types.SubmissionStatusSubmitted, false},
		{types.SubmissionStatusDraft, types.SubmissionStatusUnderReview, false},
		{types.SubmissionStatusDraft, types.SubmissionStatusNotSelected, false},
		{types.SubmissionStatusShortlisted, types.SubmissionStatusUnderReview, false},
		{types.SubmissionStatusUnderReview, types.SubmissionStatusUnderReview, false},
		{types.SubmissionStatusWinner, types.SubmissionStatusNotSelected, false},
		{types.SubmissionStatusNotSelected, types.SubmissionStatusWinner, false},
		{types.SubmissionStatusDisqualified, types.SubmissionStatusDisqualified, false},
		{types.SubmissionStatusDisqualified, types.SubmissionStatusSubmitted, false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.to), func(t *testing.T) {
			err := CheckTransition(tc.from, tc.to)
			if tc.legal {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, srverr.ErrIllegalTransition)
		})
	}

	t.Run("UnknownStatus", func(t *testing.T) {
		err := CheckTransition(types.SubmissionStatusSubmitted, "archived")
		verr, ok := srverr.IsValidation(err)
		require.True(t, ok)
		assert.Equal(t, "status", verr.Field)
	})
}

func TestLockedIffNotDraft(t *testing.T) {
	for _, s := range types.SubmissionStatuses {
		assert.Equal(t, s != types.SubmissionStatusDraft, IsLocked(s), "status %s", s)
	}
}

func TestNotifies(t *testing.T) {
	notifying := map[types.SubmissionStatus]bool{
		types.SubmissionStatusUnderReview: true,
		types.SubmissionStatusShortlisted: true,
		types.SubmissionStatusWinner:      true,
		types.SubmissionStatusNotSelected: true,
	}
	for _, s := range types.SubmissionStatuses {
		assert.Equal(t, notifying[s], Notifies(s), "status %s", s)
	}
}

func TestNavigate(t *testing.T) {
	t.Run("Forward", func(t *testing.T) {
		step, furthest, err := Navigate(3, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, step)
		assert.Equal(t, 3, furthest)
	})

	t.Run("BackKeepsFurthest", func(t *testing.T) {
		step, furthest, err := Navigate(1, 5)
		require.NoError(t, err)
		assert.Equal(t, 1, step)
		assert.Equal(t, 5, furthest)
	})

	t.Run("FreshDraft", func(t *testing.T) {
		step, furthest, err := Navigate(2, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, step)
		assert.Equal(t, 2, furthest)
	})

	t.Run("SkipAhead", func(t *testing.T) {
		_, _, err := Navigate(5, 2)
		verr, ok := srverr.IsValidation(err)
		require.True(t, ok)
		assert.Equal(t, "step", verr.Field)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		for _, step := range []int{0, 7, -1} {
			_, _, err := Navigate(step, 6)
			_, ok := srverr.IsValidation(err)
			assert.True(t, ok, "step %d", step)
		}
	})
}

func completeContent() types.SubmissionContent {
	return types.SubmissionContent{
		Title:            "Pyrolysis of sachet water bags",
		Category:         "Waste Management",
		ProblemStatement: "Plastic sachets clog drains across Port Harcourt.",
		ProposedSolution: "Small scale pyrolysis units run by student cooperatives.",
		ExpectedImpact:   "Fewer floods and a cheap fuel source.",
	}
}

func TestCheckComplete(t *testing.T) {
	t.Run("Complete", func(t *testing.T) {
		require.NoError(t, CheckComplete(completeContent()))
	})

	t.Run("InnovationApproachOptional", func(t *testing.T) {
		c := completeContent()
		c.InnovationApproach = ""
		require.NoError(t, CheckComplete(c))
	})

	t.Run("FirstMissingReported", func(t *testing.T) {
		c := completeContent()
		c.Category = "  "
		c.ExpectedImpact = ""
		verr, ok := srverr.IsValidation(CheckComplete(c))
		require.True(t, ok)
		assert.Equal(t, "category", verr.Field)
	})

	t.Run("EachRequiredField", func(t *testing.T) {
		blank := map[string]func(*types.SubmissionContent){
			"title":             func(c *types.SubmissionContent) { c.Title = "" },
			"category":          func(c *types.SubmissionContent) { c.Category = "" },
			"problem_statement": func(c *types.SubmissionContent) { c.ProblemStatement = "" },
			"proposed_solution": func(c *types.SubmissionContent) { c.ProposedSolution = "" },
			"expected_impact":   func(c *types.SubmissionContent) { c.ExpectedImpact = "" },
		}
		for field, clear := range blank {
			c := completeContent()
			clear(&c)
			verr, ok := srverr.IsValidation(CheckComplete(c))
			require.True(t, ok, field)
			assert.Equal(t, field, verr.Field)
		}
	})

	t.Run("WordLimit", func(t *testing.T) {
		c := completeContent()
		c.ExpectedImpact = strings.Repeat("impact ", 301)
		verr, ok := srverr.IsValidation(CheckComplete(c))
		require.True(t, ok)
		assert.Equal(t, "expected_impact", verr.Field)
	})
}

func TestMerge(t *testing.T) {
	title := "Solar dryers"
	problem := "Post harvest losses"
	first := Merge(types.SubmissionContent{}, &types.SubmissionDraftRequest{Title: &title, Step: 1})

	solution := "Community dryers"
	second := Merge(first, &types.SubmissionDraftRequest{
		ProblemStatement: &problem,
		ProposedSolution: &solution,
		Step:             2,
	})

	assert.Equal(t, title, second.Title)
	assert.Equal(t, problem, second.ProblemStatement)
	assert.Equal(t, solution, second.ProposedSolution)

	empty := ""
	cleared := Merge(second, &types.SubmissionDraftRequest{Title: &empty, Step: 2})
	assert.Empty(t, cleared.Title)
	assert.Equal(t, solution, cleared.ProposedSolution)
}

func TestNewReferenceCode(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^TGG-2026-[A-HJ-NP-Z2-9]{6}$`)

	seen := map[string]bool{}
	for range 50 {
		code, err := NewReferenceCode("TGG", now)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestIllegalTransitionWraps(t *testing.T) {
	err := CheckTransition(types.SubmissionStatusWinner, types.SubmissionStatusSubmitted)
	assert.True(t, errors.Is(err, srverr.ErrIllegalTransition))
	assert.Contains(t, err.Error(), "winner to submitted")
}
