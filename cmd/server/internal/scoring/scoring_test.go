package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
)

var criteria = []Criterion{
	{ID: "c1", MaxScore: 5, Weight: 60},
	{ID: "c2", MaxScore: 10, Weight: 40},
}

func TestTotal(t *testing.T) {
	t.Run("Weighted", func(t *testing.T) {
		total, err := Total(criteria, map[string]float64{"c1": 5, "c2": 5}, true)
		require.NoError(t, err)
		assert.InDelta(t, 80.0, total, 0.001)
	})

	t.Run("Perfect", func(t *testing.T) {
		total, err := Total(criteria, map[string]float64{"c1": 5, "c2": 10}, true)
		require.NoError(t, err)
		assert.InDelta(t, 100.0, total, 0.001)
	})

	t.Run("PartialSave", func(t *testing.T) {
		total, err := Total(criteria, map[string]float64{"c2": 10}, false)
		require.NoError(t, err)
		assert.InDelta(t, 40.0, total, 0.001)
	})

	t.Run("IncompleteSubmit", func(t *testing.T) {
		_, err := Total(criteria, map[string]float64{"c1": 3}, true)
		assert.ErrorIs(t, err, srverr.ErrIncompleteScoring)
	})

	t.Run("AboveMax", func(t *testing.T) {
		_, err := Total(criteria, map[string]float64{"c1": 6}, false)
		verr, ok := srverr.IsValidation(err)
		require.True(t, ok)
		assert.Equal(t, "scores", verr.Field)
	})

	t.Run("Negative", func(t *testing.T) {
		_, err := Total(criteria, map[string]float64{"c2": -1}, false)
		_, ok := srverr.IsValidation(err)
		assert.True(t, ok)
	})

	t.Run("UnknownCriterion", func(t *testing.T) {
		_, err := Total(criteria, map[string]float64{"c9": 1}, false)
		_, ok := srverr.IsValidation(err)
		assert.True(t, ok)
	})
}

func TestLeaderboard(t *testing.T) {
	t.Run("TiesKeepInputOrder", func(t *testing.T) {
		rows := []ScoreRow{
			{SubmissionID: "A", TotalScore: 80},
			{SubmissionID: "B", TotalScore: 70},
			{SubmissionID: "C", TotalScore: 60},
			{SubmissionID: "A", TotalScore: 90},
			{SubmissionID: "B", TotalScore: 100},
		}

		got := Leaderboard(rows)
		require.Len(t, got, 3)

		assert.Equal(t, "A", got[0].SubmissionID)
		assert.Equal(t, "B", got[1].SubmissionID)
		assert.Equal(t, "C", got[2].SubmissionID)

		assert.InDelta(t, 85.0, got[0].Average, 0.001)
		assert.InDelta(t, 85.0, got[1].Average, 0.001)
		assert.InDelta(t, 60.0, got[2].Average, 0.001)

		assert.Equal(t, 1, got[0].Rank)
		assert.Equal(t, 1, got[1].Rank)
		assert.Equal(t, 3, got[2].Rank)

		assert.Equal(t, 2, got[0].JudgeCount)
		assert.Equal(t, 1, got[2].JudgeCount)
	})

	t.Run("InputOrderDecidesTie", func(t *testing.T) {
		rows := []ScoreRow{
			{SubmissionID: "B", TotalScore: 85},
			{SubmissionID: "A", TotalScore: 85},
		}

		got := Leaderboard(rows)
		require.Len(t, got, 2)
		assert.Equal(t, "B", got[0].SubmissionID)
		assert.Equal(t, "A", got[1].SubmissionID)
	})

	t.Run("Descending", func(t *testing.T) {
		rows := []ScoreRow{
			{SubmissionID: "low", TotalScore: 10},
			{SubmissionID: "high", TotalScore: 99},
			{SubmissionID: "mid", TotalScore: 50},
		}

		got := Leaderboard(rows)
		assert.Equal(t, []string{"high", "mid", "low"}, []string{
			got[0].SubmissionID, got[1].SubmissionID, got[2].SubmissionID,
		})
		assert.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})
	})

	t.Run("UnroundedMeanDecides", func(t *testing.T) {
		rows := []ScoreRow{
			{SubmissionID: "A", TotalScore: 84.996},
			{SubmissionID: "B", TotalScore: 85.004},
		}

		got := Leaderboard(rows)
		require.Len(t, got, 2)
		assert.Equal(t, "B", got[0].SubmissionID)
		assert.Equal(t, 1, got[0].Rank)
		assert.Equal(t, "A", got[1].SubmissionID)
		assert.Equal(t, 2, got[1].Rank)

		assert.InDelta(t, 85.0, got[0].Average, 0.001)
		assert.InDelta(t, 85.0, got[1].Average, 0.001)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, Leaderboard(nil))
	})
}
