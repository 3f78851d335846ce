// Package scoring computes weighted judge totals and the derived leaderboard.
package scoring

import (
	"fmt"
	"math"
	"sort"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
)

type Criterion struct {
	ID       string
	MaxScore float64
	Weight   float64
}

// Validates a judge's ratings against the configured criteria and returns the
// weighted total. Criteria without a rating contribute nothing unless complete
// is requested, in which case they fail with ErrIncompleteScoring.
func Total(criteria []Criterion, scores map[string]float64, complete bool) (float64, error) {
	known := make(map[string]Criterion, len(criteria))
	for _, c := range criteria {
		known[c.ID] = c
	}

	for id, score := range scores {
		c, ok := known[id]
		if !ok {
			return 0, srverr.NewValidationError("scores", fmt.Sprintf("unknown criterion %s", id))
		}
		if math.IsNaN(score) || score < 0 || score > c.MaxScore {
			return 0, srverr.NewValidationError(
				"scores",
				fmt.Sprintf("score for %s must be between 0 and %g", id, c.MaxScore),
			)
		}
	}

	var total float64
	for _, c := range criteria {
		score, ok := scores[c.ID]
		if !ok {
			if complete {
				return 0, fmt.Errorf("%w: missing %s", srverr.ErrIncompleteScoring, c.ID)
			}
			continue
		}
		if c.MaxScore <= 0 {
			continue
		}
		total += score / c.MaxScore * c.Weight
	}

	return round2(total), nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// One judge's total for one submission
type ScoreRow struct {
	SubmissionID string
	TotalScore   float64
}

type Ranked struct {
	SubmissionID string
	Rank         int
	Average      float64
	JudgeCount   int
}

// Ranks submissions by the mean of their judges' totals, highest first.
// Submissions are ordered by their first appearance in rows and equal means
// keep that order. Tied means share a rank.
func Leaderboard(rows []ScoreRow) []Ranked {
	type agg struct {
		sum   float64
		count int
		order int
	}

	byID := map[string]*agg{}
	for _, r := range rows {
		a, ok := byID[r.SubmissionID]
		if !ok {
			a = &agg{order: len(byID)}
			byID[r.SubmissionID] = a
		}
		a.sum += r.TotalScore
		a.count++
	}

	type entry struct {
		Ranked
		mean float64
	}

	entries := make([]entry, len(byID))
	for id, a := range byID {
		mean := a.sum / float64(a.count)
		entries[a.order] = entry{
			Ranked: Ranked{
				SubmissionID: id,
				Average:      round2(mean),
				JudgeCount:   a.count,
			},
			mean: mean,
		}
	}

	// Rank on the unrounded mean, Average is display only
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].mean > entries[j].mean
	})

	ranked := make([]Ranked, len(entries))
	for i, e := range entries {
		ranked[i] = e.Ranked
		if i > 0 && e.mean == entries[i-1].mean {
			ranked[i].Rank = ranked[i-1].Rank
			continue
		}
		ranked[i].Rank = i + 1
	}

	return ranked
}
