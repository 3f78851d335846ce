// Package lifecycle holds the submission status graph and the draft editing rules.
package lifecycle

import (
	"fmt"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/types"
)

// position along the forward path, negative terminals are not on it
var forward = map[types.SubmissionStatus]int{
	types.SubmissionStatusDraft:       0,
	types.SubmissionStatusSubmitted:   1,
	types.SubmissionStatusUnderReview: 2,
	types.SubmissionStatusShortlisted: 3,
	types.SubmissionStatusWinner:      4,
}

func IsTerminal(s types.SubmissionStatus) bool {
	switch s {
	case types.SubmissionStatusWinner,
		types.SubmissionStatusNotSelected,
		types.SubmissionStatusDisqualified:
		return true
	default:
		return false
	}
}

// A submission is locked in every status but draft
func IsLocked(s types.SubmissionStatus) bool {
	return s != types.SubmissionStatusDraft
}

// Judges may only be put on submissions still in review
func Assignable(s types.SubmissionStatus) bool {
	switch s {
	case types.SubmissionStatusSubmitted,
		types.SubmissionStatusUnderReview,
		types.SubmissionStatusShortlisted:
		return true
	default:
		return false
	}
}

// Only these statuses are worth telling the participant about
func Notifies(s types.SubmissionStatus) bool {
	switch s {
	case types.SubmissionStatusUnderReview,
		types.SubmissionStatusShortlisted,
		types.SubmissionStatusWinner,
		types.SubmissionStatusNotSelected:
		return true
	default:
		return false
	}
}

// Checks an administrative status change. Leaving draft for submitted happens
// only through submit, so it is not a legal administrative move.
func CheckTransition(from types.SubmissionStatus, to types.SubmissionStatus) error {
	if !to.Valid() {
		return srverr.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}

	illegal := fmt.Errorf("%w: %s to %s", srverr.ErrIllegalTransition, from, to)

	if from == to || to == types.SubmissionStatusDraft {
		return illegal
	}

	switch to {
	case types.SubmissionStatusDisqualified:
		return nil
	case types.SubmissionStatusNotSelected:
		if from == types.SubmissionStatusDraft || IsTerminal(from) {
			return illegal
		}
		return nil
	}

	if from == types.SubmissionStatusDraft {
		return illegal
	}

	fromPos, ok := forward[from]
	if !ok || IsTerminal(from) {
		return illegal
	}

	if forward[to] <= fromPos {
		return illegal
	}

	return nil
}
