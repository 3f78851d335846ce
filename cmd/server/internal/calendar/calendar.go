// Package calendar gates operations on the competition windows held in the
// challenge settings. A window edge that is not set never closes anything.
package calendar

import (
	"fmt"
	"time"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/types"
)

func within(name string, opens *time.Time, closes *time.Time, now time.Time) error {
	if opens != nil && now.Before(*opens) {
		return fmt.Errorf("%w: %s opens %s", srverr.ErrWindowClosed, name, opens.UTC().Format(time.RFC3339))
	}
	if closes != nil && now.After(*closes) {
		return fmt.Errorf("%w: %s closed %s", srverr.ErrWindowClosed, name, closes.UTC().Format(time.RFC3339))
	}
	return nil
}

func Registration(s *types.ChallengeSettings, now time.Time) error {
	if s == nil {
		return nil
	}
	return within("registration", s.RegistrationOpen, s.RegistrationClose, now)
}

// Draft saves, submit and file changes
func Submission(s *types.ChallengeSettings, now time.Time) error {
	if s == nil {
		return nil
	}
	return within("submission", s.SubmissionOpen, s.SubmissionDeadline, now)
}

func Judging(s *types.ChallengeSettings, now time.Time) error {
	if s == nil {
		return nil
	}
	if s.JudgingLocked {
		return srverr.ErrJudgingLocked
	}
	return within("judging", s.JudgingStart, s.JudgingEnd, now)
}
