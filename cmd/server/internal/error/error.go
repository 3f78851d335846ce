package srverr

import (
	"errors"
	"fmt"
)

var (
	ErrTypeAssertMismatch = errors.New("type assertion mismatch")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")

	ErrLocked            = errors.New("submission is locked")
	ErrAlreadyLocked     = errors.New("submission already submitted")
	ErrIllegalTransition = errors.New("illegal status transition")

	ErrDuplicateAssignment = errors.New("judge already assigned to submission")
	ErrDuplicateTeam       = errors.New("principal already leads a team")
	ErrAlreadyOnTeam       = errors.New("principal already belongs to a team")
	ErrAlreadyInvited      = errors.New("email already invited to team")
	ErrTeamFull            = errors.New("team is full")
	ErrInvalidToken        = errors.New("invalid, expired or used token")

	ErrIncompleteScoring = errors.New("every criterion needs a score before submitting")
	ErrJudgingLocked     = errors.New("judging is locked")
	ErrWindowClosed      = errors.New("window is closed")
)

// Missing or malformed input, naming the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field string, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
