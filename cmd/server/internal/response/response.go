package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/filepolicy"
	"github.com/tggeco/challenge-api/internal/types"
)

var (
	InternalServerError = echo.NewHTTPError(
		http.StatusInternalServerError,
		types.StringError("something went wrong"),
	)
	NotFoundError     = echo.NewHTTPError(http.StatusNotFound, types.StringError("not found"))
	UnauthorizedError = echo.NewHTTPError(http.StatusUnauthorized, types.StringError("Unauthorized"))
	ForbiddenError    = echo.NewHTTPError(http.StatusForbidden, types.StringError("Forbidden"))
)

type mapping struct {
	err     error
	message string
	status  int
}

// Order matters for wrapped errors: the first match wins
var mappings = []mapping{
	{srverr.ErrUnauthorized, "Unauthorized", http.StatusUnauthorized},
	{srverr.ErrForbidden, "Forbidden", http.StatusForbidden},
	{srverr.ErrJudgingLocked, "judging is locked", http.StatusForbidden},
	{srverr.ErrWindowClosed, "this window is closed", http.StatusForbidden},
	{srverr.ErrNotFound, "not found", http.StatusNotFound},
	{srverr.ErrLocked, "already submitted, contact coordinator", http.StatusConflict},
	{srverr.ErrAlreadyLocked, "already submitted, contact coordinator", http.StatusConflict},
	{srverr.ErrIllegalTransition, "illegal status transition", http.StatusConflict},
	{srverr.ErrDuplicateAssignment, "judge is already assigned to this submission", http.StatusConflict},
	{srverr.ErrDuplicateTeam, "you already lead a team", http.StatusConflict},
	{srverr.ErrAlreadyOnTeam, "already a member of a team", http.StatusConflict},
	{srverr.ErrAlreadyInvited, "this email has already been invited", http.StatusConflict},
	{srverr.ErrInvalidToken, "invalid or expired link", http.StatusNotFound},
	{srverr.ErrTeamFull, "team is full", http.StatusUnprocessableEntity},
	{filepolicy.ErrEmpty, "file is empty", http.StatusBadRequest},
	{filepolicy.ErrUnknownKind, "unknown file kind", http.StatusBadRequest},
	{filepolicy.ErrTypeNotAllowed, "file type not allowed", http.StatusBadRequest},
	{filepolicy.ErrTooLarge, "file too large", http.StatusRequestEntityTooLarge},
	{
		srverr.ErrIncompleteScoring,
		"every criterion needs a score before submitting",
		http.StatusBadRequest,
	},
}

// Maps a domain error onto an http error. Anything unrecognised is a 500 so
// database errors never reach the client.
func FromError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	if verr, ok := srverr.IsValidation(err); ok {
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.FieldError(verr.Field, verr.Reason),
		)
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return echo.NewHTTPError(m.status, types.StringError(m.message))
		}
	}

	return InternalServerError
}
