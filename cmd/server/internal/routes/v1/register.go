package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/audit"
	"github.com/tggeco/challenge-api/internal/notify"
	"github.com/tggeco/challenge-api/internal/types"
)

// Self service participant signup. The welcome email is best effort.
//
//	@Summary		Register as a participant
//	@Description	Creates the principal, the participant role and the profile. Closed outside the registration window.
//	@Tags			account
//	@Accept			json
//	@Produce		json
//
//	@Param			payload	body	types.RegisterRequest	true	"Registration"
//
//	@Success		201	{object}	types.Profile
//
//	@Failure		400	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/register/ [post]
func (h *Handler) Register(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Register")
	defer span.End()

	var req types.RegisterRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	principal, profile, err := models.RegisterParticipant(ctx, h.DB, &req)
	if err != nil {
		return fail(span, err, "failed to register participant")
	}

	span.SetAttributes(attribute.String("principal.id", principal.ID.String()))

	audit.LogPrincipalCreated(
		audit.Context{ActorID: principal.ID.String()},
		principal.ID.String(),
		types.RoleParticipant,
		profile.University,
	)

	h.outbox.Enqueue(ctx, notify.Welcome(principal.Email, profile.FirstName))

	span.SetStatus(codes.Ok, "registered participant")
	return c.JSON(http.StatusCreated, profileToTypes(profile, principal.Email, types.RoleParticipant, ""))
}
