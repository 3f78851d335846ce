package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/types"
)

// Me returns the signed in principal
//
//	@Summary		Get the signed in principal
//	@Description	Get the signed in principal
//	@Tags			account
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{object}	types.Me
//
//	@Failure		401	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/me/ [get]
func (h *Handler) Me(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Me")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	span.SetAttributes(
		attribute.String("principal.id", identity.PrincipalID),
		attribute.String("role", string(identity.Role)),
	)

	id, err := principalID(identity, span)
	if err != nil {
		return err
	}

	me := types.Me{
		ID:         identity.PrincipalID,
		Email:      identity.Email,
		Role:       identity.Role,
		University: identity.University,
	}

	// config seeded admins may not have a profile row yet
	profile, err := models.ByID[models.Profile](ctx, h.DB, id)
	if err == nil {
		me.FirstName = profile.FirstName
		me.LastName = profile.LastName
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, me)
}
