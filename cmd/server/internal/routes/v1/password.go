package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/audit"
	"github.com/tggeco/challenge-api/internal/notify"
	"github.com/tggeco/challenge-api/internal/types"
)

const (
	passwordChangeMethod = "change"
	passwordResetMethod  = "reset"
)

// ChangePassword replaces the caller's password
//
//	@Summary		Change password
//	@Description	Requires the current password. Pending reset links stop working.
//	@Tags			account
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.ChangePasswordRequest	true	"Current and new password"
//
//	@Success		204	{string}	string	"No Content"
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/me/password/ [put]
func (h *Handler) ChangePassword(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ChangePassword")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	now, err := fromContext[time.Time](c, span, timeKey)
	if err != nil {
		return err
	}

	id, err := principalID(identity, span)
	if err != nil {
		return err
	}

	var req types.ChangePasswordRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	if err := models.ChangePassword(ctx, h.DB, id, req.CurrentPassword, req.NewPassword, now); err != nil {
		return fail(span, err, "failed to change password")
	}

	audit.LogPasswordChanged(auditContext(identity), identity.PrincipalID, passwordChangeMethod)

	span.SetStatus(codes.Ok, "changed password")
	return c.NoContent(http.StatusNoContent)
}

// Always accepted so the response never reveals whether the email is registered
//
//	@Summary		Request a password reset link
//	@Description	Emails a single use reset link to an active account. The response is the same for unknown addresses.
//	@Tags			account
//	@Accept			json
//	@Produce		json
//
//	@Param			payload	body	types.PasswordResetRequest	true	"Account email"
//
//	@Success		202	{string}	string	"Accepted"
//
//	@Failure		400	{object}	types.Error
//	@Failure		429	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/password/reset/ [post]
func (h *Handler) RequestPasswordReset(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "RequestPasswordReset")
	defer span.End()

	now, err := fromContext[time.Time](c, span, timeKey)
	if err != nil {
		return err
	}

	var req types.PasswordResetRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	principal, token, err := models.RequestPasswordReset(ctx, h.DB, req.Email, now)
	if err != nil {
		return fail(span, err, "failed to request password reset")
	}

	if principal != nil {
		span.SetAttributes(attribute.String("principal.id", principal.ID.String()))
		h.outbox.Enqueue(ctx, notify.PasswordReset(
			principal.Email,
			h.firstName(ctx, principal.ID),
			token,
			models.PasswordResetTTL,
		))
	}

	span.SetStatus(codes.Ok, "")
	return c.NoContent(http.StatusAccepted)
}

//
//	@Summary		Set a new password with a reset token
//	@Description	Set a new password with a reset token
//	@Tags			account
//	@Accept			json
//	@Produce		json
//
//	@Param			payload	body	types.PasswordResetConfirmRequest	true	"Token and new password"
//
//	@Success		204	{string}	string	"No Content"
//
//	@Failure		400	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		429	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/password/reset/confirm/ [post]
func (h *Handler) ConfirmPasswordReset(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ConfirmPasswordReset")
	defer span.End()

	now, err := fromContext[time.Time](c, span, timeKey)
	if err != nil {
		return err
	}

	var req types.PasswordResetConfirmRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	principal, err := models.ResetPassword(ctx, h.DB, req.Token, req.NewPassword, now)
	if err != nil {
		return fail(span, err, "failed to reset password")
	}

	id := principal.ID.String()
	span.SetAttributes(attribute.String("principal.id", id))
	audit.LogPasswordChanged(audit.Context{ActorID: id}, id, passwordResetMethod)

	span.SetStatus(codes.Ok, "reset password")
	return c.NoContent(http.StatusNoContent)
}
