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

// GetTeam returns the caller's team
//
//	@Summary		Get own team
//	@Description	Get own team
//	@Tags			team
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{object}	types.Team
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/team/ [get]
func (h *Handler) GetTeam(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetTeam")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	id, err := principalID(identity, span)
	if err != nil {
		return err
	}

	team, err := models.TeamForPrincipal(ctx, h.DB, id)
	if err != nil {
		return fail(span, err, "no team")
	}

	span.SetAttributes(attribute.String("team.id", team.Team.ID.String()))
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, teamToTypes(team, id, h.config.App.MaxTeamSize))
}

// The team takes the lead's university
//
//	@Summary		Create a team
//	@Description	Create a team
//	@Tags			team
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.CreateTeamRequest	true	"Team"
//
//	@Success		201	{object}	types.Team
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/team/ [post]
func (h *Handler) CreateTeam(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreateTeam")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	leadID, err := principalID(identity, span)
	if err != nil {
		return err
	}

	var req types.CreateTeamRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	team, err := models.CreateTeam(ctx, h.DB, leadID, req.Name, identity.University)
	if err != nil {
		return fail(span, err, "failed to create team")
	}

	audit.LogTeamCreated(auditContext(identity), team.ID.String(), team.Name)

	full, err := models.TeamByID(ctx, h.DB, team.ID)
	if err != nil {
		return fail(span, err, "failed to load team")
	}

	span.SetAttributes(attribute.String("team.id", team.ID.String()))
	span.SetStatus(codes.Ok, "created team")
	return c.JSON(http.StatusCreated, teamToTypes(full, leadID, h.config.App.MaxTeamSize))
}

//
//	@Summary		Invite a member
//	@Description	Lead only. The invitee receives a single use token by email.
//	@Tags			team
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.TeamInviteRequest	true	"Invitee"
//
//	@Success		201	{object}	types.Team
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/team/invites/ [post]
func (h *Handler) Invite(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Invite")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	inviterID, err := principalID(identity, span)
	if err != nil {
		return err
	}

	var req types.TeamInviteRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	current, err := models.TeamForPrincipal(ctx, h.DB, inviterID)
	if err != nil {
		return fail(span, err, "no team")
	}

	team, member, err := models.InviteMember(
		ctx,
		h.DB,
		current.Team.ID,
		inviterID,
		req.Email,
		h.config.App.MaxTeamSize,
	)
	if err != nil {
		return fail(span, err, "failed to invite member")
	}

	audit.LogTeamInvite(auditContext(identity), team.ID.String(), member.ID.String(), member.Email)

	if member.InviteToken != nil {
		h.outbox.Enqueue(ctx, notify.TeamInvite(
			member.Email,
			team.Name,
			current.Names[inviterID],
			*member.InviteToken,
		))
	}

	full, err := models.TeamByID(ctx, h.DB, team.ID)
	if err != nil {
		return fail(span, err, "failed to load team")
	}

	span.SetStatus(codes.Ok, "invited member")
	return c.JSON(http.StatusCreated, teamToTypes(full, inviterID, h.config.App.MaxTeamSize))
}

// RevokeInvite withdraws a pending invitation
//
//	@Summary		Revoke an invitation
//	@Description	Revoke an invitation
//	@Tags			team
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			member_id	path	string	true	"Team member ID"	Format(uuid)
//
//	@Success		204	{string}	string	"No Content"
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/team/invites/{member_id}/ [delete]
func (h *Handler) RevokeInvite(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "RevokeInvite")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	leadID, err := principalID(identity, span)
	if err != nil {
		return err
	}

	memberID, err := paramID(c, span, "member_id")
	if err != nil {
		return err
	}

	current, err := models.TeamForPrincipal(ctx, h.DB, leadID)
	if err != nil {
		return fail(span, err, "no team")
	}

	if err := models.RevokeInvite(ctx, h.DB, current.Team.ID, memberID, leadID); err != nil {
		return fail(span, err, "failed to revoke invite")
	}

	span.SetStatus(codes.Ok, "revoked invite")
	return c.NoContent(http.StatusNoContent)
}

//
//	@Summary		Accept an invitation
//	@Description	Accept an invitation
//	@Tags			team
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.TeamTokenRequest	true	"Invitation token"
//
//	@Success		200	{object}	types.Team
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/team/accept/ [post]
func (h *Handler) AcceptInvite(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "AcceptInvite")
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

	var req types.TeamTokenRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	team, err := models.AcceptInvite(ctx, h.DB, req.Token, id, h.config.App.MaxTeamSize, now)
	if err != nil {
		return fail(span, err, "failed to accept invite")
	}

	audit.LogTeamInviteAccepted(auditContext(identity), team.ID.String(), identity.PrincipalID)

	full, err := models.TeamByID(ctx, h.DB, team.ID)
	if err != nil {
		return fail(span, err, "failed to load team")
	}

	span.SetStatus(codes.Ok, "accepted invite")
	return c.JSON(http.StatusOK, teamToTypes(full, id, h.config.App.MaxTeamSize))
}

// DeclineInvite declines an invitation
//
//	@Summary		Decline an invitation
//	@Description	Decline an invitation
//	@Tags			team
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.TeamTokenRequest	true	"Invitation token"
//
//	@Success		204	{string}	string	"No Content"
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/team/decline/ [post]
func (h *Handler) DeclineInvite(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "DeclineInvite")
	defer span.End()

	now, err := fromContext[time.Time](c, span, timeKey)
	if err != nil {
		return err
	}

	var req types.TeamTokenRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	if err := models.DeclineInvite(ctx, h.DB, req.Token, now); err != nil {
		return fail(span, err, "failed to decline invite")
	}

	span.SetStatus(codes.Ok, "declined invite")
	return c.NoContent(http.StatusNoContent)
}
