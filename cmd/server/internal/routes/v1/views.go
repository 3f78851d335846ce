package v1

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/audit"
	"github.com/tggeco/challenge-api/internal/export"
	"github.com/tggeco/challenge-api/internal/types"
)

// Applies the caller's university scope to the requested filter. Coordinators
// asking for another university are refused.
func scopeFor(identity *access.Identity, span trace.Span, requested *types.University) (*types.University, error) {
	scope, err := identity.UniversityScope(requested)
	if err != nil {
		return nil, fail(span, err, "out of scope")
	}
	if scope != nil {
		span.SetAttributes(attribute.String("scope", string(*scope)))
	}
	return scope, nil
}

// ListParticipants lists participant profiles
//
//	@Summary		List participants
//	@Description	Admins see every university. Coordinators only see their own.
//	@Tags			views
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			university	query	string	false	"University"	Enums(UST, IAUE, UNIPORT)
//	@Param			type	query	string	false	"Participation type"	Enums(individual, team)
//	@Param			q	query	string	false	"Name or email search"
//
//	@Success		200	{array}	types.Profile
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/participants/ [get]
//	@Router			/v1/coordinator/participants/ [get]
func (h *Handler) ListParticipants(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListParticipants")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	filter := types.ParticipantFilter{
		University: optionalQuery[types.University](c, "university"),
		Type:       optionalQuery[types.ParticipationType](c, "type"),
		Query:      optionalQuery[string](c, "q"),
	}
	if err := validateQuery(c, span, &filter); err != nil {
		return err
	}

	scope, err := scopeFor(identity, span, filter.University)
	if err != nil {
		return err
	}

	rows, err := models.ListParticipants(ctx, h.DB, &filter, scope)
	if err != nil {
		return fail(span, err, "failed to list participants")
	}

	out := make([]types.Profile, len(rows))
	for i := range rows {
		out[i] = participantToTypes(&rows[i])
	}

	span.SetAttributes(attribute.Int("participants", len(out)))
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, out)
}

// Profile plus the participant's submission and team, if any
//
//	@Summary		Get a participant
//	@Description	Admins see every university. Coordinators only see their own.
//	@Tags			views
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			participant_id	path	string	true	"Participant ID"	Format(uuid)
//
//	@Success		200	{object}	types.ParticipantDetail
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/participants/{participant_id}/ [get]
//	@Router			/v1/coordinator/participants/{participant_id}/ [get]
func (h *Handler) ParticipantDetail(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ParticipantDetail")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	id, err := paramID(c, span, "participant_id")
	if err != nil {
		return err
	}

	scope, err := scopeFor(identity, span, nil)
	if err != nil {
		return err
	}

	row, err := models.ParticipantByID(ctx, h.DB, id, scope)
	if err != nil {
		return fail(span, err, "failed to load participant")
	}

	detail := types.ParticipantDetail{Profile: participantToTypes(row)}
	detail.Profile.PhotoURL = presign(ctx, h.photoUploader, row.PhotoPath)

	sub, err := models.SubmissionByOwner(ctx, h.DB, id)
	switch {
	case err == nil:
		subRow, err := models.SubmissionRowByID(ctx, h.DB, sub.ID)
		if err != nil {
			return fail(span, err, "failed to load submission")
		}
		summary := summaryToTypes(subRow)
		detail.Submission = &summary
	case !errors.Is(err, srverr.ErrNotFound):
		return fail(span, err, "failed to load submission")
	}

	team, err := models.TeamForPrincipal(ctx, h.DB, id)
	switch {
	case err == nil:
		t := teamToTypes(team, id, h.config.App.MaxTeamSize)
		detail.Team = &t
	case !errors.Is(err, srverr.ErrNotFound):
		return fail(span, err, "failed to load team")
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, detail)
}

// ListSubmissions lists submissions
//
//	@Summary		List submissions
//	@Description	Admins see every university. Coordinators only see their own.
//	@Tags			views
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			status	query	string	false	"Status"	Enums(draft, submitted, under_review, shortlisted, winner, not_selected, disqualified)
//	@Param			university	query	string	false	"University"	Enums(UST, IAUE, UNIPORT)
//	@Param			category	query	string	false	"Category"
//
//	@Success		200	{array}	types.SubmissionSummary
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/submissions/ [get]
//	@Router			/v1/coordinator/submissions/ [get]
func (h *Handler) ListSubmissions(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListSubmissions")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	filter := types.SubmissionFilter{
		Status:     optionalQuery[types.SubmissionStatus](c, "status"),
		University: optionalQuery[types.University](c, "university"),
		Category:   optionalQuery[string](c, "category"),
	}
	if err := validateQuery(c, span, &filter); err != nil {
		return err
	}

	scope, err := scopeFor(identity, span, filter.University)
	if err != nil {
		return err
	}

	rows, err := models.ListSubmissions(ctx, h.DB, &filter, scope)
	if err != nil {
		return fail(span, err, "failed to list submissions")
	}

	out := make([]types.SubmissionSummary, len(rows))
	for i := range rows {
		out[i] = summaryToTypes(&rows[i])
	}

	span.SetAttributes(attribute.Int("submissions", len(out)))
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, out)
}

//
//	@Summary		Get dashboard stats
//	@Description	Admins see every university. Coordinators only see their own.
//	@Tags			views
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{object}	types.Stats
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/stats/ [get]
//	@Router			/v1/coordinator/stats/ [get]
func (h *Handler) Stats(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Stats")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	requested := struct {
		University *types.University `validate:"omitempty,oneof=UST IAUE UNIPORT"`
	}{University: optionalQuery[types.University](c, "university")}
	if err := validateQuery(c, span, &requested); err != nil {
		return err
	}

	scope, err := scopeFor(identity, span, requested.University)
	if err != nil {
		return err
	}

	stats, err := models.CollectStats(ctx, h.DB, scope)
	if err != nil {
		return fail(span, err, "failed to collect stats")
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, types.Stats{
		ByStatus:     stats.ByStatus,
		ByUniversity: stats.ByUniversity,
		Participants: stats.Participants,
		Teams:        stats.Teams,
		Submissions:  stats.Submissions,
	})
}

// CSV download of participants or submissions within the caller's scope
//
//	@Summary		Export as CSV
//	@Description	Admins see every university. Coordinators only see their own.
//	@Tags			views
//	@Accept			json
//	@Produce		text/csv
//
//	@Security		BasicAuth
//
//	@Param			type	query	string	true	"What to export"	Enums(participants, submissions)
//	@Param			university	query	string	false	"University"	Enums(UST, IAUE, UNIPORT)
//
//	@Success		200	{file}	file
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/export/ [get]
//	@Router			/v1/coordinator/export/ [get]
func (h *Handler) Export(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Export")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	now, err := fromContext[time.Time](c, span, timeKey)
	if err != nil {
		return err
	}

	req := types.ExportRequest{
		University: optionalQuery[types.University](c, "university"),
		Kind:       types.ExportKind(c.QueryParam("type")),
	}
	if err := validateQuery(c, span, &req); err != nil {
		return err
	}

	span.SetAttributes(attribute.String("kind", string(req.Kind)))

	scope, err := scopeFor(identity, span, req.University)
	if err != nil {
		return err
	}

	var participants []export.Participant
	var submissions []export.Submission
	switch req.Kind {
	case types.ExportKindParticipants:
		rows, err := models.ListParticipants(ctx, h.DB, nil, scope)
		if err != nil {
			return fail(span, err, "failed to list participants")
		}
		participants = make([]export.Participant, len(rows))
		for i, r := range rows {
			participants[i] = export.Participant{
				RegisteredAt:      r.CreatedAt,
				University:        r.RoleUniversity,
				ParticipationType: r.ParticipationType,
				FirstName:         r.FirstName,
				LastName:          r.LastName,
				Department:        r.Department,
				YearOfStudy:       r.YearOfStudy,
				Phone:             r.Phone,
				Gender:            r.Gender,
			}
		}
	case types.ExportKindSubmissions:
		rows, err := models.ListSubmissions(ctx, h.DB, nil, scope)
		if err != nil {
			return fail(span, err, "failed to list submissions")
		}
		submissions = make([]export.Submission, len(rows))
		for i, r := range rows {
			submissions[i] = export.Submission{
				SubmittedAt:   r.SubmittedAt,
				UpdatedAt:     r.UpdatedAt,
				University:    r.RoleUniversity,
				ReferenceCode: r.ReferenceCode,
				Title:         r.Title,
				Category:      r.Category,
				Status:        r.Status,
				Submitter:     r.OwnerName(),
			}
		}
	}

	var buf bytes.Buffer
	n, err := export.Render(ctx, &buf, req.Kind, participants, submissions)
	if err != nil {
		return fail(span, err, "failed to render export")
	}

	audit.LogExportGenerated(auditContext(identity), req.Kind, scope, n)

	c.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", export.Filename(req.Kind, now)),
	)

	span.SetAttributes(attribute.Int("rows", n))
	span.SetStatus(codes.Ok, "generated export")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
