package v1

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/lifecycle"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/audit"
	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/notify"
	"github.com/tggeco/challenge-api/internal/types"
)

// TransitionStatus moves a submission to a new status
//
//	@Summary		Change submission status
//	@Description	Change submission status
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			submission_id	path	string	true	"Submission ID"	Format(uuid)
//	@Param			payload	body	types.TransitionRequest	true	"Target status"
//
//	@Success		200	{object}	types.Submission
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/submissions/{submission_id}/status/ [put]
func (h *Handler) TransitionStatus(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "TransitionStatus")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	submissionID, err := paramID(c, span, "submission_id")
	if err != nil {
		return err
	}

	var req types.TransitionRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	sub, from, err := models.TransitionStatus(ctx, h.DB, submissionID, req.Status, identity)
	if err != nil {
		return fail(span, err, "failed to transition status")
	}

	span.SetAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(sub.Status)),
	)

	audit.LogStatusTransition(auditContext(identity), sub.ID.String(), from, sub.Status)
	h.notifyStatus(ctx, sub)

	span.SetStatus(codes.Ok, "transitioned status")
	return c.JSON(http.StatusOK, submissionToTypes(sub, nil))
}

// Tells the owner about the new status when it is one they hear about
func (h *Handler) notifyStatus(ctx context.Context, sub *models.Submission) {
	if !lifecycle.Notifies(sub.Status) {
		return
	}

	owner, err := models.ByID[models.Principal](ctx, h.DB, sub.OwnerID)
	if err != nil {
		logger.Logger.WarnContext(ctx, "failed to load submission owner", "submission", sub.ID, "error", err)
		return
	}

	h.outbox.Enqueue(ctx, notify.StatusUpdate(
		owner.Email,
		h.firstName(ctx, owner.ID),
		sub.ReferenceCode,
		sub.Title,
		sub.Status,
	))
}

// SubmissionAssignments lists the judges on a submission
//
//	@Summary		List judges on a submission
//	@Description	List judges on a submission
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			submission_id	path	string	true	"Submission ID"	Format(uuid)
//
//	@Success		200	{array}	types.JudgeAssignment
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/submissions/{submission_id}/assignments/ [get]
func (h *Handler) SubmissionAssignments(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "SubmissionAssignments")
	defer span.End()

	sub, err := fromContext[*models.Submission](c, span, submissionKey)
	if err != nil {
		return err
	}

	rows, err := models.AssignmentsForSubmission(ctx, h.DB, sub.ID)
	if err != nil {
		return fail(span, err, "failed to list assignments")
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, assignmentsToTypes(rows))
}

//
//	@Summary		Assign a judge
//	@Description	Only submitted, under review and shortlisted submissions can be assigned.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.AssignRequest	true	"Judge and submission"
//
//	@Success		201	{object}	types.JudgeAssignment
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/assignments/ [post]
func (h *Handler) Assign(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Assign")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	var req types.AssignRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	// both are validated as uuids already
	judgeID := uuid.MustParse(req.JudgeID)
	submissionID := uuid.MustParse(req.SubmissionID)

	assignment, err := models.AssignJudge(ctx, h.DB, judgeID, submissionID, identity)
	if err != nil {
		return fail(span, err, "failed to assign judge")
	}

	audit.LogJudgeAssigned(
		auditContext(identity),
		assignment.ID.String(),
		assignment.JudgeID.String(),
		assignment.SubmissionID.String(),
	)

	span.SetStatus(codes.Ok, "assigned judge")
	return c.JSON(http.StatusCreated, types.JudgeAssignment{
		ID:           assignment.ID.String(),
		JudgeID:      assignment.JudgeID.String(),
		SubmissionID: assignment.SubmissionID.String(),
		CreatedAt:    assignment.CreatedAt,
	})
}

// Removing an assignment that does not exist still succeeds
//
//	@Summary		Remove a judge
//	@Description	Remove a judge
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			assignment_id	path	string	true	"Assignment ID"	Format(uuid)
//
//	@Success		204	{string}	string	"No Content"
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/assignments/{assignment_id}/ [delete]
func (h *Handler) Unassign(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Unassign")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	assignmentID, err := paramID(c, span, "assignment_id")
	if err != nil {
		return err
	}

	removed, err := models.UnassignJudge(ctx, h.DB, assignmentID, identity)
	if err != nil {
		return fail(span, err, "failed to unassign judge")
	}

	if removed != nil {
		audit.LogJudgeUnassigned(auditContext(identity), removed.ID.String())
	}

	span.SetAttributes(attribute.Bool("removed", removed != nil))
	span.SetStatus(codes.Ok, "unassigned judge")
	return c.NoContent(http.StatusNoContent)
}

//
//	@Summary		Get the leaderboard
//	@Description	Ranked by the mean of submitted judge totals. Ties share a rank.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{array}	types.LeaderboardEntry
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/leaderboard/ [get]
func (h *Handler) Leaderboard(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Leaderboard")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	rows, err := models.Leaderboard(ctx, h.DB, identity)
	if err != nil {
		return fail(span, err, "failed to compute leaderboard")
	}

	out := make([]types.LeaderboardEntry, len(rows))
	for i, r := range rows {
		out[i] = types.LeaderboardEntry{
			SubmissionID:  r.SubmissionID,
			ReferenceCode: r.Submission.ReferenceCode,
			Title:         r.Submission.Title,
			Category:      r.Submission.Category,
			Status:        r.Submission.Status,
			Rank:          r.Rank,
			AverageScore:  r.Average,
			JudgeCount:    r.JudgeCount,
		}
	}

	span.SetAttributes(attribute.Int("entries", len(out)))
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, out)
}

//
//	@Summary		Replace challenge settings
//	@Description	Replace challenge settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.ChallengeSettings	true	"Settings"
//
//	@Success		200	{object}	types.ChallengeSettings
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/settings/ [put]
func (h *Handler) UpdateSettings(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "UpdateSettings")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	var req types.ChallengeSettings
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	settings, err := models.UpdateSettings(ctx, h.DB, &req, identity)
	if err != nil {
		return fail(span, err, "failed to update settings")
	}

	audit.LogSettingsUpdated(auditContext(identity), settings.JudgingLocked)

	span.SetStatus(codes.Ok, "updated settings")
	return c.JSON(http.StatusOK, settings)
}

//
//	@Summary		Update challenge settings
//	@Description	Fields left out keep their value. An explicit null clears a window edge.
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.SettingsPatch	true	"Settings to change"
//
//	@Success		200	{object}	types.ChallengeSettings
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/settings/ [patch]
func (h *Handler) PatchSettings(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "PatchSettings")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	var req types.SettingsPatch
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	settings, err := models.PatchSettings(ctx, h.DB, &req, identity)
	if err != nil {
		return fail(span, err, "failed to patch settings")
	}

	audit.LogSettingsUpdated(auditContext(identity), settings.JudgingLocked)

	span.SetStatus(codes.Ok, "patched settings")
	return c.JSON(http.StatusOK, settings)
}

//
//	@Summary		List judging criteria
//	@Description	List judging criteria
//	@Tags			criteria
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{array}	types.Criterion
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/criteria/ [get]
func (h *Handler) ListCriteria(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListCriteria")
	defer span.End()

	criteria, err := models.ListCriteria(ctx, h.DB)
	if err != nil {
		return fail(span, err, "failed to list criteria")
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, criteriaToTypes(criteria))
}

//
//	@Summary		Create a judging criterion
//	@Description	Create a judging criterion
//	@Tags			criteria
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.CriterionRequest	true	"Criterion"
//
//	@Success		201	{object}	types.Criterion
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/criteria/ [post]
func (h *Handler) CreateCriterion(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreateCriterion")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	var req types.CriterionRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	criterion, err := models.CreateCriterion(ctx, h.DB, &req, identity)
	if err != nil {
		return fail(span, err, "failed to create criterion")
	}

	span.SetStatus(codes.Ok, "created criterion")
	return c.JSON(http.StatusCreated, criterionToTypes(criterion))
}

//
//	@Summary		Update a judging criterion
//	@Description	Update a judging criterion
//	@Tags			criteria
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			criterion_id	path	string	true	"Criterion ID"	Format(uuid)
//	@Param			payload	body	types.CriterionRequest	true	"Criterion"
//
//	@Success		200	{object}	types.Criterion
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/criteria/{criterion_id}/ [put]
func (h *Handler) UpdateCriterion(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "UpdateCriterion")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	id, err := paramID(c, span, "criterion_id")
	if err != nil {
		return err
	}

	var req types.CriterionRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	criterion, err := models.UpdateCriterion(ctx, h.DB, id, &req, identity)
	if err != nil {
		return fail(span, err, "failed to update criterion")
	}

	span.SetStatus(codes.Ok, "updated criterion")
	return c.JSON(http.StatusOK, criterionToTypes(criterion))
}

//
//	@Summary		Delete a judging criterion
//	@Description	Delete a judging criterion
//	@Tags			criteria
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			criterion_id	path	string	true	"Criterion ID"	Format(uuid)
//
//	@Success		204	{string}	string	"No Content"
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/criteria/{criterion_id}/ [delete]
func (h *Handler) DeleteCriterion(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "DeleteCriterion")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	id, err := paramID(c, span, "criterion_id")
	if err != nil {
		return err
	}

	if err := models.DeleteCriterion(ctx, h.DB, id, identity); err != nil {
		return fail(span, err, "failed to delete criterion")
	}

	span.SetStatus(codes.Ok, "deleted criterion")
	return c.NoContent(http.StatusNoContent)
}

//
//	@Summary		Create a category
//	@Description	Create a category
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.CategoryRequest	true	"Category"
//
//	@Success		201	{object}	types.Category
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/categories/ [post]
func (h *Handler) CreateCategory(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreateCategory")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	var req types.CategoryRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	category, err := models.CreateCategory(ctx, h.DB, &req, identity)
	if err != nil {
		return fail(span, err, "failed to create category")
	}

	span.SetStatus(codes.Ok, "created category")
	return c.JSON(http.StatusCreated, categoryToTypes(category))
}

//
//	@Summary		Delete a category
//	@Description	Delete a category
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			category_id	path	string	true	"Category ID"	Format(uuid)
//
//	@Success		204	{string}	string	"No Content"
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/categories/{category_id}/ [delete]
func (h *Handler) DeleteCategory(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "DeleteCategory")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	id, err := paramID(c, span, "category_id")
	if err != nil {
		return err
	}

	if err := models.DeleteCategory(ctx, h.DB, id, identity); err != nil {
		return fail(span, err, "failed to delete category")
	}

	span.SetStatus(codes.Ok, "deleted category")
	return c.NoContent(http.StatusNoContent)
}

//
//	@Summary		Create a coordinator
//	@Description	The generated initial password is only returned in this response.
//	@Tags			staff
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.CreateStaffRequest	true	"Coordinator"
//
//	@Success		201	{object}	types.Staff
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/coordinators/ [post]
func (h *Handler) ProvisionCoordinator(c echo.Context) error {
	return h.provisionStaff(c, types.RoleCoordinator)
}

//
//	@Summary		Create a judge
//	@Description	The generated initial password is only returned in this response.
//	@Tags			staff
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.CreateStaffRequest	true	"Judge"
//
//	@Success		201	{object}	types.Staff
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/judges/ [post]
func (h *Handler) ProvisionJudge(c echo.Context) error {
	return h.provisionStaff(c, types.RoleJudge)
}

// The generated password is returned here once and emailed, it is never stored
// in the clear
func (h *Handler) provisionStaff(c echo.Context, role types.Role) error {
	ctx, span := tracer.Start(c.Request().Context(), "ProvisionStaff")
	defer span.End()

	span.SetAttributes(attribute.String("role", string(role)))

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	var req types.CreateStaffRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	staff, err := models.ProvisionStaff(ctx, h.DB, identity, role, &req)
	if err != nil {
		return fail(span, err, "failed to provision staff")
	}

	audit.LogPrincipalCreated(auditContext(identity), staff.Principal.ID.String(), role, staff.Role.University)

	name := staff.Profile.FirstName
	switch role {
	case types.RoleCoordinator:
		h.outbox.Enqueue(ctx, notify.CoordinatorWelcome(
			staff.Principal.Email,
			name,
			*staff.Role.University,
			staff.InitialPassword,
		))
	case types.RoleJudge:
		h.outbox.Enqueue(ctx, notify.JudgeWelcome(staff.Principal.Email, name, staff.InitialPassword))
	}

	span.SetAttributes(attribute.String("principal.id", staff.Principal.ID.String()))
	span.SetStatus(codes.Ok, "provisioned staff")
	return c.JSON(http.StatusCreated, staffToTypes(staff))
}

// ListCoordinators lists coordinators
//
//	@Summary		List coordinators
//	@Description	List coordinators
//	@Tags			staff
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{array}	types.Staff
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/coordinators/ [get]
func (h *Handler) ListCoordinators(c echo.Context) error {
	return h.listStaff(c, types.RoleCoordinator)
}

//
//	@Summary		List judges
//	@Description	List judges
//	@Tags			staff
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{array}	types.Staff
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/admin/judges/ [get]
func (h *Handler) ListJudges(c echo.Context) error {
	return h.listStaff(c, types.RoleJudge)
}

// Initial passwords are never shown again
func (h *Handler) listStaff(c echo.Context, role types.Role) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListStaff")
	defer span.End()

	span.SetAttributes(attribute.String("role", string(role)))

	staff, err := models.ListStaff(ctx, h.DB, role)
	if err != nil {
		return fail(span, err, "failed to list staff")
	}

	out := make([]types.Staff, len(staff))
	for i := range staff {
		out[i] = staffToTypes(&staff[i])
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, out)
}
