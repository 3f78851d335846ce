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
	"github.com/tggeco/challenge-api/internal/types"
)

// MyAssignments lists the caller's assigned submissions
//
//	@Summary		List own assignments
//	@Description	List own assignments
//	@Tags			judging
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{array}	types.JudgeAssignment
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/judge/assignments/ [get]
func (h *Handler) MyAssignments(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "MyAssignments")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	judgeID, err := principalID(identity, span)
	if err != nil {
		return err
	}

	rows, err := models.AssignmentsForJudge(ctx, h.DB, judgeID)
	if err != nil {
		return fail(span, err, "failed to list assignments")
	}

	out := assignmentsToTypes(rows)

	span.SetAttributes(attribute.Int("assignments", len(out)))
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, out)
}

// Content of an assigned submission with nothing that identifies its owner
//
//	@Summary		Get an assigned submission
//	@Description	Content only. Nothing identifying the owner is returned.
//	@Tags			judging
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			submission_id	path	string	true	"Submission ID"	Format(uuid)
//
//	@Success		200	{object}	types.BlindSubmission
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/judge/submissions/{submission_id}/ [get]
func (h *Handler) BlindSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "BlindSubmission")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	settings, err := fromContext[*types.ChallengeSettings](c, span, settingsKey)
	if err != nil {
		return err
	}

	submissionID, err := paramID(c, span, "submission_id")
	if err != nil {
		return err
	}

	blind, err := models.BlindSubmissionForJudge(ctx, h.DB, identity, submissionID)
	if err != nil {
		return fail(span, err, "failed to load submission")
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, types.BlindSubmission{
		ID:                blind.Submission.ID.String(),
		ReferenceCode:     blind.Submission.ReferenceCode,
		SubmissionContent: blind.Submission.Content(),
		Files:             filesToTypes(ctx, h.submissionUploader, blind.Files),
		Criteria:          criteriaToTypes(blind.Criteria),
		MyScore:           scoreToTypes(blind.MyScore),
		JudgingLocked:     settings.JudgingLocked,
	})
}

//
//	@Summary		Score an assigned submission
//	@Description	Scores may be revised until submitted. Closed outside the judging window or while judging is locked.
//	@Tags			judging
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			submission_id	path	string	true	"Submission ID"	Format(uuid)
//	@Param			payload	body	types.ScoreRequest	true	"Scores per criterion"
//
//	@Success		200	{object}	types.Score
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/judge/submissions/{submission_id}/score/ [put]
func (h *Handler) RecordScore(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "RecordScore")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	now, err := fromContext[time.Time](c, span, timeKey)
	if err != nil {
		return err
	}

	submissionID, err := paramID(c, span, "submission_id")
	if err != nil {
		return err
	}

	var req types.ScoreRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	score, err := models.RecordScore(ctx, h.DB, identity, submissionID, &req, now)
	if err != nil {
		return fail(span, err, "failed to record score")
	}

	audit.LogScoreRecorded(
		auditContext(identity),
		score.ID.String(),
		score.SubmissionID.String(),
		score.TotalScore,
		score.IsSubmitted,
	)

	span.SetAttributes(attribute.Float64("total", score.TotalScore))
	span.SetStatus(codes.Ok, "recorded score")
	return c.JSON(http.StatusOK, scoreToTypes(score))
}
