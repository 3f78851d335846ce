package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/audit"
	"github.com/tggeco/challenge-api/internal/notify"
	"github.com/tggeco/challenge-api/internal/types"
)

// Submission with its files signed for download
func (h *Handler) ownSubmission(ctx context.Context, sub *models.Submission) (types.Submission, error) {
	files, err := models.FilesForSubmission(ctx, h.DB, sub.ID)
	if err != nil {
		return types.Submission{}, err
	}

	out := submissionToTypes(sub, filesToTypes(ctx, h.submissionUploader, files))
	out.AutosaveIntervalSeconds = h.config.App.AutosaveIntervalSeconds
	return out, nil
}

// GetSubmission returns the caller's submission
//
//	@Summary		Get own submission
//	@Description	Get own submission
//	@Tags			submission
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{object}	types.Submission
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/submission/ [get]
func (h *Handler) GetSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetSubmission")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	ownerID, err := principalID(identity, span)
	if err != nil {
		return err
	}

	sub, err := models.SubmissionByOwner(ctx, h.DB, ownerID)
	if err != nil {
		return fail(span, err, "no submission")
	}

	out, err := h.ownSubmission(ctx, sub)
	if err != nil {
		return fail(span, err, "failed to load files")
	}

	span.SetAttributes(attribute.String("reference_code", sub.ReferenceCode))
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, out)
}

// Creates the draft on first call. Autosave and explicit saves both land here.
//
//	@Summary		Save the submission draft
//	@Description	Creates the draft on first call. Only fields present in the body are written. Locked once submitted.
//	@Tags			submission
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.SubmissionDraftRequest	true	"Draft fields"
//
//	@Success		200	{object}	types.Submission
//	@Success		201	{object}	types.Submission
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		429	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/submission/ [put]
func (h *Handler) SaveDraft(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "SaveDraft")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	now, err := fromContext[time.Time](c, span, timeKey)
	if err != nil {
		return err
	}

	ownerID, err := principalID(identity, span)
	if err != nil {
		return err
	}

	var req types.SubmissionDraftRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	sub, created, err := models.SaveDraft(ctx, h.DB, ownerID, &req, h.config.App.ReferencePrefix, now)
	if err != nil {
		return fail(span, err, "failed to save draft")
	}

	span.SetAttributes(
		attribute.String("reference_code", sub.ReferenceCode),
		attribute.Bool("created", created),
	)

	audit.LogSubmissionSaved(auditContext(identity), sub.ID.String(), sub.ReferenceCode, sub.CurrentStep, created)

	out, err := h.ownSubmission(ctx, sub)
	if err != nil {
		return fail(span, err, "failed to load files")
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	span.SetStatus(codes.Ok, "saved draft")
	return c.JSON(status, out)
}

// Submit formally submits the caller's draft
//
//	@Summary		Submit the draft
//	@Description	Checks completeness, assigns the reference code and locks the submission.
//	@Tags			submission
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{object}	types.Submission
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		429	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/submission/submit/ [post]
func (h *Handler) Submit(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Submit")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	now, err := fromContext[time.Time](c, span, timeKey)
	if err != nil {
		return err
	}

	ownerID, err := principalID(identity, span)
	if err != nil {
		return err
	}

	sub, err := models.Submit(ctx, h.DB, ownerID, now)
	if err != nil {
		return fail(span, err, "failed to submit")
	}

	span.SetAttributes(attribute.String("reference_code", sub.ReferenceCode))

	audit.LogSubmissionSubmitted(auditContext(identity), sub.ID.String(), sub.ReferenceCode)

	h.outbox.Enqueue(ctx, notify.SubmissionReceived(
		identity.Email,
		h.firstName(ctx, ownerID),
		sub.ReferenceCode,
		sub.Title,
	))

	out, err := h.ownSubmission(ctx, sub)
	if err != nil {
		return fail(span, err, "failed to load files")
	}

	span.SetStatus(codes.Ok, "submitted")
	return c.JSON(http.StatusOK, out)
}

// Empty when the profile cannot be read, notifications fall back to a generic greeting
func (h *Handler) firstName(ctx context.Context, id uuid.UUID) string {
	profile, err := models.ByID[models.Profile](ctx, h.DB, id)
	if err != nil {
		return ""
	}
	return profile.FirstName
}
