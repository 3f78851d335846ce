package v1

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/audit"
	"github.com/tggeco/challenge-api/internal/filepolicy"
	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/types"
	"github.com/tggeco/challenge-api/internal/upload"
)

// Attaches a document or image to the caller's draft. The slot is checked
// before the bytes go to storage and again when the row is written.
//
//	@Summary		Attach a file to the draft
//	@Description	Attach a file to the draft
//	@Tags			submission
//	@Accept			multipart/form-data
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			kind	formData	string	true	"File kind"	Enums(document, image)
//	@Param			file	formData	file	true	"Document or image"
//
//	@Success		201	{object}	types.SubmissionFile
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		413	{object}	types.Error
//	@Failure		429	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/submission/files/ [post]
func (h *Handler) UploadFile(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "UploadFile")
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

	kind := types.FileKind(c.FormValue("kind"))
	span.SetAttributes(attribute.String("kind", string(kind)))

	limit, err := filepolicy.For(kind)
	if err != nil {
		return fail(span, err, "unknown file kind")
	}

	sub, err := models.PrepareFileUpload(ctx, h.DB, ownerID, kind)
	if err != nil {
		return fail(span, err, "no slot for file")
	}

	header, err := c.FormFile("file")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "missing file")
		return echo.NewHTTPError(http.StatusBadRequest, types.FieldError("file", "a file is required"))
	}

	f, err := header.Open()
	if err != nil {
		return fail(span, err, "failed to open upload")
	}
	defer f.Close()

	data, contentType, err := limit.Check(f)
	if err != nil {
		return fail(span, err, "rejected file")
	}

	name := filepolicy.SanitizeName(header.Filename)
	path := fmt.Sprintf("%s/%s/%d_%s", ownerID, sub.ID, now.UnixMilli(), name)
	span.SetAttributes(attribute.String("path", path))

	stored, err := upload.Store(ctx, h.submissionUploader, data, contentType, path)
	if err != nil {
		return fail(span, err, "failed to store file")
	}

	file := models.SubmissionFile{
		Kind:        kind,
		Name:        name,
		Path:        stored.Path,
		ContentType: stored.ContentType,
		SHA256:      stored.SHA256,
		Size:        stored.Size,
	}
	if err := models.AddSubmissionFile(ctx, h.DB, ownerID, &file); err != nil {
		// the draft changed under us, drop the orphaned object
		if derr := h.submissionUploader.Delete(context.WithoutCancel(ctx), stored.Path); derr != nil {
			logger.Logger.WarnContext(ctx, "failed to remove orphaned upload", "path", stored.Path, "error", derr)
		}
		return fail(span, err, "failed to record file")
	}

	audit.LogFileUploaded(auditContext(identity), audit.FileUploadedEvent{
		SubmissionID: file.SubmissionID.String(),
		FileID:       file.ID.String(),
		Kind:         file.Kind,
		ContentType:  file.ContentType,
		SHA256:       file.SHA256,
		Size:         file.Size,
	})

	span.SetStatus(codes.Ok, "uploaded file")
	return c.JSON(http.StatusCreated, fileToTypes(&file, presign(ctx, h.submissionUploader, file.Path)))
}

// DeleteFile removes a file from the caller's draft
//
//	@Summary		Remove a file from the draft
//	@Description	Remove a file from the draft
//	@Tags			submission
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			file_id	path	string	true	"File ID"	Format(uuid)
//
//	@Success		204	{string}	string	"No Content"
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		409	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/submission/files/{file_id}/ [delete]
func (h *Handler) DeleteFile(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "DeleteFile")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	ownerID, err := principalID(identity, span)
	if err != nil {
		return err
	}

	fileID, err := paramID(c, span, "file_id")
	if err != nil {
		return err
	}

	deleted, err := models.DeleteSubmissionFile(ctx, h.DB, ownerID, fileID,
		func(ctx context.Context, f *models.SubmissionFile) error {
			return h.submissionUploader.Delete(ctx, f.Path)
		},
	)
	if err != nil {
		return fail(span, err, "failed to delete file")
	}

	audit.LogFileDeleted(auditContext(identity), deleted.SubmissionID.String(), deleted.ID.String())

	span.SetStatus(codes.Ok, "deleted file")
	return c.NoContent(http.StatusNoContent)
}
