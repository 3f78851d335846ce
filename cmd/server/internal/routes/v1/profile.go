package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/filepolicy"
	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/types"
	"github.com/tggeco/challenge-api/internal/upload"
)

// GetProfile returns the caller's profile
//
//	@Summary		Get own profile
//	@Description	Get own profile
//	@Tags			profile
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{object}	types.Profile
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		404	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/profile/ [get]
func (h *Handler) GetProfile(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetProfile")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	id, err := principalID(identity, span)
	if err != nil {
		return err
	}

	profile, err := models.ByID[models.Profile](ctx, h.DB, id)
	if err != nil {
		return fail(span, notFoundOr(err, "profile"), "failed to load profile")
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, profileToTypes(
		profile,
		identity.Email,
		identity.Role,
		presign(ctx, h.photoUploader, profile.PhotoPath),
	))
}

//
//	@Summary		Update own profile
//	@Description	Update own profile
//	@Tags			profile
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			payload	body	types.ProfileRequest	true	"Profile"
//
//	@Success		200	{object}	types.Profile
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/profile/ [put]
func (h *Handler) UpdateProfile(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "UpdateProfile")
	defer span.End()

	identity, err := fromContext[*access.Identity](c, span, identityKey)
	if err != nil {
		return err
	}

	id, err := principalID(identity, span)
	if err != nil {
		return err
	}

	var req types.ProfileRequest
	if err := bindAndValidate(c, span, &req); err != nil {
		return err
	}

	profile, err := models.UpdateProfile(ctx, h.DB, id, &req)
	if err != nil {
		return fail(span, err, "failed to update profile")
	}

	span.SetStatus(codes.Ok, "updated profile")
	return c.JSON(http.StatusOK, profileToTypes(
		profile,
		identity.Email,
		identity.Role,
		presign(ctx, h.photoUploader, profile.PhotoPath),
	))
}

// Replaces the profile photo. The previous object is removed once the new one
// is recorded.
//
//	@Summary		Upload a profile photo
//	@Description	Upload a profile photo
//	@Tags			profile
//	@Accept			multipart/form-data
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Param			file	formData	file	true	"JPEG or PNG, up to 5 MB"
//
//	@Success		200	{object}	types.Profile
//
//	@Failure		400	{object}	types.Error
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		413	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/participant/profile/photo/ [put]
func (h *Handler) UploadPhoto(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "UploadPhoto")
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

	previous, err := models.ByID[models.Profile](ctx, h.DB, id)
	if err != nil {
		return fail(span, notFoundOr(err, "profile"), "failed to load profile")
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

	data, contentType, err := filepolicy.PhotoLimit.Check(f)
	if err != nil {
		return fail(span, err, "rejected photo")
	}

	path := fmt.Sprintf("%s/%d_%s", id, now.UnixMilli(), filepolicy.SanitizeName(header.Filename))
	span.SetAttributes(attribute.String("path", path))

	stored, err := upload.Store(ctx, h.photoUploader, data, contentType, path)
	if err != nil {
		return fail(span, err, "failed to store photo")
	}

	if err := models.SetProfilePhoto(ctx, h.DB, id, stored.Path); err != nil {
		_ = h.photoUploader.Delete(ctx, stored.Path)
		return fail(span, err, "failed to record photo")
	}

	if previous.PhotoPath != "" && previous.PhotoPath != stored.Path {
		if err := h.photoUploader.Delete(ctx, previous.PhotoPath); err != nil {
			logger.Logger.WarnContext(ctx, "failed to remove previous photo", "path", previous.PhotoPath, "error", err)
		}
	}

	previous.PhotoPath = stored.Path

	span.SetStatus(codes.Ok, "stored photo")
	return c.JSON(http.StatusOK, profileToTypes(
		previous,
		identity.Email,
		identity.Role,
		presign(ctx, h.photoUploader, stored.Path),
	))
}
