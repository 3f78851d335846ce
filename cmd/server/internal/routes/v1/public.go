package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/codes"

	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/types"
)

// GetSettings returns the challenge calendar
//
//	@Summary		Get challenge settings
//	@Description	Get challenge settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//
//	@Security		BasicAuth
//
//	@Success		200	{object}	types.ChallengeSettings
//
//	@Failure		401	{object}	types.Error
//	@Failure		403	{object}	types.Error
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/settings/ [get]
func (h *Handler) GetSettings(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetSettings")
	defer span.End()

	settings, err := models.GetSettings(ctx, h.DB)
	if err != nil {
		return fail(span, err, "failed to load settings")
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, settings)
}

// ListCategories lists the challenge categories
//
//	@Summary		List challenge categories
//	@Description	List challenge categories
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//
//	@Success		200	{array}	types.Category
//
//	@Failure		500	{object}	types.Error
//
//	@Router			/v1/categories/ [get]
func (h *Handler) ListCategories(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListCategories")
	defer span.End()

	categories, err := models.ListCategories(ctx, h.DB)
	if err != nil {
		return fail(span, err, "failed to list categories")
	}

	out := make([]types.Category, len(categories))
	for i := range categories {
		out[i] = categoryToTypes(&categories[i])
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, out)
}
