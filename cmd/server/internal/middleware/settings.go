package middleware

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/cmd/server/internal/response"
	"github.com/tggeco/challenge-api/internal/types"
)

// Loads the challenge settings once for the request and stores them under `key`
func (h *Handler) Settings(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), "Settings", trace.WithAttributes(
				attribute.String("key", key),
			))
			defer span.End()

			settings, err := models.GetSettings(ctx, h.DB)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to load settings")
				return response.InternalServerError
			}

			c.Set(key, settings)

			span.SetStatus(codes.Ok, "loaded settings")
			return next(c)
		}
	}
}

// Rejects the request when `gate` reports the window closed at the request time.
// Requires the Settings and Time middlewares to run first.
func Window(
	settingsKey string,
	timeKey string,
	gate func(*types.ChallengeSettings, time.Time) error,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, span := tracer.Start(c.Request().Context(), "Window")
			defer span.End()

			settings, ok := c.Get(settingsKey).(*types.ChallengeSettings)
			if !ok {
				span.RecordError(srverr.ErrTypeAssertMismatch)
				span.SetStatus(codes.Error, fmt.Sprintf("settings: %s", srverr.ErrTypeAssertMismatch))
				return response.InternalServerError
			}

			now, ok := c.Get(timeKey).(time.Time)
			if !ok {
				span.RecordError(srverr.ErrTypeAssertMismatch)
				span.SetStatus(codes.Error, fmt.Sprintf("time: %s", srverr.ErrTypeAssertMismatch))
				return response.InternalServerError
			}

			if err := gate(settings, now); err != nil {
				span.SetStatus(codes.Ok, "window closed")
				return response.FromError(err)
			}

			span.SetStatus(codes.Ok, "window open")
			return next(c)
		}
	}
}
