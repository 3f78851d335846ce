package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stores the instant the request was received under `key`. Window gates,
// deadlines and every timestamp the request writes are measured against it.
// The value is UTC at microsecond precision so it survives a round trip
// through postgres unchanged.
func RequestTime(key string, clock func() time.Time) echo.MiddlewareFunc {
	if clock == nil {
		clock = time.Now
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, span := tracer.Start(c.Request().Context(), "RequestTime", trace.WithAttributes(
				attribute.String("key", key),
			))
			defer span.End()

			now := clock().UTC().Truncate(time.Microsecond)
			c.Set(key, now)

			span.SetAttributes(attribute.String("request.time", now.Format(time.RFC3339Nano)))
			span.SetStatus(codes.Ok, "set request time")
			return next(c)
		}
	}
}
