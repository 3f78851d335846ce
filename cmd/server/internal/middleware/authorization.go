package middleware

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/response"
	"github.com/tggeco/challenge-api/internal/logger"
)

// Checks that `identity` may perform every one of `ops`
func hasCapabilities(
	ctx context.Context,
	identity *access.Identity,
	ops []access.Operation,
	l *slog.Logger,
) bool {
	ctx, span := tracer.Start(ctx, "hasCapabilities")
	defer span.End()

	for _, op := range ops {
		if !identity.Can(op) {
			l.DebugContext(ctx, "missing capability", "op", op, "role", identity.Role)
			span.SetStatus(codes.Ok, "missing capability")
			return false
		}
	}

	l.DebugContext(ctx, "granting access")
	span.SetStatus(codes.Ok, "granting access")
	return true
}

// The identity stored under `identityKey` must be allowed every one of `ops`
func RequireCapability(identityKey string, ops ...access.Operation) echo.MiddlewareFunc {
	l := logger.Logger.With("identityKey", identityKey, "ops", ops)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), "RequireCapability", trace.WithAttributes(
				attribute.String("identityKey", identityKey),
			))
			defer span.End()

			identity, ok := c.Get(identityKey).(*access.Identity)
			if !ok {
				l.WarnContext(ctx, "failed to get identity")
				span.SetStatus(codes.Error, "failed to get identity")
				return response.UnauthorizedError
			}

			if !hasCapabilities(ctx, identity, ops, l) {
				span.SetStatus(codes.Ok, "forbidden")
				return response.ForbiddenError
			}

			span.SetStatus(codes.Ok, "checked capabilities")
			return next(c)
		}
	}
}
