package middleware

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/cmd/server/internal/response"
	"github.com/tggeco/challenge-api/internal/logger"
)

// Used when doing a fake compare in the error case of BasicAuthValidator
var defaultHashForError string

const name string = "github.com/tggeco/challenge-api/cmd/server/internal/middleware"

var tracer = otel.Tracer(name)

type Handler struct {
	DB *gorm.DB
}

// Generate a hash
func init() {
	var err error

	defaultHashForError, err = argon2id.CreateHash(
		"S1c8mHq0b6tV+o3ZlZ7gB2xJfQk4nNw9yR5uE1aP0dC6hT3sL8vK2mX7jG4iW9e=",
		argon2id.DefaultParams,
	)
	if err != nil {
		logger.Logger.Error("error creating default hash", "error", err)
		os.Exit(1)
	}
}

// Does a fake hash and compare for a hard coded password. Used when BasicAuthValidator hits an error or a nonexistent user.
func fakePasswordHash(ctx context.Context) {
	_, span := tracer.Start(ctx, "fakePasswordHash")
	defer span.End()

	_, err := argon2id.ComparePasswordAndHash("i am a very real password", defaultHashForError)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to compare fake password with default hash for error")
		return
	}

	span.AddEvent("compared fake password and default hash for error")
}

// Queries a nonexistent principal. Used when BasicAuthValidator is given something that is not an email.
func fakeDBQuery(ctx context.Context, db *gorm.DB) {
	ctx, span := tracer.Start(ctx, "fakeDBQuery")
	defer span.End()

	_, err := models.PrincipalByEmail(ctx, db, "nobody@invalid.invalid")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make fake db query")
		return
	}

	span.AddEvent("completed database query for fake email")
}

// Validates basic auth credentials (email and password) against the database
// and stores the principal and its resolved identity on the context
func (h *Handler) BasicAuthValidator(email, password string, c echo.Context) (bool, error) {
	ctx, span := tracer.Start(c.Request().Context(), "BasicAuthValidator")
	defer span.End()

	db := h.DB.WithContext(ctx)

	if !strings.Contains(email, "@") {
		span.SetStatus(codes.Ok, "username is not an email")
		// Waste time for malformed usernames
		fakeDBQuery(ctx, db)
		fakePasswordHash(ctx)
		return false, nil
	}

	span.AddEvent("getting principal by email")
	principal, err := models.PrincipalByEmail(ctx, db, email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db error when searching for principal")

		fakePasswordHash(ctx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// ok because Ok > Error
			span.SetStatus(codes.Ok, "principal not found")
			return false, nil
		}

		return false, response.InternalServerError
	}

	span.SetAttributes(
		attribute.String("principal.id", principal.ID.String()),
		attribute.Bool("active.valid", principal.Active.Valid),
		attribute.Bool("active.value", principal.Active.V),
	)

	span.AddEvent("checking hash")
	comparison, oldParams, err := argon2id.CheckHash(password, principal.PasswordHash)
	// All expensive ops have been performed that may result in a forbidden
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check password")
		return false, response.InternalServerError
	}

	if !principal.Active.Valid || !principal.Active.V {
		span.AddEvent("principal is not active")
		return false, nil
	}

	if !comparison {
		span.AddEvent("failed login attempt")
		return false, nil
	}

	if !reflect.DeepEqual(oldParams, argon2id.DefaultParams) {
		span.AddEvent("updating principal with the new params")
		newHash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create new hash for password")
			return false, response.InternalServerError
		}

		err = db.Model(principal).Update("password_hash", newHash).Error
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to save new hash to the database")
			return false, response.InternalServerError
		}
		principal.PasswordHash = newHash
	}

	identity, err := models.ResolveIdentity(ctx, db, principal)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve identity")
		return false, response.InternalServerError
	}

	span.AddEvent("successful login attempt")
	span.SetAttributes(attribute.String("role", string(identity.Role)))
	c.Set("principal", principal)
	c.Set("identity", identity)

	return true, nil
}
