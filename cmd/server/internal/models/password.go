package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
)

const PasswordResetTTL = time.Hour

// Only the digest of a reset token is stored
type PasswordReset struct {
	ExpiresAt time.Time
	UsedAt    *time.Time
	TokenHash string
	Model
	PrincipalID uuid.UUID
}

func (PasswordReset) TableName() string {
	return "password_resets"
}

func (r PasswordReset) GetID() uuid.UUID {
	return r.ID
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func setPassword(tx *gorm.DB, principalID uuid.UUID, password string) error {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	result := tx.Model(&Principal{}).Where("id = ?", principalID).Update("password_hash", hash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: principal", srverr.ErrNotFound)
	}
	return nil
}

// Requires the current password. Pending reset links stop working afterwards.
func ChangePassword(
	ctx context.Context,
	db *gorm.DB,
	principalID uuid.UUID,
	current string,
	next string,
	now time.Time,
) error {
	ctx, span := tracer.Start(ctx, "ChangePassword")
	defer span.End()

	span.SetAttributes(attribute.String("principal.id", principalID.String()))

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Principal
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", principalID).Error
		if err != nil {
			return notFound(err, "principal")
		}

		ok, err := argon2id.ComparePasswordAndHash(current, p.PasswordHash)
		if err != nil {
			return fmt.Errorf("failed to check password: %w", err)
		}
		if !ok {
			return srverr.NewValidationError("current_password", "current password is incorrect")
		}
		if current == next {
			return srverr.NewValidationError("new_password", "new password must differ from the current one")
		}

		if err := setPassword(tx, principalID, next); err != nil {
			return err
		}
		return spendResets(tx, principalID, now)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to change password")
		return err
	}

	span.SetStatus(codes.Ok, "changed password")
	return nil
}

func spendResets(tx *gorm.DB, principalID uuid.UUID, now time.Time) error {
	err := tx.Model(&PasswordReset{}).
		Where("principal_id = ? AND used_at IS NULL", principalID).
		Update("used_at", now).Error
	if err != nil {
		return fmt.Errorf("failed to expire reset links: %w", err)
	}
	return nil
}

// Issues a single use reset token for an active principal. An unknown or
// inactive email yields a nil principal and no error so callers cannot tell
// which addresses are registered. Earlier tokens stop working.
func RequestPasswordReset(
	ctx context.Context,
	db *gorm.DB,
	email string,
	now time.Time,
) (*Principal, string, error) {
	ctx, span := tracer.Start(ctx, "RequestPasswordReset")
	defer span.End()

	var principal *Principal
	var token string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Principal
		err := tx.Where("email = ?", NormalizeEmail(email)).First(&p).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to look up principal: %w", err)
		}
		if !p.Active.Valid || !p.Active.V {
			return nil
		}

		if err := spendResets(tx, p.ID, now); err != nil {
			return err
		}

		token, err = newToken()
		if err != nil {
			return fmt.Errorf("failed to generate reset token: %w", err)
		}

		reset := PasswordReset{
			PrincipalID: p.ID,
			TokenHash:   hashResetToken(token),
			ExpiresAt:   now.Add(PasswordResetTTL),
		}
		if err := tx.Create(&reset).Error; err != nil {
			return fmt.Errorf("failed to record reset: %w", err)
		}

		principal = &p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to request password reset")
		return nil, "", err
	}

	span.SetAttributes(attribute.Bool("issued", principal != nil))
	span.SetStatus(codes.Ok, "")
	return principal, token, nil
}

// Spends a reset token and sets the new password. Unknown, used and expired
// tokens all fail with ErrInvalidToken.
func ResetPassword(
	ctx context.Context,
	db *gorm.DB,
	token string,
	password string,
	now time.Time,
) (*Principal, error) {
	ctx, span := tracer.Start(ctx, "ResetPassword")
	defer span.End()

	if token == "" {
		span.SetStatus(codes.Error, "empty token")
		return nil, srverr.ErrInvalidToken
	}

	var principal Principal
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset PasswordReset
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hashResetToken(token), now).
			First(&reset).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return srverr.ErrInvalidToken
			}
			return fmt.Errorf("failed to look up reset: %w", err)
		}

		if err := tx.First(&principal, "id = ?", reset.PrincipalID).Error; err != nil {
			return notFound(err, "principal")
		}

		if err := setPassword(tx, principal.ID, password); err != nil {
			return err
		}
		return spendResets(tx, principal.ID, now)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reset password")
		return nil, err
	}

	span.SetAttributes(attribute.String("principal.id", principal.ID.String()))
	span.SetStatus(codes.Ok, "reset password")
	return &principal, nil
}
