package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/types"
)

const settingsRowID = 1

// Singleton row holding the competition calendar
type ChallengeSettings struct {
	UpdatedAt          time.Time
	RegistrationOpen   *time.Time
	RegistrationClose  *time.Time
	SubmissionOpen     *time.Time
	SubmissionDeadline *time.Time
	JudgingStart       *time.Time
	JudgingEnd         *time.Time
	ResultsDate        *time.Time
	ID                 int `gorm:"primaryKey"`
	JudgingLocked      bool
}

func (ChallengeSettings) TableName() string {
	return "challenge_settings"
}

func (s ChallengeSettings) Types() types.ChallengeSettings {
	return types.ChallengeSettings{
		RegistrationOpen:   s.RegistrationOpen,
		RegistrationClose:  s.RegistrationClose,
		SubmissionOpen:     s.SubmissionOpen,
		SubmissionDeadline: s.SubmissionDeadline,
		JudgingStart:       s.JudgingStart,
		JudgingEnd:         s.JudgingEnd,
		ResultsDate:        s.ResultsDate,
		JudgingLocked:      s.JudgingLocked,
	}
}

// Latest committed settings. A missing row reads as an open calendar.
func GetSettings(ctx context.Context, db *gorm.DB) (*types.ChallengeSettings, error) {
	ctx, span := tracer.Start(ctx, "GetSettings")
	defer span.End()

	var s ChallengeSettings
	err := db.WithContext(ctx).First(&s, "id = ?", settingsRowID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.ChallengeSettings{}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load settings")
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	t := s.Types()
	return &t, nil
}

func UpdateSettings(
	ctx context.Context,
	db *gorm.DB,
	in *types.ChallengeSettings,
	actor *access.Identity,
) (*types.ChallengeSettings, error) {
	ctx, span := tracer.Start(ctx, "UpdateSettings")
	defer span.End()

	if err := actor.Require(access.OpManageSettings); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actor may not update settings")
		return nil, err
	}

	s := ChallengeSettings{
		ID:                 settingsRowID,
		RegistrationOpen:   in.RegistrationOpen,
		RegistrationClose:  in.RegistrationClose,
		SubmissionOpen:     in.SubmissionOpen,
		SubmissionDeadline: in.SubmissionDeadline,
		JudgingStart:       in.JudgingStart,
		JudgingEnd:         in.JudgingEnd,
		ResultsDate:        in.ResultsDate,
		JudgingLocked:      in.JudgingLocked,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&s).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save settings")
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	t := s.Types()
	span.SetStatus(codes.Ok, "updated settings")
	return &t, nil
}

// Applies `patch` on top of the stored settings under a row lock
func PatchSettings(
	ctx context.Context,
	db *gorm.DB,
	patch *types.SettingsPatch,
	actor *access.Identity,
) (*types.ChallengeSettings, error) {
	ctx, span := tracer.Start(ctx, "PatchSettings")
	defer span.End()

	if err := actor.Require(access.OpManageSettings); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actor may not update settings")
		return nil, err
	}

	var out *types.ChallengeSettings
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current ChallengeSettings
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, "id = ?", settingsRowID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		next := patch.Apply(current.Types())
		out, err = UpdateSettings(ctx, tx, &next, actor)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to patch settings")
		return nil, err
	}

	span.SetStatus(codes.Ok, "patched settings")
	return out, nil
}

type ChallengeCategory struct {
	Name        string
	Description string
	Model
}

func (ChallengeCategory) TableName() string {
	return "challenge_categories"
}

func (c ChallengeCategory) GetID() uuid.UUID {
	return c.ID
}

func ListCategories(ctx context.Context, db *gorm.DB) ([]ChallengeCategory, error) {
	var categories []ChallengeCategory
	if err := db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func CreateCategory(
	ctx context.Context,
	db *gorm.DB,
	req *types.CategoryRequest,
	actor *access.Identity,
) (*ChallengeCategory, error) {
	if err := actor.Require(access.OpManageCategories); err != nil {
		return nil, err
	}

	c := ChallengeCategory{Name: req.Name, Description: req.Description}
	if err := db.WithContext(ctx).Create(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, srverr.NewValidationError("name", "category already exists")
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &c, nil
}

func DeleteCategory(ctx context.Context, db *gorm.DB, id uuid.UUID, actor *access.Identity) error {
	if err := actor.Require(access.OpManageCategories); err != nil {
		return err
	}

	if err := db.WithContext(ctx).Where("id = ?", id).Delete(&ChallengeCategory{}).Error; err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}
