package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/types"
)

// Keyed by the principal it describes
type Profile struct {
	CreatedAt         time.Time
	UpdatedAt         time.Time
	University        *types.University
	ParticipationType *types.ParticipationType
	FirstName         string
	LastName          string
	Phone             string
	Gender            string
	Department        string
	YearOfStudy       string
	PhotoPath         string
	ID                uuid.UUID `gorm:"primaryKey"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p Profile) GetID() uuid.UUID {
	return p.ID
}

func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Advisory only, nothing is gated on it
func (p Profile) Complete() bool {
	for _, v := range []string{p.FirstName, p.LastName, p.Phone, p.Department, p.YearOfStudy} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return p.University != nil && p.ParticipationType != nil
}

func profileFromRequest(id uuid.UUID, req *types.ProfileRequest) Profile {
	university := req.University
	return Profile{
		ID:                id,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		Phone:             strings.TrimSpace(req.Phone),
		Gender:            req.Gender,
		University:        &university,
		Department:        strings.TrimSpace(req.Department),
		YearOfStudy:       req.YearOfStudy,
		ParticipationType: req.ParticipationType,
	}
}

// The university on the profile is descriptive. Scoping always reads the role record.
func UpdateProfile(
	ctx context.Context,
	db *gorm.DB,
	id uuid.UUID,
	req *types.ProfileRequest,
) (*Profile, error) {
	ctx, span := tracer.Start(ctx, "UpdateProfile")
	defer span.End()

	db = db.WithContext(ctx)

	updated := profileFromRequest(id, req)
	result := db.Model(&Profile{ID: id}).Select(
		"first_name", "last_name", "phone", "gender", "university",
		"department", "year_of_study", "participation_type",
	).Updates(&updated)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to update profile")
		return nil, fmt.Errorf("failed to update profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, notFound(gorm.ErrRecordNotFound, "profile")
	}

	p, err := ByID[Profile](ctx, db, id)
	if err != nil {
		return nil, notFound(err, "profile")
	}

	span.SetStatus(codes.Ok, "updated profile")
	return p, nil
}

func SetProfilePhoto(ctx context.Context, db *gorm.DB, id uuid.UUID, path string) error {
	ctx, span := tracer.Start(ctx, "SetProfilePhoto")
	defer span.End()

	result := db.WithContext(ctx).Model(&Profile{ID: id}).Update("photo_path", path)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to set profile photo")
		return fmt.Errorf("failed to set profile photo: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "profile")
	}

	return nil
}

func setParticipationType(tx *gorm.DB, id uuid.UUID, pt types.ParticipationType) error {
	return tx.Model(&Profile{ID: id}).Update("participation_type", pt).Error
}

// Participant listing row, university comes from the role record
type ParticipantRow struct {
	RoleUniversity *types.University
	Email          string
	Profile
}

func participantRowsQuery(db *gorm.DB) *gorm.DB {
	return db.Table("profiles").
		Select("profiles.*, principal.email AS email, user_roles.university AS role_university").
		Joins("JOIN principal ON principal.id = profiles.id").
		Joins("JOIN user_roles ON user_roles.principal_id = profiles.id").
		Where("user_roles.role = ?", types.RoleParticipant)
}

// A participant outside of scope reads as not found
func ParticipantByID(
	ctx context.Context,
	db *gorm.DB,
	id uuid.UUID,
	scope *types.University,
) (*ParticipantRow, error) {
	ctx, span := tracer.Start(ctx, "ParticipantByID")
	defer span.End()

	query := participantRowsQuery(db.WithContext(ctx)).Where("profiles.id = ?", id)
	if scope != nil {
		query = query.Where("user_roles.university = ?", *scope)
	}

	var row ParticipantRow
	result := query.Limit(1).Scan(&row)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to get participant")
		return nil, fmt.Errorf("failed to get participant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		span.SetStatus(codes.Ok, "participant not found")
		return nil, fmt.Errorf("%w: participant", srverr.ErrNotFound)
	}

	return &row, nil
}

func ListParticipants(
	ctx context.Context,
	db *gorm.DB,
	filter *types.ParticipantFilter,
	scope *types.University,
) ([]ParticipantRow, error) {
	ctx, span := tracer.Start(ctx, "ListParticipants")
	defer span.End()

	query := participantRowsQuery(db.WithContext(ctx))
	if scope != nil {
		query = query.Where("user_roles.university = ?", *scope)
	}
	if filter != nil {
		if filter.Type != nil {
			query = query.Where("profiles.participation_type = ?", *filter.Type)
		}
		if filter.Query != nil && strings.TrimSpace(*filter.Query) != "" {
			like := "%" + strings.ToLower(strings.TrimSpace(*filter.Query)) + "%"
			query = query.Where(
				"LOWER(profiles.first_name) LIKE ? OR LOWER(profiles.last_name) LIKE ? OR principal.email LIKE ?",
				like, like, like,
			)
		}
	}

	var rows []ParticipantRow
	if err := query.Order("profiles.created_at DESC").Scan(&rows).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list participants")
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	return rows, nil
}
