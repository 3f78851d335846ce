package models

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/config"
	"github.com/tggeco/challenge-api/internal/types"
)

type Principal struct {
	Email        string
	PasswordHash string // argon2id hash
	Model
	Active datatypes.Null[bool]
}

func (Principal) TableName() string {
	return "principal"
}

func (p Principal) GetID() uuid.UUID {
	return p.ID
}

// One row per principal. A principal without a row is a participant.
type UserRole struct {
	University  *types.University
	Role        types.Role
	PrincipalID uuid.UUID `gorm:"primaryKey"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

func (r UserRole) GetID() uuid.UUID {
	return r.PrincipalID
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func PrincipalByEmail(ctx context.Context, db *gorm.DB, email string) (*Principal, error) {
	ctx, span := tracer.Start(ctx, "PrincipalByEmail")
	defer span.End()

	var p Principal
	err := db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&p).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get principal by email")
		return nil, err
	}

	return &p, nil
}

// Single lookup of the role record, defaulting to participant
func ResolveIdentity(ctx context.Context, db *gorm.DB, p *Principal) (*access.Identity, error) {
	ctx, span := tracer.Start(ctx, "ResolveIdentity")
	defer span.End()

	span.SetAttributes(attribute.String("principal.id", p.ID.String()))

	identity := access.Identity{
		PrincipalID: p.ID.String(),
		Email:       p.Email,
		Role:        types.RoleParticipant,
	}

	var role UserRole
	result := db.WithContext(ctx).Where("principal_id = ?", p.ID).Limit(1).Find(&role)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to look up role")
		return nil, fmt.Errorf("failed to look up role: %w", result.Error)
	}

	if result.RowsAffected == 1 {
		identity.Role = role.Role
		identity.University = role.University
	}

	span.SetAttributes(attribute.String("role", string(identity.Role)))
	return &identity, nil
}

func createPrincipal(
	ctx context.Context,
	tx *gorm.DB,
	email string,
	password string,
	role types.Role,
	university *types.University,
) (*Principal, error) {
	ctx, span := tracer.Start(ctx, "createPrincipal")
	defer span.End()

	tx = tx.WithContext(ctx)

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p := Principal{
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		Active:       NewNullFromData(true),
	}
	if err := tx.Create(&p).Error; err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetStatus(codes.Ok, "email already registered")
			return nil, srverr.NewValidationError("email", "a user with this email already exists")
		}
		span.SetStatus(codes.Error, "failed to create principal")
		return nil, fmt.Errorf("failed to create principal: %w", err)
	}

	r := UserRole{PrincipalID: p.ID, Role: role, University: university}
	err = tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&r).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create role")
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return &p, nil
}

// Self service registration of a participant with its profile
func RegisterParticipant(
	ctx context.Context,
	db *gorm.DB,
	req *types.RegisterRequest,
) (*Principal, *Profile, error) {
	ctx, span := tracer.Start(ctx, "RegisterParticipant")
	defer span.End()

	var principal *Principal
	var profile *Profile
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		university := req.University
		p, err := createPrincipal(ctx, tx, req.Email, req.Password, types.RoleParticipant, &university)
		if err != nil {
			return err
		}

		prof := profileFromRequest(p.ID, &req.ProfileRequest)
		if err := tx.Create(&prof).Error; err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}

		principal = p
		profile = &prof
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to register participant")
		return nil, nil, err
	}

	span.SetAttributes(attribute.String("principal.id", principal.ID.String()))
	span.SetStatus(codes.Ok, "registered participant")
	return principal, profile, nil
}

func generatePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

type Staff struct {
	Principal       *Principal
	Profile         *Profile
	Role            UserRole
	InitialPassword string
}

// Admin issued coordinator or judge account. Judges never carry a university.
func ProvisionStaff(
	ctx context.Context,
	db *gorm.DB,
	actor *access.Identity,
	role types.Role,
	req *types.CreateStaffRequest,
) (*Staff, error) {
	ctx, span := tracer.Start(ctx, "ProvisionStaff")
	defer span.End()

	span.SetAttributes(attribute.String("role", string(role)))

	if err := actor.Require(access.OpProvisionStaff); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actor may not provision staff")
		return nil, err
	}

	var university *types.University
	switch role {
	case types.RoleCoordinator:
		if req.University == nil || !req.University.Valid() {
			return nil, srverr.NewValidationError("university", "coordinators need a university")
		}
		university = req.University
	case types.RoleJudge:
	default:
		return nil, srverr.NewValidationError("role", "only coordinators and judges can be provisioned")
	}

	password, err := generatePassword()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate password")
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}

	staff := Staff{InitialPassword: password}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := createPrincipal(ctx, tx, req.Email, password, role, university)
		if err != nil {
			return err
		}

		first, last := splitName(req.FullName)
		prof := Profile{ID: p.ID, FirstName: first, LastName: last, University: university}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "university"}),
		}).Create(&prof).Error
		if err != nil {
			return fmt.Errorf("failed to upsert profile: %w", err)
		}

		staff.Principal = p
		staff.Profile = &prof
		staff.Role = UserRole{PrincipalID: p.ID, Role: role, University: university}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to provision staff")
		return nil, err
	}

	span.SetStatus(codes.Ok, "provisioned staff")
	return &staff, nil
}

func ListStaff(ctx context.Context, db *gorm.DB, role types.Role) ([]Staff, error) {
	ctx, span := tracer.Start(ctx, "ListStaff")
	defer span.End()

	db = db.WithContext(ctx)

	var roles []UserRole
	if err := db.Where("role = ?", role).Find(&roles).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list roles")
		return nil, err
	}

	ids := make([]uuid.UUID, len(roles))
	for i, r := range roles {
		ids[i] = r.PrincipalID
	}

	var principals []Principal
	if err := db.Where("id IN ?", ids).Order("created_at").Find(&principals).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list principals")
		return nil, err
	}

	var profiles []Profile
	if err := db.Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list profiles")
		return nil, err
	}

	roleByID := make(map[uuid.UUID]UserRole, len(roles))
	for _, r := range roles {
		roleByID[r.PrincipalID] = r
	}
	profileByID := make(map[uuid.UUID]*Profile, len(profiles))
	for i := range profiles {
		profileByID[profiles[i].ID] = &profiles[i]
	}

	staff := make([]Staff, 0, len(principals))
	for i := range principals {
		p := &principals[i]
		staff = append(staff, Staff{Principal: p, Profile: profileByID[p.ID], Role: roleByID[p.ID]})
	}

	return staff, nil
}

// Config is the authoritative list of admins
//
// 1. Upsert admin principals, roles and profiles
// 2. Deactivate admins not currently contained in the config
func LoadAdminsFromConfig(ctx context.Context, db *gorm.DB, admins []config.Admin) error {
	ctx, span := tracer.Start(ctx, "LoadAdminsFromConfig")
	defer span.End()

	db = db.WithContext(ctx)

	principals := make([]*Principal, len(admins))
	emails := make([]string, len(admins))
	for i, admin := range admins {
		hash, err := argon2id.CreateHash(admin.Password, argon2id.DefaultParams)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "error creating hash for admin password")
			span.SetAttributes(attribute.String("failedAdmin", admin.Email))
			return err
		}

		principals[i] = &Principal{
			Email:        NormalizeEmail(admin.Email),
			PasswordHash: hash,
			Active:       NewNullFromData(true),
		}
		emails[i] = principals[i].Email
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "LoadAdminsFromConfig/Transaction")
		defer span.End()

		tx = tx.WithContext(ctx)

		if len(principals) != 0 {
			span.AddEvent("upserting defined admins")
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "email"}},
				DoUpdates: clause.AssignmentColumns([]string{"password_hash", "active"}),
			}).Create(principals)
			if result.Error != nil {
				span.RecordError(result.Error)
				span.SetStatus(codes.Error, "failed to upsert defined admins")
				return fmt.Errorf("failed to upsert defined admins: %w", result.Error)
			}

			// ids are not populated on conflict so read them back
			var stored []Principal
			if err := tx.Where("email IN ?", emails).Find(&stored).Error; err != nil {
				return fmt.Errorf("failed to read back admins: %w", err)
			}
			idByEmail := make(map[string]uuid.UUID, len(stored))
			for _, p := range stored {
				idByEmail[p.Email] = p.ID
			}

			roles := make([]UserRole, 0, len(admins))
			profiles := make([]Profile, 0, len(admins))
			for _, admin := range admins {
				id := idByEmail[NormalizeEmail(admin.Email)]
				roles = append(roles, UserRole{PrincipalID: id, Role: types.RoleAdmin})
				profiles = append(profiles, Profile{ID: id, FirstName: admin.FirstName, LastName: admin.LastName})
			}

			result = tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&roles)
			if result.Error != nil {
				span.RecordError(result.Error)
				span.SetStatus(codes.Error, "failed to upsert admin roles")
				return fmt.Errorf("failed to upsert admin roles: %w", result.Error)
			}

			result = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name"}),
			}).Create(&profiles)
			if result.Error != nil {
				span.RecordError(result.Error)
				span.SetStatus(codes.Error, "failed to upsert admin profiles")
				return fmt.Errorf("failed to upsert admin profiles: %w", result.Error)
			}
		} else {
			span.AddEvent("no defined admins to upsert")
		}

		span.AddEvent("deactivating admins not in config")
		stale := tx.Model(&UserRole{}).Select("principal_id").Where("role = ?", types.RoleAdmin)
		query := tx.Model(&Principal{}).Where("id IN (?)", stale)
		if len(emails) != 0 {
			query = query.Where("email NOT IN ?", emails)
		}
		result := query.Update("active", false)
		if result.Error != nil {
			span.RecordError(result.Error)
			span.SetStatus(codes.Error, "failed to deactivate admins not in config")
			return fmt.Errorf("failed to deactivate admins not in config: %w", result.Error)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "updated admins")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update admins")
		return fmt.Errorf("failed to update admins: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "updated admins")
	return nil
}
