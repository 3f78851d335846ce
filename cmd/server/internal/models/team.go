package models

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/types"
)

type Team struct {
	University *types.University
	Name       string
	Model
	LeadID uuid.UUID
}

func (Team) TableName() string {
	return "teams"
}

func (t Team) GetID() uuid.UUID {
	return t.ID
}

type TeamMember struct {
	UserID      *uuid.UUID
	InviteToken *string
	RespondedAt *time.Time
	Email       string
	Status      types.TeamMemberStatus
	Model
	TeamID uuid.UUID
}

func (TeamMember) TableName() string {
	return "team_members"
}

func (m TeamMember) GetID() uuid.UUID {
	return m.ID
}

// 32 random bytes, URL safe
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Accepted members plus the lead
func acceptedCount(tx *gorm.DB, teamID uuid.UUID) (int, error) {
	var n int64
	err := tx.Model(&TeamMember{}).
		Where("team_id = ? AND status = ?", teamID, types.TeamMemberStatusAccepted).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return int(n) + 1, nil
}

// True if the principal leads a team other than exclude or is accepted on one
func onAnotherTeam(tx *gorm.DB, principalID uuid.UUID, exclude *uuid.UUID) (bool, error) {
	leads := tx.Model(&Team{}).Where("lead_id = ?", principalID)
	member := tx.Model(&TeamMember{}).
		Where("user_id = ? AND status = ?", principalID, types.TeamMemberStatusAccepted)
	if exclude != nil {
		leads = leads.Where("id <> ?", *exclude)
		member = member.Where("team_id <> ?", *exclude)
	}

	var n int64
	if err := leads.Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check lead teams: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	if err := member.Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check memberships: %w", err)
	}
	return n > 0, nil
}

func CreateTeam(
	ctx context.Context,
	db *gorm.DB,
	leadID uuid.UUID,
	name string,
	university *types.University,
) (*Team, error) {
	ctx, span := tracer.Start(ctx, "CreateTeam")
	defer span.End()

	span.SetAttributes(attribute.String("lead.id", leadID.String()))

	var team Team
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := Exists[Team](ctx, tx, "lead_id = ?", leadID)
		if err != nil {
			return err
		}
		if exists {
			return srverr.ErrDuplicateTeam
		}

		member, err := onAnotherTeam(tx, leadID, nil)
		if err != nil {
			return err
		}
		if member {
			return srverr.ErrAlreadyOnTeam
		}

		team = Team{Name: name, LeadID: leadID, University: university}
		if err := tx.Create(&team).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return srverr.ErrDuplicateTeam
			}
			return fmt.Errorf("failed to create team: %w", err)
		}

		return setParticipationType(tx, leadID, types.ParticipationTypeTeam)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create team")
		return nil, err
	}

	span.SetStatus(codes.Ok, "created team")
	return &team, nil
}

func lockTeam(tx *gorm.DB, teamID uuid.UUID) (*Team, error) {
	var team Team
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&team, "id = ?", teamID).Error
	if err != nil {
		return nil, notFound(err, "team")
	}
	return &team, nil
}

// Only the lead may invite, and never past the size cap
func InviteMember(
	ctx context.Context,
	db *gorm.DB,
	teamID uuid.UUID,
	inviterID uuid.UUID,
	email string,
	maxSize int,
) (*Team, *TeamMember, error) {
	ctx, span := tracer.Start(ctx, "InviteMember")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", teamID.String()),
		attribute.Int("max_size", maxSize),
	)

	email = NormalizeEmail(email)

	var team *Team
	var member TeamMember
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		team, err = lockTeam(tx, teamID)
		if err != nil {
			return err
		}

		if team.LeadID != inviterID {
			return fmt.Errorf("%w: only the team lead may invite", srverr.ErrForbidden)
		}

		count, err := acceptedCount(tx, teamID)
		if err != nil {
			return err
		}
		if count >= maxSize {
			return srverr.ErrTeamFull
		}

		var lead Principal
		if err := tx.First(&lead, "id = ?", team.LeadID).Error; err != nil {
			return fmt.Errorf("failed to load lead: %w", err)
		}
		if lead.Email == email {
			return srverr.ErrAlreadyInvited
		}

		dup, err := Exists[TeamMember](ctx, tx,
			"team_id = ? AND email = ? AND status IN ?",
			teamID, email, []types.TeamMemberStatus{types.TeamMemberStatusInvited, types.TeamMemberStatusAccepted},
		)
		if err != nil {
			return err
		}
		if dup {
			return srverr.ErrAlreadyInvited
		}

		token, err := newToken()
		if err != nil {
			return fmt.Errorf("failed to generate invite token: %w", err)
		}

		member = TeamMember{
			TeamID:      teamID,
			Email:       email,
			Status:      types.TeamMemberStatusInvited,
			InviteToken: &token,
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("failed to create invite: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to invite member")
		return nil, nil, err
	}

	span.SetStatus(codes.Ok, "invited member")
	return team, &member, nil
}

func pendingInvite(tx *gorm.DB, token string) (*TeamMember, error) {
	if token == "" {
		return nil, srverr.ErrInvalidToken
	}

	var member TeamMember
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("invite_token = ? AND status = ?", token, types.TeamMemberStatusInvited).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, srverr.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up invite: %w", err)
	}
	return &member, nil
}

// Binds the principal to a pending invite. The token is spent on success.
func AcceptInvite(
	ctx context.Context,
	db *gorm.DB,
	token string,
	principalID uuid.UUID,
	maxSize int,
	now time.Time,
) (*Team, error) {
	ctx, span := tracer.Start(ctx, "AcceptInvite")
	defer span.End()

	span.SetAttributes(attribute.String("principal.id", principalID.String()))

	var team *Team
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := pendingInvite(tx, token)
		if err != nil {
			return err
		}

		team, err = lockTeam(tx, member.TeamID)
		if err != nil {
			return err
		}

		if team.LeadID == principalID {
			return srverr.ErrAlreadyOnTeam
		}

		other, err := onAnotherTeam(tx, principalID, &team.ID)
		if err != nil {
			return err
		}
		if other {
			return srverr.ErrAlreadyOnTeam
		}

		already, err := Exists[TeamMember](ctx, tx,
			"team_id = ? AND user_id = ? AND status = ?",
			team.ID, principalID, types.TeamMemberStatusAccepted,
		)
		if err != nil {
			return err
		}
		if already {
			return srverr.ErrAlreadyOnTeam
		}

		count, err := acceptedCount(tx, team.ID)
		if err != nil {
			return err
		}
		if count+1 > maxSize {
			return srverr.ErrTeamFull
		}

		result := tx.Model(&TeamMember{}).
			Where("id = ? AND invite_token = ? AND status = ?", member.ID, token, types.TeamMemberStatusInvited).
			Updates(map[string]any{
				"user_id":      principalID,
				"status":       types.TeamMemberStatusAccepted,
				"invite_token": nil,
				"responded_at": now,
			})
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return srverr.ErrAlreadyOnTeam
			}
			return fmt.Errorf("failed to accept invite: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return srverr.ErrInvalidToken
		}

		return setParticipationType(tx, principalID, types.ParticipationTypeTeam)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to accept invite")
		return nil, err
	}

	span.SetAttributes(attribute.String("team.id", team.ID.String()))
	span.SetStatus(codes.Ok, "accepted invite")
	return team, nil
}

func DeclineInvite(ctx context.Context, db *gorm.DB, token string, now time.Time) error {
	ctx, span := tracer.Start(ctx, "DeclineInvite")
	defer span.End()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := pendingInvite(tx, token)
		if err != nil {
			return err
		}

		return tx.Model(member).Updates(map[string]any{
			"status":       types.TeamMemberStatusDeclined,
			"invite_token": nil,
			"responded_at": now,
		}).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decline invite")
		return err
	}

	return nil
}

// Lead withdraws an invite that has not been answered yet
func RevokeInvite(
	ctx context.Context,
	db *gorm.DB,
	teamID uuid.UUID,
	memberID uuid.UUID,
	leadID uuid.UUID,
) error {
	ctx, span := tracer.Start(ctx, "RevokeInvite")
	defer span.End()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := lockTeam(tx, teamID)
		if err != nil {
			return err
		}
		if team.LeadID != leadID {
			return fmt.Errorf("%w: only the team lead may revoke invites", srverr.ErrForbidden)
		}

		result := tx.Where("id = ? AND team_id = ? AND status = ?", memberID, teamID, types.TeamMemberStatusInvited).
			Delete(&TeamMember{})
		if result.Error != nil {
			return fmt.Errorf("failed to revoke invite: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: pending invite", srverr.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to revoke invite")
		return err
	}

	return nil
}

type TeamWithMembers struct {
	Team    Team
	Members []TeamMember
	Names   map[uuid.UUID]string
}

func (t *TeamWithMembers) AcceptedCount() int {
	n := 1
	for _, m := range t.Members {
		if m.Status == types.TeamMemberStatusAccepted {
			n++
		}
	}
	return n
}

// The team the principal leads or has joined, ErrNotFound if none
func TeamForPrincipal(ctx context.Context, db *gorm.DB, principalID uuid.UUID) (*TeamWithMembers, error) {
	ctx, span := tracer.Start(ctx, "TeamForPrincipal")
	defer span.End()

	db = db.WithContext(ctx)

	var team Team
	joined := db.Model(&TeamMember{}).Select("team_id").
		Where("user_id = ? AND status = ?", principalID, types.TeamMemberStatusAccepted)
	err := db.Where("lead_id = ? OR id IN (?)", principalID, joined).First(&team).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to find team")
		}
		return nil, notFound(err, "team")
	}

	return teamWithMembers(db, team)
}

func TeamByID(ctx context.Context, db *gorm.DB, teamID uuid.UUID) (*TeamWithMembers, error) {
	team, err := ByID[Team](ctx, db, teamID)
	if err != nil {
		return nil, notFound(err, "team")
	}
	return teamWithMembers(db.WithContext(ctx), *team)
}

func teamWithMembers(db *gorm.DB, team Team) (*TeamWithMembers, error) {
	var members []TeamMember
	if err := db.Where("team_id = ?", team.ID).Order("created_at, id").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	ids := []uuid.UUID{team.LeadID}
	for _, m := range members {
		if m.UserID != nil {
			ids = append(ids, *m.UserID)
		}
	}

	var profiles []Profile
	if err := db.Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to load member profiles: %w", err)
	}
	names := make(map[uuid.UUID]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.FullName()
	}

	return &TeamWithMembers{Team: team, Members: members, Names: names}, nil
}
