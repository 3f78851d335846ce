package types

import "time"

type (
	CreateTeamRequest struct {
		Name string `json:"name" validate:"required,min=2,max=100"`
	}

	TeamInviteRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	TeamTokenRequest struct {
		Token string `json:"token" validate:"required"`
	}

	TeamMember struct {
		UserID      *string          `json:"user_id,omitempty" format:"uuid"`
		RespondedAt *time.Time       `json:"responded_at"`
		ID          string           `json:"id"                validate:"required" format:"uuid"`
		Email       string           `json:"email"             validate:"required"`
		Name        string           `json:"name,omitempty"`
		Status      TeamMemberStatus `json:"status"            validate:"required"`
		InvitedAt   time.Time        `json:"invited_at"`
	}

	Team struct {
		ID            string       `json:"id"             validate:"required" format:"uuid"`
		Name          string       `json:"name"           validate:"required"`
		LeadID        string       `json:"lead_id"        validate:"required" format:"uuid"`
		Members       []TeamMember `json:"members"`
		AcceptedCount int          `json:"accepted_count"`
		MaxSize       int          `json:"max_size"`
		IsLead        bool         `json:"is_lead"`
	}
)
