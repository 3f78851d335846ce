package types

import "time"

type (
	RegisterRequest struct {
		ProfileRequest
		Email    string `json:"email"    validate:"required,email,max=254"`
		Password string `json:"password" validate:"required,min=8,max=128"`
	}

	ChangePasswordRequest struct {
		CurrentPassword string `json:"current_password" validate:"required,max=128"`
		NewPassword     string `json:"new_password"     validate:"required,min=8,max=128"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email,max=254"`
	}

	PasswordResetConfirmRequest struct {
		Token       string `json:"token"        validate:"required,max=100"`
		NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
	}

	ProfileRequest struct {
		ParticipationType *ParticipationType `json:"participation_type" validate:"omitempty,oneof=individual team"`
		FirstName         string             `json:"first_name"         validate:"required,max=100"`
		LastName          string             `json:"last_name"          validate:"required,max=100"`
		Phone             string             `json:"phone"              validate:"max=30"`
		Gender            string             `json:"gender"             validate:"max=30"`
		University        University         `json:"university"         validate:"required,oneof=UST IAUE UNIPORT"`
		Department        string             `json:"department"         validate:"max=200"`
		YearOfStudy       string             `json:"year_of_study"      validate:"max=20"`
	}

	Profile struct {
		ParticipationType *ParticipationType `json:"participation_type"`
		University        *University        `json:"university"`
		ID                string             `json:"id"                 format:"uuid"`
		Email             string             `json:"email"`
		FirstName         string             `json:"first_name"`
		LastName          string             `json:"last_name"`
		Phone             string             `json:"phone"`
		Gender            string             `json:"gender"`
		Department        string             `json:"department"`
		YearOfStudy       string             `json:"year_of_study"`
		PhotoURL          string             `json:"profile_photo_url,omitempty"`
		Role              Role               `json:"role"`
		CreatedAt         time.Time          `json:"created_at"`
		// Advisory only, never used to gate an operation
		Complete          bool               `json:"complete"`
	}

	ParticipantFilter struct {
		University *University        `query:"university" validate:"omitempty,oneof=UST IAUE UNIPORT"`
		Type       *ParticipationType `query:"type"       validate:"omitempty,oneof=individual team"`
		Query      *string            `query:"q"          validate:"omitempty,max=100"`
	}

	ParticipantDetail struct {
		Submission *SubmissionSummary `json:"submission"`
		Team       *Team              `json:"team"`
		Profile    Profile            `json:"profile"`
	}
)
