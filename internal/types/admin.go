package types

import "time"

type (
	CreateStaffRequest struct {
		University *University `json:"university" validate:"omitempty,oneof=UST IAUE UNIPORT"`
		Email      string      `json:"email"      validate:"required,email,max=254"`
		FullName   string      `json:"full_name"  validate:"required,max=200"`
	}

	Staff struct {
		University      *University `json:"university"`
		ID              string      `json:"id"                         format:"uuid"`
		Email           string      `json:"email"`
		FirstName       string      `json:"first_name"`
		LastName        string      `json:"last_name"`
		Role            Role        `json:"role"`
		InitialPassword string      `json:"initial_password,omitempty"`
		CreatedAt       time.Time   `json:"created_at"`
	}

	Stats struct {
		ByStatus     map[SubmissionStatus]int64 `json:"by_status"`
		ByUniversity map[University]int64       `json:"by_university"`
		Participants int64                      `json:"participants"`
		Teams        int64                      `json:"teams"`
		Submissions  int64                      `json:"submissions"`
	}

	ExportKind string

	ExportRequest struct {
		University *University `query:"university" validate:"omitempty,oneof=UST IAUE UNIPORT"`
		Kind       ExportKind  `query:"type"       validate:"required,oneof=participants submissions"`
	}
)

const (
	ExportKindParticipants ExportKind = "participants"
	ExportKindSubmissions  ExportKind = "submissions"
)
