package types

import "time"

type FileKind string

const (
	FileKindDocument FileKind = "document"
	FileKindImage    FileKind = "image"
)

type (
	// Every content field is optional. Fields left out of the payload keep their stored value.
	SubmissionDraftRequest struct {
		Title              *string `json:"title"               validate:"omitempty,max=200"`
		Category           *string `json:"category"            validate:"omitempty,max=100"`
		ProblemStatement   *string `json:"problem_statement"   validate:"omitempty,maxwords=500"`
		ProposedSolution   *string `json:"proposed_solution"   validate:"omitempty,maxwords=800"`
		InnovationApproach *string `json:"innovation_approach" validate:"omitempty,maxwords=300"`
		ExpectedImpact     *string `json:"expected_impact"     validate:"omitempty,maxwords=300"`
		VideoLink          *string `json:"video_link"          validate:"omitempty,url,max=500"`
		// Wizard step the owner is on, 1 through 6
		Step               int     `json:"step"                validate:"required,gte=1,lte=6"`
	}

	SubmissionFile struct {
		ID          string    `json:"id"           validate:"required" format:"uuid"`
		Kind        FileKind  `json:"kind"         validate:"required"`
		Name        string    `json:"name"         validate:"required"`
		ContentType string    `json:"content_type" validate:"required"`
		URL         string    `json:"url,omitempty"`
		Size        int64     `json:"size"         validate:"required"`
		CreatedAt   time.Time `json:"created_at"   validate:"required"`
	}

	SubmissionContent struct {
		Title              string `json:"title"`
		Category           string `json:"category"`
		ProblemStatement   string `json:"problem_statement"`
		ProposedSolution   string `json:"proposed_solution"`
		InnovationApproach string `json:"innovation_approach"`
		ExpectedImpact     string `json:"expected_impact"`
		VideoLink          string `json:"video_link"`
	}

	Submission struct {
		SubmittedAt *time.Time `json:"submitted_at"`
		SubmissionContent
		ID                      string           `json:"id"                        validate:"required" format:"uuid"`
		ReferenceCode           string           `json:"reference_code"            validate:"required"`
		Status                  SubmissionStatus `json:"status"                    validate:"required"`
		StatusLabel             string           `json:"status_label"              validate:"required"`
		Files                   []SubmissionFile `json:"files"`
		CurrentStep             int              `json:"current_step"              validate:"required"`
		FurthestStep            int              `json:"furthest_step"             validate:"required"`
		AutosaveIntervalSeconds int              `json:"autosave_interval_seconds,omitempty"`
		UpdatedAt               time.Time        `json:"updated_at"`
		IsLocked                bool             `json:"is_locked"`
	}

	// Row in admin and coordinator listings
	SubmissionSummary struct {
		SubmittedAt   *time.Time       `json:"submitted_at"`
		ID            string           `json:"id"             format:"uuid"`
		ReferenceCode string           `json:"reference_code"`
		Title         string           `json:"title"`
		Category      string           `json:"category"`
		Status        SubmissionStatus `json:"status"`
		OwnerID       string           `json:"owner_id"       format:"uuid"`
		OwnerName     string           `json:"owner_name"`
		University    University       `json:"university"`
		UpdatedAt     time.Time        `json:"updated_at"`
	}

	SubmissionFilter struct {
		Status     *SubmissionStatus `query:"status"     validate:"omitempty,oneof=draft submitted under_review shortlisted winner not_selected disqualified"`
		University *University       `query:"university" validate:"omitempty,oneof=UST IAUE UNIPORT"`
		Category   *string           `query:"category"`
	}

	TransitionRequest struct {
		Status SubmissionStatus `json:"status" validate:"required,oneof=draft submitted under_review shortlisted winner not_selected disqualified"`
	}
)
