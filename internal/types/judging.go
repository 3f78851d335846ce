package types

import "time"

type (
	Criterion struct {
		ID          string  `json:"id"          validate:"required" format:"uuid"`
		Name        string  `json:"name"        validate:"required"`
		Description string  `json:"description"`
		MaxScore    float64 `json:"max_score"   validate:"required"`
		Weight      float64 `json:"weight"      validate:"required"`
		SortOrder   int     `json:"sort_order"`
	}

	CriterionRequest struct {
		Name        string  `json:"name"        validate:"required,max=100"`
		Description string  `json:"description" validate:"max=1000"`
		MaxScore    float64 `json:"max_score"   validate:"required,gt=0"`
		Weight      float64 `json:"weight"      validate:"gte=0,lte=100"`
		SortOrder   int     `json:"sort_order"`
	}

	// Scores are keyed by criterion id
	ScoreRequest struct {
		Scores   map[string]float64 `json:"scores"   validate:"required"`
		Comments string             `json:"comments" validate:"max=5000"`
		Submit   bool               `json:"submit"`
	}

	Score struct {
		SubmittedAt  *time.Time         `json:"submitted_at"`
		Scores       map[string]float64 `json:"scores"`
		ID           string             `json:"id"            format:"uuid"`
		SubmissionID string             `json:"submission_id" format:"uuid"`
		Comments     string             `json:"comments"`
		TotalScore   float64            `json:"total_score"`
		IsSubmitted  bool               `json:"is_submitted"`
	}

	AssignRequest struct {
		JudgeID      string `json:"judge_id"      validate:"required,uuid"`
		SubmissionID string `json:"submission_id" validate:"required,uuid"`
	}

	JudgeAssignment struct {
		ID            string           `json:"id"             format:"uuid"`
		JudgeID       string           `json:"judge_id"       format:"uuid"`
		JudgeName     string           `json:"judge_name,omitempty"`
		SubmissionID  string           `json:"submission_id"  format:"uuid"`
		ReferenceCode string           `json:"reference_code"`
		Title         string           `json:"title"`
		Category      string           `json:"category"`
		Status        SubmissionStatus `json:"status"`
		Scored        bool             `json:"scored"`
		CreatedAt     time.Time        `json:"created_at"`
	}

	// What a judge sees of a submission. Owner identity and team never appear here.
	BlindSubmission struct {
		MyScore *Score `json:"my_score"`
		SubmissionContent
		ID            string           `json:"id"             format:"uuid"`
		ReferenceCode string           `json:"reference_code"`
		Files         []SubmissionFile `json:"files"`
		Criteria      []Criterion      `json:"criteria"`
		JudgingLocked bool             `json:"judging_locked"`
	}

	LeaderboardEntry struct {
		SubmissionID  string           `json:"submission_id"  format:"uuid"`
		ReferenceCode string           `json:"reference_code"`
		Title         string           `json:"title"`
		Category      string           `json:"category"`
		Status        SubmissionStatus `json:"status"`
		Rank          int              `json:"rank"`
		AverageScore  float64          `json:"average_score"`
		JudgeCount    int              `json:"judge_count"`
	}
)
