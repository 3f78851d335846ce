package audit

import (
	"github.com/tggeco/challenge-api/internal/types"
)

var schemaVersion = "1.0.0"
var logContext = "audit"

type Disposition string

const (
	DispositionNeutral Disposition = "neutral"
	DispositionGood    Disposition = "good"
	DispositionBad     Disposition = "bad"
)

type EventType string

const (
	EvtSubmissionSaved     EventType = "submission_saved"
	EvtSubmissionSubmitted EventType = "submission_submitted"
	EvtStatusTransition    EventType = "status_transition"
	EvtFileUploaded        EventType = "file_uploaded"
	EvtFileDeleted         EventType = "file_deleted"
	EvtTeamCreated         EventType = "team_created"
	EvtTeamInvite          EventType = "team_invite"
	EvtTeamInviteAccepted  EventType = "team_invite_accepted"
	EvtJudgeAssigned       EventType = "judge_assigned"
	EvtJudgeUnassigned     EventType = "judge_unassigned"
	EvtScoreRecorded       EventType = "score_recorded"
	EvtSettingsUpdated     EventType = "settings_updated"
	EvtExportGenerated     EventType = "export_generated"
	EvtPrincipalCreated    EventType = "principal_created"
	EvtPasswordChanged     EventType = "password_changed"
)

type Message[T any] struct {
	Event         T               `json:"event"       validate:"required"`
	ActorID       *string         `json:"actor_id"`
	LogContext    string          `json:"log_context" validate:"required"`
	SchemaVersion string          `json:"version"     validate:"required"`
	Disposition   Disposition     `json:"disposition" validate:"required"`
	Type          EventType       `json:"event_type"  validate:"required"`
	Timestamp     types.UnixMilli `json:"timestamp"   validate:"required"`
}

type SubmissionSavedEvent struct {
	SubmissionID  string `json:"submission_id"  validate:"required"`
	ReferenceCode string `json:"reference_code" validate:"required"`
	Step          int    `json:"step"`
	Created       bool   `json:"created"`
}

type SubmissionSubmittedEvent struct {
	SubmissionID  string `json:"submission_id"  validate:"required"`
	ReferenceCode string `json:"reference_code" validate:"required"`
}

type StatusTransitionEvent struct {
	SubmissionID string                 `json:"submission_id" validate:"required"`
	From         types.SubmissionStatus `json:"from"          validate:"required"`
	To           types.SubmissionStatus `json:"to"            validate:"required"`
}

type FileUploadedEvent struct {
	SubmissionID string         `json:"submission_id" validate:"required"`
	FileID       string         `json:"file_id"       validate:"required"`
	Kind         types.FileKind `json:"kind"          validate:"required"`
	ContentType  string         `json:"content_type"  validate:"required"`
	SHA256       string         `json:"sha256"        validate:"required"`
	Size         int64          `json:"size"`
}

type FileDeletedEvent struct {
	SubmissionID string `json:"submission_id" validate:"required"`
	FileID       string `json:"file_id"       validate:"required"`
}

type TeamCreatedEvent struct {
	TeamID string `json:"team_id" validate:"required"`
	Name   string `json:"name"    validate:"required"`
}

type TeamInviteEvent struct {
	TeamID   string `json:"team_id"   validate:"required"`
	MemberID string `json:"member_id" validate:"required"`
	Email    string `json:"email"     validate:"required"`
}

type TeamInviteAcceptedEvent struct {
	TeamID      string `json:"team_id"      validate:"required"`
	PrincipalID string `json:"principal_id" validate:"required"`
}

type JudgeAssignedEvent struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	JudgeID      string `json:"judge_id"      validate:"required"`
	SubmissionID string `json:"submission_id" validate:"required"`
}

type JudgeUnassignedEvent struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
}

type ScoreRecordedEvent struct {
	ScoreID      string  `json:"score_id"      validate:"required"`
	SubmissionID string  `json:"submission_id" validate:"required"`
	TotalScore   float64 `json:"total_score"`
	Submitted    bool    `json:"submitted"`
}

type SettingsUpdatedEvent struct {
	JudgingLocked bool `json:"judging_locked"`
}

type ExportGeneratedEvent struct {
	University *types.University `json:"university"`
	Kind       types.ExportKind  `json:"kind"       validate:"required"`
	Rows       int               `json:"rows"`
}

type PrincipalCreatedEvent struct {
	University  *types.University `json:"university"`
	PrincipalID string            `json:"principal_id" validate:"required"`
	Role        types.Role        `json:"role"         validate:"required"`
}

type PasswordChangedEvent struct {
	PrincipalID string `json:"principal_id" validate:"required"`
	Method      string `json:"method"       validate:"required,oneof=change reset"`
}
