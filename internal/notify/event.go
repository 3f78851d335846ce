package notify

import (
	"fmt"
	"time"

	"github.com/tggeco/challenge-api/internal/otel"
	"github.com/tggeco/challenge-api/internal/types"
)

type Kind string

const (
	KindWelcome            Kind = "welcome"
	KindSubmissionReceived Kind = "submission_received"
	KindStatusUpdate       Kind = "status_update"
	KindTeamInvite         Kind = "team_invite"
	KindJudgeWelcome       Kind = "judge_welcome"
	KindCoordinatorWelcome Kind = "coordinator_welcome"
	KindPasswordReset      Kind = "password_reset"
)

const (
	fallbackName  = "Participant"
	fallbackTitle = "Untitled"
)

// A notification waiting to be rendered and sent. This is also the queue wire format.
type Event struct {
	Data  map[string]string `json:"data"`
	Trace otel.Carrier      `json:"trace,omitempty"`
	Kind  Kind              `json:"kind"            validate:"required,oneof=welcome submission_received status_update team_invite judge_welcome coordinator_welcome password_reset"`
	To    string            `json:"to"              validate:"required,email"`
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func Welcome(to, name string) Event {
	return Event{
		Kind: KindWelcome,
		To:   to,
		Data: map[string]string{"name": orDefault(name, fallbackName)},
	}
}

func SubmissionReceived(to, name, referenceCode, title string) Event {
	return Event{
		Kind: KindSubmissionReceived,
		To:   to,
		Data: map[string]string{
			"name":      orDefault(name, fallbackName),
			"reference": referenceCode,
			"title":     orDefault(title, fallbackTitle),
		},
	}
}

func StatusUpdate(to, name, referenceCode, title string, status types.SubmissionStatus) Event {
	return Event{
		Kind: KindStatusUpdate,
		To:   to,
		Data: map[string]string{
			"name":      orDefault(name, fallbackName),
			"reference": referenceCode,
			"title":     orDefault(title, fallbackTitle),
			"status":    string(status),
			"label":     status.Label(),
		},
	}
}

func TeamInvite(to, teamName, leadName, token string) Event {
	return Event{
		Kind: KindTeamInvite,
		To:   to,
		Data: map[string]string{
			"team":  teamName,
			"lead":  orDefault(leadName, "Your team lead"),
			"token": token,
		},
	}
}

func JudgeWelcome(to, name, password string) Event {
	return Event{
		Kind: KindJudgeWelcome,
		To:   to,
		Data: map[string]string{
			"name":     orDefault(name, "Judge"),
			"password": password,
		},
	}
}

func CoordinatorWelcome(to, name string, university types.University, password string) Event {
	return Event{
		Kind: KindCoordinatorWelcome,
		To:   to,
		Data: map[string]string{
			"name":       orDefault(name, "Coordinator"),
			"university": string(university),
			"password":   password,
		},
	}
}

func PasswordReset(to, name, token string, ttl time.Duration) Event {
	return Event{
		Kind: KindPasswordReset,
		To:   to,
		Data: map[string]string{
			"name":    orDefault(name, "there"),
			"token":   token,
			"expires": fmt.Sprintf("%d minutes", int(ttl.Minutes())),
		},
	}
}
