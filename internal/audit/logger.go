package audit

import (
	"encoding/json"
	"fmt"

	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/types"
)

// Who caused the event. ActorID is empty for system actions like startup seeding.
type Context struct {
	ActorID string
}

func dispForStatus(status types.SubmissionStatus) Disposition {
	switch status {
	case types.SubmissionStatusShortlisted, types.SubmissionStatusWinner:
		return DispositionGood
	case types.SubmissionStatusNotSelected, types.SubmissionStatusDisqualified:
		return DispositionBad
	default:
		return DispositionNeutral
	}
}

func emit[T any](c Context, typ EventType, disposition Disposition, event T) {
	msg := Message[T]{
		Event:         event,
		LogContext:    logContext,
		SchemaVersion: schemaVersion,
		Disposition:   disposition,
		Type:          typ,
		Timestamp:     types.UnixMilliNow(),
	}
	if c.ActorID != "" {
		actor := c.ActorID
		msg.ActorID = &actor
	}

	evtStr, err := json.Marshal(msg)
	if err != nil {
		logger.Logger.Error("could not serialize audit event", "type", typ, "error", err)
		return
	}

	fmt.Println(string(evtStr))
}

func LogSubmissionSaved(c Context, submissionID string, referenceCode string, step int, created bool) {
	emit(c, EvtSubmissionSaved, DispositionNeutral, SubmissionSavedEvent{
		SubmissionID:  submissionID,
		ReferenceCode: referenceCode,
		Step:          step,
		Created:       created,
	})
}

func LogSubmissionSubmitted(c Context, submissionID string, referenceCode string) {
	emit(c, EvtSubmissionSubmitted, DispositionGood, SubmissionSubmittedEvent{
		SubmissionID:  submissionID,
		ReferenceCode: referenceCode,
	})
}

func LogStatusTransition(c Context, submissionID string, from, to types.SubmissionStatus) {
	emit(c, EvtStatusTransition, dispForStatus(to), StatusTransitionEvent{
		SubmissionID: submissionID,
		From:         from,
		To:           to,
	})
}

func LogFileUploaded(c Context, event FileUploadedEvent) {
	emit(c, EvtFileUploaded, DispositionNeutral, event)
}

func LogFileDeleted(c Context, submissionID string, fileID string) {
	emit(c, EvtFileDeleted, DispositionNeutral, FileDeletedEvent{
		SubmissionID: submissionID,
		FileID:       fileID,
	})
}

func LogTeamCreated(c Context, teamID string, name string) {
	emit(c, EvtTeamCreated, DispositionNeutral, TeamCreatedEvent{TeamID: teamID, Name: name})
}

func LogTeamInvite(c Context, teamID string, memberID string, email string) {
	emit(c, EvtTeamInvite, DispositionNeutral, TeamInviteEvent{
		TeamID:   teamID,
		MemberID: memberID,
		Email:    email,
	})
}

func LogTeamInviteAccepted(c Context, teamID string, principalID string) {
	emit(c, EvtTeamInviteAccepted, DispositionGood, TeamInviteAcceptedEvent{
		TeamID:      teamID,
		PrincipalID: principalID,
	})
}

func LogJudgeAssigned(c Context, assignmentID string, judgeID string, submissionID string) {
	emit(c, EvtJudgeAssigned, DispositionNeutral, JudgeAssignedEvent{
		AssignmentID: assignmentID,
		JudgeID:      judgeID,
		SubmissionID: submissionID,
	})
}

func LogJudgeUnassigned(c Context, assignmentID string) {
	emit(c, EvtJudgeUnassigned, DispositionNeutral, JudgeUnassignedEvent{AssignmentID: assignmentID})
}

func LogScoreRecorded(c Context, scoreID string, submissionID string, total float64, submitted bool) {
	emit(c, EvtScoreRecorded, DispositionNeutral, ScoreRecordedEvent{
		ScoreID:      scoreID,
		SubmissionID: submissionID,
		TotalScore:   total,
		Submitted:    submitted,
	})
}

func LogSettingsUpdated(c Context, judgingLocked bool) {
	emit(c, EvtSettingsUpdated, DispositionNeutral, SettingsUpdatedEvent{JudgingLocked: judgingLocked})
}

func LogExportGenerated(c Context, kind types.ExportKind, university *types.University, rows int) {
	emit(c, EvtExportGenerated, DispositionNeutral, ExportGeneratedEvent{
		University: university,
		Kind:       kind,
		Rows:       rows,
	})
}

func LogPrincipalCreated(c Context, principalID string, role types.Role, university *types.University) {
	emit(c, EvtPrincipalCreated, DispositionNeutral, PrincipalCreatedEvent{
		University:  university,
		PrincipalID: principalID,
		Role:        role,
	})
}

// method is either "change" or "reset"
func LogPasswordChanged(c Context, principalID string, method string) {
	emit(c, EvtPasswordChanged, DispositionGood, PasswordChangedEvent{
		PrincipalID: principalID,
		Method:      method,
	})
}
