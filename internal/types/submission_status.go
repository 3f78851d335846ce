package types

type SubmissionStatus string

const (
	SubmissionStatusDraft        SubmissionStatus = "draft"        // Being edited by its owner
	SubmissionStatusSubmitted    SubmissionStatus = "submitted"    // Formally submitted and locked
	SubmissionStatusUnderReview  SubmissionStatus = "under_review" // Picked up by the review panel
	SubmissionStatusShortlisted  SubmissionStatus = "shortlisted"
	SubmissionStatusWinner       SubmissionStatus = "winner"
	SubmissionStatusNotSelected  SubmissionStatus = "not_selected"
	SubmissionStatusDisqualified SubmissionStatus = "disqualified"
)

var SubmissionStatuses = []SubmissionStatus{
	SubmissionStatusDraft,
	SubmissionStatusSubmitted,
	SubmissionStatusUnderReview,
	SubmissionStatusShortlisted,
	SubmissionStatusWinner,
	SubmissionStatusNotSelected,
	SubmissionStatusDisqualified,
}

var statusLabels = map[SubmissionStatus]string{
	SubmissionStatusDraft:        "Draft",
	SubmissionStatusSubmitted:    "Submitted",
	SubmissionStatusUnderReview:  "Under Review",
	SubmissionStatusShortlisted:  "Shortlisted",
	SubmissionStatusWinner:       "Winner!",
	SubmissionStatusNotSelected:  "Not Selected",
	SubmissionStatusDisqualified: "Disqualified",
}

func (s SubmissionStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s SubmissionStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

type TeamMemberStatus string

const (
	TeamMemberStatusInvited  TeamMemberStatus = "invited"
	TeamMemberStatusAccepted TeamMemberStatus = "accepted"
	TeamMemberStatusDeclined TeamMemberStatus = "declined"
)
