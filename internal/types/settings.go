package types

import "time"

type (
	// Competition calendar. Unset windows never gate anything.
	ChallengeSettings struct {
		RegistrationOpen   *time.Time `json:"registration_open"`
		RegistrationClose  *time.Time `json:"registration_close"`
		SubmissionOpen     *time.Time `json:"submission_open"`
		SubmissionDeadline *time.Time `json:"submission_deadline"`
		JudgingStart       *time.Time `json:"judging_start"`
		JudgingEnd         *time.Time `json:"judging_end"`
		ResultsDate        *time.Time `json:"results_date"`
		JudgingLocked      bool       `json:"judging_locked"`
	}

	// Partial update. Fields left out keep their stored value and an explicit
	// null clears a window edge.
	SettingsPatch struct {
		RegistrationOpen   Optional[time.Time] `json:"registration_open"`
		RegistrationClose  Optional[time.Time] `json:"registration_close"`
		SubmissionOpen     Optional[time.Time] `json:"submission_open"`
		SubmissionDeadline Optional[time.Time] `json:"submission_deadline"`
		JudgingStart       Optional[time.Time] `json:"judging_start"`
		JudgingEnd         Optional[time.Time] `json:"judging_end"`
		ResultsDate        Optional[time.Time] `json:"results_date"`
		JudgingLocked      Optional[bool]      `json:"judging_locked"`
	}

	Category struct {
		ID          string `json:"id"          format:"uuid"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	CategoryRequest struct {
		Name        string `json:"name"        validate:"required,max=100"`
		Description string `json:"description" validate:"max=1000"`
	}
)

func (p *SettingsPatch) Apply(s ChallengeSettings) ChallengeSettings {
	edges := []struct {
		patch Optional[time.Time]
		dst   **time.Time
	}{
		{p.RegistrationOpen, &s.RegistrationOpen},
		{p.RegistrationClose, &s.RegistrationClose},
		{p.SubmissionOpen, &s.SubmissionOpen},
		{p.SubmissionDeadline, &s.SubmissionDeadline},
		{p.JudgingStart, &s.JudgingStart},
		{p.JudgingEnd, &s.JudgingEnd},
		{p.ResultsDate, &s.ResultsDate},
	}
	for _, e := range edges {
		if e.patch.Defined {
			*e.dst = e.patch.Value
		}
	}

	// null leaves the lock alone
	if p.JudgingLocked.Defined && p.JudgingLocked.Value != nil {
		s.JudgingLocked = *p.JudgingLocked.Value
	}

	return s
}
