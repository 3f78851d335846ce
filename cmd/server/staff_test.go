package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tggeco/challenge-api/internal/notify"
	"github.com/tggeco/challenge-api/internal/types"
)

func (s *ServerTestSuite) TestStatusTransition() {
	sub := s.submitAs(&s.seeded.ada)
	path := fmt.Sprintf("/v1/admin/submissions/%s/status/", sub.ID)

	s.Run("Illegal", func() {
		r := s.do(http.MethodPut, path, &s.seeded.admin, types.TransitionRequest{Status: types.SubmissionStatusDraft})
		s.Equal(http.StatusConflict, r.code, r.body)
	})

	s.Run("UnknownStatus", func() {
		r := s.do(http.MethodPut, path, &s.seeded.admin, map[string]string{"status": "promoted"})
		s.Equal(http.StatusBadRequest, r.code, r.body)
	})

	s.Run("CoordinatorForbidden", func() {
		r := s.do(http.MethodPut, path, &s.seeded.coordinator,
			types.TransitionRequest{Status: types.SubmissionStatusUnderReview})
		s.Equal(http.StatusForbidden, r.code, r.body)
	})

	s.Run("UnknownSubmission", func() {
		r := s.do(http.MethodPut, "/v1/admin/submissions/00000000-0000-0000-0000-000000000000/status/",
			&s.seeded.admin, types.TransitionRequest{Status: types.SubmissionStatusUnderReview})
		s.Equal(http.StatusNotFound, r.code, r.body)
	})

	r := s.do(http.MethodPut, path, &s.seeded.admin, types.TransitionRequest{Status: types.SubmissionStatusUnderReview})
	s.Require().Equal(http.StatusOK, r.code, r.body)
	s.Equal(types.SubmissionStatusUnderReview, decode[types.Submission](s.T(), r).Status)

	updates := s.eventsOf(notify.KindStatusUpdate)
	s.Require().Len(updates, 1)
	s.Equal(s.seeded.ada.email, updates[0].To)
	s.Equal(string(types.SubmissionStatusUnderReview), updates[0].Data["status"])
	s.Equal(sub.ReferenceCode, updates[0].Data["reference"])

	s.Run("NoBackwardsMove", func() {
		r := s.do(http.MethodPut, path, &s.seeded.admin, types.TransitionRequest{Status: types.SubmissionStatusSubmitted})
		s.Equal(http.StatusConflict, r.code, r.body)
		s.Len(s.eventsOf(notify.KindStatusUpdate), 1)
	})

	s.Run("OwnerSeesLabel", func() {
		r := s.do(http.MethodGet, "/v1/participant/submission/", &s.seeded.ada, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)
		s.Equal("Under Review", decode[types.Submission](s.T(), r).StatusLabel)
	})

	s.Run("DisqualificationIsSilent", func() {
		r := s.do(http.MethodPut, path, &s.seeded.admin, types.TransitionRequest{Status: types.SubmissionStatusDisqualified})
		s.Require().Equal(http.StatusOK, r.code, r.body)
		s.Equal(types.SubmissionStatusDisqualified, decode[types.Submission](s.T(), r).Status)
		s.Len(s.eventsOf(notify.KindStatusUpdate), 1, "no email for a disqualification")
	})
}

func (s *ServerTestSuite) TestJudgingFlow() {
	admin, judge := &s.seeded.admin, &s.seeded.judge

	r := s.do(http.MethodPost, "/v1/admin/criteria/", admin, types.CriterionRequest{
		Name:     "Innovation",
		MaxScore: 10,
		Weight:   40,
	})
	s.Require().Equal(http.StatusCreated, r.code, r.body)
	innovation := decode[types.Criterion](s.T(), r)

	r = s.do(http.MethodPost, "/v1/admin/criteria/", admin, types.CriterionRequest{
		Name:      "Impact",
		MaxScore:  10,
		Weight:    60,
		SortOrder: 1,
	})
	s.Require().Equal(http.StatusCreated, r.code, r.body)
	impact := decode[types.Criterion](s.T(), r)

	sub := s.submitAs(&s.seeded.ada)
	blindPath := fmt.Sprintf("/v1/judge/submissions/%s/", sub.ID)
	scorePath := fmt.Sprintf("/v1/judge/submissions/%s/score/", sub.ID)

	s.Run("UnassignedJudgeForbidden", func() {
		r := s.do(http.MethodGet, blindPath, judge, nil)
		s.Equal(http.StatusForbidden, r.code, r.body)
	})

	r = s.do(http.MethodPost, "/v1/admin/assignments/", admin, types.AssignRequest{
		JudgeID:      s.seeded.judgeID.String(),
		SubmissionID: sub.ID,
	})
	s.Require().Equal(http.StatusCreated, r.code, r.body)
	assignment := decode[types.JudgeAssignment](s.T(), r)

	s.Run("DuplicateAssignment", func() {
		r := s.do(http.MethodPost, "/v1/admin/assignments/", admin, types.AssignRequest{
			JudgeID:      s.seeded.judgeID.String(),
			SubmissionID: sub.ID,
		})
		s.Equal(http.StatusConflict, r.code, r.body)
	})

	s.Run("AssignNonJudge", func() {
		r := s.do(http.MethodPost, "/v1/admin/assignments/", admin, types.AssignRequest{
			JudgeID:      s.seeded.adaID.String(),
			SubmissionID: sub.ID,
		})
		s.Equal(http.StatusBadRequest, r.code, r.body)
	})

	r = s.do(http.MethodGet, "/v1/judge/assignments/", judge, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	mine := decode[[]types.JudgeAssignment](s.T(), r)
	s.Require().Len(mine, 1)
	s.Equal(sub.ReferenceCode, mine[0].ReferenceCode)
	s.False(mine[0].Scored)

	r = s.do(http.MethodGet, blindPath, judge, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	blind := decode[types.BlindSubmission](s.T(), r)
	s.Equal(sub.ReferenceCode, blind.ReferenceCode)
	s.Equal("Solar Kiosks", blind.Title)
	s.Len(blind.Criteria, 2)
	s.Nil(blind.MyScore)
	s.NotContains(r.body, s.seeded.ada.email)
	s.NotContains(r.body, s.seeded.adaID.String())
	s.NotContains(r.body, "Tester")

	s.Run("IncompleteFinalScore", func() {
		r := s.do(http.MethodPut, scorePath, judge, types.ScoreRequest{
			Scores: map[string]float64{innovation.ID: 5},
			Submit: true,
		})
		s.Equal(http.StatusBadRequest, r.code, r.body)
	})

	s.Run("OutOfRange", func() {
		r := s.do(http.MethodPut, scorePath, judge, types.ScoreRequest{
			Scores: map[string]float64{innovation.ID: 11},
		})
		s.Equal(http.StatusBadRequest, r.code, r.body)
	})

	r = s.do(http.MethodPut, scorePath, judge, types.ScoreRequest{
		Scores: map[string]float64{innovation.ID: 7.5},
	})
	s.Require().Equal(http.StatusOK, r.code, r.body)
	draft := decode[types.Score](s.T(), r)
	s.InDelta(30, draft.TotalScore, 0.001)
	s.False(draft.IsSubmitted)

	r = s.do(http.MethodPut, scorePath, judge, types.ScoreRequest{
		Scores:   map[string]float64{innovation.ID: 7.5, impact.ID: 10},
		Comments: "Strong pilot plan",
		Submit:   true,
	})
	s.Require().Equal(http.StatusOK, r.code, r.body)
	final := decode[types.Score](s.T(), r)
	s.InDelta(90, final.TotalScore, 0.001)
	s.True(final.IsSubmitted)
	s.NotNil(final.SubmittedAt)

	r = s.do(http.MethodGet, "/v1/admin/leaderboard/", admin, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	board := decode[[]types.LeaderboardEntry](s.T(), r)
	s.Require().Len(board, 1)
	s.Equal(1, board[0].Rank)
	s.Equal(sub.ReferenceCode, board[0].ReferenceCode)
	s.InDelta(90, board[0].AverageScore, 0.001)
	s.Equal(1, board[0].JudgeCount)

	s.Run("JudgeCannotSeeLeaderboard", func() {
		r := s.do(http.MethodGet, "/v1/admin/leaderboard/", judge, nil)
		s.Equal(http.StatusForbidden, r.code, r.body)
	})

	s.Run("LockedJudging", func() {
		defer func() {
			r := s.do(http.MethodPatch, "/v1/admin/settings/", admin, map[string]any{"judging_locked": false})
			s.Equal(http.StatusOK, r.code, r.body)
		}()

		r := s.do(http.MethodPut, "/v1/admin/settings/", admin, types.ChallengeSettings{JudgingLocked: true})
		s.Require().Equal(http.StatusOK, r.code, r.body)

		r = s.do(http.MethodPut, scorePath, judge, types.ScoreRequest{
			Scores: map[string]float64{innovation.ID: 1},
		})
		s.Equal(http.StatusForbidden, r.code, r.body)
	})

	r = s.do(http.MethodDelete, fmt.Sprintf("/v1/admin/assignments/%s/", assignment.ID), admin, nil)
	s.Equal(http.StatusNoContent, r.code, r.body)

	r = s.do(http.MethodGet, "/v1/judge/assignments/", judge, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	s.Empty(decode[[]types.JudgeAssignment](s.T(), r))
}

func (s *ServerTestSuite) TestProvisionStaff() {
	r := s.do(http.MethodPost, "/v1/admin/judges/", &s.seeded.admin, types.CreateStaffRequest{
		Email:    "Second.Judge@example.com",
		FullName: "Sam Second",
	})
	s.Require().Equal(http.StatusCreated, r.code, r.body)

	staff := decode[types.Staff](s.T(), r)
	s.Equal(types.RoleJudge, staff.Role)
	s.Equal("second.judge@example.com", staff.Email)
	s.Require().NotEmpty(staff.InitialPassword)

	welcome := s.eventsOf(notify.KindJudgeWelcome)
	s.Require().Len(welcome, 1)
	s.Equal("second.judge@example.com", welcome[0].To)

	r = s.do(http.MethodGet, "/v1/me/", &clientAuth{"second.judge@example.com", staff.InitialPassword}, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	s.Equal(types.RoleJudge, decode[types.Me](s.T(), r).Role)

	r = s.do(http.MethodGet, "/v1/admin/judges/", &s.seeded.admin, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	judges := decode[[]types.Staff](s.T(), r)
	s.Len(judges, 2)
	for _, j := range judges {
		s.Empty(j.InitialPassword, "listing never returns passwords")
	}

	s.Run("DuplicateEmail", func() {
		r := s.do(http.MethodPost, "/v1/admin/judges/", &s.seeded.admin, types.CreateStaffRequest{
			Email:    s.seeded.ada.email,
			FullName: "Ada Again",
		})
		s.Equal(http.StatusBadRequest, r.code, r.body)
	})

	s.Run("CoordinatorCannotProvision", func() {
		r := s.do(http.MethodPost, "/v1/admin/judges/", &s.seeded.coordinator, types.CreateStaffRequest{
			Email:    "third@example.com",
			FullName: "Third Judge",
		})
		s.Equal(http.StatusForbidden, r.code, r.body)
	})
}

func (s *ServerTestSuite) TestCoordinatorScope() {
	s.submitAs(&s.seeded.ada)
	s.submitAs(&s.seeded.cy)

	coord := &s.seeded.coordinator

	s.Run("Participants", func() {
		r := s.do(http.MethodGet, "/v1/coordinator/participants/", coord, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		participants := decode[[]types.Profile](s.T(), r)
		s.Len(participants, 2)
		for _, p := range participants {
			s.Require().NotNil(p.University)
			s.Equal(types.UniversityUST, *p.University)
		}
	})

	s.Run("OtherUniversityForbidden", func() {
		r := s.do(http.MethodGet, "/v1/coordinator/participants/?university=IAUE", coord, nil)
		s.Equal(http.StatusForbidden, r.code, r.body)

		r = s.do(http.MethodGet, "/v1/coordinator/export/?type=submissions&university=IAUE", coord, nil)
		s.Equal(http.StatusForbidden, r.code, r.body)
	})

	s.Run("OtherUniversityDetailHidden", func() {
		r := s.do(http.MethodGet, fmt.Sprintf("/v1/coordinator/participants/%s/", s.seeded.cyID), coord, nil)
		s.Equal(http.StatusNotFound, r.code, r.body)

		r = s.do(http.MethodGet, fmt.Sprintf("/v1/coordinator/participants/%s/", s.seeded.adaID), coord, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)
		detail := decode[types.ParticipantDetail](s.T(), r)
		s.Equal("Ada", detail.Profile.FirstName)
		s.Require().NotNil(detail.Submission)
		s.Equal(types.SubmissionStatusSubmitted, detail.Submission.Status)
	})

	s.Run("Submissions", func() {
		r := s.do(http.MethodGet, "/v1/coordinator/submissions/", coord, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		subs := decode[[]types.SubmissionSummary](s.T(), r)
		s.Require().Len(subs, 1)
		s.Equal(types.UniversityUST, subs[0].University)
	})

	s.Run("AdminSeesAll", func() {
		r := s.do(http.MethodGet, "/v1/admin/submissions/", &s.seeded.admin, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)
		s.Len(decode[[]types.SubmissionSummary](s.T(), r), 2)

		r = s.do(http.MethodGet, "/v1/admin/submissions/?university=IAUE", &s.seeded.admin, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)
		s.Len(decode[[]types.SubmissionSummary](s.T(), r), 1)
	})

	s.Run("Stats", func() {
		r := s.do(http.MethodGet, "/v1/coordinator/stats/", coord, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		stats := decode[types.Stats](s.T(), r)
		s.EqualValues(2, stats.Participants)
		s.EqualValues(1, stats.Submissions)
	})

	s.Run("Export", func() {
		r := s.do(http.MethodGet, "/v1/coordinator/export/?type=participants", coord, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		s.True(strings.HasPrefix(r.header.Get("Content-Type"), "text/csv"))
		s.Contains(r.header.Get("Content-Disposition"), "attachment")
		s.Contains(r.body, "Ada")
		s.Contains(r.body, "Bob")
		s.NotContains(r.body, "Cyril")
	})

	s.Run("ExportNeedsType", func() {
		r := s.do(http.MethodGet, "/v1/coordinator/export/", coord, nil)
		s.Equal(http.StatusBadRequest, r.code, r.body)
	})
}

func (s *ServerTestSuite) TestSettings() {
	admin := &s.seeded.admin

	r := s.do(http.MethodPut, "/v1/admin/settings/", admin, map[string]any{
		"submission_open":     "2026-01-10T00:00:00Z",
		"submission_deadline": "2026-03-01T00:00:00Z",
	})
	s.Require().Equal(http.StatusOK, r.code, r.body)

	r = s.do(http.MethodPatch, "/v1/admin/settings/", admin, map[string]any{
		"submission_deadline": nil,
		"judging_locked":      true,
	})
	s.Require().Equal(http.StatusOK, r.code, r.body)

	r = s.do(http.MethodGet, "/v1/settings/", &s.seeded.ada, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	settings := decode[types.ChallengeSettings](s.T(), r)
	s.True(settings.JudgingLocked)
	s.Nil(settings.SubmissionDeadline)
	s.Require().NotNil(settings.SubmissionOpen)
	s.Equal(2026, settings.SubmissionOpen.Year())

	s.Run("ParticipantCannotChange", func() {
		r := s.do(http.MethodPatch, "/v1/admin/settings/", &s.seeded.ada, map[string]any{"judging_locked": false})
		s.Equal(http.StatusForbidden, r.code, r.body)
	})
}
