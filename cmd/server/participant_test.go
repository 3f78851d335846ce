package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tggeco/challenge-api/internal/notify"
	"github.com/tggeco/challenge-api/internal/types"
)

func (s *ServerTestSuite) TestHealth() {
	r := s.do(http.MethodGet, "/health/", nil, nil)
	s.Equal(http.StatusOK, r.code)

	r = s.do(http.MethodGet, "/swagger/index.html", nil, nil)
	s.Equal(http.StatusOK, r.code)

	r = s.do(http.MethodGet, "/swagger/doc.json", nil, nil)
	s.Require().Equal(http.StatusOK, r.code)
	doc := decode[map[string]any](s.T(), r)
	s.Equal("TGG Eco-Challenge API", doc["info"].(map[string]any)["title"])
	paths, ok := doc["paths"].(map[string]any)
	s.Require().True(ok)
	for _, p := range []string{"/v1/register/", "/v1/me/password/", "/v1/participant/submission/submit/", "/v1/coordinator/export/"} {
		s.Contains(paths, p)
	}
}

func (s *ServerTestSuite) TestRegister() {
	s.Run("Created", func() {
		r := s.do(http.MethodPost, "/v1/register/", nil, types.RegisterRequest{
			Email:    "Dee@Example.com",
			Password: participantPassword,
			ProfileRequest: types.ProfileRequest{
				FirstName:  "Dee",
				LastName:   "Tester",
				University: types.UniversityUNIPORT,
			},
		})
		s.Require().Equal(http.StatusCreated, r.code, r.body)

		profile := decode[types.Profile](s.T(), r)
		s.Equal("dee@example.com", profile.Email)
		s.Equal(types.RoleParticipant, profile.Role)

		welcome := s.eventsOf(notify.KindWelcome)
		s.Require().Len(welcome, 1)
		s.Equal("dee@example.com", welcome[0].To)

		me := s.do(http.MethodGet, "/v1/me/", &clientAuth{"dee@example.com", participantPassword}, nil)
		s.Equal(http.StatusOK, me.code, me.body)
	})

	s.Run("DuplicateEmail", func() {
		r := s.do(http.MethodPost, "/v1/register/", nil, types.RegisterRequest{
			Email:    "ADA@example.com",
			Password: participantPassword,
			ProfileRequest: types.ProfileRequest{
				FirstName:  "Ada",
				LastName:   "Again",
				University: types.UniversityUST,
			},
		})
		s.Equal(http.StatusBadRequest, r.code, r.body)
		assertErrorBodyWithFields(s.T(), decode[map[string]any](s.T(), r))
	})

	s.Run("InvalidBody", func() {
		r := s.do(http.MethodPost, "/v1/register/", nil, map[string]string{"email": "not-an-email"})
		s.Equal(http.StatusBadRequest, r.code, r.body)
		assertErrorBodyWithFields(s.T(), decode[map[string]any](s.T(), r))
	})
}

func (s *ServerTestSuite) TestMe() {
	s.Run("Unauthenticated", func() {
		r := s.do(http.MethodGet, "/v1/me/", nil, nil)
		s.Equal(http.StatusUnauthorized, r.code)
	})

	s.Run("WrongPassword", func() {
		r := s.do(http.MethodGet, "/v1/me/", &clientAuth{s.seeded.ada.email, "nope nope nope"}, nil)
		s.Equal(http.StatusUnauthorized, r.code)
	})

	s.Run("Participant", func() {
		r := s.do(http.MethodGet, "/v1/me/", &s.seeded.ada, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		me := decode[types.Me](s.T(), r)
		s.Equal(s.seeded.adaID.String(), me.ID)
		s.Equal(types.RoleParticipant, me.Role)
		s.Equal("Ada", me.FirstName)
		s.Require().NotNil(me.University)
		s.Equal(types.UniversityUST, *me.University)
	})

	s.Run("Admin", func() {
		r := s.do(http.MethodGet, "/v1/me/", &s.seeded.admin, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)
		s.Equal(types.RoleAdmin, decode[types.Me](s.T(), r).Role)
	})
}

func (s *ServerTestSuite) TestSubmissionFlow() {
	ada := &s.seeded.ada

	r := s.do(http.MethodGet, "/v1/participant/submission/", ada, nil)
	s.Equal(http.StatusNotFound, r.code, r.body)

	r = s.do(http.MethodPut, "/v1/participant/submission/", ada, types.SubmissionDraftRequest{
		Title: strPtr("Solar Kiosks"),
		Step:  1,
	})
	s.Require().Equal(http.StatusCreated, r.code, r.body)
	draft := decode[types.Submission](s.T(), r)
	s.Equal(types.SubmissionStatusDraft, draft.Status)
	s.False(draft.IsLocked)
	s.Contains(draft.ReferenceCode, "TGG")

	r = s.do(http.MethodPost, "/v1/participant/submission/submit/", ada, nil)
	s.Equal(http.StatusBadRequest, r.code, r.body)
	assertErrorBodyWithFields(s.T(), decode[map[string]any](s.T(), r))

	r = s.do(http.MethodPut, "/v1/participant/submission/", ada, completeDraft(3))
	s.Require().Equal(http.StatusOK, r.code, r.body)
	saved := decode[types.Submission](s.T(), r)
	s.Equal(draft.ID, saved.ID)
	s.Equal(draft.ReferenceCode, saved.ReferenceCode)

	r = s.do(http.MethodPost, "/v1/participant/submission/submit/", ada, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	submitted := decode[types.Submission](s.T(), r)
	s.Equal(types.SubmissionStatusSubmitted, submitted.Status)
	s.True(submitted.IsLocked)
	s.NotNil(submitted.SubmittedAt)

	received := s.eventsOf(notify.KindSubmissionReceived)
	s.Require().Len(received, 1)
	s.Equal(s.seeded.ada.email, received[0].To)
	s.Equal(draft.ReferenceCode, received[0].Data["reference"])

	s.Run("ResubmitConflicts", func() {
		r := s.do(http.MethodPost, "/v1/participant/submission/submit/", ada, nil)
		s.Equal(http.StatusConflict, r.code, r.body)
		s.Len(s.eventsOf(notify.KindSubmissionReceived), 1)
	})

	s.Run("EditAfterSubmitConflicts", func() {
		r := s.do(http.MethodPut, "/v1/participant/submission/", ada, completeDraft(2))
		s.Equal(http.StatusConflict, r.code, r.body)
	})

	s.Run("OthersUnaffected", func() {
		r := s.do(http.MethodGet, "/v1/participant/submission/", &s.seeded.bob, nil)
		s.Equal(http.StatusNotFound, r.code, r.body)
	})
}

func (s *ServerTestSuite) TestRoleGuards() {
	cases := []struct {
		name   string
		method string
		path   string
		auth   *clientAuth
	}{
		{"ParticipantLeaderboard", http.MethodGet, "/v1/admin/leaderboard/", &s.seeded.ada},
		{"ParticipantParticipants", http.MethodGet, "/v1/admin/participants/", &s.seeded.ada},
		{"ParticipantJudging", http.MethodGet, "/v1/judge/assignments/", &s.seeded.ada},
		{"JudgeSubmission", http.MethodGet, "/v1/participant/submission/", &s.seeded.judge},
		{"JudgeParticipants", http.MethodGet, "/v1/coordinator/participants/", &s.seeded.judge},
		{"CoordinatorAdminViews", http.MethodGet, "/v1/admin/participants/", &s.seeded.coordinator},
		{"CoordinatorLeaderboard", http.MethodGet, "/v1/admin/leaderboard/", &s.seeded.coordinator},
		{"AdminSubmission", http.MethodGet, "/v1/participant/submission/", &s.seeded.admin},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			r := s.do(tc.method, tc.path, tc.auth, nil)
			s.Equal(http.StatusForbidden, r.code, r.body)
			forbiddenBodyTester(s.T(), decode[map[string]any](s.T(), r))
		})
	}

	s.Run("Unauthenticated", func() {
		r := s.do(http.MethodGet, "/v1/admin/leaderboard/", nil, nil)
		s.Equal(http.StatusUnauthorized, r.code, r.body)
		unauthorizedBodyTester(s.T(), decode[map[string]any](s.T(), r))
	})
}

func (s *ServerTestSuite) TestTeamFlow() {
	ada, bob := &s.seeded.ada, &s.seeded.bob

	r := s.do(http.MethodGet, "/v1/participant/team/", ada, nil)
	s.Equal(http.StatusNotFound, r.code, r.body)
	notFoundBodyTester(s.T(), decode[map[string]any](s.T(), r))

	r = s.do(http.MethodPost, "/v1/participant/team/", ada, types.CreateTeamRequest{Name: "Green Sparks"})
	s.Require().Equal(http.StatusCreated, r.code, r.body)
	team := decode[types.Team](s.T(), r)
	s.True(team.IsLead)
	s.Equal(3, team.MaxSize)

	r = s.do(http.MethodPost, "/v1/participant/team/invites/", ada, types.TeamInviteRequest{Email: bob.email})
	s.Require().Equal(http.StatusCreated, r.code, r.body)

	invites := s.eventsOf(notify.KindTeamInvite)
	s.Require().Len(invites, 1)
	s.Equal(bob.email, invites[0].To)
	s.Equal("Green Sparks", invites[0].Data["team"])
	token := invites[0].Data["token"]
	s.Require().NotEmpty(token)

	s.Run("DuplicateInvite", func() {
		r := s.do(http.MethodPost, "/v1/participant/team/invites/", ada, types.TeamInviteRequest{Email: bob.email})
		s.Equal(http.StatusConflict, r.code, r.body)
	})

	s.Run("BadToken", func() {
		r := s.do(http.MethodPost, "/v1/participant/team/accept/", bob, types.TeamTokenRequest{Token: "nope"})
		s.Equal(http.StatusNotFound, r.code, r.body)
	})

	r = s.do(http.MethodPost, "/v1/participant/team/accept/", bob, types.TeamTokenRequest{Token: token})
	s.Require().Equal(http.StatusOK, r.code, r.body)
	joined := decode[types.Team](s.T(), r)
	s.Equal(team.ID, joined.ID)
	s.False(joined.IsLead)

	var found bool
	for _, m := range joined.Members {
		if m.Email == bob.email {
			found = true
			s.Equal(types.TeamMemberStatusAccepted, m.Status)
		}
	}
	s.True(found, "bob is a member")

	s.Run("TokenSingleUse", func() {
		r := s.do(http.MethodPost, "/v1/participant/team/accept/", bob, types.TeamTokenRequest{Token: token})
		s.Equal(http.StatusNotFound, r.code, r.body)
	})

	s.Run("MemberSeesTeam", func() {
		r := s.do(http.MethodGet, "/v1/participant/team/", bob, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)
		s.Equal("Green Sparks", decode[types.Team](s.T(), r).Name)
	})
}

func (s *ServerTestSuite) TestPasswordFlow() {
	ada := s.seeded.ada
	changed := clientAuth{ada.email, "a fresh passphrase"}

	s.Run("WrongCurrent", func() {
		r := s.do(http.MethodPut, "/v1/me/password/", &ada, types.ChangePasswordRequest{
			CurrentPassword: "nope nope nope",
			NewPassword:     changed.password,
		})
		s.Equal(http.StatusBadRequest, r.code, r.body)
		assertErrorBodyWithFields(s.T(), decode[map[string]any](s.T(), r))
	})

	s.Run("Unauthenticated", func() {
		r := s.do(http.MethodPut, "/v1/me/password/", nil, types.ChangePasswordRequest{
			CurrentPassword: ada.password,
			NewPassword:     changed.password,
		})
		s.Equal(http.StatusUnauthorized, r.code)
	})

	r := s.do(http.MethodPut, "/v1/me/password/", &ada, types.ChangePasswordRequest{
		CurrentPassword: ada.password,
		NewPassword:     changed.password,
	})
	s.Require().Equal(http.StatusNoContent, r.code, r.body)

	r = s.do(http.MethodGet, "/v1/me/", &ada, nil)
	s.Equal(http.StatusUnauthorized, r.code, "old password no longer works")
	r = s.do(http.MethodGet, "/v1/me/", &changed, nil)
	s.Equal(http.StatusOK, r.code, r.body)

	s.Run("UnknownEmail", func() {
		r := s.do(http.MethodPost, "/v1/password/reset/", nil, types.PasswordResetRequest{Email: "nobody@example.com"})
		s.Equal(http.StatusAccepted, r.code, r.body)
		s.Empty(s.eventsOf(notify.KindPasswordReset))
	})

	r = s.do(http.MethodPost, "/v1/password/reset/", nil, types.PasswordResetRequest{Email: ada.email})
	s.Require().Equal(http.StatusAccepted, r.code, r.body)

	resets := s.eventsOf(notify.KindPasswordReset)
	s.Require().Len(resets, 1)
	s.Equal(ada.email, resets[0].To)
	token := resets[0].Data["token"]
	s.Require().NotEmpty(token)

	s.Run("ShortPassword", func() {
		r := s.do(http.MethodPost, "/v1/password/reset/confirm/", nil, types.PasswordResetConfirmRequest{
			Token:       token,
			NewPassword: "short",
		})
		s.Equal(http.StatusBadRequest, r.code, r.body)
	})

	reset := clientAuth{ada.email, "recovered passphrase"}
	r = s.do(http.MethodPost, "/v1/password/reset/confirm/", nil, types.PasswordResetConfirmRequest{
		Token:       token,
		NewPassword: reset.password,
	})
	s.Require().Equal(http.StatusNoContent, r.code, r.body)

	r = s.do(http.MethodGet, "/v1/me/", &reset, nil)
	s.Equal(http.StatusOK, r.code, r.body)
	r = s.do(http.MethodGet, "/v1/me/", &changed, nil)
	s.Equal(http.StatusUnauthorized, r.code)

	s.Run("TokenSingleUse", func() {
		r := s.do(http.MethodPost, "/v1/password/reset/confirm/", nil, types.PasswordResetConfirmRequest{
			Token:       token,
			NewPassword: "another passphrase",
		})
		s.Equal(http.StatusNotFound, r.code, r.body)
		s.Contains(decode[map[string]any](s.T(), r)["message"], "invalid or expired link")
	})
}

func (s *ServerTestSuite) TestSubmissionFiles() {
	ada := &s.seeded.ada
	filesPath := "/v1/participant/submission/files/"
	pdf := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
	kind := map[string]string{"kind": string(types.FileKindDocument)}

	s.Run("NoDraft", func() {
		r := s.upload(filesPath, ada, kind, "plan.pdf", pdf)
		s.Equal(http.StatusNotFound, r.code, r.body)
	})

	r := s.do(http.MethodPut, "/v1/participant/submission/", ada, completeDraft(1))
	s.Require().Equal(http.StatusCreated, r.code, r.body)

	r = s.upload(filesPath, ada, kind, "my plan.pdf", pdf)
	s.Require().Equal(http.StatusCreated, r.code, r.body)
	file := decode[types.SubmissionFile](s.T(), r)
	s.Equal("my_plan.pdf", file.Name)
	s.Equal("application/pdf", file.ContentType)
	s.True(strings.HasPrefix(file.URL, "https://files.example.com/"), file.URL)

	s.storeMu.Lock()
	s.Require().Len(s.uploaded, 1)
	stored := s.uploaded[0]
	s.storeMu.Unlock()
	s.True(strings.HasPrefix(stored, s.seeded.adaID.String()+"/"), stored)
	s.True(strings.HasSuffix(stored, "_my_plan.pdf"), stored)

	s.Run("WrongType", func() {
		r := s.upload(filesPath, ada, kind, "notes.txt", []byte("just some text"))
		s.Equal(http.StatusBadRequest, r.code, r.body)
	})

	s.Run("UnknownKind", func() {
		r := s.upload(filesPath, ada, map[string]string{"kind": "video"}, "plan.pdf", pdf)
		s.Equal(http.StatusBadRequest, r.code, r.body)
	})

	r = s.do(http.MethodGet, "/v1/participant/submission/", ada, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	s.Len(decode[types.Submission](s.T(), r).Files, 1)

	r = s.upload(filesPath, ada, kind, "extra.pdf", pdf)
	s.Require().Equal(http.StatusCreated, r.code, r.body)
	extra := decode[types.SubmissionFile](s.T(), r)

	r = s.do(http.MethodDelete, fmt.Sprintf("%s%s/", filesPath, extra.ID), ada, nil)
	s.Require().Equal(http.StatusNoContent, r.code, r.body)

	s.storeMu.Lock()
	s.Require().Len(s.removed, 1)
	s.Equal(s.uploaded[1], s.removed[0])
	s.storeMu.Unlock()

	s.Run("LockedAfterSubmit", func() {
		r := s.do(http.MethodPost, "/v1/participant/submission/submit/", ada, nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		r = s.upload(filesPath, ada, kind, "late.pdf", pdf)
		s.Equal(http.StatusConflict, r.code, r.body)

		r = s.do(http.MethodDelete, fmt.Sprintf("%s%s/", filesPath, file.ID), ada, nil)
		s.Equal(http.StatusConflict, r.code, r.body)
	})
}
