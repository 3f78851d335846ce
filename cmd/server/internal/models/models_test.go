package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	sloggorm "github.com/imdatngo/slog-gorm/v2"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/cmd/server/internal/migrations"
	"github.com/tggeco/challenge-api/internal/config"
	"github.com/tggeco/challenge-api/internal/types"
)

type ModelsTestSuite struct {
	suite.Suite

	postgres *postgres.PostgresContainer
	db       *gorm.DB
	admin    *access.Identity
}

func (s *ModelsTestSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16.4-alpine",
		postgres.WithDatabase("challengeapi"),
		postgres.WithUsername("challengeapi"),
		postgres.WithPassword("challengeapi"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	s.Require().NoError(err, "failed to start postgres container")
	s.postgres = postgresContainer

	dsn, err := postgresContainer.ConnectionString(ctx)
	s.Require().NoError(err, "failed to get connection string to container")

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         sloggorm.New(),
		TranslateError: true,
	})
	s.Require().NoError(err, "failed to connect to the database")
	s.db = db

	s.Require().NoError(migrations.Up(ctx, db), "failed to migrate db")

	s.admin = &access.Identity{PrincipalID: uuid.NewString(), Email: "admin@example.com", Role: types.RoleAdmin}
}

func (s *ModelsTestSuite) SetupTest() {
	err := s.db.Exec(`TRUNCATE principal, user_roles, profiles, submissions, submission_files, teams,
		team_members, judge_assignments, judging_criteria, judging_scores, challenge_settings,
		challenge_categories CASCADE`).Error
	s.Require().NoError(err, "failed to truncate tables")
}

func (s *ModelsTestSuite) TearDownSuite() {
	s.Require().NoError(migrations.Down(context.Background(), s.db), "failed to run down migrations")
	s.Require().NoError(testcontainers.TerminateContainer(s.postgres))
}

func TestModelsTestSuite(t *testing.T) {
	suite.Run(t, new(ModelsTestSuite))
}

func (s *ModelsTestSuite) register(email string, university types.University) *Principal {
	p, _, err := RegisterParticipant(context.Background(), s.db, &types.RegisterRequest{
		Email:    email,
		Password: "correct horse",
		ProfileRequest: types.ProfileRequest{
			FirstName:  "Ada",
			LastName:   "Obi",
			University: university,
		},
	})
	s.Require().NoError(err, "failed to register participant")
	return p
}

func (s *ModelsTestSuite) identity(p *Principal) *access.Identity {
	identity, err := ResolveIdentity(context.Background(), s.db, p)
	s.Require().NoError(err, "failed to resolve identity")
	return identity
}

func strPtr(v string) *string {
	return &v
}

func completeDraft() *types.SubmissionDraftRequest {
	return &types.SubmissionDraftRequest{
		Title:            strPtr("Solar Kiosks"),
		Category:         strPtr("Energy"),
		ProblemStatement: strPtr("Power cuts"),
		ProposedSolution: strPtr("Solar kiosks on campus"),
		ExpectedImpact:   strPtr("Fewer outages"),
		Step:             2,
	}
}

func (s *ModelsTestSuite) submitted(owner *Principal) *Submission {
	ctx := context.Background()
	_, _, err := SaveDraft(ctx, s.db, owner.ID, completeDraft(), "TGG", time.Now())
	s.Require().NoError(err)
	sub, err := Submit(ctx, s.db, owner.ID, time.Now())
	s.Require().NoError(err)
	return sub
}

func (s *ModelsTestSuite) TestUtilities() {
	p := s.register("ada@example.com", types.UniversityUST)

	s.Run("ExistsByID", func() {
		exists, err := Exists[Principal](context.Background(), s.db, "id = ?", p.ID)
		s.Require().NoError(err, "failed to check db for existence")
		s.True(exists, "did not find the object")
	})

	s.Run("ExistsByEmail", func() {
		exists, err := Exists[Principal](context.Background(), s.db, "email = ?", p.Email)
		s.Require().NoError(err, "failed to check db for existence")
		s.True(exists, "did not find the object")
	})

	s.Run("DoesNotExistByID", func() {
		exists, err := Exists[Principal](context.Background(), s.db, "id = ?", uuid.New())
		s.Require().NoError(err, "failed to check db for existence")
		s.False(exists, "should not find object")
	})

	s.Run("ByID", func() {
		got, err := ByID[Principal](context.Background(), s.db, p.ID)
		s.Require().NoError(err)
		s.Equal(p.Email, got.Email)
	})
}

func (s *ModelsTestSuite) TestRegisterParticipant() {
	ctx := context.Background()
	p := s.register("  Ada@Example.com ", types.UniversityIAUE)

	s.Equal("ada@example.com", p.Email, "email should be normalized")

	identity := s.identity(p)
	s.Equal(types.RoleParticipant, identity.Role)
	s.Require().NotNil(identity.University)
	s.Equal(types.UniversityIAUE, *identity.University)

	_, _, err := RegisterParticipant(ctx, s.db, &types.RegisterRequest{
		Email:    "ADA@example.com",
		Password: "another password",
		ProfileRequest: types.ProfileRequest{
			FirstName:  "Ada",
			LastName:   "Again",
			University: types.UniversityUST,
		},
	})
	verr, ok := srverr.IsValidation(err)
	s.Require().True(ok, "duplicate email should be a validation error: %v", err)
	s.Equal("email", verr.Field)
}

func (s *ModelsTestSuite) TestProvisionStaff() {
	ctx := context.Background()
	uni := types.UniversityUNIPORT

	s.Run("Coordinator", func() {
		staff, err := ProvisionStaff(ctx, s.db, s.admin, types.RoleCoordinator, &types.CreateStaffRequest{
			Email:      "coord@example.com",
			FullName:   "Cy Ray Bello",
			University: &uni,
		})
		s.Require().NoError(err)
		s.NotEmpty(staff.InitialPassword)
		s.Equal("Cy", staff.Profile.FirstName)
		s.Equal("Ray Bello", staff.Profile.LastName)

		identity := s.identity(staff.Principal)
		s.Equal(types.RoleCoordinator, identity.Role)
		s.Equal(uni, *identity.University)
	})

	s.Run("CoordinatorNeedsUniversity", func() {
		_, err := ProvisionStaff(ctx, s.db, s.admin, types.RoleCoordinator, &types.CreateStaffRequest{
			Email:    "nouni@example.com",
			FullName: "No Uni",
		})
		_, ok := srverr.IsValidation(err)
		s.True(ok, "expected validation error, got %v", err)
	})

	s.Run("JudgeHasNoUniversity", func() {
		staff, err := ProvisionStaff(ctx, s.db, s.admin, types.RoleJudge, &types.CreateStaffRequest{
			Email:      "judge@example.com",
			FullName:   "Jo",
			University: &uni,
		})
		s.Require().NoError(err)
		s.Nil(staff.Role.University)

		judges, err := ListStaff(ctx, s.db, types.RoleJudge)
		s.Require().NoError(err)
		s.Require().Len(judges, 1)
		s.Equal("judge@example.com", judges[0].Principal.Email)
	})

	s.Run("NotAdmin", func() {
		actor := &access.Identity{PrincipalID: uuid.NewString(), Role: types.RoleCoordinator, University: &uni}
		_, err := ProvisionStaff(ctx, s.db, actor, types.RoleJudge, &types.CreateStaffRequest{
			Email:    "j2@example.com",
			FullName: "J",
		})
		s.ErrorIs(err, srverr.ErrForbidden)
	})
}

func (s *ModelsTestSuite) TestLoadAdminsFromConfig() {
	ctx := context.Background()

	err := LoadAdminsFromConfig(ctx, s.db, []config.Admin{
		{Email: "a@example.com", Password: "password1", FirstName: "A"},
		{Email: "b@example.com", Password: "password2", FirstName: "B"},
	})
	s.Require().NoError(err)

	err = LoadAdminsFromConfig(ctx, s.db, []config.Admin{
		{Email: "a@example.com", Password: "password3", FirstName: "A"},
	})
	s.Require().NoError(err)

	a, err := PrincipalByEmail(ctx, s.db, "a@example.com")
	s.Require().NoError(err)
	s.True(a.Active.V)
	s.Equal(types.RoleAdmin, s.identity(a).Role)

	b, err := PrincipalByEmail(ctx, s.db, "b@example.com")
	s.Require().NoError(err)
	s.False(b.Active.V, "admin removed from config should be deactivated")
}

func (s *ModelsTestSuite) passwordIs(id uuid.UUID, password string) bool {
	p, err := ByID[Principal](context.Background(), s.db, id)
	s.Require().NoError(err)
	ok, err := argon2id.ComparePasswordAndHash(password, p.PasswordHash)
	s.Require().NoError(err)
	return ok
}

func (s *ModelsTestSuite) TestPasswords() {
	ctx := context.Background()
	now := time.Now()
	p := s.register("ada@example.com", types.UniversityUST)

	s.Run("WrongCurrent", func() {
		err := ChangePassword(ctx, s.db, p.ID, "not my password", "brand new secret", now)
		verr, ok := srverr.IsValidation(err)
		s.Require().True(ok, "expected validation error, got %v", err)
		s.Equal("current_password", verr.Field)
		s.True(s.passwordIs(p.ID, "correct horse"))
	})

	s.Run("SamePassword", func() {
		err := ChangePassword(ctx, s.db, p.ID, "correct horse", "correct horse", now)
		verr, ok := srverr.IsValidation(err)
		s.Require().True(ok, "expected validation error, got %v", err)
		s.Equal("new_password", verr.Field)
	})

	s.Run("Change", func() {
		s.Require().NoError(ChangePassword(ctx, s.db, p.ID, "correct horse", "brand new secret", now))
		s.True(s.passwordIs(p.ID, "brand new secret"))
		s.False(s.passwordIs(p.ID, "correct horse"))
	})

	s.Run("UnknownEmail", func() {
		principal, token, err := RequestPasswordReset(ctx, s.db, "nobody@example.com", now)
		s.Require().NoError(err)
		s.Nil(principal)
		s.Empty(token)
	})

	s.Run("Reset", func() {
		_, first, err := RequestPasswordReset(ctx, s.db, " ADA@example.com ", now)
		s.Require().NoError(err)
		principal, second, err := RequestPasswordReset(ctx, s.db, "ada@example.com", now)
		s.Require().NoError(err)
		s.Require().NotNil(principal)
		s.Equal(p.ID, principal.ID)
		s.NotEqual(first, second)

		stored, err := Exists[PasswordReset](ctx, s.db, "token_hash = ?", second)
		s.Require().NoError(err)
		s.False(stored, "only the digest is stored")

		_, err = ResetPassword(ctx, s.db, first, "superseded secret", now)
		s.ErrorIs(err, srverr.ErrInvalidToken, "a newer request replaces the old link")

		reset, err := ResetPassword(ctx, s.db, second, "reset secret", now)
		s.Require().NoError(err)
		s.Equal(p.ID, reset.ID)
		s.True(s.passwordIs(p.ID, "reset secret"))

		_, err = ResetPassword(ctx, s.db, second, "again secret", now)
		s.ErrorIs(err, srverr.ErrInvalidToken, "links work once")
	})

	s.Run("Expired", func() {
		_, token, err := RequestPasswordReset(ctx, s.db, "ada@example.com", now)
		s.Require().NoError(err)

		_, err = ResetPassword(ctx, s.db, token, "too late secret", now.Add(PasswordResetTTL+time.Minute))
		s.ErrorIs(err, srverr.ErrInvalidToken)
		s.True(s.passwordIs(p.ID, "reset secret"))
	})

	s.Run("ChangeSpendsPendingLinks", func() {
		_, token, err := RequestPasswordReset(ctx, s.db, "ada@example.com", now)
		s.Require().NoError(err)

		s.Require().NoError(ChangePassword(ctx, s.db, p.ID, "reset secret", "changed secret", now))

		_, err = ResetPassword(ctx, s.db, token, "stale link secret", now)
		s.ErrorIs(err, srverr.ErrInvalidToken)
	})

	s.Run("EmptyToken", func() {
		_, err := ResetPassword(ctx, s.db, "", "whatever secret", now)
		s.ErrorIs(err, srverr.ErrInvalidToken)
	})
}

func (s *ModelsTestSuite) TestSubmissionLifecycle() {
	ctx := context.Background()
	owner := s.register("ada@example.com", types.UniversityUST)

	sub, created, err := SaveDraft(ctx, s.db, owner.ID, &types.SubmissionDraftRequest{
		Title: strPtr("Solar Kiosks"),
		Step:  1,
	}, "TGG", time.Now())
	s.Require().NoError(err)
	s.True(created)
	s.Equal(types.SubmissionStatusDraft, sub.Status)
	s.Regexp(`^TGG-\d{4}-`, sub.ReferenceCode)

	var locked *Submission

	s.Run("CannotSkipAhead", func() {
		_, _, err := SaveDraft(ctx, s.db, owner.ID, &types.SubmissionDraftRequest{Step: 4}, "TGG", time.Now())
		_, ok := srverr.IsValidation(err)
		s.True(ok, "expected validation error, got %v", err)
	})

	s.Run("AbsentFieldsKept", func() {
		again, created, err := SaveDraft(ctx, s.db, owner.ID, &types.SubmissionDraftRequest{
			Category: strPtr("Energy"),
			Step:     2,
		}, "TGG", time.Now())
		s.Require().NoError(err)
		s.False(created)
		s.Equal(sub.ReferenceCode, again.ReferenceCode)
		s.Equal("Solar Kiosks", again.Title)
		s.Equal("Energy", again.Category)
		s.Equal(2, again.FurthestStep)
	})

	s.Run("IncompleteSubmit", func() {
		_, err := Submit(ctx, s.db, owner.ID, time.Now())
		verr, ok := srverr.IsValidation(err)
		s.Require().True(ok, "expected validation error, got %v", err)
		s.Equal("problem_statement", verr.Field)
	})

	s.Run("Submit", func() {
		_, _, err := SaveDraft(ctx, s.db, owner.ID, completeDraft(), "TGG", time.Now())
		s.Require().NoError(err)

		done, err := Submit(ctx, s.db, owner.ID, time.Now())
		s.Require().NoError(err)
		s.Equal(types.SubmissionStatusSubmitted, done.Status)
		s.True(done.IsLocked)
		s.NotNil(done.SubmittedAt)
		locked = done
	})

	s.Run("SubmitTwice", func() {
		s.Require().NotNil(locked)

		_, err := Submit(ctx, s.db, owner.ID, time.Now().Add(time.Hour))
		s.ErrorIs(err, srverr.ErrAlreadyLocked)

		_, _, err = SaveDraft(ctx, s.db, owner.ID, &types.SubmissionDraftRequest{
			Title: strPtr("Rewritten"),
			Step:  1,
		}, "TGG", time.Now())
		s.ErrorIs(err, srverr.ErrLocked)

		reloaded, err := ByID[Submission](ctx, s.db, sub.ID)
		s.Require().NoError(err)
		s.Equal(types.SubmissionStatusSubmitted, reloaded.Status)
		s.Equal(locked.Title, reloaded.Title)
		s.Equal(locked.ProblemStatement, reloaded.ProblemStatement)
		s.Equal(locked.ReferenceCode, reloaded.ReferenceCode)
		s.Require().NotNil(reloaded.SubmittedAt)
		s.WithinDuration(*locked.SubmittedAt, *reloaded.SubmittedAt, time.Millisecond)
	})

	s.Run("LockedDraft", func() {
		_, _, err := SaveDraft(ctx, s.db, owner.ID, &types.SubmissionDraftRequest{Step: 1}, "TGG", time.Now())
		s.ErrorIs(err, srverr.ErrLocked)
	})

	s.Run("Transitions", func() {
		moved, from, err := TransitionStatus(ctx, s.db, sub.ID, types.SubmissionStatusUnderReview, s.admin)
		s.Require().NoError(err)
		s.Equal(types.SubmissionStatusSubmitted, from)
		s.Equal(types.SubmissionStatusUnderReview, moved.Status)

		_, _, err = TransitionStatus(ctx, s.db, sub.ID, types.SubmissionStatusDraft, s.admin)
		s.ErrorIs(err, srverr.ErrIllegalTransition)

		_, _, err = TransitionStatus(ctx, s.db, uuid.New(), types.SubmissionStatusWinner, s.admin)
		s.ErrorIs(err, srverr.ErrNotFound)
	})
}

func (s *ModelsTestSuite) TestSubmitWithoutDraft() {
	owner := s.register("ada@example.com", types.UniversityUST)
	_, err := Submit(context.Background(), s.db, owner.ID, time.Now())
	s.ErrorIs(err, srverr.ErrNotFound)
}

func (s *ModelsTestSuite) document(name string) *SubmissionFile {
	return &SubmissionFile{
		Kind:        types.FileKindDocument,
		Name:        name,
		Path:        "files/" + name,
		ContentType: "application/pdf",
		SHA256:      "00",
		Size:        10,
	}
}

func (s *ModelsTestSuite) TestSubmissionFiles() {
	ctx := context.Background()
	owner := s.register("ada@example.com", types.UniversityUST)
	stranger := s.register("bob@example.com", types.UniversityUST)

	_, _, err := SaveDraft(ctx, s.db, owner.ID, completeDraft(), "TGG", time.Now())
	s.Require().NoError(err)

	s.Run("NoSubmission", func() {
		_, err := PrepareFileUpload(ctx, s.db, stranger.ID, types.FileKindDocument)
		s.ErrorIs(err, srverr.ErrNotFound)
	})

	s.Run("CountCap", func() {
		for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
			_, err := PrepareFileUpload(ctx, s.db, owner.ID, types.FileKindDocument)
			s.Require().NoError(err)
			s.Require().NoError(AddSubmissionFile(ctx, s.db, owner.ID, s.document(name)))
		}

		_, err := PrepareFileUpload(ctx, s.db, owner.ID, types.FileKindDocument)
		verr, ok := srverr.IsValidation(err)
		s.Require().True(ok, "expected validation error, got %v", err)
		s.Equal("file", verr.Field)

		err = AddSubmissionFile(ctx, s.db, owner.ID, s.document("d.pdf"))
		_, ok = srverr.IsValidation(err)
		s.True(ok, "expected validation error, got %v", err)

		_, err = PrepareFileUpload(ctx, s.db, owner.ID, types.FileKindImage)
		s.NoError(err, "images have their own cap")
	})

	sub, err := SubmissionByOwner(ctx, s.db, owner.ID)
	s.Require().NoError(err)
	files, err := FilesForSubmission(ctx, s.db, sub.ID)
	s.Require().NoError(err)
	s.Require().Len(files, 3)

	s.Run("FailedRemoveKeepsRow", func() {
		_, err := DeleteSubmissionFile(ctx, s.db, owner.ID, files[0].ID,
			func(context.Context, *SubmissionFile) error { return errors.New("storage down") },
		)
		s.Require().Error(err)

		exists, err := Exists[SubmissionFile](ctx, s.db, "id = ?", files[0].ID)
		s.Require().NoError(err)
		s.True(exists)
	})

	s.Run("Delete", func() {
		var removed string
		deleted, err := DeleteSubmissionFile(ctx, s.db, owner.ID, files[0].ID,
			func(_ context.Context, f *SubmissionFile) error {
				removed = f.Path
				return nil
			},
		)
		s.Require().NoError(err)
		s.Equal(files[0].ID, deleted.ID)
		s.Equal(files[0].Path, removed)

		remaining, err := FilesForSubmission(ctx, s.db, sub.ID)
		s.Require().NoError(err)
		s.Len(remaining, 2)
	})

	s.Run("OthersFile", func() {
		_, _, err := SaveDraft(ctx, s.db, stranger.ID, completeDraft(), "TGG", time.Now())
		s.Require().NoError(err)

		_, err = DeleteSubmissionFile(ctx, s.db, stranger.ID, files[1].ID,
			func(context.Context, *SubmissionFile) error { return nil },
		)
		s.ErrorIs(err, srverr.ErrNotFound)
	})

	s.Run("LockedAfterSubmit", func() {
		_, err := Submit(ctx, s.db, owner.ID, time.Now())
		s.Require().NoError(err)

		_, err = PrepareFileUpload(ctx, s.db, owner.ID, types.FileKindImage)
		s.ErrorIs(err, srverr.ErrLocked)

		err = AddSubmissionFile(ctx, s.db, owner.ID, s.document("late.pdf"))
		s.ErrorIs(err, srverr.ErrLocked)

		_, err = DeleteSubmissionFile(ctx, s.db, owner.ID, files[1].ID,
			func(context.Context, *SubmissionFile) error { return nil },
		)
		s.ErrorIs(err, srverr.ErrLocked)

		remaining, err := FilesForSubmission(ctx, s.db, sub.ID)
		s.Require().NoError(err)
		s.Len(remaining, 2)
	})
}

func (s *ModelsTestSuite) TestTeams() {
	ctx := context.Background()
	uni := types.UniversityUST
	lead := s.register("lead@example.com", uni)
	bob := s.register("bob@example.com", uni)
	cy := s.register("cy@example.com", uni)

	team, err := CreateTeam(ctx, s.db, lead.ID, "Green", &uni)
	s.Require().NoError(err)

	_, err = CreateTeam(ctx, s.db, lead.ID, "Again", &uni)
	s.ErrorIs(err, srverr.ErrDuplicateTeam)

	_, _, err = InviteMember(ctx, s.db, team.ID, bob.ID, "cy@example.com", 2)
	s.ErrorIs(err, srverr.ErrForbidden, "only the lead may invite")

	_, _, err = InviteMember(ctx, s.db, team.ID, lead.ID, "lead@example.com", 2)
	s.ErrorIs(err, srverr.ErrAlreadyInvited)

	_, invite, err := InviteMember(ctx, s.db, team.ID, lead.ID, "BOB@example.com", 2)
	s.Require().NoError(err)
	s.Equal("bob@example.com", invite.Email)
	s.Require().NotNil(invite.InviteToken)

	_, _, err = InviteMember(ctx, s.db, team.ID, lead.ID, "bob@example.com", 2)
	s.ErrorIs(err, srverr.ErrAlreadyInvited)

	_, cyInvite, err := InviteMember(ctx, s.db, team.ID, lead.ID, "cy@example.com", 2)
	s.Require().NoError(err)

	joined, err := AcceptInvite(ctx, s.db, *invite.InviteToken, bob.ID, 2, time.Now())
	s.Require().NoError(err)
	s.Equal(team.ID, joined.ID)

	_, err = AcceptInvite(ctx, s.db, *invite.InviteToken, bob.ID, 2, time.Now())
	s.ErrorIs(err, srverr.ErrInvalidToken, "token is spent")

	_, err = AcceptInvite(ctx, s.db, *cyInvite.InviteToken, cy.ID, 2, time.Now())
	s.ErrorIs(err, srverr.ErrTeamFull)

	s.Require().NoError(DeclineInvite(ctx, s.db, *cyInvite.InviteToken, time.Now()))

	got, err := TeamForPrincipal(ctx, s.db, bob.ID)
	s.Require().NoError(err)
	s.Equal(2, got.AcceptedCount())
	s.Equal("Ada Obi", got.Names[bob.ID])

	_, err = TeamForPrincipal(ctx, s.db, cy.ID)
	s.ErrorIs(err, srverr.ErrNotFound)

	s.Run("FullAtInvite", func() {
		_, _, err := InviteMember(ctx, s.db, team.ID, lead.ID, "dee@example.com", 2)
		s.ErrorIs(err, srverr.ErrTeamFull)

		exists, err := Exists[TeamMember](ctx, s.db, "email = ?", "dee@example.com")
		s.Require().NoError(err)
		s.False(exists, "no invite row when the team is full")
	})

	s.Run("AlreadyOnTeam", func() {
		rival := s.register("rival@example.com", uni)
		other, err := CreateTeam(ctx, s.db, rival.ID, "Blue", &uni)
		s.Require().NoError(err)

		_, bobInvite, err := InviteMember(ctx, s.db, other.ID, rival.ID, "bob@example.com", 5)
		s.Require().NoError(err)
		_, err = AcceptInvite(ctx, s.db, *bobInvite.InviteToken, bob.ID, 5, time.Now())
		s.ErrorIs(err, srverr.ErrAlreadyOnTeam, "accepted member of another team")

		_, leadInvite, err := InviteMember(ctx, s.db, other.ID, rival.ID, "lead@example.com", 5)
		s.Require().NoError(err)
		_, err = AcceptInvite(ctx, s.db, *leadInvite.InviteToken, lead.ID, 5, time.Now())
		s.ErrorIs(err, srverr.ErrAlreadyOnTeam, "lead of another team")

		got, err := TeamForPrincipal(ctx, s.db, bob.ID)
		s.Require().NoError(err)
		s.Equal(team.ID, got.Team.ID, "membership unchanged")
	})
}

func (s *ModelsTestSuite) TestJudging() {
	ctx := context.Background()
	owner := s.register("ada@example.com", types.UniversityUST)
	other := s.register("bob@example.com", types.UniversityIAUE)
	sub := s.submitted(owner)
	otherSub := s.submitted(other)

	staff, err := ProvisionStaff(ctx, s.db, s.admin, types.RoleJudge, &types.CreateStaffRequest{
		Email:    "judge@example.com",
		FullName: "Jo Judge",
	})
	s.Require().NoError(err)
	judge := s.identity(staff.Principal)

	impact, err := CreateCriterion(ctx, s.db, &types.CriterionRequest{Name: "Impact", MaxScore: 10, Weight: 60}, s.admin)
	s.Require().NoError(err)
	novelty, err := CreateCriterion(ctx, s.db, &types.CriterionRequest{Name: "Novelty", MaxScore: 5, Weight: 40}, s.admin)
	s.Require().NoError(err)

	_, err = AssignJudge(ctx, s.db, owner.ID, sub.ID, s.admin)
	_, ok := srverr.IsValidation(err)
	s.True(ok, "participants cannot be assigned as judges")

	assignment, err := AssignJudge(ctx, s.db, staff.Principal.ID, sub.ID, s.admin)
	s.Require().NoError(err)

	s.Run("DraftNotAssignable", func() {
		editing := s.register("cy@example.com", types.UniversityUST)
		draft, _, err := SaveDraft(ctx, s.db, editing.ID, completeDraft(), "TGG", time.Now())
		s.Require().NoError(err)

		_, err = AssignJudge(ctx, s.db, staff.Principal.ID, draft.ID, s.admin)
		verr, ok := srverr.IsValidation(err)
		s.Require().True(ok, "expected validation error, got %v", err)
		s.Equal("submission_id", verr.Field)

		exists, err := Exists[JudgeAssignment](ctx, s.db, "submission_id = ?", draft.ID)
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("TerminalNotAssignable", func() {
		_, _, err := TransitionStatus(ctx, s.db, otherSub.ID, types.SubmissionStatusDisqualified, s.admin)
		s.Require().NoError(err)

		_, err = AssignJudge(ctx, s.db, staff.Principal.ID, otherSub.ID, s.admin)
		_, ok := srverr.IsValidation(err)
		s.True(ok, "expected validation error, got %v", err)
	})

	s.Run("MissingSubmission", func() {
		_, err := AssignJudge(ctx, s.db, staff.Principal.ID, uuid.New(), s.admin)
		s.ErrorIs(err, srverr.ErrNotFound)
	})

	s.Run("NotAssigned", func() {
		_, err := BlindSubmissionForJudge(ctx, s.db, judge, otherSub.ID)
		s.ErrorIs(err, srverr.ErrForbidden)

		_, err = RecordScore(ctx, s.db, judge, otherSub.ID, &types.ScoreRequest{Scores: map[string]float64{}}, time.Now())
		s.ErrorIs(err, srverr.ErrForbidden)
	})

	s.Run("Blind", func() {
		blind, err := BlindSubmissionForJudge(ctx, s.db, judge, sub.ID)
		s.Require().NoError(err)
		s.Equal(sub.ReferenceCode, blind.Submission.ReferenceCode)
		s.Len(blind.Criteria, 2)
		s.Nil(blind.MyScore)
	})

	s.Run("Score", func() {
		partial := &types.ScoreRequest{Scores: map[string]float64{impact.ID.String(): 5}}
		score, err := RecordScore(ctx, s.db, judge, sub.ID, partial, time.Now())
		s.Require().NoError(err)
		s.False(score.IsSubmitted)
		s.InDelta(30, score.TotalScore, 0.001)

		partial.Submit = true
		_, err = RecordScore(ctx, s.db, judge, sub.ID, partial, time.Now())
		s.ErrorIs(err, srverr.ErrIncompleteScoring)

		full := &types.ScoreRequest{
			Scores: map[string]float64{impact.ID.String(): 10, novelty.ID.String(): 2.5},
			Submit: true,
		}
		score, err = RecordScore(ctx, s.db, judge, sub.ID, full, time.Now())
		s.Require().NoError(err)
		s.True(score.IsSubmitted)
		s.InDelta(80, score.TotalScore, 0.001)

		rows, err := AssignmentsForJudge(ctx, s.db, staff.Principal.ID)
		s.Require().NoError(err)
		s.Require().Len(rows, 1)
		s.True(rows[0].Scored)
	})

	s.Run("Leaderboard", func() {
		board, err := Leaderboard(ctx, s.db, s.admin)
		s.Require().NoError(err)
		s.Require().Len(board, 1)
		s.Equal(1, board[0].Rank)
		s.Equal(sub.ID, board[0].Submission.ID)
		s.InDelta(80, board[0].Average, 0.001)
	})

	s.Run("Unassign", func() {
		removed, err := UnassignJudge(ctx, s.db, assignment.ID, s.admin)
		s.Require().NoError(err)
		s.Require().NotNil(removed)

		removed, err = UnassignJudge(ctx, s.db, assignment.ID, s.admin)
		s.Require().NoError(err)
		s.Nil(removed, "second removal is a no-op")
	})
}

func (s *ModelsTestSuite) TestStatsScope() {
	ctx := context.Background()
	s.submitted(s.register("ada@example.com", types.UniversityUST))
	s.register("bob@example.com", types.UniversityUST)
	s.submitted(s.register("cy@example.com", types.UniversityIAUE))

	all, err := CollectStats(ctx, s.db, nil)
	s.Require().NoError(err)
	s.EqualValues(3, all.Participants)
	s.EqualValues(2, all.Submissions)

	ust := types.UniversityUST
	scoped, err := CollectStats(ctx, s.db, &ust)
	s.Require().NoError(err)
	s.EqualValues(2, scoped.Participants)
	s.EqualValues(1, scoped.Submissions)
	s.EqualValues(1, scoped.ByStatus[types.SubmissionStatusSubmitted])

	rows, err := ListSubmissions(ctx, s.db, nil, &ust)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("Ada Obi", rows[0].OwnerName())
}

func (s *ModelsTestSuite) TestSettings() {
	ctx := context.Background()

	empty, err := GetSettings(ctx, s.db)
	s.Require().NoError(err)
	s.Nil(empty.SubmissionDeadline)

	deadline := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	_, err = UpdateSettings(ctx, s.db, &types.ChallengeSettings{SubmissionDeadline: &deadline, JudgingLocked: true}, s.admin)
	s.Require().NoError(err)

	got, err := GetSettings(ctx, s.db)
	s.Require().NoError(err)
	s.Require().NotNil(got.SubmissionDeadline)
	s.True(deadline.Equal(*got.SubmissionDeadline))
	s.True(got.JudgingLocked)

	patched, err := PatchSettings(ctx, s.db, &types.SettingsPatch{JudgingLocked: types.NewFromVal(false)}, s.admin)
	s.Require().NoError(err)
	s.False(patched.JudgingLocked)
	s.Require().NotNil(patched.SubmissionDeadline)
	s.True(deadline.Equal(*patched.SubmissionDeadline))

	participant := s.identity(s.register("pat@example.com", types.UniversityUST))
	_, err = PatchSettings(ctx, s.db, &types.SettingsPatch{}, participant)
	s.ErrorIs(err, srverr.ErrForbidden)
}
