package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/mock/gomock"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/middleware"
	"github.com/tggeco/challenge-api/cmd/server/internal/migrations"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/cmd/server/internal/routes"
	routesv1 "github.com/tggeco/challenge-api/cmd/server/internal/routes/v1"
	"github.com/tggeco/challenge-api/internal/config"
	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/notify"
	mocknotify "github.com/tggeco/challenge-api/internal/notify/mock"
	"github.com/tggeco/challenge-api/internal/otel"
	"github.com/tggeco/challenge-api/internal/types"
	mockuploader "github.com/tggeco/challenge-api/internal/upload/mock"
)

const (
	adminPassword       = "i am a very secure password"
	participantPassword = "correct horse battery"
)

type clientAuth struct {
	email    string
	password string
}

// Principals seeded before every test
type seeded struct {
	admin       clientAuth
	coordinator clientAuth
	judge       clientAuth
	judgeID     uuid.UUID
	ada         clientAuth
	adaID       uuid.UUID
	bob         clientAuth
	cy          clientAuth
	cyID        uuid.UUID
}

type ServerTestSuite struct {
	suite.Suite

	uploader *mockuploader.MockUploader
	outbox   *mocknotify.MockOutbox

	eventsMu sync.Mutex
	events   []notify.Event

	storeMu  sync.Mutex
	uploaded []string
	removed  []string

	config       *config.Config
	postgres     *postgres.PostgresContainer
	db           *gorm.DB
	otelShutdown func(context.Context) error
	server       *httptest.Server
	seeded       seeded
}

func (s *ServerTestSuite) SetupSuite() {
	ctrl := gomock.NewController(s.T())
	s.uploader = mockuploader.NewMockUploader(ctrl)
	s.outbox = mocknotify.NewMockOutbox(ctrl)

	logger.InitSlog()

	s.config = &config.Config{
		App: &config.AppConfig{
			URL:                     "https://eco.example.com",
			ReferencePrefix:         "TGG",
			AutosaveIntervalSeconds: 60,
			MaxTeamSize:             3,
		},
		Admins: []config.Admin{
			{Email: "admin@example.com", Password: adminPassword, FirstName: "Ade"},
		},
	}

	postgresContainer, err := postgres.Run(
		s.T().Context(),
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

	dsn, err := s.postgres.ConnectionString(s.T().Context())
	s.Require().NoError(err, "failed to get connection string to container")

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{TranslateError: true})
	s.Require().NoError(err, "failed to connect to the database")
	s.db = db

	err = migrations.Up(s.T().Context(), db)
	s.Require().NoError(err, "failed to run up migrations")

	shutdownOTel, err := otel.SetupOTelSDK(s.T().Context(), "challenge-api", false)
	s.Require().NoError(err, "could not setup otel")
	s.otelShutdown = shutdownOTel

	s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ io.ReadSeeker, _ int64, _ string, path string) error {
			s.storeMu.Lock()
			defer s.storeMu.Unlock()
			s.uploaded = append(s.uploaded, path)
			return nil
		}).
		AnyTimes()
	s.uploader.EXPECT().Delete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string) error {
			s.storeMu.Lock()
			defer s.storeMu.Unlock()
			s.removed = append(s.removed, path)
			return nil
		}).
		AnyTimes()
	s.uploader.EXPECT().EnsureStore(gomock.Any()).Return(nil).AnyTimes()
	s.uploader.EXPECT().PresignedReadURL(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string, _ time.Duration) (string, error) {
			return "https://files.example.com/" + path, nil
		}).
		AnyTimes()
	s.outbox.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, event notify.Event) {
			s.eventsMu.Lock()
			defer s.eventsMu.Unlock()
			s.events = append(s.events, event)
		}).
		AnyTimes()
}

func (s *ServerTestSuite) SetupTest() {
	ctx := s.T().Context()

	err := s.db.Exec(`TRUNCATE principal, user_roles, profiles, submissions, submission_files, teams,
		team_members, judge_assignments, judging_criteria, judging_scores, challenge_settings,
		challenge_categories CASCADE`).Error
	s.Require().NoError(err, "failed to truncate tables")

	s.eventsMu.Lock()
	s.events = nil
	s.eventsMu.Unlock()

	s.storeMu.Lock()
	s.uploaded, s.removed = nil, nil
	s.storeMu.Unlock()

	s.Require().NoError(seedDB(ctx, s.db, s.config, &s.seeded), "failed to seed db")

	v1Handler := routesv1.NewHandler(s.db, s.config, s.uploader, s.uploader, s.outbox)
	middlewareHandler := middleware.Handler{DB: s.db}

	e, err := routes.BuildEcho(logger.Logger)
	s.Require().NoError(err, "failed to construct router")

	v1Handler.AddRoutes(e, &middlewareHandler)

	s.server = httptest.NewServer(e)
}

func (s *ServerTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *ServerTestSuite) TearDownSuite() {
	s.Require().NoError(testcontainers.TerminateContainer(s.postgres))
	s.Require().NoError(s.otelShutdown(context.Background()))
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func seedDB(ctx context.Context, db *gorm.DB, cfg *config.Config, out *seeded) error {
	if err := models.LoadAdminsFromConfig(ctx, db, cfg.Admins); err != nil {
		return err
	}
	out.admin = clientAuth{cfg.Admins[0].Email, cfg.Admins[0].Password}

	admin := &access.Identity{PrincipalID: uuid.NewString(), Role: types.RoleAdmin}
	ust := types.UniversityUST

	coordinator, err := models.ProvisionStaff(ctx, db, admin, types.RoleCoordinator, &types.CreateStaffRequest{
		Email:      "coord@example.com",
		FullName:   "Cy Coordinator",
		University: &ust,
	})
	if err != nil {
		return err
	}
	out.coordinator = clientAuth{coordinator.Principal.Email, coordinator.InitialPassword}

	judge, err := models.ProvisionStaff(ctx, db, admin, types.RoleJudge, &types.CreateStaffRequest{
		Email:    "judge@example.com",
		FullName: "Jo Judge",
	})
	if err != nil {
		return err
	}
	out.judge = clientAuth{judge.Principal.Email, judge.InitialPassword}
	out.judgeID = judge.Principal.ID

	register := func(email, first string, university types.University) (clientAuth, uuid.UUID, error) {
		p, _, err := models.RegisterParticipant(ctx, db, &types.RegisterRequest{
			Email:    email,
			Password: participantPassword,
			ProfileRequest: types.ProfileRequest{
				FirstName:  first,
				LastName:   "Tester",
				University: university,
			},
		})
		if err != nil {
			return clientAuth{}, uuid.Nil, err
		}
		return clientAuth{email, participantPassword}, p.ID, nil
	}

	if out.ada, out.adaID, err = register("ada@example.com", "Ada", types.UniversityUST); err != nil {
		return err
	}
	if out.bob, _, err = register("bob@example.com", "Bob", types.UniversityUST); err != nil {
		return err
	}
	if out.cy, out.cyID, err = register("cy@example.com", "Cyril", types.UniversityIAUE); err != nil {
		return err
	}

	return nil
}

type resp struct {
	header http.Header
	body   string
	code   int
}

func (s *ServerTestSuite) request(method, path string, auth *clientAuth, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err, "failed to encode body")
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(s.T().Context(), method, s.server.URL+path, reader)
	s.Require().NoError(err, "failed to create request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != nil {
		req.SetBasicAuth(auth.email, auth.password)
	}
	return req
}

func (s *ServerTestSuite) do(method, path string, auth *clientAuth, body any) *resp {
	return doRequest(s.T(), s.request(method, path, auth, body))
}

// Sends a multipart form carrying one file under the "file" field
func (s *ServerTestSuite) upload(path string, auth *clientAuth, fields map[string]string, name string, content []byte) *resp {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		s.Require().NoError(w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", name)
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(w.Close())

	req, err := http.NewRequestWithContext(s.T().Context(), http.MethodPost, s.server.URL+path, &body)
	s.Require().NoError(err, "failed to create request")
	req.Header.Set("Content-Type", w.FormDataContentType())
	if auth != nil {
		req.SetBasicAuth(auth.email, auth.password)
	}
	return doRequest(s.T(), req)
}

func doRequest(t *testing.T, req *http.Request) *resp {
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "failed to send http request")
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err, "failed to read body")

	return &resp{header: res.Header, body: string(body), code: res.StatusCode}
}

func decode[T any](t *testing.T, r *resp) T {
	var out T
	require.NoError(t, json.Unmarshal([]byte(r.body), &out), "failed to decode %q", r.body)
	return out
}

func (s *ServerTestSuite) eventsOf(kind notify.Kind) []notify.Event {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	var out []notify.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func strPtr(v string) *string {
	return &v
}

func completeDraft(step int) types.SubmissionDraftRequest {
	return types.SubmissionDraftRequest{
		Title:            strPtr("Solar Kiosks"),
		Category:         strPtr("Energy"),
		ProblemStatement: strPtr("Students lose hours to power cuts"),
		ProposedSolution: strPtr("Solar charging kiosks on campus"),
		ExpectedImpact:   strPtr("Fewer lost study hours"),
		Step:             step,
	}
}

// Saves a complete draft and submits it, returning the submission
func (s *ServerTestSuite) submitAs(auth *clientAuth) types.Submission {
	r := s.do(http.MethodPut, "/v1/participant/submission/", auth, completeDraft(1))
	s.Require().Equal(http.StatusCreated, r.code, r.body)

	r = s.do(http.MethodPost, "/v1/participant/submission/submit/", auth, nil)
	s.Require().Equal(http.StatusOK, r.code, r.body)
	return decode[types.Submission](s.T(), r)
}

func notFoundBodyTester(t *testing.T, body map[string]any) {
	assert.Contains(t, body, "message", "contains message key")
	assert.Contains(t, body["message"], "not found")
}

func unauthorizedBodyTester(t *testing.T, body map[string]any) {
	assert.Contains(t, body, "message", "contains message key")
	assert.Contains(t, body["message"], "Unauthorized")
}

func forbiddenBodyTester(t *testing.T, body map[string]any) {
	assert.Contains(t, body, "message", "contains message key")
	assert.Contains(t, body["message"], "Forbidden")
}

func assertErrorBodyWithFields(t *testing.T, body map[string]any) {
	assert.Contains(t, body, "message", "contains message key")
	assert.Contains(t, body, "fields", "contains fields key")
}
