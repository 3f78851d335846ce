package v1

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/calendar"
	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	servermiddleware "github.com/tggeco/challenge-api/cmd/server/internal/middleware"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/cmd/server/internal/ratelimit"
	"github.com/tggeco/challenge-api/cmd/server/internal/response"
	"github.com/tggeco/challenge-api/internal/audit"
	"github.com/tggeco/challenge-api/internal/config"
	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/notify"
	"github.com/tggeco/challenge-api/internal/types"
	"github.com/tggeco/challenge-api/internal/upload"
)

const name = "github.com/tggeco/challenge-api/cmd/server/internal/routes/v1"

var tracer = otel.Tracer(name)

// Context keys set by middleware
const (
	identityKey = "identity"
	settingsKey = "settings"
	timeKey     = "time"

	submissionKey = "submission"
)

// How long presigned file and photo links stay valid
const presignDuration = time.Hour

type Handler struct {
	DB                 *gorm.DB
	config             *config.Config
	submissionUploader upload.Uploader
	photoUploader      upload.Uploader
	outbox             notify.Outbox
}

// Signed in callers are limited per principal, anonymous ones per client address
func rateLimitIdentifier(c echo.Context) (string, error) {
	if identity, ok := c.Get(identityKey).(*access.Identity); ok {
		return identity.PrincipalID, nil
	}

	ip := c.RealIP()
	if ip == "" {
		return "", srverr.ErrTypeAssertMismatch
	}
	return "ip:" + ip, nil
}

func NewRedisLimiter(
	redisHost string,
	limiterKey string,
	perMinute int64,
	failOpen bool,
	onlyMethod *string,
) middleware.RateLimiterConfig {
	l := logger.Logger
	var store middleware.RateLimiterStore

	redisAddr := redisHost + ":6379"
	l.Debug("Setting up rate limiter with Redis", "redis", redisAddr, "key", limiterKey)
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	rdConf := &ratelimit.RedisLimiterConfig{
		PerMinute:   perMinute,
		RedisClient: rdb,
		LimiterKey:  limiterKey,
		FailOpen:    failOpen,
	}
	store = ratelimit.NewRedisLimitStore(*rdConf)

	skipper := middleware.DefaultSkipper
	if onlyMethod != nil {
		skipper = func(c echo.Context) bool {
			return c.Request().Method != *onlyMethod
		}
	}

	return middleware.RateLimiterConfig{
		Skipper: skipper,
		Store:   store,
		IdentifierExtractor: rateLimitIdentifier,
		ErrorHandler: func(context echo.Context, _ error) error {
			return context.JSON(http.StatusForbidden, nil)
		},
		DenyHandler: func(context echo.Context, _ string, _ error) error {
			return context.JSON(http.StatusTooManyRequests, nil)
		},
	}
}

func NewHandler(
	db *gorm.DB,
	cfg *config.Config,
	submissionUploader upload.Uploader,
	photoUploader upload.Uploader,
	outbox notify.Outbox,
) Handler {
	return Handler{
		DB:                 db,
		config:             cfg,
		submissionUploader: submissionUploader,
		photoUploader:      photoUploader,
		outbox:             outbox,
	}
}

func (h *Handler) submitLimiter() []echo.MiddlewareFunc {
	if h.config.RateLimit == nil || h.config.RateLimit.SubmitPerMinute <= 0 {
		return nil
	}

	return []echo.MiddlewareFunc{
		middleware.RateLimiterWithConfig(
			NewRedisLimiter(
				h.config.RateLimit.RedisHost,
				"submit",
				h.config.RateLimit.SubmitPerMinute,
				h.config.RateLimit.FailOpen,
				nil,
			),
		),
	}
}

func (h *Handler) AddRoutes(e *echo.Echo, middlewareHandler *servermiddleware.Handler) {
	l := logger.Logger

	v1Group := e.Group("/v1")
	authed := middleware.BasicAuth(middlewareHandler.BasicAuthValidator)
	settings := middlewareHandler.Settings(settingsKey)

	protected := []echo.MiddlewareFunc{authed}
	if h.config.RateLimit != nil && h.config.RateLimit.GlobalPerMinute > 0 {
		protected = append(protected,
			middleware.RateLimiterWithConfig(
				NewRedisLimiter(
					h.config.RateLimit.RedisHost,
					"global",
					h.config.RateLimit.GlobalPerMinute,
					h.config.RateLimit.FailOpen,
					nil,
				),
			),
		)
	} else {
		l.Warn("not configured to have a global rate limit")
	}

	submitLimiter := h.submitLimiter()
	if submitLimiter == nil {
		l.Warn("not configured to have a submit rate limit")
	}

	submissionWindow := servermiddleware.Window(settingsKey, timeKey, calendar.Submission)

	// public
	v1Group.POST(
		"/register/",
		h.Register,
		settings,
		servermiddleware.Window(settingsKey, timeKey, calendar.Registration),
	)
	v1Group.GET("/categories/", h.ListCategories)
	v1Group.POST("/password/reset/", h.RequestPasswordReset, submitLimiter...)
	v1Group.POST("/password/reset/confirm/", h.ConfirmPasswordReset, submitLimiter...)

	// any signed in principal
	v1Group.GET("/me/", h.Me, protected...)
	v1Group.PUT("/me/password/", h.ChangePassword, protected...)
	v1Group.GET(
		"/settings/",
		h.GetSettings,
		slices.Concat(protected, []echo.MiddlewareFunc{
			servermiddleware.RequireCapability(identityKey, access.OpViewSettings),
		})...,
	)

	participantGroup := v1Group.Group("/participant", protected...)

	profileGroup := participantGroup.Group(
		"/profile",
		servermiddleware.RequireCapability(identityKey, access.OpEditOwnProfile),
	)
	profileGroup.GET("/", h.GetProfile)
	profileGroup.PUT("/", h.UpdateProfile)
	profileGroup.PUT("/photo/", h.UploadPhoto)

	submissionGroup := participantGroup.Group(
		"/submission",
		servermiddleware.RequireCapability(identityKey, access.OpEditOwnSubmission),
	)
	windowed := []echo.MiddlewareFunc{settings, submissionWindow}
	submissionGroup.GET("/", h.GetSubmission)
	submissionGroup.PUT("/", h.SaveDraft, slices.Concat(windowed, submitLimiter)...)
	submissionGroup.POST("/submit/", h.Submit, slices.Concat(windowed, submitLimiter)...)
	submissionGroup.POST("/files/", h.UploadFile, slices.Concat(windowed, submitLimiter)...)
	submissionGroup.DELETE("/files/:file_id/", h.DeleteFile, windowed...)

	teamGroup := participantGroup.Group("/team")
	teamGroup.GET("/", h.GetTeam, servermiddleware.RequireCapability(identityKey, access.OpManageOwnTeam))
	teamGroup.POST("/", h.CreateTeam, servermiddleware.RequireCapability(identityKey, access.OpManageOwnTeam))
	teamGroup.POST("/invites/", h.Invite, servermiddleware.RequireCapability(identityKey, access.OpManageOwnTeam))
	teamGroup.DELETE(
		"/invites/:member_id/",
		h.RevokeInvite,
		servermiddleware.RequireCapability(identityKey, access.OpManageOwnTeam),
	)
	teamGroup.POST("/accept/", h.AcceptInvite, servermiddleware.RequireCapability(identityKey, access.OpRespondToInvite))
	teamGroup.POST("/decline/", h.DeclineInvite, servermiddleware.RequireCapability(identityKey, access.OpRespondToInvite))

	judgeGroup := v1Group.Group(
		"/judge",
		slices.Concat(protected, []echo.MiddlewareFunc{
			servermiddleware.RequireCapability(identityKey, access.OpScoreAssigned),
		})...,
	)
	judgeGroup.GET("/assignments/", h.MyAssignments)
	judgeGroup.GET("/submissions/:submission_id/", h.BlindSubmission, settings)
	judgeGroup.PUT(
		"/submissions/:submission_id/score/",
		h.RecordScore,
		settings,
		servermiddleware.Window(settingsKey, timeKey, calendar.Judging),
	)

	adminGroup := v1Group.Group("/admin", protected...)

	adminGroup.PUT(
		"/submissions/:submission_id/status/",
		h.TransitionStatus,
		servermiddleware.RequireCapability(identityKey, access.OpTransitionStatus),
	)
	adminGroup.GET(
		"/submissions/:submission_id/assignments/",
		h.SubmissionAssignments,
		servermiddleware.RequireCapability(identityKey, access.OpManageAssignments),
		servermiddleware.PopulateFromIDParam[models.Submission](middlewareHandler, "submission_id", submissionKey),
	)
	adminGroup.POST("/assignments/", h.Assign, servermiddleware.RequireCapability(identityKey, access.OpManageAssignments))
	adminGroup.DELETE(
		"/assignments/:assignment_id/",
		h.Unassign,
		servermiddleware.RequireCapability(identityKey, access.OpManageAssignments),
	)
	adminGroup.GET("/leaderboard/", h.Leaderboard, servermiddleware.RequireCapability(identityKey, access.OpViewLeaderboard))
	adminGroup.PUT("/settings/", h.UpdateSettings, servermiddleware.RequireCapability(identityKey, access.OpManageSettings))
	adminGroup.PATCH("/settings/", h.PatchSettings, servermiddleware.RequireCapability(identityKey, access.OpManageSettings))

	criteriaGroup := adminGroup.Group(
		"/criteria",
		servermiddleware.RequireCapability(identityKey, access.OpManageCriteria),
	)
	criteriaGroup.GET("/", h.ListCriteria)
	criteriaGroup.POST("/", h.CreateCriterion)
	criteriaGroup.PUT("/:criterion_id/", h.UpdateCriterion)
	criteriaGroup.DELETE("/:criterion_id/", h.DeleteCriterion)

	categoriesGroup := adminGroup.Group(
		"/categories",
		servermiddleware.RequireCapability(identityKey, access.OpManageCategories),
	)
	categoriesGroup.POST("/", h.CreateCategory)
	categoriesGroup.DELETE("/:category_id/", h.DeleteCategory)

	staffGroup := adminGroup.Group("", servermiddleware.RequireCapability(identityKey, access.OpProvisionStaff))
	staffGroup.POST("/coordinators/", h.ProvisionCoordinator)
	staffGroup.GET("/coordinators/", h.ListCoordinators)
	staffGroup.POST("/judges/", h.ProvisionJudge)
	staffGroup.GET("/judges/", h.ListJudges)

	// admins see every university, coordinators only their own
	adminViews := adminGroup.Group("", servermiddleware.RequireCapability(identityKey, access.OpViewAnyUniversity))
	coordinatorViews := v1Group.Group(
		"/coordinator",
		slices.Concat(protected, []echo.MiddlewareFunc{
			servermiddleware.RequireCapability(identityKey, access.OpViewOwnUniversity),
		})...,
	)
	for _, g := range []*echo.Group{adminViews, coordinatorViews} {
		g.GET("/participants/", h.ListParticipants, servermiddleware.RequireCapability(identityKey, access.OpViewParticipants))
		g.GET(
			"/participants/:participant_id/",
			h.ParticipantDetail,
			servermiddleware.RequireCapability(identityKey, access.OpViewParticipants, access.OpViewParticipantPII),
		)
		g.GET("/submissions/", h.ListSubmissions, servermiddleware.RequireCapability(identityKey, access.OpViewSubmissions))
		g.GET("/stats/", h.Stats, servermiddleware.RequireCapability(identityKey, access.OpViewSubmissions))
		g.GET("/export/", h.Export, servermiddleware.RequireCapability(identityKey, access.OpExportCSV))
	}
}

// Reads a typed value set by middleware
func fromContext[T any](c echo.Context, span trace.Span, key string) (T, error) {
	v, ok := c.Get(key).(T)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("%s: %s", key, srverr.ErrTypeAssertMismatch))
		return v, response.InternalServerError
	}
	return v, nil
}

func principalID(identity *access.Identity, span trace.Span) (uuid.UUID, error) {
	id, err := uuid.Parse(identity.PrincipalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse principal id")
		return uuid.Nil, response.InternalServerError
	}
	return id, nil
}

func paramID(c echo.Context, span trace.Span, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, fmt.Sprintf("invalid %s", param))
		return uuid.Nil, response.NotFoundError
	}
	return id, nil
}

func bindAndValidate(c echo.Context, span trace.Span, dst any) error {
	span.AddEvent("parsing request body")
	if err := c.Bind(dst); err != nil {
		span.SetStatus(codes.Ok, "failed to parse request data")
		span.RecordError(err)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.StringError("failed to parse request data"),
		)
	}

	span.AddEvent("validating request body")
	if err := c.Validate(dst); err != nil {
		span.SetStatus(codes.Ok, "failed to validate request data")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}

	return nil
}

func validateQuery(c echo.Context, span trace.Span, dst any) error {
	if err := c.Validate(dst); err != nil {
		span.SetStatus(codes.Ok, "failed to validate query")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}
	return nil
}

func optionalQuery[T ~string](c echo.Context, param string) *T {
	v := c.QueryParam(param)
	if v == "" {
		return nil
	}
	t := T(v)
	return &t
}

// Maps a domain error onto the response, recording it on the span. Domain
// rejections are not span errors.
func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	httpErr := response.FromError(err)
	if httpErr.Code >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, msg)
	} else {
		span.SetStatus(codes.Ok, msg)
	}
	return httpErr
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", srverr.ErrNotFound, what)
	}
	return err
}

func auditContext(identity *access.Identity) audit.Context {
	if identity == nil {
		return audit.Context{}
	}
	return audit.Context{ActorID: identity.PrincipalID}
}
