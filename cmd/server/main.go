package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	sloggorm "github.com/orandin/slog-gorm"
	"github.com/sethvargo/go-retry"
	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"

	_ "github.com/tggeco/challenge-api/cmd/server/docs"
	servermiddleware "github.com/tggeco/challenge-api/cmd/server/internal/middleware"
	"github.com/tggeco/challenge-api/cmd/server/internal/migrations"
	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/cmd/server/internal/routes"
	routesv1 "github.com/tggeco/challenge-api/cmd/server/internal/routes/v1"
	"github.com/tggeco/challenge-api/internal/config"
	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/notify"
	"github.com/tggeco/challenge-api/internal/otel"
	"github.com/tggeco/challenge-api/internal/queue"
	"github.com/tggeco/challenge-api/internal/upload"
)

const name string = "github.com/tggeco/challenge-api/server"

var tracer = otellib.Tracer(name)

type server struct {
	router       *echo.Echo
	config       *config.Config
	db           *gorm.DB
	direct       *notify.DirectOutbox
	otelShutdown func(context.Context) error
}

func initServer(ctx context.Context) (*server, error) {
	server := new(server)

	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server config: %w", err)
	}
	server.config = cfg

	shutdownOTel, err := otel.SetupOTelSDK(ctx, "challenge-api", cfg.Logging.UseOTLP)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTEL SDK: %w", err)
	}
	defer func() {
		// Something failed to initialize, make sure everything gets flushed to the server
		if server.otelShutdown == nil {
			otelShutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				time.Second*time.Duration(cfg.GracefulShutdownSecs),
			)
			defer cancel()

			if err = shutdownOTel(otelShutdownCtx); err != nil {
				logger.Logger.Error("failed to flush otel data", "error", err)
			}
		}
	}()

	ctx, span := tracer.Start(ctx, "initServer")
	defer span.End()

	logger.SetLevel(cfg.Logging.App.Level)
	gormLogger := slog.New(logger.Handler)

	sg := sloggorm.New(
		sloggorm.WithHandler(gormLogger.Handler()),
		sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
	)
	if cfg.Logging.Gorm.TraceQueries {
		sg = sloggorm.New(
			sloggorm.WithHandler(gormLogger.Handler()),
			sloggorm.WithTraceAll(),
			sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
		)
	}

	span.AddEvent("initialized gorm logging")

	db, err := gorm.Open(
		postgres.Open(cfg.PostgresDSN()),
		&gorm.Config{Logger: sg, TranslateError: true},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire underlying database connection")
		return nil, fmt.Errorf("failed to acquire underlying database connection: %w", err)
	}

	// Configure db connection pool
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnectionTTL)

	span.AddEvent("initialized database connection")

	err = db.Use(gormtracing.NewPlugin())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add otel plugin to gorm")
		return nil, fmt.Errorf("failed to add otel plugin to gorm: %w", err)
	}

	span.AddEvent("added the otel plugin to gorm")

	err = migrations.Up(ctx, db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to preform database migrations")
		return nil, fmt.Errorf("failed to perform database migrations: %w", err)
	}

	span.AddEvent("migrated database to latest version")

	if err = models.LoadAdminsFromConfig(ctx, db, cfg.Admins); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load admins from config")
		return nil, fmt.Errorf("failed to load admins from config: %w", err)
	}

	span.AddEvent("loaded admins from config")

	submissionUploader, photoUploader, err := buildUploaders(ctx, cfg.Storage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize storage")
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	span.AddEvent("initialized object storage")

	outbox, direct, err := buildOutbox(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize notifications")
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}
	server.direct = direct

	span.AddEvent("initialized notifications")

	v1Handler := routesv1.NewHandler(
		db,
		cfg,
		submissionUploader,
		photoUploader,
		outbox,
	)
	middlewareHandler := servermiddleware.Handler{DB: db}

	e, err := routes.BuildEcho(logger.Logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error building router")
		return nil, fmt.Errorf("error building router: %w", err)
	}

	span.AddEvent("created echo router")

	v1Handler.AddRoutes(e, &middlewareHandler)

	server.otelShutdown = shutdownOTel
	server.router = e
	server.db = db

	return server, nil
}

// Both stores share one backend and differ only by bucket or container
func buildUploaders(ctx context.Context, cfg *config.StorageConfig) (upload.Uploader, upload.Uploader, error) {
	var submissions, photos upload.Uploader

	switch cfg.Backend {
	case config.StorageBackendS3:
		client, err := upload.NewMinioClient(
			cfg.S3.Endpoint,
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			cfg.S3.SSLEnabled,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to construct s3 client: %w", err)
		}
		submissions = upload.NewMinioUploaderFromClient(client, cfg.SubmissionsBucket)
		photos = upload.NewMinioUploaderFromClient(client, cfg.PhotosBucket)
	case config.StorageBackendAzure:
		client, err := upload.NewAzureClient(
			cfg.Azure.StorageAccount.Name,
			cfg.Azure.StorageAccount.Key,
			cfg.Azure.StorageAccount.ContainerURL,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to construct azure client: %w", err)
		}
		submissions = upload.NewAzureUploaderFromClient(client, cfg.SubmissionsBucket)
		photos = upload.NewAzureUploaderFromClient(client, cfg.PhotosBucket)
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	backoff := func() retry.Backoff {
		b := retry.NewFibonacci(time.Millisecond * 25)
		b = retry.WithMaxRetries(3, b)
		return b
	}
	submissions = upload.NewRetryUploaderBackoff(submissions, backoff)
	photos = upload.NewRetryUploaderBackoff(photos, backoff)

	for _, u := range []upload.Uploader{submissions, photos} {
		if err := u.EnsureStore(ctx); err != nil {
			return nil, nil, err
		}
	}

	return submissions, photos, nil
}

// Queue backed when configured, otherwise emails go out from the server itself
func buildOutbox(ctx context.Context, cfg *config.Config) (notify.Outbox, *notify.DirectOutbox, error) {
	if cfg.QueueConfigured() {
		q, err := queue.NewAzureQueuer(
			cfg.Storage.Azure.StorageAccount.Name,
			cfg.Storage.Azure.StorageAccount.Key,
			cfg.Storage.Azure.StorageAccount.QueueURL,
			cfg.Notifications.Queue.Name,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to construct queue: %w", err)
		}
		if err := q.EnsureQueue(ctx); err != nil {
			return nil, nil, err
		}

		logger.Logger.Info("queueing notifications", "queue", cfg.Notifications.Queue.Name)
		return notify.NewQueueOutbox(q, logger.Logger), nil, nil
	}

	logger.Logger.Warn("notification queue not configured, sending from the server")
	dispatcher := notify.NewDispatcher(notify.NewSender(&cfg.Notifications.Email, logger.Logger), cfg.App.URL, logger.Logger)
	direct := notify.NewDirectOutbox(dispatcher)
	return direct, direct, nil
}

func (s *server) Start() error {
	logger.Logger.Info("Starting services...")

	err := s.router.Start(s.config.ListenAddress)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *server) Shutdown() error {
	var errs error

	ctx, cancelTimeout := context.WithTimeout(
		context.Background(),
		time.Second*time.Duration(s.config.GracefulShutdownSecs),
	)
	defer cancelTimeout()

	if err := s.router.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	// requests are drained so nothing new can be queued
	if s.direct != nil {
		s.direct.Wait()
	}

	if s.otelShutdown != nil {
		errs = errors.Join(errs, s.otelShutdown(ctx))
	}

	return errs
}

//go:generate swag init --parseDependency --parseInternal -d .,./internal/routes/v1 -o ./docs

// @title						TGG Eco-Challenge API
// @version					1.0
// @securityDefinitions.basic	BasicAuth
func main() {
	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	logger.InitSlog()

	server, err := initServer(ctx)
	if err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	errch := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Got shutdown signal!")
		errch <- server.Shutdown()
		close(errch)
	}()

	if err := server.Start(); err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	if err := <-errch; err != nil {
		logger.Logger.Error("Error shutting down server", "error", err)
	}

	cancelSignal()
}
