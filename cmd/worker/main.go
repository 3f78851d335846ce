package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tggeco/challenge-api/cmd/worker/cmds"
	"github.com/tggeco/challenge-api/internal/logger"
	otelchallengeapi "github.com/tggeco/challenge-api/internal/otel"
	workererrors "github.com/tggeco/challenge-api/internal/worker_errors"
)

var tracer = otel.Tracer("github.com/tggeco/challenge-api/worker")

func runApp(ctx context.Context) int {
	useOTLP, err := strconv.ParseBool(os.Getenv("USE_OTLP"))
	if err != nil {
		logger.Logger.Warn("USE_OTLP env var is invalid", "error", err)
		useOTLP = false
	}

	shutdown, err := otelchallengeapi.SetupOTelSDK(ctx, "challenge-worker", useOTLP)
	if err != nil {
		logger.Logger.Warn("failed to setup otel sdk")
	}
	defer func() {
		if shutdown == nil {
			return
		}
		// ctx is already cancelled by the time the consumers stop
		fail := shutdown(context.WithoutCancel(ctx))
		if fail != nil {
			logger.Logger.Warn("no clean shutdown for otel", "error", fail)
		}
	}()

	ctx, span := tracer.Start(ctx, "Worker", trace.WithNewRoot())
	defer span.End()

	err = cmds.Execute(ctx)
	if err != nil {
		logger.Logger.Error("error executing subcommands", "error", err)

		var ee workererrors.ExitError
		if errors.As(err, &ee) {
			return ee.Code
		}
		return cmds.ExitErrored
	}

	return 0
}

func main() {
	logger.InitSlog()
	if level, err := strconv.Atoi(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.LogLevel.Set(slog.LevelInfo)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	code := runApp(ctx)
	cancel()

	os.Exit(code)
}
