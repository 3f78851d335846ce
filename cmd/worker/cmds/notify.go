package cmds

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/tggeco/challenge-api/cmd/worker/internal/common"
	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/queue"
	workererrors "github.com/tggeco/challenge-api/internal/worker_errors"
)

var (
	notifyConcurrency int
	notifyTimeout     time.Duration
	notifyPoll        time.Duration
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Deliver queued notification emails until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "notifyCmd")
		defer span.End()

		span.SetAttributes(
			attribute.Int("concurrency", notifyConcurrency),
			attribute.Int64("timeoutSecs", int64(notifyTimeout.Seconds())),
		)

		if notifyConcurrency < 1 {
			err := workererrors.ExitErrorWrap(ExitConfig, errors.New("concurrency must be at least 1"))
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid concurrency")
			return err
		}

		q, err := common.GetAzureQueueClient()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create queue client")
			return workererrors.ExitErrorWrap(ExitConfig, err)
		}
		q.WithPollInterval(notifyPoll)

		dispatcher, err := common.GetDispatcher(logger.Logger)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to configure email delivery")
			return workererrors.ExitErrorWrap(ExitConfig, err)
		}

		if err := q.EnsureQueue(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to ensure queue")
			return workererrors.ExitErrorWrap(ExitErrored, err)
		}

		logger.Logger.InfoContext(ctx, "delivering notifications", "concurrency", notifyConcurrency)

		err = consume(ctx, q, dispatcher, notifyConcurrency, notifyTimeout)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "consumer stopped")
			return workererrors.ExitErrorWrap(ExitErrored, err)
		}

		span.SetStatus(codes.Ok, "consumer stopped")
		return nil
	},
}

// Runs n dequeue loops until ctx is cancelled. Cancellation is a clean stop.
func consume(
	ctx context.Context,
	q queue.Queuer,
	handler queue.MessageHandler,
	n int,
	timeout time.Duration,
) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			for {
				err := q.Dequeue(ctx, timeout, handler)
				switch {
				case ctx.Err() != nil:
					return nil
				case err != nil:
					logger.Logger.ErrorContext(ctx, "failed to dequeue", "consumer", i, "error", err)
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(timeout):
					}
				}
			}
		})
	}

	return g.Wait()
}

func init() {
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.PersistentFlags().IntVarP(&notifyConcurrency, "concurrency", "c", 4, "Parallel consumers")
	notifyCmd.PersistentFlags().
		DurationVarP(&notifyTimeout, "timeout", "t", 30*time.Second, "Time allowed to deliver one message")
	notifyCmd.PersistentFlags().
		DurationVar(&notifyPoll, "poll", 2*time.Second, "Wait between polls of an empty queue")
}
