package upload

import (
	"context"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/codes"
)

// Ensure RetryUploader implements Uploader interface.
var _ Uploader = (*RetryUploader)(nil)

// Meta uploader that wraps uploader operations in backoff loops
type RetryUploader struct {
	uploader Uploader
	backoff  func() retry.Backoff
}

func NewRetryUploaderBackoff(uploader Uploader, backoff func() retry.Backoff) *RetryUploader {
	return &RetryUploader{
		uploader: uploader,
		backoff:  backoff,
	}
}

// Request path default: a participant is waiting on the response
func NewRetryUploader(uploader Uploader) *RetryUploader {
	return &RetryUploader{
		uploader: uploader,
		backoff: func() retry.Backoff {
			b := retry.NewFibonacci(time.Millisecond * 25)
			b = retry.WithMaxRetries(3, b)
			return b
		},
	}
}

func (r *RetryUploader) do(ctx context.Context, op string, f func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "RetryUploader."+op)
	defer span.End()

	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "RetryUploader."+op+".Retry")
		defer span.End()

		if err := f(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "attempt failed")
			return retry.RetryableError(err)
		}

		span.SetStatus(codes.Ok, "attempt succeeded")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "out of retries")
		return err
	}

	span.SetStatus(codes.Ok, "succeeded")
	return nil
}

func (r *RetryUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	contentType string,
	path string,
) error {
	return r.do(ctx, "Upload", func(ctx context.Context) error {
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return r.uploader.Upload(ctx, reader, length, contentType, path)
	})
}

func (r *RetryUploader) Delete(ctx context.Context, path string) error {
	return r.do(ctx, "Delete", func(ctx context.Context) error {
		return r.uploader.Delete(ctx, path)
	})
}

func (r *RetryUploader) EnsureStore(ctx context.Context) error {
	return r.do(ctx, "EnsureStore", r.uploader.EnsureStore)
}

func (r *RetryUploader) PresignedReadURL(
	ctx context.Context,
	path string,
	duration time.Duration,
) (string, error) {
	var presigned string
	err := r.do(ctx, "PresignedReadURL", func(ctx context.Context) error {
		var err error
		presigned, err = r.uploader.PresignedReadURL(ctx, path, duration)
		return err
	})
	if err != nil {
		return "", err
	}
	return presigned, nil
}
