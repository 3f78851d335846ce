package upload

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensure MinioUploader implements Uploader interface.
var _ Uploader = (*MinioUploader)(nil)

// Minio (S3) backed uploader
type MinioUploader struct {
	client *minio.Client
	bucket string
}

func NewMinioClient(endpoint, id, secret string, ssl bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(id, secret, ""),
		Secure: ssl,
	})
}

// `bucket` is created by EnsureStore when missing
func NewMinioUploaderFromClient(client *minio.Client, bucket string) *MinioUploader {
	return &MinioUploader{
		client: client,
		bucket: bucket,
	}
}

func (u *MinioUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	contentType string,
	path string,
) error {
	ctx, span := tracer.Start(ctx, "MinioUploader.Upload", trace.WithAttributes(
		attribute.String("bucket", u.bucket),
		attribute.String("path", path),
		attribute.Int64("length", length),
	))
	defer span.End()

	_, err := u.client.PutObject(ctx, u.bucket, path, reader, length, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put object")
		return err
	}

	span.SetStatus(codes.Ok, "put object")
	return nil
}

func (u *MinioUploader) Delete(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "MinioUploader.Delete", trace.WithAttributes(
		attribute.String("bucket", u.bucket),
		attribute.String("path", path),
	))
	defer span.End()

	err := u.client.RemoveObject(ctx, u.bucket, path, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			span.SetStatus(codes.Ok, "object already gone")
			return nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove object")
		return err
	}

	span.SetStatus(codes.Ok, "removed object")
	return nil
}

func (u *MinioUploader) EnsureStore(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "MinioUploader.EnsureStore", trace.WithAttributes(
		attribute.String("bucket", u.bucket),
	))
	defer span.End()

	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check bucket")
		return err
	}
	if exists {
		span.SetStatus(codes.Ok, "bucket exists")
		return nil
	}

	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make bucket")
		return err
	}

	span.SetStatus(codes.Ok, "made bucket")
	return nil
}

func (u *MinioUploader) PresignedReadURL(
	ctx context.Context,
	path string,
	duration time.Duration,
) (string, error) {
	ctx, span := tracer.Start(ctx, "MinioUploader.PresignedReadURL", trace.WithAttributes(
		attribute.String("path", path),
		attribute.String("duration", duration.String()),
	))
	defer span.End()

	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, path, duration, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get presigned url")
		return "", err
	}

	span.SetStatus(codes.Ok, "got presigned url")
	return presigned.String(), nil
}
