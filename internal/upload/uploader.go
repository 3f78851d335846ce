package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/tggeco/challenge-api/internal/upload")

//go:generate mockgen -destination ./mock/mock.go -package mock . Uploader

// Generic object storage for submission files and profile photos
type Uploader interface {
	// Create / Overwrite the object at `path`
	Upload(ctx context.Context, reader io.ReadSeeker, length int64, contentType string, path string) error
	// Remove the object at `path`. Removing a missing object is not an error.
	Delete(ctx context.Context, path string) error
	// Anonymous, readonly, internet accessible URL for downloading the file
	PresignedReadURL(ctx context.Context, path string, duration time.Duration) (string, error)
	// Create the bucket or container when it does not exist yet
	EnsureStore(ctx context.Context) error
}

type Stored struct {
	Path        string
	ContentType string
	SHA256      string
	Size        int64
}

// Uploads `data` to `path` and reports its digest
func Store(
	ctx context.Context,
	u Uploader,
	data []byte,
	contentType string,
	path string,
) (*Stored, error) {
	ctx, span := tracer.Start(ctx, "Store", trace.WithAttributes(
		attribute.String("path", path),
		attribute.Int("length", len(data)),
	))
	defer span.End()

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	span.SetAttributes(attribute.String("sha256", digest))

	err := u.Upload(ctx, bytes.NewReader(data), int64(len(data)), contentType, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload")
		return nil, err
	}

	span.SetStatus(codes.Ok, "stored object")
	return &Stored{
		Path:        path,
		ContentType: contentType,
		SHA256:      digest,
		Size:        int64(len(data)),
	}, nil
}
