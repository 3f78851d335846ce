package upload

import (
	"context"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensures AzureUploader implements Uploader interface.
var _ Uploader = (*AzureUploader)(nil)

// Azure Blob store backed uploader
type AzureUploader struct {
	client *azblob.Client
	// `container` in the storage account where files are saved
	container string
}

func NewAzureClient(accountName, accountKey, serviceURL string) (*azblob.Client, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	return azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
}

// `container` must be part of the storage account of `client`
func NewAzureUploaderFromClient(client *azblob.Client, container string) *AzureUploader {
	return &AzureUploader{
		client:    client,
		container: container,
	}
}

func (u *AzureUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	contentType string,
	path string,
) error {
	ctx, span := tracer.Start(ctx, "AzureUploader.Upload", trace.WithAttributes(
		attribute.String("container", u.container),
		attribute.String("path", path),
		attribute.Int64("length", length),
	))
	defer span.End()

	_, err := u.client.UploadStream(ctx, u.container, path, reader, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload reader")
		return err
	}

	span.SetStatus(codes.Ok, "uploaded file")
	return nil
}

func (u *AzureUploader) Delete(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "AzureUploader.Delete", trace.WithAttributes(
		attribute.String("container", u.container),
		attribute.String("path", path),
	))
	defer span.End()

	_, err := u.client.DeleteBlob(ctx, u.container, path, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			span.SetStatus(codes.Ok, "blob already gone")
			return nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete blob")
		return err
	}

	span.SetStatus(codes.Ok, "deleted blob")
	return nil
}

func (u *AzureUploader) EnsureStore(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "AzureUploader.EnsureStore", trace.WithAttributes(
		attribute.String("container", u.container),
	))
	defer span.End()

	_, err := u.client.CreateContainer(ctx, u.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create container")
		return err
	}

	span.SetStatus(codes.Ok, "container ready")
	return nil
}

func (u *AzureUploader) PresignedReadURL(
	ctx context.Context,
	path string,
	duration time.Duration,
) (string, error) {
	_, span := tracer.Start(ctx, "AzureUploader.PresignedReadURL", trace.WithAttributes(
		attribute.String("path", path),
		attribute.String("duration", duration.String()),
	))
	defer span.End()

	presigned, err := u.client.ServiceClient().
		NewContainerClient(u.container).
		NewBlobClient(path).
		GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(duration), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get presigned url")
		return "", err
	}

	span.SetStatus(codes.Ok, "got presigned url")
	return presigned, nil
}
