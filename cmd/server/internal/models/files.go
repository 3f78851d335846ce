package models

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/filepolicy"
	"github.com/tggeco/challenge-api/internal/types"
)

type SubmissionFile struct {
	Kind        types.FileKind
	Name        string
	Path        string // store identifier
	ContentType string
	SHA256      string `gorm:"column:sha256"`
	Model
	Size         int64
	SubmissionID uuid.UUID
}

func (SubmissionFile) TableName() string {
	return "submission_files"
}

func (f SubmissionFile) GetID() uuid.UUID {
	return f.ID
}

func FilesForSubmission(ctx context.Context, db *gorm.DB, submissionID uuid.UUID) ([]SubmissionFile, error) {
	var files []SubmissionFile
	err := db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at, id").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func checkFileSlot(tx *gorm.DB, sub *Submission, kind types.FileKind) error {
	if sub.IsLocked || sub.Status != types.SubmissionStatusDraft {
		return srverr.ErrLocked
	}

	limit, err := filepolicy.For(kind)
	if err != nil {
		return err
	}

	var count int64
	err = tx.Model(&SubmissionFile{}).
		Where("submission_id = ? AND kind = ?", sub.ID, kind).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to count files: %w", err)
	}
	if count >= int64(limit.MaxCount) {
		return srverr.NewValidationError(
			"file",
			fmt.Sprintf("at most %d %s files may be attached", limit.MaxCount, kind),
		)
	}

	return nil
}

// Checked before bytes go to storage so a doomed upload is never made
func PrepareFileUpload(
	ctx context.Context,
	db *gorm.DB,
	ownerID uuid.UUID,
	kind types.FileKind,
) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "PrepareFileUpload")
	defer span.End()

	sub, err := SubmissionByOwner(ctx, db, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no submission to attach to")
		return nil, err
	}

	if err := checkFileSlot(db.WithContext(ctx), sub, kind); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no slot for file")
		return nil, err
	}

	return sub, nil
}

// Records an uploaded file, rechecking the lock and count under a row lock
func AddSubmissionFile(ctx context.Context, db *gorm.DB, ownerID uuid.UUID, file *SubmissionFile) error {
	ctx, span := tracer.Start(ctx, "AddSubmissionFile")
	defer span.End()

	span.SetAttributes(
		attribute.String("owner.id", ownerID.String()),
		attribute.String("kind", string(file.Kind)),
	)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, found, err := lockOwnSubmission(tx, ownerID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: submission", srverr.ErrNotFound)
		}

		if err := checkFileSlot(tx, sub, file.Kind); err != nil {
			return err
		}

		file.SubmissionID = sub.ID
		if err := tx.Create(file).Error; err != nil {
			return fmt.Errorf("failed to record file: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add file")
		return err
	}

	span.SetStatus(codes.Ok, "added file")
	return nil
}

// Removes a file from the owner's draft. remove is called with the stored file
// inside the transaction so a storage failure leaves the row in place.
func DeleteSubmissionFile(
	ctx context.Context,
	db *gorm.DB,
	ownerID uuid.UUID,
	fileID uuid.UUID,
	remove func(ctx context.Context, f *SubmissionFile) error,
) (*SubmissionFile, error) {
	ctx, span := tracer.Start(ctx, "DeleteSubmissionFile")
	defer span.End()

	span.SetAttributes(attribute.String("file.id", fileID.String()))

	var deleted SubmissionFile
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, found, err := lockOwnSubmission(tx, ownerID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: submission", srverr.ErrNotFound)
		}
		if sub.IsLocked || sub.Status != types.SubmissionStatusDraft {
			return srverr.ErrLocked
		}

		err = tx.Where("id = ? AND submission_id = ?", fileID, sub.ID).First(&deleted).Error
		if err != nil {
			return notFound(err, "file")
		}

		if err := tx.Delete(&deleted).Error; err != nil {
			return fmt.Errorf("failed to delete file row: %w", err)
		}

		return remove(ctx, &deleted)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete file")
		return nil, err
	}

	span.SetStatus(codes.Ok, "deleted file")
	return &deleted, nil
}
