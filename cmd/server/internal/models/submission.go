package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/cmd/server/internal/lifecycle"
	"github.com/tggeco/challenge-api/internal/types"
)

type Submission struct {
	SubmittedAt        *time.Time
	ReferenceCode      string
	Status             types.SubmissionStatus
	Title              string
	Category           string
	ProblemStatement   string
	ProposedSolution   string
	InnovationApproach string
	ExpectedImpact     string
	VideoLink          string
	Model
	CurrentStep  int
	FurthestStep int
	OwnerID      uuid.UUID
	IsLocked     bool
}

func (Submission) TableName() string {
	return "submissions"
}

func (s Submission) GetID() uuid.UUID {
	return s.ID
}

func (s Submission) Content() types.SubmissionContent {
	return types.SubmissionContent{
		Title:              s.Title,
		Category:           s.Category,
		ProblemStatement:   s.ProblemStatement,
		ProposedSolution:   s.ProposedSolution,
		InnovationApproach: s.InnovationApproach,
		ExpectedImpact:     s.ExpectedImpact,
		VideoLink:          s.VideoLink,
	}
}

// Collisions on the owner or reference code are resolved by running the whole
// transaction again
var draftBackoff = func() retry.Backoff {
	return retry.WithMaxRetries(4, retry.NewConstant(5*time.Millisecond))
}

func retryOnDuplicate(ctx context.Context, f func() error) error {
	return retry.Do(ctx, draftBackoff(), func(_ context.Context) error {
		err := f()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func SubmissionByOwner(ctx context.Context, db *gorm.DB, ownerID uuid.UUID) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "SubmissionByOwner")
	defer span.End()

	var s Submission
	err := db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&s).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get submission by owner")
		return nil, notFound(err, "submission")
	}

	return &s, nil
}

func lockOwnSubmission(tx *gorm.DB, ownerID uuid.UUID) (*Submission, bool, error) {
	var s Submission
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ?", ownerID).
		Limit(1).
		Find(&s)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to lock submission: %w", result.Error)
	}
	return &s, result.RowsAffected == 1, nil
}

// Creates the draft on first save, otherwise applies the provided fields in one
// update. Absent fields keep their stored value.
func SaveDraft(
	ctx context.Context,
	db *gorm.DB,
	ownerID uuid.UUID,
	req *types.SubmissionDraftRequest,
	referencePrefix string,
	now time.Time,
) (*Submission, bool, error) {
	ctx, span := tracer.Start(ctx, "SaveDraft")
	defer span.End()

	span.SetAttributes(
		attribute.String("owner.id", ownerID.String()),
		attribute.Int("step", req.Step),
	)

	var saved Submission
	var created bool
	err := retryOnDuplicate(ctx, func() error {
		created = false
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sub, found, err := lockOwnSubmission(tx, ownerID)
			if err != nil {
				return err
			}

			if !found {
				code, err := lifecycle.NewReferenceCode(referencePrefix, now)
				if err != nil {
					return err
				}

				sub = &Submission{
					OwnerID:       ownerID,
					ReferenceCode: code,
					Status:        types.SubmissionStatusDraft,
					CurrentStep:   lifecycle.FirstStep,
					FurthestStep:  lifecycle.FirstStep,
				}
				if err := tx.Create(sub).Error; err != nil {
					return fmt.Errorf("failed to create draft: %w", err)
				}
				created = true
			}

			if sub.IsLocked || sub.Status != types.SubmissionStatusDraft {
				return srverr.ErrLocked
			}

			step, furthest, err := lifecycle.Navigate(req.Step, sub.FurthestStep)
			if err != nil {
				return err
			}

			if err := lifecycle.CheckWordLimits(lifecycle.Merge(sub.Content(), req)); err != nil {
				return err
			}

			updates := map[string]any{
				"current_step":  step,
				"furthest_step": furthest,
			}
			for column, v := range map[string]*string{
				"title":               req.Title,
				"category":            req.Category,
				"problem_statement":   req.ProblemStatement,
				"proposed_solution":   req.ProposedSolution,
				"innovation_approach": req.InnovationApproach,
				"expected_impact":     req.ExpectedImpact,
				"video_link":          req.VideoLink,
			} {
				if v != nil {
					updates[column] = *v
				}
			}

			result := tx.Model(&Submission{}).
				Where("id = ? AND status = ? AND is_locked = false", sub.ID, types.SubmissionStatusDraft).
				Updates(updates)
			if result.Error != nil {
				return fmt.Errorf("failed to save draft: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return srverr.ErrLocked
			}

			return tx.First(&saved, "id = ?", sub.ID).Error
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save draft")
		return nil, false, err
	}

	span.SetAttributes(attribute.Bool("created", created))
	span.SetStatus(codes.Ok, "saved draft")
	return &saved, created, nil
}

// Locks the owner's draft. A submission that is already locked fails with
// ErrAlreadyLocked and is left untouched.
func Submit(ctx context.Context, db *gorm.DB, ownerID uuid.UUID, now time.Time) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "Submit")
	defer span.End()

	span.SetAttributes(attribute.String("owner.id", ownerID.String()))

	var submitted Submission
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, found, err := lockOwnSubmission(tx, ownerID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: submission", srverr.ErrNotFound)
		}

		if sub.Status != types.SubmissionStatusDraft || sub.IsLocked {
			return srverr.ErrAlreadyLocked
		}

		if err := lifecycle.CheckComplete(sub.Content()); err != nil {
			return err
		}

		result := tx.Model(&Submission{}).
			Where("id = ? AND status = ?", sub.ID, types.SubmissionStatusDraft).
			Updates(map[string]any{
				"status":        types.SubmissionStatusSubmitted,
				"is_locked":     true,
				"current_step":  lifecycle.LastStep,
				"furthest_step": lifecycle.LastStep,
				"submitted_at":  now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to submit: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return srverr.ErrAlreadyLocked
		}

		return tx.First(&submitted, "id = ?", sub.ID).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit")
		return nil, err
	}

	span.SetAttributes(attribute.String("reference_code", submitted.ReferenceCode))
	span.SetStatus(codes.Ok, "submitted")
	return &submitted, nil
}

// Moves a submission along the status graph. The update only applies if the
// status is still the one the check ran against.
func TransitionStatus(
	ctx context.Context,
	db *gorm.DB,
	submissionID uuid.UUID,
	to types.SubmissionStatus,
	actor *access.Identity,
) (*Submission, types.SubmissionStatus, error) {
	ctx, span := tracer.Start(ctx, "TransitionStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("submission.id", submissionID.String()),
		attribute.String("to", string(to)),
	)

	if err := actor.Require(access.OpTransitionStatus); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actor may not transition status")
		return nil, "", err
	}

	var current Submission
	if err := db.WithContext(ctx).First(&current, "id = ?", submissionID).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load submission")
		return nil, "", notFound(err, "submission")
	}

	from := current.Status
	span.SetAttributes(attribute.String("from", string(from)))

	if err := lifecycle.CheckTransition(from, to); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "illegal transition")
		return nil, from, err
	}

	result := db.WithContext(ctx).Model(&Submission{}).
		Where("id = ? AND status = ?", submissionID, from).
		Updates(map[string]any{"status": to, "is_locked": lifecycle.IsLocked(to)})
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to update status")
		return nil, from, fmt.Errorf("failed to update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		err := fmt.Errorf("%w: status changed from %s concurrently", srverr.ErrIllegalTransition, from)
		span.RecordError(err)
		span.SetStatus(codes.Error, "lost transition race")
		return nil, from, err
	}

	current.Status = to
	current.IsLocked = lifecycle.IsLocked(to)

	span.SetStatus(codes.Ok, "transitioned status")
	return &current, from, nil
}

// Listing row joined with the owner's profile and role
type SubmissionRow struct {
	Submission
	FirstName      string
	LastName       string
	RoleUniversity *types.University
}

func (r SubmissionRow) OwnerName() string {
	return Profile{FirstName: r.FirstName, LastName: r.LastName}.FullName()
}

func submissionRowsQuery(db *gorm.DB) *gorm.DB {
	return db.Table("submissions").
		Select("submissions.*, profiles.first_name, profiles.last_name, user_roles.university AS role_university").
		Joins("LEFT JOIN profiles ON profiles.id = submissions.owner_id").
		Joins("LEFT JOIN user_roles ON user_roles.principal_id = submissions.owner_id")
}

func ListSubmissions(
	ctx context.Context,
	db *gorm.DB,
	filter *types.SubmissionFilter,
	scope *types.University,
) ([]SubmissionRow, error) {
	ctx, span := tracer.Start(ctx, "ListSubmissions")
	defer span.End()

	query := submissionRowsQuery(db.WithContext(ctx))
	if scope != nil {
		query = query.Where("user_roles.university = ?", *scope)
	}
	if filter != nil {
		if filter.Status != nil {
			query = query.Where("submissions.status = ?", *filter.Status)
		}
		if filter.Category != nil && *filter.Category != "" {
			query = query.Where("submissions.category = ?", *filter.Category)
		}
	}

	var rows []SubmissionRow
	if err := query.Order("submissions.updated_at DESC").Scan(&rows).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list submissions")
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	return rows, nil
}

func SubmissionRowByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*SubmissionRow, error) {
	var row SubmissionRow
	result := submissionRowsQuery(db.WithContext(ctx)).Where("submissions.id = ?", id).Limit(1).Scan(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: submission", srverr.ErrNotFound)
	}
	return &row, nil
}

type Stats struct {
	ByStatus     map[types.SubmissionStatus]int64
	ByUniversity map[types.University]int64
	Participants int64
	Teams        int64
	Submissions  int64
}

func CollectStats(ctx context.Context, db *gorm.DB, scope *types.University) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "CollectStats")
	defer span.End()

	db = db.WithContext(ctx)

	stats := Stats{
		ByStatus:     map[types.SubmissionStatus]int64{},
		ByUniversity: map[types.University]int64{},
	}

	type statusCount struct {
		Status types.SubmissionStatus
		Count  int64
	}
	var statusCounts []statusCount
	q := db.Table("submissions").
		Select("submissions.status AS status, COUNT(*) AS count").
		Joins("LEFT JOIN user_roles ON user_roles.principal_id = submissions.owner_id")
	if scope != nil {
		q = q.Where("user_roles.university = ?", *scope)
	}
	if err := q.Group("submissions.status").Scan(&statusCounts).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count submissions")
		return nil, err
	}
	for _, sc := range statusCounts {
		stats.ByStatus[sc.Status] = sc.Count
		stats.Submissions += sc.Count
	}

	type universityCount struct {
		University *types.University
		Count      int64
	}
	var uniCounts []universityCount
	q = db.Table("user_roles").
		Select("university, COUNT(*) AS count").
		Where("role = ?", types.RoleParticipant)
	if scope != nil {
		q = q.Where("university = ?", *scope)
	}
	if err := q.Group("university").Scan(&uniCounts).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count participants")
		return nil, err
	}
	for _, uc := range uniCounts {
		if uc.University != nil {
			stats.ByUniversity[*uc.University] = uc.Count
		}
		stats.Participants += uc.Count
	}

	q = db.Model(&Team{})
	if scope != nil {
		q = q.Where("university = ?", *scope)
	}
	if err := q.Count(&stats.Teams).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count teams")
		return nil, err
	}

	return &stats, nil
}
