package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/cmd/server/internal/lifecycle"
	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/cmd/server/internal/scoring"
	"github.com/tggeco/challenge-api/internal/types"
)

type JudgeAssignment struct {
	Model
	JudgeID      uuid.UUID
	SubmissionID uuid.UUID
}

func (JudgeAssignment) TableName() string {
	return "judge_assignments"
}

func (a JudgeAssignment) GetID() uuid.UUID {
	return a.ID
}

type JudgingCriterion struct {
	Name        string
	Description string
	Model
	MaxScore  float64
	Weight    float64
	SortOrder int
}

func (JudgingCriterion) TableName() string {
	return "judging_criteria"
}

func (c JudgingCriterion) GetID() uuid.UUID {
	return c.ID
}

type JudgingScore struct {
	SubmittedAt *time.Time
	Scores      datatypes.JSONType[map[string]float64] `gorm:"type:jsonb"`
	Comments    string
	Model
	TotalScore   float64
	JudgeID      uuid.UUID
	SubmissionID uuid.UUID
	IsSubmitted  bool
}

func (JudgingScore) TableName() string {
	return "judging_scores"
}

func (s JudgingScore) GetID() uuid.UUID {
	return s.ID
}

func AssignJudge(
	ctx context.Context,
	db *gorm.DB,
	judgeID uuid.UUID,
	submissionID uuid.UUID,
	actor *access.Identity,
) (*JudgeAssignment, error) {
	ctx, span := tracer.Start(ctx, "AssignJudge")
	defer span.End()

	span.SetAttributes(
		attribute.String("judge.id", judgeID.String()),
		attribute.String("submission.id", submissionID.String()),
	)

	if err := actor.Require(access.OpManageAssignments); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actor may not assign judges")
		return nil, err
	}

	db = db.WithContext(ctx)

	isJudge, err := Exists[UserRole](ctx, db, "principal_id = ? AND role = ?", judgeID, types.RoleJudge)
	if err != nil {
		return nil, err
	}
	if !isJudge {
		return nil, srverr.NewValidationError("judge_id", "not a judge")
	}

	var sub Submission
	if err := db.Select("id", "status").First(&sub, "id = ?", submissionID).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find submission")
		return nil, notFound(err, "submission")
	}
	if !lifecycle.Assignable(sub.Status) {
		span.SetStatus(codes.Error, "submission not open for judging")
		return nil, srverr.NewValidationError(
			"submission_id",
			fmt.Sprintf("a %s submission cannot be assigned", sub.Status),
		)
	}

	assignment := JudgeAssignment{JudgeID: judgeID, SubmissionID: submissionID}
	if err := db.Create(&assignment).Error; err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetStatus(codes.Error, "duplicate assignment")
			return nil, srverr.ErrDuplicateAssignment
		}
		span.SetStatus(codes.Error, "failed to create assignment")
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	span.SetStatus(codes.Ok, "assigned judge")
	return &assignment, nil
}

// Idempotent, removing a missing assignment is not an error
func UnassignJudge(
	ctx context.Context,
	db *gorm.DB,
	assignmentID uuid.UUID,
	actor *access.Identity,
) (*JudgeAssignment, error) {
	ctx, span := tracer.Start(ctx, "UnassignJudge")
	defer span.End()

	span.SetAttributes(attribute.String("assignment.id", assignmentID.String()))

	if err := actor.Require(access.OpManageAssignments); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actor may not unassign judges")
		return nil, err
	}

	var removed []JudgeAssignment
	result := db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ?", assignmentID).
		Delete(&removed)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to delete assignment")
		return nil, fmt.Errorf("failed to delete assignment: %w", result.Error)
	}

	span.SetAttributes(attribute.Int64("rows", result.RowsAffected))
	if len(removed) == 0 {
		return nil, nil
	}
	return &removed[0], nil
}

func isAssigned(ctx context.Context, db *gorm.DB, judgeID uuid.UUID, submissionID uuid.UUID) error {
	ok, err := Exists[JudgeAssignment](ctx, db, "judge_id = ? AND submission_id = ?", judgeID, submissionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: submission is not assigned to this judge", srverr.ErrForbidden)
	}
	return nil
}

type AssignmentRow struct {
	JudgeAssignment
	ReferenceCode string
	Title         string
	Category      string
	Status        types.SubmissionStatus
	JudgeFirst    string
	JudgeLast     string
	Scored        bool
}

func assignmentRowsQuery(db *gorm.DB) *gorm.DB {
	return db.Table("judge_assignments").
		Select(`judge_assignments.*,
			submissions.reference_code, submissions.title, submissions.category, submissions.status,
			profiles.first_name AS judge_first, profiles.last_name AS judge_last,
			EXISTS (
				SELECT 1 FROM judging_scores
				WHERE judging_scores.judge_id = judge_assignments.judge_id
				AND judging_scores.submission_id = judge_assignments.submission_id
				AND judging_scores.is_submitted
			) AS scored`).
		Joins("JOIN submissions ON submissions.id = judge_assignments.submission_id").
		Joins("LEFT JOIN profiles ON profiles.id = judge_assignments.judge_id")
}

func AssignmentsForJudge(ctx context.Context, db *gorm.DB, judgeID uuid.UUID) ([]AssignmentRow, error) {
	var rows []AssignmentRow
	err := assignmentRowsQuery(db.WithContext(ctx)).
		Where("judge_assignments.judge_id = ?", judgeID).
		Order("judge_assignments.created_at").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return rows, nil
}

func AssignmentsForSubmission(ctx context.Context, db *gorm.DB, submissionID uuid.UUID) ([]AssignmentRow, error) {
	var rows []AssignmentRow
	err := assignmentRowsQuery(db.WithContext(ctx)).
		Where("judge_assignments.submission_id = ?", submissionID).
		Order("judge_assignments.created_at").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return rows, nil
}

func ListCriteria(ctx context.Context, db *gorm.DB) ([]JudgingCriterion, error) {
	var criteria []JudgingCriterion
	err := db.WithContext(ctx).Order("sort_order, created_at").Find(&criteria).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list criteria: %w", err)
	}
	return criteria, nil
}

func criterionFromRequest(req *types.CriterionRequest) JudgingCriterion {
	return JudgingCriterion{
		Name:        req.Name,
		Description: req.Description,
		MaxScore:    req.MaxScore,
		Weight:      req.Weight,
		SortOrder:   req.SortOrder,
	}
}

func CreateCriterion(
	ctx context.Context,
	db *gorm.DB,
	req *types.CriterionRequest,
	actor *access.Identity,
) (*JudgingCriterion, error) {
	if err := actor.Require(access.OpManageCriteria); err != nil {
		return nil, err
	}

	c := criterionFromRequest(req)
	if err := db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to create criterion: %w", err)
	}
	return &c, nil
}

func UpdateCriterion(
	ctx context.Context,
	db *gorm.DB,
	id uuid.UUID,
	req *types.CriterionRequest,
	actor *access.Identity,
) (*JudgingCriterion, error) {
	if err := actor.Require(access.OpManageCriteria); err != nil {
		return nil, err
	}

	c := criterionFromRequest(req)
	result := db.WithContext(ctx).Model(&JudgingCriterion{}).Where("id = ?", id).
		Select("name", "description", "max_score", "weight", "sort_order").
		Updates(&c)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update criterion: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: criterion", srverr.ErrNotFound)
	}

	updated, err := ByID[JudgingCriterion](ctx, db, id)
	if err != nil {
		return nil, notFound(err, "criterion")
	}
	return updated, nil
}

func DeleteCriterion(ctx context.Context, db *gorm.DB, id uuid.UUID, actor *access.Identity) error {
	if err := actor.Require(access.OpManageCriteria); err != nil {
		return err
	}

	if err := db.WithContext(ctx).Where("id = ?", id).Delete(&JudgingCriterion{}).Error; err != nil {
		return fmt.Errorf("failed to delete criterion: %w", err)
	}
	return nil
}

func toScoringCriteria(criteria []JudgingCriterion) []scoring.Criterion {
	out := make([]scoring.Criterion, len(criteria))
	for i, c := range criteria {
		out[i] = scoring.Criterion{ID: c.ID.String(), MaxScore: c.MaxScore, Weight: c.Weight}
	}
	return out
}

// Upserts the judge's single score row for the submission. Callers gate on the
// judging lock and window first.
func RecordScore(
	ctx context.Context,
	db *gorm.DB,
	judge *access.Identity,
	submissionID uuid.UUID,
	req *types.ScoreRequest,
	now time.Time,
) (*JudgingScore, error) {
	ctx, span := tracer.Start(ctx, "RecordScore")
	defer span.End()

	span.SetAttributes(
		attribute.String("submission.id", submissionID.String()),
		attribute.Bool("submit", req.Submit),
	)

	if err := judge.Require(access.OpScoreAssigned); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actor may not score")
		return nil, err
	}

	judgeID, err := uuid.Parse(judge.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse judge id: %w", err)
	}

	db = db.WithContext(ctx)

	if err := isAssigned(ctx, db, judgeID, submissionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "judge not assigned")
		return nil, err
	}

	criteria, err := ListCriteria(ctx, db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load criteria")
		return nil, err
	}

	total, err := scoring.Total(toScoringCriteria(criteria), req.Scores, req.Submit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid scores")
		return nil, err
	}

	score := JudgingScore{
		JudgeID:      judgeID,
		SubmissionID: submissionID,
		Scores:       datatypes.NewJSONType(req.Scores),
		Comments:     req.Comments,
		TotalScore:   total,
		IsSubmitted:  req.Submit,
	}
	updateColumns := []string{"scores", "comments", "total_score", "is_submitted", "updated_at"}
	if req.Submit {
		score.SubmittedAt = &now
		updateColumns = append(updateColumns, "submitted_at")
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "judge_id"}, {Name: "submission_id"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(&score).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert score")
		return nil, fmt.Errorf("failed to upsert score: %w", err)
	}

	var stored JudgingScore
	err = db.Where("judge_id = ? AND submission_id = ?", judgeID, submissionID).First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read back score: %w", err)
	}

	span.SetAttributes(attribute.Float64("total", total))
	span.SetStatus(codes.Ok, "recorded score")
	return &stored, nil
}

func ScoreFor(ctx context.Context, db *gorm.DB, judgeID uuid.UUID, submissionID uuid.UUID) (*JudgingScore, error) {
	var score JudgingScore
	result := db.WithContext(ctx).
		Where("judge_id = ? AND submission_id = ?", judgeID, submissionID).
		Limit(1).
		Find(&score)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &score, nil
}

// Content only. Owner, profile and team are never loaded here.
type BlindSubmission struct {
	MyScore    *JudgingScore
	Submission Submission
	Files      []SubmissionFile
	Criteria   []JudgingCriterion
}

func BlindSubmissionForJudge(
	ctx context.Context,
	db *gorm.DB,
	judge *access.Identity,
	submissionID uuid.UUID,
) (*BlindSubmission, error) {
	ctx, span := tracer.Start(ctx, "BlindSubmissionForJudge")
	defer span.End()

	if err := judge.Require(access.OpScoreAssigned); err != nil {
		return nil, err
	}

	judgeID, err := uuid.Parse(judge.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse judge id: %w", err)
	}

	db = db.WithContext(ctx)

	if err := isAssigned(ctx, db, judgeID, submissionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "judge not assigned")
		return nil, err
	}

	sub, err := ByID[Submission](ctx, db, submissionID)
	if err != nil {
		return nil, notFound(err, "submission")
	}

	files, err := FilesForSubmission(ctx, db, submissionID)
	if err != nil {
		return nil, err
	}

	criteria, err := ListCriteria(ctx, db)
	if err != nil {
		return nil, err
	}

	score, err := ScoreFor(ctx, db, judgeID, submissionID)
	if err != nil {
		return nil, err
	}

	return &BlindSubmission{Submission: *sub, Files: files, Criteria: criteria, MyScore: score}, nil
}

type LeaderboardRow struct {
	scoring.Ranked
	Submission Submission
}

// Derived on every read from the current score rows
func Leaderboard(ctx context.Context, db *gorm.DB, actor *access.Identity) ([]LeaderboardRow, error) {
	ctx, span := tracer.Start(ctx, "Leaderboard")
	defer span.End()

	if err := actor.Require(access.OpViewLeaderboard); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actor may not view leaderboard")
		return nil, err
	}

	db = db.WithContext(ctx)

	var rows []scoring.ScoreRow
	err := db.Table("judging_scores").
		Select("judging_scores.submission_id AS submission_id, judging_scores.total_score AS total_score").
		Joins("JOIN submissions ON submissions.id = judging_scores.submission_id").
		Order("submissions.created_at, submissions.id, judging_scores.created_at").
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load scores")
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}

	ranked := scoring.Leaderboard(rows)

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.SubmissionID
	}

	var subs []Submission
	if err := db.Where("id IN ?", ids).Find(&subs).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load submissions")
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}
	byID := make(map[string]Submission, len(subs))
	for _, s := range subs {
		byID[s.ID.String()] = s
	}

	out := make([]LeaderboardRow, len(ranked))
	for i, r := range ranked {
		out[i] = LeaderboardRow{Ranked: r, Submission: byID[r.SubmissionID]}
	}

	span.SetAttributes(attribute.Int("entries", len(out)))
	span.SetStatus(codes.Ok, "computed leaderboard")
	return out, nil
}
