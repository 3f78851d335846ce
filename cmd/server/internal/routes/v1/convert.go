package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/tggeco/challenge-api/cmd/server/internal/models"
	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/types"
	"github.com/tggeco/challenge-api/internal/upload"
)

func profileToTypes(p *models.Profile, email string, role types.Role, photoURL string) types.Profile {
	return types.Profile{
		ID:                p.ID.String(),
		Email:             email,
		Role:              role,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Phone:             p.Phone,
		Gender:            p.Gender,
		University:        p.University,
		Department:        p.Department,
		YearOfStudy:       p.YearOfStudy,
		ParticipationType: p.ParticipationType,
		PhotoURL:          photoURL,
		CreatedAt:         p.CreatedAt,
		Complete:          p.Complete(),
	}
}

// Role record wins over the descriptive university on the profile
func participantToTypes(row *models.ParticipantRow) types.Profile {
	p := profileToTypes(&row.Profile, row.Email, types.RoleParticipant, "")
	if row.RoleUniversity != nil {
		p.University = row.RoleUniversity
	}
	return p
}

func fileToTypes(f *models.SubmissionFile, url string) types.SubmissionFile {
	return types.SubmissionFile{
		ID:          f.ID.String(),
		Kind:        f.Kind,
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        f.Size,
		URL:         url,
		CreatedAt:   f.CreatedAt,
	}
}

// A link that fails to sign is left out rather than failing the read
func presign(ctx context.Context, u upload.Uploader, path string) string {
	if path == "" {
		return ""
	}

	url, err := u.PresignedReadURL(ctx, path, presignDuration)
	if err != nil {
		logger.Logger.WarnContext(ctx, "failed to presign", "path", path, "error", err)
		return ""
	}
	return url
}

func filesToTypes(ctx context.Context, u upload.Uploader, files []models.SubmissionFile) []types.SubmissionFile {
	out := make([]types.SubmissionFile, len(files))
	for i := range files {
		out[i] = fileToTypes(&files[i], presign(ctx, u, files[i].Path))
	}
	return out
}

func submissionToTypes(s *models.Submission, files []types.SubmissionFile) types.Submission {
	if files == nil {
		files = []types.SubmissionFile{}
	}

	return types.Submission{
		ID:                s.ID.String(),
		ReferenceCode:     s.ReferenceCode,
		Status:            s.Status,
		StatusLabel:       s.Status.Label(),
		SubmissionContent: s.Content(),
		Files:             files,
		CurrentStep:       s.CurrentStep,
		FurthestStep:      s.FurthestStep,
		IsLocked:          s.IsLocked,
		SubmittedAt:       s.SubmittedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func summaryToTypes(r *models.SubmissionRow) types.SubmissionSummary {
	summary := types.SubmissionSummary{
		ID:            r.ID.String(),
		ReferenceCode: r.ReferenceCode,
		Title:         r.Title,
		Category:      r.Category,
		Status:        r.Status,
		OwnerID:       r.OwnerID.String(),
		OwnerName:     r.OwnerName(),
		SubmittedAt:   r.SubmittedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.RoleUniversity != nil {
		summary.University = *r.RoleUniversity
	}
	return summary
}

// Invite tokens never leave the server this way
func teamToTypes(t *models.TeamWithMembers, viewer uuid.UUID, maxSize int) types.Team {
	members := make([]types.TeamMember, 0, len(t.Members))
	for _, m := range t.Members {
		member := types.TeamMember{
			ID:          m.ID.String(),
			Email:       m.Email,
			Status:      m.Status,
			InvitedAt:   m.CreatedAt,
			RespondedAt: m.RespondedAt,
		}
		if m.UserID != nil {
			id := m.UserID.String()
			member.UserID = &id
			member.Name = t.Names[*m.UserID]
		}
		members = append(members, member)
	}

	return types.Team{
		ID:            t.Team.ID.String(),
		Name:          t.Team.Name,
		LeadID:        t.Team.LeadID.String(),
		Members:       members,
		AcceptedCount: t.AcceptedCount(),
		MaxSize:       maxSize,
		IsLead:        t.Team.LeadID == viewer,
	}
}

func criterionToTypes(c *models.JudgingCriterion) types.Criterion {
	return types.Criterion{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		MaxScore:    c.MaxScore,
		Weight:      c.Weight,
		SortOrder:   c.SortOrder,
	}
}

func criteriaToTypes(criteria []models.JudgingCriterion) []types.Criterion {
	out := make([]types.Criterion, len(criteria))
	for i := range criteria {
		out[i] = criterionToTypes(&criteria[i])
	}
	return out
}

func scoreToTypes(s *models.JudgingScore) *types.Score {
	if s == nil {
		return nil
	}

	return &types.Score{
		ID:           s.ID.String(),
		SubmissionID: s.SubmissionID.String(),
		Scores:       s.Scores.Data(),
		Comments:     s.Comments,
		TotalScore:   s.TotalScore,
		IsSubmitted:  s.IsSubmitted,
		SubmittedAt:  s.SubmittedAt,
	}
}

func assignmentToTypes(r *models.AssignmentRow) types.JudgeAssignment {
	return types.JudgeAssignment{
		ID:            r.ID.String(),
		JudgeID:       r.JudgeID.String(),
		JudgeName:     models.Profile{FirstName: r.JudgeFirst, LastName: r.JudgeLast}.FullName(),
		SubmissionID:  r.SubmissionID.String(),
		ReferenceCode: r.ReferenceCode,
		Title:         r.Title,
		Category:      r.Category,
		Status:        r.Status,
		Scored:        r.Scored,
		CreatedAt:     r.CreatedAt,
	}
}

func assignmentsToTypes(rows []models.AssignmentRow) []types.JudgeAssignment {
	out := make([]types.JudgeAssignment, len(rows))
	for i := range rows {
		out[i] = assignmentToTypes(&rows[i])
	}
	return out
}

func staffToTypes(s *models.Staff) types.Staff {
	staff := types.Staff{
		ID:              s.Principal.ID.String(),
		Email:           s.Principal.Email,
		Role:            s.Role.Role,
		University:      s.Role.University,
		InitialPassword: s.InitialPassword,
		CreatedAt:       s.Principal.CreatedAt,
	}
	if s.Profile != nil {
		staff.FirstName = s.Profile.FirstName
		staff.LastName = s.Profile.LastName
	}
	return staff
}

func categoryToTypes(c *models.ChallengeCategory) types.Category {
	return types.Category{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
	}
}
