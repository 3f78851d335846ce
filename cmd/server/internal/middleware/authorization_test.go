package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tggeco/challenge-api/cmd/server/internal/access"
	"github.com/tggeco/challenge-api/internal/logger"
	"github.com/tggeco/challenge-api/internal/types"
)

func TestAuthorization(t *testing.T) {
	l := logger.Logger
	ust := types.UniversityUST

	t.Run("ParticipantNeedsAdmin", func(t *testing.T) {
		has := hasCapabilities(
			context.TODO(),
			&access.Identity{Role: types.RoleParticipant},
			[]access.Operation{access.OpManageSettings},
			l,
		)
		assert.False(t, has, "participant cannot manage settings")
	})

	t.Run("ParticipantOwnSubmission", func(t *testing.T) {
		has := hasCapabilities(
			context.TODO(),
			&access.Identity{Role: types.RoleParticipant},
			[]access.Operation{access.OpEditOwnSubmission, access.OpManageOwnTeam},
			l,
		)
		assert.True(t, has, "participant edits own submission")
	})

	t.Run("CoordinatorNeedsOneOfMany", func(t *testing.T) {
		has := hasCapabilities(
			context.TODO(),
			&access.Identity{Role: types.RoleCoordinator, University: &ust},
			[]access.Operation{access.OpExportCSV, access.OpManageAssignments},
			l,
		)
		assert.False(t, has, "coordinator cannot manage assignments")
	})

	t.Run("JudgeScores", func(t *testing.T) {
		has := hasCapabilities(
			context.TODO(),
			&access.Identity{Role: types.RoleJudge},
			[]access.Operation{access.OpScoreAssigned},
			l,
		)
		assert.True(t, has, "judge scores assigned submissions")
	})

	t.Run("NoOps", func(t *testing.T) {
		has := hasCapabilities(context.TODO(), &access.Identity{Role: types.RoleJudge}, nil, l)
		assert.True(t, has, "nothing needed")
	})
}
