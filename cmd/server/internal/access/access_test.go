package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/types"
)

func ptr[T any](v T) *T {
	return &v
}

func TestCan(t *testing.T) {
	type canCase struct {
		role    types.Role
		op      Operation
		allowed bool
	}

	cases := []canCase{
		{types.RoleParticipant, OpEditOwnSubmission, true},
		{types.RoleParticipant, OpTransitionStatus, false},
		{types.RoleParticipant, OpExportCSV, false},
		{types.RoleJudge, OpScoreAssigned, true},
		{types.RoleJudge, OpViewParticipants, false},
		{types.RoleJudge, OpEditOwnSubmission, false},
		{types.RoleCoordinator, OpExportCSV, true},
		{types.RoleCoordinator, OpViewLeaderboard, false},
		{types.RoleCoordinator, OpManageAssignments, false},
		{types.RoleAdmin, OpTransitionStatus, true},
		{types.RoleAdmin, OpManageAssignments, true},
		{types.RoleAdmin, OpScoreAssigned, false},
		{types.RoleAdmin, OpEditOwnSubmission, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.role)+"_"+string(tc.op), func(t *testing.T) {
			id := &Identity{Role: tc.role}
			assert.Equal(t, tc.allowed, id.Can(tc.op))

			err := id.Require(tc.op)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, srverr.ErrForbidden)
			}
		})
	}

	t.Run("UnknownRole", func(t *testing.T) {
		assert.False(t, (&Identity{Role: "superuser"}).Can(OpViewSettings))
	})

	t.Run("NoIdentity", func(t *testing.T) {
		var id *Identity
		assert.ErrorIs(t, id.Require(OpViewSettings), srverr.ErrUnauthorized)
	})
}

func TestUniversityScope(t *testing.T) {
	t.Run("AdminUnfiltered", func(t *testing.T) {
		scope, err := (&Identity{Role: types.RoleAdmin}).UniversityScope(nil)
		require.NoError(t, err)
		assert.Nil(t, scope)
	})

	t.Run("AdminFiltered", func(t *testing.T) {
		scope, err := (&Identity{Role: types.RoleAdmin}).UniversityScope(ptr(types.UniversityIAUE))
		require.NoError(t, err)
		assert.Equal(t, types.UniversityIAUE, *scope)
	})

	t.Run("CoordinatorForced", func(t *testing.T) {
		id := &Identity{Role: types.RoleCoordinator, University: ptr(types.UniversityUST)}
		scope, err := id.UniversityScope(nil)
		require.NoError(t, err)
		assert.Equal(t, types.UniversityUST, *scope)
	})

	t.Run("CoordinatorOwnRequested", func(t *testing.T) {
		id := &Identity{Role: types.RoleCoordinator, University: ptr(types.UniversityUST)}
		scope, err := id.UniversityScope(ptr(types.UniversityUST))
		require.NoError(t, err)
		assert.Equal(t, types.UniversityUST, *scope)
	})

	t.Run("CoordinatorOtherRequested", func(t *testing.T) {
		id := &Identity{Role: types.RoleCoordinator, University: ptr(types.UniversityUST)}
		_, err := id.UniversityScope(ptr(types.UniversityUNIPORT))
		assert.ErrorIs(t, err, srverr.ErrForbidden)
	})

	t.Run("CoordinatorWithoutUniversity", func(t *testing.T) {
		_, err := (&Identity{Role: types.RoleCoordinator}).UniversityScope(nil)
		assert.ErrorIs(t, err, srverr.ErrForbidden)
	})

	t.Run("Participant", func(t *testing.T) {
		_, err := (&Identity{Role: types.RoleParticipant}).UniversityScope(nil)
		assert.ErrorIs(t, err, srverr.ErrForbidden)
	})
}
