// Package access is the authorization matrix. Every route guard and every
// operation level check reads the same capability table.
package access

import (
	"fmt"

	srverr "github.com/tggeco/challenge-api/cmd/server/internal/error"
	"github.com/tggeco/challenge-api/internal/types"
)

type Operation string

const (
	OpEditOwnProfile     Operation = "edit_own_profile"
	OpEditOwnSubmission  Operation = "edit_own_submission"
	OpManageOwnTeam      Operation = "manage_own_team"
	OpRespondToInvite    Operation = "respond_to_invite"
	OpViewSettings       Operation = "view_settings"
	OpViewParticipants   Operation = "view_participants"
	OpViewSubmissions    Operation = "view_submissions"
	OpExportCSV          Operation = "export_csv"
	OpScoreAssigned      Operation = "score_assigned"
	OpTransitionStatus   Operation = "transition_status"
	OpManageAssignments  Operation = "manage_assignments"
	OpViewLeaderboard    Operation = "view_leaderboard"
	OpManageSettings     Operation = "manage_settings"
	OpManageCriteria     Operation = "manage_criteria"
	OpManageCategories   Operation = "manage_categories"
	OpProvisionStaff     Operation = "provision_staff"
	OpViewAnyUniversity  Operation = "view_any_university"
	OpViewOwnUniversity  Operation = "view_own_university"
	OpViewParticipantPII Operation = "view_participant_pii"
)

type capabilities map[Operation]struct{}

func caps(ops ...Operation) capabilities {
	c := make(capabilities, len(ops))
	for _, op := range ops {
		c[op] = struct{}{}
	}
	return c
}

var table = map[types.Role]capabilities{
	types.RoleParticipant: caps(
		OpEditOwnProfile,
		OpEditOwnSubmission,
		OpManageOwnTeam,
		OpRespondToInvite,
		OpViewSettings,
	),
	types.RoleJudge: caps(
		OpScoreAssigned,
		OpViewSettings,
	),
	types.RoleCoordinator: caps(
		OpViewParticipants,
		OpViewSubmissions,
		OpExportCSV,
		OpViewOwnUniversity,
		OpViewParticipantPII,
		OpViewSettings,
	),
	types.RoleAdmin: caps(
		OpViewParticipants,
		OpViewSubmissions,
		OpExportCSV,
		OpTransitionStatus,
		OpManageAssignments,
		OpViewLeaderboard,
		OpManageSettings,
		OpManageCriteria,
		OpManageCategories,
		OpProvisionStaff,
		OpViewAnyUniversity,
		OpViewParticipantPII,
		OpViewSettings,
	),
}

// Resolved identity of the caller
type Identity struct {
	University  *types.University
	PrincipalID string
	Email       string
	Role        types.Role
}

func (i *Identity) Can(op Operation) bool {
	if i == nil {
		return false
	}
	_, ok := table[i.Role][op]
	return ok
}

func (i *Identity) Require(op Operation) error {
	if i == nil {
		return srverr.ErrUnauthorized
	}
	if !i.Can(op) {
		return fmt.Errorf("%w: %s may not %s", srverr.ErrForbidden, i.Role, op)
	}
	return nil
}

// The university the caller may see. Admins get the requested filter back, which
// may be nil for all universities. Coordinators always get their own and may not
// ask for another.
func (i *Identity) UniversityScope(requested *types.University) (*types.University, error) {
	switch {
	case i.Can(OpViewAnyUniversity):
		return requested, nil
	case i.Can(OpViewOwnUniversity):
		if i.University == nil {
			return nil, fmt.Errorf("%w: coordinator without a university", srverr.ErrForbidden)
		}
		if requested != nil && *requested != *i.University {
			return nil, fmt.Errorf("%w: outside of %s", srverr.ErrForbidden, *i.University)
		}
		return i.University, nil
	default:
		return nil, srverr.ErrForbidden
	}
}
