package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/almufid-api/internal/models"
)

func approved(id string, role models.UserRole) *Actor {
	return &Actor{ID: id, Role: role, ApprovalStatus: models.ApprovalApproved}
}

func TestPublicActionsAllowWithoutActor(t *testing.T) {
	for _, action := range []Action{ActionRegister, ActionLogin, ActionRefreshToken} {
		assert.True(t, Decide(nil, action, Resource{}).Allowed(), string(action))
	}
}

func TestNilActorDeniedEverywhereElse(t *testing.T) {
	for _, action := range []Action{
		ActionViewOwnStatus, ActionManageUsers, ActionViewAdminStats,
		ActionCreateAssessment, ActionListAssessments, ActionReadAssessment,
		ActionDeleteAssessment, ActionListStudents, ActionViewUstadzStats,
		ActionReadOwnAssessments, ActionViewSantriStats,
	} {
		assert.False(t, Decide(nil, action, Resource{}).Allowed(), string(action))
	}
}

func TestUnapprovedActorOnlySeesOwnStatus(t *testing.T) {
	for _, status := range []models.ApprovalStatus{models.ApprovalPending, models.ApprovalRejected} {
		actor := &Actor{ID: "u1", Role: models.RoleUstadz, ApprovalStatus: status}
		assert.True(t, Decide(actor, ActionViewOwnStatus, Resource{}).Allowed())
		for _, action := range []Action{
			ActionManageUsers, ActionCreateAssessment, ActionListAssessments,
			ActionReadOwnAssessments, ActionViewSantriStats, ActionListStudents,
		} {
			assert.False(t, Decide(actor, action, Resource{}).Allowed(), string(action))
		}
	}
}

func TestAdminScopedResources(t *testing.T) {
	admin := approved("a1", models.RoleAdmin)
	assert.True(t, Decide(admin, ActionManageUsers, Resource{}).Allowed())
	assert.True(t, Decide(admin, ActionViewAdminStats, Resource{}).Allowed())

	for _, role := range []models.UserRole{models.RoleUstadz, models.RoleSantri} {
		actor := approved("x", role)
		assert.False(t, Decide(actor, ActionManageUsers, Resource{}).Allowed(), string(role))
		assert.False(t, Decide(actor, ActionViewAdminStats, Resource{}).Allowed(), string(role))
	}
}

func TestAdminHasNoDirectAssessmentAccess(t *testing.T) {
	admin := approved("a1", models.RoleAdmin)
	res := Resource{AuthoredBy: "t1", OwnedBy: "s1"}
	for _, action := range []Action{
		ActionCreateAssessment, ActionListAssessments, ActionReadAssessment,
		ActionDeleteAssessment, ActionReadOwnAssessments,
	} {
		assert.False(t, Decide(admin, action, res).Allowed(), string(action))
	}
}

func TestUstadzOwnershipCheck(t *testing.T) {
	author := approved("t1", models.RoleUstadz)
	other := approved("t2", models.RoleUstadz)
	res := Resource{AuthoredBy: "t1", OwnedBy: "s1"}

	assert.True(t, Decide(author, ActionReadAssessment, res).Allowed())
	assert.True(t, Decide(author, ActionDeleteAssessment, res).Allowed())

	// Role-level access to the teacher area does not extend to another
	// teacher's records.
	assert.True(t, Decide(other, ActionListAssessments, Resource{}).Allowed())
	assert.False(t, Decide(other, ActionReadAssessment, res).Allowed())
	assert.False(t, Decide(other, ActionDeleteAssessment, res).Allowed())
}

func TestSantriOwnershipCheck(t *testing.T) {
	owner := approved("s1", models.RoleSantri)
	other := approved("s2", models.RoleSantri)
	res := Resource{AuthoredBy: "t1", OwnedBy: "s1"}

	assert.True(t, Decide(owner, ActionReadAssessment, res).Allowed())
	assert.False(t, Decide(other, ActionReadAssessment, res).Allowed())

	// Students never delete, not even their own.
	assert.False(t, Decide(owner, ActionDeleteAssessment, res).Allowed())

	assert.True(t, Decide(owner, ActionViewSantriStats, Resource{OwnedBy: "s1"}).Allowed())
	assert.False(t, Decide(other, ActionViewSantriStats, Resource{OwnedBy: "s1"}).Allowed())
}

func TestDecideDeterministic(t *testing.T) {
	actor := approved("t1", models.RoleUstadz)
	res := Resource{AuthoredBy: "t1"}
	first := Decide(actor, ActionDeleteAssessment, res)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Decide(actor, ActionDeleteAssessment, res))
	}
}

func TestDecideTotalOverAllCombinations(t *testing.T) {
	actions := []Action{
		ActionRegister, ActionLogin, ActionRefreshToken, ActionViewOwnStatus,
		ActionManageUsers, ActionViewAdminStats, ActionCreateAssessment,
		ActionListAssessments, ActionReadAssessment, ActionDeleteAssessment,
		ActionListStudents, ActionViewUstadzStats, ActionReadOwnAssessments,
		ActionViewSantriStats, Action("unknown-action"),
	}
	actors := []*Actor{
		nil,
		{ID: "u", Role: models.RoleAdmin, ApprovalStatus: models.ApprovalApproved},
		{ID: "u", Role: models.RoleUstadz, ApprovalStatus: models.ApprovalPending},
		{ID: "u", Role: models.RoleSantri, ApprovalStatus: models.ApprovalRejected},
		{ID: "u", Role: models.UserRole("BOGUS"), ApprovalStatus: models.ApprovalApproved},
	}
	resources := []Resource{{}, {AuthoredBy: "u"}, {OwnedBy: "u"}, {AuthoredBy: "x", OwnedBy: "y"}}

	for _, actor := range actors {
		for _, action := range actions {
			for _, res := range resources {
				verdict := Decide(actor, action, res)
				assert.Contains(t, []Decision{Allow, Deny}, verdict)
			}
		}
	}
}

func TestApprovalTransitions(t *testing.T) {
	assert.True(t, models.ApprovalPending.CanTransition(models.ApprovalApproved))
	assert.True(t, models.ApprovalPending.CanTransition(models.ApprovalRejected))

	assert.False(t, models.ApprovalApproved.CanTransition(models.ApprovalRejected))
	assert.False(t, models.ApprovalApproved.CanTransition(models.ApprovalApproved))
	assert.False(t, models.ApprovalRejected.CanTransition(models.ApprovalApproved))
	assert.False(t, models.ApprovalRejected.CanTransition(models.ApprovalPending))
	assert.False(t, models.ApprovalApproved.CanTransition(models.ApprovalPending))
}

func TestInitialApprovalStatusByRole(t *testing.T) {
	assert.Equal(t, models.ApprovalApproved, models.InitialApprovalStatus(models.RoleAdmin))
	assert.Equal(t, models.ApprovalPending, models.InitialApprovalStatus(models.RoleUstadz))
	assert.Equal(t, models.ApprovalPending, models.InitialApprovalStatus(models.RoleSantri))
}
