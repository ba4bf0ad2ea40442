// Package authz holds the single access decision function consulted by
// every operation. All role and approval gating lives here; middleware
// and services call Decide instead of scattering per-route checks.
package authz

import "github.com/noah-isme/almufid-api/internal/models"

// Action identifies a requested operation.
type Action string

const (
	ActionRegister      Action = "register"
	ActionLogin         Action = "login"
	ActionRefreshToken  Action = "refresh-token"
	ActionViewOwnStatus Action = "view-own-status"

	ActionManageUsers    Action = "manage-users"
	ActionViewAdminStats Action = "view-admin-stats"

	ActionCreateAssessment Action = "create-assessment"
	ActionListAssessments  Action = "list-assessments"
	ActionReadAssessment   Action = "read-assessment"
	ActionDeleteAssessment Action = "delete-assessment"
	ActionListStudents     Action = "list-students"
	ActionViewUstadzStats  Action = "view-ustadz-stats"

	ActionReadOwnAssessments Action = "read-own-assessments"
	ActionViewSantriStats    Action = "view-santri-stats"
)

// Actor is the authenticated principal a decision is made for. It is
// passed explicitly into every call; nothing here reads ambient session
// state.
type Actor struct {
	ID             string
	Role           models.UserRole
	ApprovalStatus models.ApprovalStatus
}

// Resource names the target of an action. Owner fields are zero when the
// action is not about a single record.
type Resource struct {
	// AuthoredBy is the id of the teacher who created the assessment.
	AuthoredBy string
	// OwnedBy is the id of the student the record (or stats subject)
	// belongs to.
	OwnedBy string
}

// Decision is the verdict of Decide.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Allowed is a convenience wrapper for boolean contexts.
func (d Decision) Allowed() bool { return d == Allow }

func isPublic(action Action) bool {
	switch action {
	case ActionRegister, ActionLogin, ActionRefreshToken:
		return true
	}
	return false
}

// Decide returns the verdict for actor performing action on res. It is
// pure, total and deterministic: every combination yields a verdict and
// identical inputs always yield the same one. Rules are evaluated in a
// fixed order; the first match wins.
//
// Ownership comparisons are identity equality checks, re-verified on
// every single-resource operation: holding the USTADZ role alone never
// grants access to another teacher's assessment, and SANTRI only ever
// reach their own records.
func Decide(actor *Actor, action Action, res Resource) Decision {
	// 1. Public surface needs no actor at all.
	if isPublic(action) {
		return Allow
	}

	// 2. Everything else requires authentication.
	if actor == nil {
		return Deny
	}

	// 3. Unapproved accounts may only inspect their own review status.
	if actor.ApprovalStatus != models.ApprovalApproved {
		if action == ActionViewOwnStatus {
			return Allow
		}
		return Deny
	}

	if action == ActionViewOwnStatus {
		return Allow
	}

	// 4. Role-scoped areas.
	switch action {
	case ActionManageUsers, ActionViewAdminStats:
		if actor.Role == models.RoleAdmin {
			return Allow
		}

	case ActionCreateAssessment, ActionListAssessments, ActionListStudents, ActionViewUstadzStats:
		if actor.Role == models.RoleUstadz {
			return Allow
		}

	case ActionReadAssessment, ActionDeleteAssessment:
		if actor.Role == models.RoleUstadz && res.AuthoredBy == actor.ID {
			return Allow
		}
		// Students may read (not delete) their own assessment.
		if action == ActionReadAssessment && actor.Role == models.RoleSantri && res.OwnedBy == actor.ID {
			return Allow
		}

	case ActionReadOwnAssessments, ActionViewSantriStats:
		if actor.Role == models.RoleSantri && (res.OwnedBy == "" || res.OwnedBy == actor.ID) {
			return Allow
		}
	}

	// 5. Unmatched combinations are denied.
	return Deny
}
