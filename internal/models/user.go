package models

import "time"

// UserRole represents the closed set of account roles.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleUstadz UserRole = "USTADZ"
	RoleSantri UserRole = "SANTRI"
)

// Valid reports whether the role is one of the known variants.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleUstadz, RoleSantri:
		return true
	}
	return false
}

// ApprovalStatus represents the account review lifecycle.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// InitialApprovalStatus returns the status an account is created with.
// Admin accounts exist only through the seed path and start approved;
// everyone else waits for admin review.
func InitialApprovalStatus(role UserRole) ApprovalStatus {
	if role == RoleAdmin {
		return ApprovalApproved
	}
	return ApprovalPending
}

// CanTransition reports whether an admin review decision may move an
// account from its current status to the requested one. APPROVED and
// REJECTED are terminal; repeating a decision on a terminal account is
// handled as a no-op by the caller, not as a legal transition.
func (s ApprovalStatus) CanTransition(to ApprovalStatus) bool {
	return s == ApprovalPending && (to == ApprovalApproved || to == ApprovalRejected)
}

// User represents an account stored in the users table.
type User struct {
	ID             string          `db:"id" json:"id"`
	Email          string          `db:"email" json:"email"`
	PasswordHash   string          `db:"password_hash" json:"-"`
	FullName       string          `db:"full_name" json:"full_name"`
	Role           UserRole        `db:"role" json:"role"`
	ApprovalStatus ApprovalStatus  `db:"approval_status" json:"approval_status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	Student        *StudentProfile `db:"-" json:"student,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Status    *ApprovalStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// AdminStats aggregates the counters shown on the admin dashboard.
type AdminStats struct {
	TotalUsers       int `json:"total_users"`
	PendingApprovals int `json:"pending_approvals"`
	TotalSantri      int `json:"total_santri"`
	TotalUstadz      int `json:"total_ustadz"`
	TotalAssessments int `json:"total_assessments"`
}
