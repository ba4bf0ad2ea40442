package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/almufid-api/internal/models"
)

// ErrDuplicate is returned when a unique constraint (email, NIS) is hit.
var ErrDuplicate = fmt.Errorf("duplicate record")

const uniqueViolation = "23505"

// UserRepository provides database access for accounts, approval state,
// student profiles, refresh tokens and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, full_name, role, approval_status, created_at, updated_at`

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier, with the student profile
// attached when one exists.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}

	if user.Role == models.RoleSantri {
		profile, err := r.findProfile(ctx, id)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		user.Student = profile
	}

	return &user, nil
}

func (r *UserRepository) findProfile(ctx context.Context, userID string) (*models.StudentProfile, error) {
	const query = `SELECT id, user_id, nis, class, jilid, parent_name, phone_number, address, created_at, updated_at FROM student_profiles WHERE user_id = $1 LIMIT 1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student profile: %w", err)
	}
	return &profile, nil
}

// CreateWithProfile inserts a user and, when profile is non-nil, its
// student profile in one transaction. Either both rows exist afterwards
// or neither does.
func (r *UserRepository) CreateWithProfile(ctx context.Context, user *models.User, profile *models.StudentProfile) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const userQuery = `INSERT INTO users (id, email, password_hash, full_name, role, approval_status, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :role, :approval_status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}

	if profile != nil {
		if profile.ID == "" {
			profile.ID = uuid.NewString()
		}
		profile.UserID = user.ID
		profile.CreatedAt = now
		profile.UpdatedAt = now
		const profileQuery = `INSERT INTO student_profiles (id, user_id, nis, class, jilid, parent_name, phone_number, address, created_at, updated_at) VALUES (:id, :user_id, :nis, :class, :jilid, :parent_name, :phone_number, :address, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("create student profile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register tx: %w", err)
	}
	return nil
}

// SetApprovalStatus records an admin review decision. The update only
// touches rows still in PENDING, so racing admins and repeated decisions
// degrade to no-ops; the returned count tells the caller whether the
// transition happened.
func (r *UserRepository) SetApprovalStatus(ctx context.Context, id string, status models.ApprovalStatus) (bool, error) {
	const query = `UPDATE users SET approval_status = $2, updated_at = $3 WHERE id = $1 AND approval_status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set approval status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set approval status rows: %w", err)
	}
	return affected > 0, nil
}

// List returns users based on filters with total count. Student profile
// columns are joined in for santri rows.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users u WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("u.role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("u.approval_status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.email) LIKE $%d OR LOWER(u.full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"created_at": true,
		"full_name":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT u.id, u.email, u.password_hash, u.full_name, u.role, u.approval_status, u.created_at, u.updated_at %s ORDER BY u.%s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	for i := range users {
		if users[i].Role != models.RoleSantri {
			continue
		}
		profile, err := r.findProfile(ctx, users[i].ID)
		if err != nil && err != sql.ErrNoRows {
			return nil, 0, err
		}
		users[i].Student = profile
	}

	return users, total, nil
}

// ListApprovedSantri returns the roster of approved students ordered by
// name, joined with their profile data.
func (r *UserRepository) ListApprovedSantri(ctx context.Context) ([]models.StudentSummary, error) {
	const query = `SELECT u.id AS user_id, u.full_name, COALESCE(p.nis, '') AS nis, COALESCE(p.class, '') AS class, COALESCE(p.jilid, '') AS jilid
		FROM users u
		LEFT JOIN student_profiles p ON p.user_id = u.id
		WHERE u.role = 'SANTRI' AND u.approval_status = 'APPROVED'
		ORDER BY u.full_name ASC`
	var students []models.StudentSummary
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list approved santri: %w", err)
	}
	return students, nil
}

// Delete removes a user permanently; dependent rows (profile, tokens,
// assessments) go with it through FK cascades.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HasAdmin reports whether any admin account exists (seed guard).
func (r *UserRepository) HasAdmin(ctx context.Context) (bool, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role = 'ADMIN'`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// AdminCounts collects the aggregate counters for the admin dashboard.
func (r *UserRepository) AdminCounts(ctx context.Context) (*models.AdminStats, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM users) AS total_users,
		(SELECT COUNT(*) FROM users WHERE approval_status = 'PENDING') AS pending_approvals,
		(SELECT COUNT(*) FROM users WHERE role = 'SANTRI') AS total_santri,
		(SELECT COUNT(*) FROM users WHERE role = 'USTADZ') AS total_ustadz,
		(SELECT COUNT(*) FROM assessments) AS total_assessments`
	var stats models.AdminStats
	row := r.db.QueryRowxContext(ctx, query)
	if err := row.Scan(&stats.TotalUsers, &stats.PendingApprovals, &stats.TotalSantri, &stats.TotalUstadz, &stats.TotalAssessments); err != nil {
		return nil, fmt.Errorf("admin counts: %w", err)
	}
	return &stats, nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
