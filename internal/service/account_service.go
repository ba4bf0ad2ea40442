package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/almufid-api/internal/authz"
	"github.com/noah-isme/almufid-api/internal/models"
	"github.com/noah-isme/almufid-api/internal/repository"
	appErrors "github.com/noah-isme/almufid-api/pkg/errors"
)

const adminStatsCacheKey = "almufid:stats:admin"

type accountUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateWithProfile(ctx context.Context, user *models.User, profile *models.StudentProfile) error
	SetApprovalStatus(ctx context.Context, id string, status models.ApprovalStatus) (bool, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Delete(ctx context.Context, id string) error
	HasAdmin(ctx context.Context) (bool, error)
	AdminCounts(ctx context.Context) (*models.AdminStats, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// AccountService covers registration and the admin-side account
// lifecycle: review decisions, listing, removal and dashboard counters.
type AccountService struct {
	repo      accountUserRepository
	cache     statsCache
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(repo accountUserRepository, cache statsCache, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AccountService{repo: repo, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// Register creates a new account in PENDING. Santri registrations also
// create the enrollment profile in the same transaction. Admin accounts
// cannot be created through this path.
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if req.Role == models.RoleAdmin || !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role must be USTADZ or SANTRI")
	}

	var profile *models.StudentProfile
	if req.Role == models.RoleSantri {
		if req.NIS == "" || req.Class == "" || req.Jilid == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "santri registration requires nis, class and jilid")
		}
		profile = &models.StudentProfile{
			NIS:         req.NIS,
			Class:       req.Class,
			Jilid:       req.Jilid,
			ParentName:  req.ParentName,
			PhoneNumber: req.PhoneNumber,
			Address:     req.Address,
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:          req.Email,
		PasswordHash:   string(hash),
		FullName:       req.FullName,
		Role:           req.Role,
		ApprovalStatus: models.InitialApprovalStatus(req.Role),
	}

	if err := s.repo.CreateWithProfile(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or nis already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}
	user.Student = profile

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionRegister,
		Resource:   "users",
		ResourceID: &user.ID,
		NewValues:  []byte(`{"role":"` + string(user.Role) + `"}`),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record register audit log", zap.Error(err))
	}

	s.invalidateStats(ctx)
	return user, nil
}

// Approve moves a pending account to APPROVED. Repeating the decision
// on an already reviewed account is a no-op, not an error.
func (s *AccountService) Approve(ctx context.Context, actor *authz.Actor, userID string) (*models.User, error) {
	return s.review(ctx, actor, userID, models.ApprovalApproved, models.AuditActionUserApprove)
}

// Reject moves a pending account to REJECTED, revoking its sessions.
func (s *AccountService) Reject(ctx context.Context, actor *authz.Actor, userID string) (*models.User, error) {
	return s.review(ctx, actor, userID, models.ApprovalRejected, models.AuditActionUserReject)
}

func (s *AccountService) review(ctx context.Context, actor *authz.Actor, userID string, status models.ApprovalStatus, auditAction string) (*models.User, error) {
	if !authz.Decide(actor, authz.ActionManageUsers, authz.Resource{}).Allowed() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may review accounts")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if user.ApprovalStatus.CanTransition(status) {
		changed, err := s.repo.SetApprovalStatus(ctx, userID, status)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update approval status")
		}
		if changed {
			user.ApprovalStatus = status

			if status == models.ApprovalRejected {
				if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
					s.logger.Warn("failed to revoke sessions of rejected account", zap.String("user_id", userID), zap.Error(err))
				}
			}

			if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
				UserID:     &actor.ID,
				Action:     auditAction,
				Resource:   "users",
				ResourceID: &userID,
				NewValues:  []byte(`{"approval_status":"` + string(status) + `"}`),
			}); err != nil {
				s.logger.Warn("failed to record review audit log", zap.Error(err))
			}

			s.invalidateStats(ctx)
		}
	}
	// Terminal statuses stay as they are; returning the current record
	// keeps repeated decisions idempotent.

	return user, nil
}

// ListUsers returns accounts matching the filter plus pagination data.
func (s *AccountService) ListUsers(ctx context.Context, actor *authz.Actor, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if !authz.Decide(actor, authz.ActionManageUsers, authz.Resource{}).Allowed() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may list accounts")
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// DeleteUser removes an account permanently. Admins cannot remove
// themselves; everything the account owns cascades away with it.
func (s *AccountService) DeleteUser(ctx context.Context, actor *authz.Actor, userID string) error {
	if !authz.Decide(actor, authz.ActionManageUsers, authz.Resource{}).Allowed() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may delete accounts")
	}
	if actor.ID == userID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete own account")
	}

	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions before delete", zap.String("user_id", userID), zap.Error(err))
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionUserDelete,
		Resource:   "users",
		ResourceID: &userID,
	}); err != nil {
		s.logger.Warn("failed to record delete audit log", zap.Error(err))
	}

	s.invalidateStats(ctx)
	return nil
}

// AdminStats returns the dashboard counters, cached briefly so the
// dashboard does not hammer the counting queries.
func (s *AccountService) AdminStats(ctx context.Context, actor *authz.Actor) (*models.AdminStats, error) {
	if !authz.Decide(actor, authz.ActionViewAdminStats, authz.Resource{}).Allowed() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may view admin stats")
	}

	if s.cache != nil {
		var cached models.AdminStats
		if err := s.cache.Get(ctx, adminStatsCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("admin stats cache read failed", zap.Error(err))
		}
	}

	stats, err := s.repo.AdminCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin stats")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, adminStatsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("admin stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// SeedAdmin creates the bootstrap admin account when none exists yet.
// The seeded account skips review entirely and starts APPROVED.
func (s *AccountService) SeedAdmin(ctx context.Context, fullName, email, password string) error {
	exists, err := s.repo.HasAdmin(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check for existing admin")
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash admin password")
	}

	admin := &models.User{
		Email:          email,
		PasswordHash:   string(hash),
		FullName:       fullName,
		Role:           models.RoleAdmin,
		ApprovalStatus: models.InitialApprovalStatus(models.RoleAdmin),
	}

	if err := s.repo.CreateWithProfile(ctx, admin, nil); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Another instance seeded first.
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed admin account")
	}

	s.logger.Info("seeded bootstrap admin account", zap.String("email", email))
	return nil
}

func (s *AccountService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, adminStatsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate admin stats cache", zap.Error(err))
	}
}

// marshalValues serializes audit payloads, swallowing marshal errors
// into nil so audit logging never blocks the main path.
func marshalValues(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
