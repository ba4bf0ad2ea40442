package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/almufid-api/internal/models"
)

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var userRows = []string{"id", "email", "password_hash", "full_name", "role", "approval_status", "created_at", "updated_at"}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, approval_status, created_at, updated_at FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userRows).
			AddRow("u1", "a@example.com", "hash", "User A", "USTADZ", "PENDING", now, now))

	user, err := repo.FindByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUstadz, user.Role)
	assert.Equal(t, models.ApprovalPending, user.ApprovalStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailMissing(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT .* FROM users WHERE email").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryFindByIDAttachesProfile(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM users WHERE id").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(userRows).
			AddRow("s1", "s@example.com", "hash", "Santri A", "SANTRI", "APPROVED", now, now))
	mock.ExpectQuery("SELECT .* FROM student_profiles WHERE user_id").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "nis", "class", "jilid", "parent_name", "phone_number", "address", "created_at", "updated_at"}).
			AddRow("p1", "s1", "2024001", "A", "Jilid 3", "Parent", "0812", "Address", now, now))

	user, err := repo.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, user.Student)
	assert.Equal(t, "2024001", user.Student.NIS)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateWithProfileTransaction(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_profiles").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "s@example.com", FullName: "Santri A", Role: models.RoleSantri, ApprovalStatus: models.ApprovalPending}
	profile := &models.StudentProfile{NIS: "2024001", Class: "A", Jilid: "Jilid 3"}
	require.NoError(t, repo.CreateWithProfile(context.Background(), user, profile))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, user.ID, profile.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateWithProfileRollsBackOnProfileError(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_profiles").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	user := &models.User{Email: "s@example.com", Role: models.RoleSantri}
	err := repo.CreateWithProfile(context.Background(), user, &models.StudentProfile{NIS: "dup"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateWithProfile(context.Background(), &models.User{Email: "dup@example.com"}, nil)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepositorySetApprovalStatusOnlyTouchesPending(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET approval_status = $2, updated_at = $3 WHERE id = $1 AND approval_status = 'PENDING'")).
		WithArgs("u1", models.ApprovalApproved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.SetApprovalStatus(context.Background(), "u1", models.ApprovalApproved)
	require.NoError(t, err)
	assert.True(t, changed)

	// Already-reviewed rows do not match the guard, so nothing changes.
	mock.ExpectExec("UPDATE users SET approval_status").
		WithArgs("u1", models.ApprovalRejected, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err = repo.SetApprovalStatus(context.Background(), "u1", models.ApprovalRejected)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT u.id, .* FROM users u WHERE 1=1 AND u.role = .* ORDER BY u.created_at DESC LIMIT 20 OFFSET 0").
		WithArgs(models.RoleUstadz).
		WillReturnRows(sqlmock.NewRows(userRows).
			AddRow("u1", "a@example.com", "hash", "User A", "USTADZ", "PENDING", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users u WHERE 1=1")).
		WithArgs(models.RoleUstadz).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	role := models.RoleUstadz
	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("DELETE FROM users WHERE id").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryAdminCounts(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"total_users", "pending_approvals", "total_santri", "total_ustadz", "total_assessments"}).
			AddRow(10, 2, 6, 3, 40))

	stats, err := repo.AdminCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalUsers)
	assert.Equal(t, 2, stats.PendingApprovals)
	assert.Equal(t, 40, stats.TotalAssessments)
}

func TestUserRepositoryListApprovedSantri(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`(?s)SELECT u\.id AS user_id, .*FROM users u`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "full_name", "nis", "class", "jilid"}).
			AddRow("s1", "Santri A", "2024001", "A", "Jilid 3").
			AddRow("s2", "Santri B", "2024002", "B", ""))

	students, err := repo.ListApprovedSantri(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Santri A", students[0].FullName)
}
