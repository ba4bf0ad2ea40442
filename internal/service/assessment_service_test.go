package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/almufid-api/internal/authz"
	"github.com/noah-isme/almufid-api/internal/models"
	"github.com/noah-isme/almufid-api/internal/rubric"
	appErrors "github.com/noah-isme/almufid-api/pkg/errors"
)

type mockAssessmentRepo struct {
	assessments map[string]*models.Assessment
	created     []*models.Assessment
	deleted     []string
}

func newMockAssessmentRepo() *mockAssessmentRepo {
	return &mockAssessmentRepo{assessments: make(map[string]*models.Assessment)}
}

func (m *mockAssessmentRepo) Create(ctx context.Context, a *models.Assessment) error {
	if a.ID == "" {
		a.ID = "a-" + a.StudentID
	}
	m.assessments[a.ID] = a
	m.created = append(m.created, a)
	return nil
}

func (m *mockAssessmentRepo) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	a, ok := m.assessments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return a, nil
}

func (m *mockAssessmentRepo) List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	var out []models.Assessment
	for _, a := range m.assessments {
		if filter.CreatedByID != "" && a.CreatedByID != filter.CreatedByID {
			continue
		}
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockAssessmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.assessments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.assessments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockAssessmentRepo) CountByStudent(ctx context.Context, studentID string) (int, error) {
	count := 0
	for _, a := range m.assessments {
		if a.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (m *mockAssessmentRepo) CountByAuthor(ctx context.Context, teacherID string) (int, error) {
	count := 0
	for _, a := range m.assessments {
		if a.CreatedByID == teacherID {
			count++
		}
	}
	return count, nil
}

func (m *mockAssessmentRepo) DistinctStudentsByAuthor(ctx context.Context, teacherID string) (int, error) {
	seen := make(map[string]struct{})
	for _, a := range m.assessments {
		if a.CreatedByID == teacherID {
			seen[a.StudentID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (m *mockAssessmentRepo) AverageScoreByStudent(ctx context.Context, studentID string) (float64, error) {
	sum, count := 0.0, 0
	for _, a := range m.assessments {
		if a.StudentID == studentID {
			sum += a.FinalScore
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

func (m *mockAssessmentRepo) RecentByStudent(ctx context.Context, studentID string, limit int) ([]models.AssessmentSummary, error) {
	var out []models.AssessmentSummary
	for _, a := range m.assessments {
		if a.StudentID == studentID && len(out) < limit {
			out = append(out, models.AssessmentSummary{ID: a.ID, FinalScore: a.FinalScore})
		}
	}
	return out, nil
}

func (m *mockAssessmentRepo) RecentByAuthor(ctx context.Context, teacherID string, limit int) ([]models.AssessmentSummary, error) {
	var out []models.AssessmentSummary
	for _, a := range m.assessments {
		if a.CreatedByID == teacherID && len(out) < limit {
			out = append(out, models.AssessmentSummary{ID: a.ID, FinalScore: a.FinalScore})
		}
	}
	return out, nil
}

type mockAssessmentUserRepo struct {
	users     map[string]*models.User
	roster    []models.StudentSummary
	auditLogs []*models.AuditLog
}

func (m *mockAssessmentUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockAssessmentUserRepo) ListApprovedSantri(ctx context.Context) ([]models.StudentSummary, error) {
	return m.roster, nil
}

func (m *mockAssessmentUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func ustadzActor(id string) *authz.Actor {
	return &authz.Actor{ID: id, Role: models.RoleUstadz, ApprovalStatus: models.ApprovalApproved}
}

func santriActor(id string) *authz.Actor {
	return &authz.Actor{ID: id, Role: models.RoleSantri, ApprovalStatus: models.ApprovalApproved}
}

func uniformMarks(value float64) rubric.Marks {
	return rubric.Marks{
		Fashahah: rubric.FashahahMarks{MakharijulHuruf: value, SifatulHuruf: value, Harakat: value, MadQashr: value},
		Tajwid:   rubric.TajwidMarks{HukumNunMati: value, HukumMimMati: value, Mad: value, WaqafIbtida: value, TafkhimTarqiq: value},
		Tartil:   rubric.TartilMarks{Tempo: value, Calmness: value, Fluency: value},
		Voice:    rubric.VoiceMarks{Voice: value, Tone: value},
		Adab:     rubric.AdabMarks{Attitude: value},
	}
}

func newAssessmentFixture() (*AssessmentService, *mockAssessmentRepo, *mockAssessmentUserRepo) {
	repo := newMockAssessmentRepo()
	users := &mockAssessmentUserRepo{users: map[string]*models.User{
		"s1": {ID: "s1", FullName: "Santri One", Role: models.RoleSantri, ApprovalStatus: models.ApprovalApproved},
		"s2": {ID: "s2", FullName: "Santri Two", Role: models.RoleSantri, ApprovalStatus: models.ApprovalPending},
	}}
	svc := NewAssessmentService(repo, users, validator.New(), zap.NewNop())
	return svc, repo, users
}

func validCreateRequest(studentID string) models.CreateAssessmentRequest {
	return models.CreateAssessmentRequest{
		StudentID: studentID,
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Surah:     "Al-Fatihah",
		Marks:     uniformMarks(80),
	}
}

func TestAssessmentServiceCreateDerivesScores(t *testing.T) {
	svc, repo, users := newAssessmentFixture()

	req := validCreateRequest("c0ffee00-0000-4000-8000-000000000001")
	users.users[req.StudentID] = &models.User{ID: req.StudentID, FullName: "Santri One", Role: models.RoleSantri, ApprovalStatus: models.ApprovalApproved}

	assessment, err := svc.Create(context.Background(), ustadzActor("t1"), req)
	require.NoError(t, err)

	assert.Equal(t, "t1", assessment.CreatedByID)
	assert.InDelta(t, 80.0, assessment.FinalScore, 1e-9)
	assert.InDelta(t, 80.0, assessment.Fashahah.Score, 1e-9)
	assert.InDelta(t, 80.0, assessment.Tajwid.Score, 1e-9)
	assert.InDelta(t, 80.0, assessment.Tartil.Score, 1e-9)
	assert.InDelta(t, 80.0, assessment.Voice.Score, 1e-9)
	assert.InDelta(t, 80.0, assessment.Adab.Score, 1e-9)
	require.Len(t, repo.created, 1)
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionAssessmentCreate, users.auditLogs[0].Action)
}

func TestAssessmentServiceCreateRejectsOutOfRangeMarks(t *testing.T) {
	svc, repo, users := newAssessmentFixture()

	req := validCreateRequest("c0ffee00-0000-4000-8000-000000000001")
	users.users[req.StudentID] = &models.User{ID: req.StudentID, Role: models.RoleSantri, ApprovalStatus: models.ApprovalApproved}
	req.Marks.Tajwid.Mad = 101

	_, err := svc.Create(context.Background(), ustadzActor("t1"), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.created)
}

func TestAssessmentServiceCreateRequiresUnit(t *testing.T) {
	svc, _, users := newAssessmentFixture()

	req := validCreateRequest("c0ffee00-0000-4000-8000-000000000001")
	users.users[req.StudentID] = &models.User{ID: req.StudentID, Role: models.RoleSantri, ApprovalStatus: models.ApprovalApproved}
	req.Surah = ""
	req.Jilid = ""

	_, err := svc.Create(context.Background(), ustadzActor("t1"), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAssessmentServiceCreateRejectsUnapprovedStudent(t *testing.T) {
	svc, _, users := newAssessmentFixture()

	req := validCreateRequest("c0ffee00-0000-4000-8000-000000000002")
	users.users[req.StudentID] = &models.User{ID: req.StudentID, Role: models.RoleSantri, ApprovalStatus: models.ApprovalPending}

	_, err := svc.Create(context.Background(), ustadzActor("t1"), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAssessmentServiceCreateForbiddenForSantri(t *testing.T) {
	svc, _, _ := newAssessmentFixture()

	_, err := svc.Create(context.Background(), santriActor("s1"), validCreateRequest("c0ffee00-0000-4000-8000-000000000001"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAssessmentServiceListScopedToActor(t *testing.T) {
	svc, repo, _ := newAssessmentFixture()
	repo.assessments["a1"] = &models.Assessment{ID: "a1", CreatedByID: "t1", StudentID: "s1"}
	repo.assessments["a2"] = &models.Assessment{ID: "a2", CreatedByID: "t2", StudentID: "s1"}
	repo.assessments["a3"] = &models.Assessment{ID: "a3", CreatedByID: "t1", StudentID: "s9"}

	// An ustadz sees only authored records even when the filter asks wider.
	out, err := svc.List(context.Background(), ustadzActor("t1"), models.AssessmentFilter{CreatedByID: "t2"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	for _, a := range out {
		assert.Equal(t, "t1", a.CreatedByID)
	}

	// A santri sees only owned records.
	out, err = svc.List(context.Background(), santriActor("s1"), models.AssessmentFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	for _, a := range out {
		assert.Equal(t, "s1", a.StudentID)
	}
}

func TestAssessmentServiceGetMasksForeignRecords(t *testing.T) {
	svc, repo, _ := newAssessmentFixture()
	repo.assessments["a1"] = &models.Assessment{ID: "a1", CreatedByID: "t1", StudentID: "s1"}

	// Author and owner read it.
	_, err := svc.Get(context.Background(), ustadzActor("t1"), "a1")
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), santriActor("s1"), "a1")
	require.NoError(t, err)

	// Another teacher gets the same answer a bogus id gives.
	_, err = svc.Get(context.Background(), ustadzActor("t2"), "a1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Get(context.Background(), ustadzActor("t2"), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAssessmentServiceDeleteOnlyByAuthor(t *testing.T) {
	svc, repo, _ := newAssessmentFixture()
	repo.assessments["a1"] = &models.Assessment{ID: "a1", CreatedByID: "t1", StudentID: "s1"}

	// The owning santri can read it, so denial is an explicit forbidden.
	err := svc.Delete(context.Background(), santriActor("s1"), "a1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	// A foreign teacher cannot even learn the record exists.
	err = svc.Delete(context.Background(), ustadzActor("t2"), "a1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, svc.Delete(context.Background(), ustadzActor("t1"), "a1"))
	assert.Contains(t, repo.deleted, "a1")
}

func TestAssessmentServiceListStudents(t *testing.T) {
	svc, _, users := newAssessmentFixture()
	users.roster = []models.StudentSummary{{UserID: "s1", FullName: "Santri One"}}

	roster, err := svc.ListStudents(context.Background(), ustadzActor("t1"))
	require.NoError(t, err)
	assert.Len(t, roster, 1)

	_, err = svc.ListStudents(context.Background(), santriActor("s1"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAssessmentServiceSantriStats(t *testing.T) {
	svc, repo, _ := newAssessmentFixture()
	repo.assessments["a1"] = &models.Assessment{ID: "a1", CreatedByID: "t1", StudentID: "s1", FinalScore: 80}
	repo.assessments["a2"] = &models.Assessment{ID: "a2", CreatedByID: "t2", StudentID: "s1", FinalScore: 90}
	repo.assessments["a3"] = &models.Assessment{ID: "a3", CreatedByID: "t1", StudentID: "s2", FinalScore: 40}

	stats, err := svc.SantriStats(context.Background(), santriActor("s1"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAssessments)
	assert.InDelta(t, 85.0, stats.AverageScore, 1e-9)
	assert.Len(t, stats.RecentAssessments, 2)
}

func TestAssessmentServiceUstadzStats(t *testing.T) {
	svc, repo, _ := newAssessmentFixture()
	repo.assessments["a1"] = &models.Assessment{ID: "a1", CreatedByID: "t1", StudentID: "s1", FinalScore: 80}
	repo.assessments["a2"] = &models.Assessment{ID: "a2", CreatedByID: "t1", StudentID: "s2", FinalScore: 90}
	repo.assessments["a3"] = &models.Assessment{ID: "a3", CreatedByID: "t1", StudentID: "s1", FinalScore: 70}

	stats, err := svc.UstadzStats(context.Background(), ustadzActor("t1"))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAssessments)
	assert.Equal(t, 2, stats.TotalSantri)
}

func TestAssessmentServiceExportCSV(t *testing.T) {
	svc, repo, _ := newAssessmentFixture()
	repo.assessments["a1"] = &models.Assessment{
		ID: "a1", CreatedByID: "t1", StudentID: "s1",
		StudentName: "Santri One", FinalScore: 81.25,
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	file, err := svc.Export(context.Background(), ustadzActor("t1"), "csv", models.AssessmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, string(file.Content), "Santri One")
	assert.Contains(t, string(file.Content), "81.25")
}

func TestAssessmentServiceExportUnknownFormat(t *testing.T) {
	svc, _, _ := newAssessmentFixture()

	_, err := svc.Export(context.Background(), ustadzActor("t1"), "xlsx", models.AssessmentFilter{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAssessmentServiceReportCardPDF(t *testing.T) {
	svc, repo, _ := newAssessmentFixture()
	repo.assessments["a1"] = &models.Assessment{
		ID: "a1", CreatedByID: "t1", StudentID: "s1",
		StudentName: "Santri One", FinalScore: 75,
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	file, err := svc.ReportCard(context.Background(), santriActor("s1"), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.NotEmpty(t, file.Content)

	csvFile, err := svc.ReportCard(context.Background(), santriActor("s1"), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", csvFile.ContentType)

	_, err = svc.ReportCard(context.Background(), ustadzActor("t1"), "pdf")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
