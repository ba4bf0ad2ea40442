package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/almufid-api/internal/authz"
	"github.com/noah-isme/almufid-api/internal/models"
	"github.com/noah-isme/almufid-api/internal/rubric"
	appErrors "github.com/noah-isme/almufid-api/pkg/errors"
	"github.com/noah-isme/almufid-api/pkg/export"
)

const recentAssessmentsLimit = 5

type assessmentRepository interface {
	Create(ctx context.Context, a *models.Assessment) error
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error)
	Delete(ctx context.Context, id string) error
	CountByStudent(ctx context.Context, studentID string) (int, error)
	CountByAuthor(ctx context.Context, teacherID string) (int, error)
	DistinctStudentsByAuthor(ctx context.Context, teacherID string) (int, error)
	AverageScoreByStudent(ctx context.Context, studentID string) (float64, error)
	RecentByStudent(ctx context.Context, studentID string, limit int) ([]models.AssessmentSummary, error)
	RecentByAuthor(ctx context.Context, teacherID string, limit int) ([]models.AssessmentSummary, error)
}

type assessmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListApprovedSantri(ctx context.Context) ([]models.StudentSummary, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AssessmentService orchestrates assessment recording and retrieval.
// Every operation runs the access decision before touching data, and
// scoring always happens here through the rubric package, never from
// client-supplied values.
type AssessmentService struct {
	assessments assessmentRepository
	users       assessmentUserRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssessmentService constructs an AssessmentService instance.
func NewAssessmentService(assessments assessmentRepository, users assessmentUserRepository, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssessmentService{assessments: assessments, users: users, validator: validate, logger: logger}
}

// Create records an assessment for an approved santri. Marks are
// validated, scored and persisted with the five category sub-records in
// one transaction.
func (s *AssessmentService) Create(ctx context.Context, actor *authz.Actor, req models.CreateAssessmentRequest) (*models.Assessment, error) {
	if !authz.Decide(actor, authz.ActionCreateAssessment, authz.Resource{}).Allowed() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only approved ustadz may record assessments")
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	if req.Surah == "" && req.Jilid == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either surah or jilid must be provided")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleSantri || student.ApprovalStatus != models.ApprovalApproved {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assessments can only target approved santri accounts")
	}

	scores, err := rubric.Compute(req.Marks)
	if err != nil {
		return nil, err
	}

	assessment := &models.Assessment{
		StudentID:   req.StudentID,
		CreatedByID: actor.ID,
		Date:        req.Date,
		Surah:       req.Surah,
		Jilid:       req.Jilid,
		Notes:       req.Notes,
		FinalScore:  scores.Final,
		Fashahah: &models.FashahahAssessment{
			MakharijulHuruf: req.Marks.Fashahah.MakharijulHuruf,
			SifatulHuruf:    req.Marks.Fashahah.SifatulHuruf,
			Harakat:         req.Marks.Fashahah.Harakat,
			MadQashr:        req.Marks.Fashahah.MadQashr,
			Score:           scores.Fashahah,
		},
		Tajwid: &models.TajwidAssessment{
			HukumNunMati:  req.Marks.Tajwid.HukumNunMati,
			HukumMimMati:  req.Marks.Tajwid.HukumMimMati,
			Mad:           req.Marks.Tajwid.Mad,
			WaqafIbtida:   req.Marks.Tajwid.WaqafIbtida,
			TafkhimTarqiq: req.Marks.Tajwid.TafkhimTarqiq,
			Score:         scores.Tajwid,
		},
		Tartil: &models.TartilAssessment{
			Tempo:    req.Marks.Tartil.Tempo,
			Calmness: req.Marks.Tartil.Calmness,
			Fluency:  req.Marks.Tartil.Fluency,
			Score:    scores.Tartil,
		},
		Voice: &models.VoiceAssessment{
			Voice: req.Marks.Voice.Voice,
			Tone:  req.Marks.Voice.Tone,
			Score: scores.Voice,
		},
		Adab: &models.AdabAssessment{
			Attitude: req.Marks.Adab.Attitude,
			Score:    scores.Adab,
		},
	}

	if err := s.assessments.Create(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assessment")
	}
	assessment.StudentName = student.FullName

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionAssessmentCreate,
		Resource:   "assessments",
		ResourceID: &assessment.ID,
		NewValues:  marshalValues(map[string]interface{}{"student_id": req.StudentID, "final_score": scores.Final}),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record assessment audit log", zap.Error(err))
	}

	return assessment, nil
}

// List returns assessments visible to the actor. Scoping comes from the
// actor's identity, not from the client: ustadz see what they authored,
// santri see what they own.
func (s *AssessmentService) List(ctx context.Context, actor *authz.Actor, filter models.AssessmentFilter) ([]models.Assessment, error) {
	switch {
	case authz.Decide(actor, authz.ActionListAssessments, authz.Resource{}).Allowed():
		filter.CreatedByID = actor.ID
	case authz.Decide(actor, authz.ActionReadOwnAssessments, authz.Resource{}).Allowed():
		filter.CreatedByID = ""
		filter.StudentID = actor.ID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to assessment listings")
	}

	assessments, err := s.assessments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	return assessments, nil
}

// Get loads one assessment with its category details, enforcing
// ownership. A record the actor may not see reports as not found, the
// same answer a nonexistent id gives.
func (s *AssessmentService) Get(ctx context.Context, actor *authz.Actor, id string) (*models.Assessment, error) {
	assessment, err := s.assessments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}

	res := authz.Resource{AuthoredBy: assessment.CreatedByID, OwnedBy: assessment.StudentID}
	if !authz.Decide(actor, authz.ActionReadAssessment, res).Allowed() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
	}

	return assessment, nil
}

// Delete removes an assessment the actor authored together with its
// category sub-records.
func (s *AssessmentService) Delete(ctx context.Context, actor *authz.Actor, id string) error {
	assessment, err := s.assessments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}

	res := authz.Resource{AuthoredBy: assessment.CreatedByID, OwnedBy: assessment.StudentID}
	if !authz.Decide(actor, authz.ActionDeleteAssessment, res).Allowed() {
		// Actors who could at least read the record learn it exists, so a
		// plain forbidden is honest; everyone else gets the same not-found
		// a bogus id would give.
		if authz.Decide(actor, authz.ActionReadAssessment, res).Allowed() {
			return appErrors.Clone(appErrors.ErrForbidden, "assessments can only be deleted by their author")
		}
		return appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
	}

	if err := s.assessments.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assessment")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionAssessmentDelete,
		Resource:   "assessments",
		ResourceID: &id,
		OldValues:  marshalValues(map[string]interface{}{"student_id": assessment.StudentID, "final_score": assessment.FinalScore}),
	}); err != nil {
		s.logger.Warn("failed to record assessment delete audit log", zap.Error(err))
	}

	return nil
}

// ListStudents returns the approved santri roster for assessment entry.
func (s *AssessmentService) ListStudents(ctx context.Context, actor *authz.Actor) ([]models.StudentSummary, error) {
	if !authz.Decide(actor, authz.ActionListStudents, authz.Resource{}).Allowed() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only approved ustadz may list students")
	}

	students, err := s.users.ListApprovedSantri(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// SantriStats aggregates the actor's own results.
func (s *AssessmentService) SantriStats(ctx context.Context, actor *authz.Actor) (*models.SantriStats, error) {
	if !authz.Decide(actor, authz.ActionViewSantriStats, authz.Resource{OwnedBy: actor.ID}).Allowed() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only approved santri may view their stats")
	}

	total, err := s.assessments.CountByStudent(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assessments")
	}

	avg, err := s.assessments.AverageScoreByStudent(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to average scores")
	}

	recent, err := s.assessments.RecentByStudent(ctx, actor.ID, recentAssessmentsLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent assessments")
	}

	return &models.SantriStats{TotalAssessments: total, AverageScore: avg, RecentAssessments: recent}, nil
}

// UstadzStats aggregates the actor's authored results.
func (s *AssessmentService) UstadzStats(ctx context.Context, actor *authz.Actor) (*models.UstadzStats, error) {
	if !authz.Decide(actor, authz.ActionViewUstadzStats, authz.Resource{}).Allowed() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only approved ustadz may view their stats")
	}

	total, err := s.assessments.CountByAuthor(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assessments")
	}

	students, err := s.assessments.DistinctStudentsByAuthor(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assessed students")
	}

	recent, err := s.assessments.RecentByAuthor(ctx, actor.ID, recentAssessmentsLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent assessments")
	}

	return &models.UstadzStats{TotalAssessments: total, TotalSantri: students, RecentAssessments: recent}, nil
}

// Export renders the actor-scoped assessment list as a downloadable
// file. Format is "csv" or "pdf".
func (s *AssessmentService) Export(ctx context.Context, actor *authz.Actor, format string, filter models.AssessmentFilter) (*export.File, error) {
	assessments, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]export.Row, 0, len(assessments))
	for _, a := range assessments {
		rows = append(rows, export.Row{
			Date:        a.Date,
			StudentName: a.StudentName,
			TeacherName: a.CreatedByName,
			Surah:       a.Surah,
			Jilid:       a.Jilid,
			FinalScore:  a.FinalScore,
			Notes:       a.Notes,
		})
	}

	title := fmt.Sprintf("Assessment Report %s", time.Now().UTC().Format("2006-01-02"))
	return renderExport(format, title, rows)
}

func renderExport(format, title string, rows []export.Row) (*export.File, error) {
	switch format {
	case "csv":
		file, err := export.WriteCSV(title, rows)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return file, nil
	case "pdf":
		file, err := export.WritePDF(title, rows)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return file, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// ReportCard renders the santri's own results as a downloadable
// progress report. Format is "csv" or "pdf".
func (s *AssessmentService) ReportCard(ctx context.Context, actor *authz.Actor, format string) (*export.File, error) {
	if actor == nil || !authz.Decide(actor, authz.ActionReadOwnAssessments, authz.Resource{OwnedBy: actor.ID}).Allowed() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only approved santri may download their report")
	}

	assessments, err := s.assessments.List(ctx, models.AssessmentFilter{StudentID: actor.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}

	rows := make([]export.Row, 0, len(assessments))
	for _, a := range assessments {
		rows = append(rows, export.Row{
			Date:        a.Date,
			StudentName: a.StudentName,
			TeacherName: a.CreatedByName,
			Surah:       a.Surah,
			Jilid:       a.Jilid,
			FinalScore:  a.FinalScore,
			Notes:       a.Notes,
		})
	}

	title := fmt.Sprintf("Progress Report %s", time.Now().UTC().Format("2006-01-02"))
	return renderExport(format, title, rows)
}
