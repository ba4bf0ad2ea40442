package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/almufid-api/internal/models"
)

// AssessmentRepository persists assessments and their five category
// sub-records. The sub-records share the parent's lifecycle: they are
// inserted in the same transaction and removed only through the parent's
// delete (FK ON DELETE CASCADE backs the same guarantee in the schema).
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository creates a new instance of AssessmentRepository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create inserts the assessment and all five category rows atomically.
func (r *AssessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assessment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const parentQuery = `INSERT INTO assessments (id, student_id, created_by_id, date, surah, jilid, notes, final_score, created_at, updated_at) VALUES (:id, :student_id, :created_by_id, :date, :surah, :jilid, :notes, :final_score, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, parentQuery, a); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}

	a.Fashahah.ID = uuid.NewString()
	a.Fashahah.AssessmentID = a.ID
	const fashahahQuery = `INSERT INTO fashahah_assessments (id, assessment_id, makharijul_huruf, sifatul_huruf, harakat, mad_qashr, score) VALUES (:id, :assessment_id, :makharijul_huruf, :sifatul_huruf, :harakat, :mad_qashr, :score)`
	if _, err := tx.NamedExecContext(ctx, fashahahQuery, a.Fashahah); err != nil {
		return fmt.Errorf("create fashahah assessment: %w", err)
	}

	a.Tajwid.ID = uuid.NewString()
	a.Tajwid.AssessmentID = a.ID
	const tajwidQuery = `INSERT INTO tajwid_assessments (id, assessment_id, hukum_nun_mati, hukum_mim_mati, mad, waqaf_ibtida, tafkhim_tarqiq, score) VALUES (:id, :assessment_id, :hukum_nun_mati, :hukum_mim_mati, :mad, :waqaf_ibtida, :tafkhim_tarqiq, :score)`
	if _, err := tx.NamedExecContext(ctx, tajwidQuery, a.Tajwid); err != nil {
		return fmt.Errorf("create tajwid assessment: %w", err)
	}

	a.Tartil.ID = uuid.NewString()
	a.Tartil.AssessmentID = a.ID
	const tartilQuery = `INSERT INTO tartil_assessments (id, assessment_id, tempo, calmness, fluency, score) VALUES (:id, :assessment_id, :tempo, :calmness, :fluency, :score)`
	if _, err := tx.NamedExecContext(ctx, tartilQuery, a.Tartil); err != nil {
		return fmt.Errorf("create tartil assessment: %w", err)
	}

	a.Voice.ID = uuid.NewString()
	a.Voice.AssessmentID = a.ID
	const voiceQuery = `INSERT INTO voice_assessments (id, assessment_id, voice, tone, score) VALUES (:id, :assessment_id, :voice, :tone, :score)`
	if _, err := tx.NamedExecContext(ctx, voiceQuery, a.Voice); err != nil {
		return fmt.Errorf("create voice assessment: %w", err)
	}

	a.Adab.ID = uuid.NewString()
	a.Adab.AssessmentID = a.ID
	const adabQuery = `INSERT INTO adab_assessments (id, assessment_id, attitude, score) VALUES (:id, :assessment_id, :attitude, :score)`
	if _, err := tx.NamedExecContext(ctx, adabQuery, a.Adab); err != nil {
		return fmt.Errorf("create adab assessment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assessment tx: %w", err)
	}
	return nil
}

const assessmentColumns = `a.id, a.student_id, a.created_by_id, a.date, a.surah, a.jilid, a.notes, a.final_score, a.created_at, a.updated_at, s.full_name AS student_name, t.full_name AS created_by_name`

// FindByID loads an assessment with its five category sub-records. The
// caller is responsible for the ownership decision; this is a plain
// fetch.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessments a
		JOIN users s ON s.id = a.student_id
		JOIN users t ON t.id = a.created_by_id
		WHERE a.id = $1 LIMIT 1`, assessmentColumns)
	var a models.Assessment
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assessment by id: %w", err)
	}

	if err := r.attachCategories(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssessmentRepository) attachCategories(ctx context.Context, a *models.Assessment) error {
	a.Fashahah = &models.FashahahAssessment{}
	if err := r.db.GetContext(ctx, a.Fashahah, `SELECT id, assessment_id, makharijul_huruf, sifatul_huruf, harakat, mad_qashr, score FROM fashahah_assessments WHERE assessment_id = $1`, a.ID); err != nil {
		return fmt.Errorf("load fashahah assessment: %w", err)
	}
	a.Tajwid = &models.TajwidAssessment{}
	if err := r.db.GetContext(ctx, a.Tajwid, `SELECT id, assessment_id, hukum_nun_mati, hukum_mim_mati, mad, waqaf_ibtida, tafkhim_tarqiq, score FROM tajwid_assessments WHERE assessment_id = $1`, a.ID); err != nil {
		return fmt.Errorf("load tajwid assessment: %w", err)
	}
	a.Tartil = &models.TartilAssessment{}
	if err := r.db.GetContext(ctx, a.Tartil, `SELECT id, assessment_id, tempo, calmness, fluency, score FROM tartil_assessments WHERE assessment_id = $1`, a.ID); err != nil {
		return fmt.Errorf("load tartil assessment: %w", err)
	}
	a.Voice = &models.VoiceAssessment{}
	if err := r.db.GetContext(ctx, a.Voice, `SELECT id, assessment_id, voice, tone, score FROM voice_assessments WHERE assessment_id = $1`, a.ID); err != nil {
		return fmt.Errorf("load voice assessment: %w", err)
	}
	a.Adab = &models.AdabAssessment{}
	if err := r.db.GetContext(ctx, a.Adab, `SELECT id, assessment_id, attitude, score FROM adab_assessments WHERE assessment_id = $1`, a.ID); err != nil {
		return fmt.Errorf("load adab assessment: %w", err)
	}
	return nil
}

// List returns assessments matching the filter, newest first. Scoping
// (authoring teacher or owning student) arrives through the filter.
func (r *AssessmentRepository) List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	baseQuery := fmt.Sprintf(`SELECT %s FROM assessments a
		JOIN users s ON s.id = a.student_id
		JOIN users t ON t.id = a.created_by_id
		WHERE 1=1`, assessmentColumns)
	var conditions []string
	var args []interface{}

	if filter.CreatedByID != "" {
		conditions = append(conditions, fmt.Sprintf("a.created_by_id = $%d", len(args)+1))
		args = append(args, filter.CreatedByID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Unit != "" {
		conditions = append(conditions, fmt.Sprintf("(a.surah ILIKE $%d OR a.jilid ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Unit+"%")
	}
	if filter.FromDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.FromDate)
	}
	if filter.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.ToDate)
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY a.date DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, args...); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}

// Delete removes the assessment; the five category rows cascade with it.
func (r *AssessmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assessments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete assessment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStudent returns the number of assessments owned by a student.
func (r *AssessmentRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assessments WHERE student_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count assessments by student: %w", err)
	}
	return count, nil
}

// CountByAuthor returns the number of assessments authored by a teacher.
func (r *AssessmentRepository) CountByAuthor(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assessments WHERE created_by_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID); err != nil {
		return 0, fmt.Errorf("count assessments by author: %w", err)
	}
	return count, nil
}

// DistinctStudentsByAuthor returns how many different students a teacher
// has assessed.
func (r *AssessmentRepository) DistinctStudentsByAuthor(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT student_id) FROM assessments WHERE created_by_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID); err != nil {
		return 0, fmt.Errorf("distinct students by author: %w", err)
	}
	return count, nil
}

// AverageScoreByStudent returns the mean final score across a student's
// assessments, zero when none exist.
func (r *AssessmentRepository) AverageScoreByStudent(ctx context.Context, studentID string) (float64, error) {
	const query = `SELECT COALESCE(AVG(final_score), 0) FROM assessments WHERE student_id = $1`
	var avg float64
	if err := r.db.GetContext(ctx, &avg, query, studentID); err != nil {
		return 0, fmt.Errorf("average score by student: %w", err)
	}
	return avg, nil
}

// RecentByStudent returns a student's latest assessments.
func (r *AssessmentRepository) RecentByStudent(ctx context.Context, studentID string, limit int) ([]models.AssessmentSummary, error) {
	const query = `SELECT a.id, a.date, a.surah, a.jilid, a.final_score, t.full_name AS created_by_name
		FROM assessments a JOIN users t ON t.id = a.created_by_id
		WHERE a.student_id = $1 ORDER BY a.date DESC LIMIT $2`
	var rows []models.AssessmentSummary
	if err := r.db.SelectContext(ctx, &rows, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("recent assessments by student: %w", err)
	}
	return rows, nil
}

// RecentByAuthor returns a teacher's latest authored assessments.
func (r *AssessmentRepository) RecentByAuthor(ctx context.Context, teacherID string, limit int) ([]models.AssessmentSummary, error) {
	const query = `SELECT a.id, a.date, a.surah, a.jilid, a.final_score, s.full_name AS student_name
		FROM assessments a JOIN users s ON s.id = a.student_id
		WHERE a.created_by_id = $1 ORDER BY a.created_at DESC LIMIT $2`
	var rows []models.AssessmentSummary
	if err := r.db.SelectContext(ctx, &rows, query, teacherID, limit); err != nil {
		return nil, fmt.Errorf("recent assessments by author: %w", err)
	}
	return rows, nil
}
