package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/almufid-api/internal/models"
)

func newAssessmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sampleAssessment() *models.Assessment {
	return &models.Assessment{
		StudentID:   "s1",
		CreatedByID: "t1",
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Surah:       "Al-Fatihah",
		FinalScore:  81.25,
		Fashahah:    &models.FashahahAssessment{MakharijulHuruf: 90, SifatulHuruf: 90, Harakat: 90, MadQashr: 90, Score: 90},
		Tajwid:      &models.TajwidAssessment{HukumNunMati: 70, HukumMimMati: 70, Mad: 70, WaqafIbtida: 70, TafkhimTarqiq: 70, Score: 70},
		Tartil:      &models.TartilAssessment{Tempo: 80, Calmness: 80, Fluency: 80, Score: 80},
		Voice:       &models.VoiceAssessment{Voice: 60, Tone: 60, Score: 60},
		Adab:        &models.AdabAssessment{Attitude: 100, Score: 100},
	}
}

func TestAssessmentRepositoryCreateInsertsAllSixRows(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO assessments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO fashahah_assessments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO tajwid_assessments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO tartil_assessments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO voice_assessments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO adab_assessments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	a := sampleAssessment()
	require.NoError(t, repo.Create(context.Background(), a))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, a.ID, a.Fashahah.AssessmentID)
	assert.Equal(t, a.ID, a.Adab.AssessmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryCreateRollsBackOnCategoryFailure(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO assessments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO fashahah_assessments").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleAssessment())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var assessmentRows = []string{"id", "student_id", "created_by_id", "date", "surah", "jilid", "notes", "final_score", "created_at", "updated_at", "student_name", "created_by_name"}

func TestAssessmentRepositoryFindByIDLoadsCategories(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT a.id, .* FROM assessments a").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(assessmentRows).
			AddRow("a1", "s1", "t1", now, "Al-Fatihah", "", "", 81.25, now, now, "Santri A", "Ustadz B"))
	mock.ExpectQuery("SELECT .* FROM fashahah_assessments").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assessment_id", "makharijul_huruf", "sifatul_huruf", "harakat", "mad_qashr", "score"}).
			AddRow("f1", "a1", 90.0, 90.0, 90.0, 90.0, 90.0))
	mock.ExpectQuery("SELECT .* FROM tajwid_assessments").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assessment_id", "hukum_nun_mati", "hukum_mim_mati", "mad", "waqaf_ibtida", "tafkhim_tarqiq", "score"}).
			AddRow("j1", "a1", 70.0, 70.0, 70.0, 70.0, 70.0, 70.0))
	mock.ExpectQuery("SELECT .* FROM tartil_assessments").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assessment_id", "tempo", "calmness", "fluency", "score"}).
			AddRow("r1", "a1", 80.0, 80.0, 80.0, 80.0))
	mock.ExpectQuery("SELECT .* FROM voice_assessments").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assessment_id", "voice", "tone", "score"}).
			AddRow("v1", "a1", 60.0, 60.0, 60.0))
	mock.ExpectQuery("SELECT .* FROM adab_assessments").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assessment_id", "attitude", "score"}).
			AddRow("d1", "a1", 100.0, 100.0))

	a, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Santri A", a.StudentName)
	require.NotNil(t, a.Tartil)
	assert.InDelta(t, 80.0, a.Tartil.Score, 1e-9)
	require.NotNil(t, a.Voice)
	assert.InDelta(t, 60.0, a.Voice.Score, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectQuery("SELECT a.id, .* FROM assessments a").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAssessmentRepositoryListScopesByAuthor(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT a\.id, .* FROM assessments a.*AND a\.created_by_id = .*ORDER BY a\.date DESC`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(assessmentRows).
			AddRow("a1", "s1", "t1", now, "An-Nas", "", "", 75.0, now, now, "Santri A", "Ustadz B"))

	list, err := repo.List(context.Background(), models.AssessmentFilter{CreatedByID: "t1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t1", list[0].CreatedByID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectExec("DELETE FROM assessments WHERE id").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAssessmentRepositoryAverageScoreEmpty(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0.0))

	avg, err := repo.AverageScoreByStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, avg)
}

func TestAssessmentRepositoryDistinctStudentsByAuthor(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(DISTINCT student_id\\) FROM assessments").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.DistinctStudentsByAuthor(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
