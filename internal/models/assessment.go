package models

import (
	"time"

	"github.com/noah-isme/almufid-api/internal/rubric"
)

// Assessment is one recitation evaluation event. The five category
// sub-records are created atomically with it and removed only when it is
// deleted; they never have an independent lifecycle.
type Assessment struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	CreatedByID string    `db:"created_by_id" json:"created_by_id"`
	Date        time.Time `db:"date" json:"date"`
	Surah       string    `db:"surah" json:"surah,omitempty"`
	Jilid       string    `db:"jilid" json:"jilid,omitempty"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	FinalScore  float64   `db:"final_score" json:"final_score"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	StudentName   string `db:"student_name" json:"student_name,omitempty"`
	CreatedByName string `db:"created_by_name" json:"created_by_name,omitempty"`

	Fashahah *FashahahAssessment `db:"-" json:"fashahah_assessment,omitempty"`
	Tajwid   *TajwidAssessment   `db:"-" json:"tajwid_assessment,omitempty"`
	Tartil   *TartilAssessment   `db:"-" json:"tartil_assessment,omitempty"`
	Voice    *VoiceAssessment    `db:"-" json:"voice_assessment,omitempty"`
	Adab     *AdabAssessment     `db:"-" json:"adab_assessment,omitempty"`
}

// FashahahAssessment stores the pronunciation-precision marks.
type FashahahAssessment struct {
	ID              string  `db:"id" json:"id"`
	AssessmentID    string  `db:"assessment_id" json:"assessment_id"`
	MakharijulHuruf float64 `db:"makharijul_huruf" json:"makharijul_huruf"`
	SifatulHuruf    float64 `db:"sifatul_huruf" json:"sifatul_huruf"`
	Harakat         float64 `db:"harakat" json:"harakat"`
	MadQashr        float64 `db:"mad_qashr" json:"mad_qashr"`
	Score           float64 `db:"score" json:"score"`
}

// TajwidAssessment stores the recitation-rules marks.
type TajwidAssessment struct {
	ID            string  `db:"id" json:"id"`
	AssessmentID  string  `db:"assessment_id" json:"assessment_id"`
	HukumNunMati  float64 `db:"hukum_nun_mati" json:"hukum_nun_mati"`
	HukumMimMati  float64 `db:"hukum_mim_mati" json:"hukum_mim_mati"`
	Mad           float64 `db:"mad" json:"mad"`
	WaqafIbtida   float64 `db:"waqaf_ibtida" json:"waqaf_ibtida"`
	TafkhimTarqiq float64 `db:"tafkhim_tarqiq" json:"tafkhim_tarqiq"`
	Score         float64 `db:"score" json:"score"`
}

// TartilAssessment stores the rhythm and fluency marks.
type TartilAssessment struct {
	ID           string  `db:"id" json:"id"`
	AssessmentID string  `db:"assessment_id" json:"assessment_id"`
	Tempo        float64 `db:"tempo" json:"tempo"`
	Calmness     float64 `db:"calmness" json:"calmness"`
	Fluency      float64 `db:"fluency" json:"fluency"`
	Score        float64 `db:"score" json:"score"`
}

// VoiceAssessment stores the voice and tone marks. The category is
// optional content but always carries a score; unassessed marks stay 0.
type VoiceAssessment struct {
	ID           string  `db:"id" json:"id"`
	AssessmentID string  `db:"assessment_id" json:"assessment_id"`
	Voice        float64 `db:"voice" json:"voice"`
	Tone         float64 `db:"tone" json:"tone"`
	Score        float64 `db:"score" json:"score"`
}

// AdabAssessment stores the single conduct mark.
type AdabAssessment struct {
	ID           string  `db:"id" json:"id"`
	AssessmentID string  `db:"assessment_id" json:"assessment_id"`
	Attitude     float64 `db:"attitude" json:"attitude"`
	Score        float64 `db:"score" json:"score"`
}

// CreateAssessmentRequest carries the input for recording an
// assessment. Only raw marks come in; all scores are derived
// server-side.
type CreateAssessmentRequest struct {
	StudentID string       `json:"student_id" validate:"required,uuid4"`
	Date      time.Time    `json:"date" validate:"required"`
	Surah     string       `json:"surah,omitempty"`
	Jilid     string       `json:"jilid,omitempty"`
	Notes     string       `json:"notes,omitempty" validate:"max=2000"`
	Marks     rubric.Marks `json:"marks"`
	IP        string       `json:"-"`
	UserAgent string       `json:"-"`
}

// AssessmentFilter captures listing criteria. Scoping fields
// (CreatedByID, StudentID) are set by the service from the actor, never
// from client input directly.
type AssessmentFilter struct {
	StudentID   string
	CreatedByID string
	Unit        string
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
}

// AssessmentSummary is the condensed row used in stats payloads.
type AssessmentSummary struct {
	ID            string    `db:"id" json:"id"`
	Date          time.Time `db:"date" json:"date"`
	Surah         string    `db:"surah" json:"surah,omitempty"`
	Jilid         string    `db:"jilid" json:"jilid,omitempty"`
	FinalScore    float64   `db:"final_score" json:"final_score"`
	StudentName   string    `db:"student_name" json:"student_name,omitempty"`
	CreatedByName string    `db:"created_by_name" json:"created_by_name,omitempty"`
}

// SantriStats aggregates a student's own results.
type SantriStats struct {
	TotalAssessments  int                 `json:"total_assessments"`
	AverageScore      float64             `json:"average_score"`
	RecentAssessments []AssessmentSummary `json:"recent_assessments"`
}

// UstadzStats aggregates a teacher's authored results.
type UstadzStats struct {
	TotalAssessments  int                 `json:"total_assessments"`
	TotalSantri       int                 `json:"total_santri"`
	RecentAssessments []AssessmentSummary `json:"recent_assessments"`
}
