// Package rubric computes recitation scores from raw sub-criterion marks.
// It is the single source of truth for category and final scores: callers
// persist whatever it returns and never accept client-computed values.
package rubric

import (
	"fmt"

	appErrors "github.com/noah-isme/almufid-api/pkg/errors"
)

// Category weights for the final score. They must sum to exactly 1.0;
// TestFinalWeightsSumToOne guards any retuning.
const (
	WeightFashahah = 0.30
	WeightTajwid   = 0.30
	WeightTartil   = 0.25
	WeightVoice    = 0.05
	WeightAdab     = 0.10
)

// FashahahMarks are the pronunciation-precision sub-criteria, each
// weighted equally at 0.25.
type FashahahMarks struct {
	MakharijulHuruf float64 `json:"makharijul_huruf" validate:"min=0,max=100"`
	SifatulHuruf    float64 `json:"sifatul_huruf" validate:"min=0,max=100"`
	Harakat         float64 `json:"harakat" validate:"min=0,max=100"`
	MadQashr        float64 `json:"mad_qashr" validate:"min=0,max=100"`
}

// TajwidMarks are the recitation-rule sub-criteria, each weighted 0.20.
type TajwidMarks struct {
	HukumNunMati  float64 `json:"hukum_nun_mati" validate:"min=0,max=100"`
	HukumMimMati  float64 `json:"hukum_mim_mati" validate:"min=0,max=100"`
	Mad           float64 `json:"mad" validate:"min=0,max=100"`
	WaqafIbtida   float64 `json:"waqaf_ibtida" validate:"min=0,max=100"`
	TafkhimTarqiq float64 `json:"tafkhim_tarqiq" validate:"min=0,max=100"`
}

// TartilMarks are the rhythm and fluency sub-criteria weighted
// 0.33/0.33/0.34 so the category spans the full [0,100] range.
type TartilMarks struct {
	Tempo    float64 `json:"tempo" validate:"min=0,max=100"`
	Calmness float64 `json:"calmness" validate:"min=0,max=100"`
	Fluency  float64 `json:"fluency" validate:"min=0,max=100"`
}

// VoiceMarks are the optional voice/tone sub-criteria, each weighted 0.5.
// Absence of assessment is represented by zero marks and scores as zero.
type VoiceMarks struct {
	Voice float64 `json:"voice" validate:"min=0,max=100"`
	Tone  float64 `json:"tone" validate:"min=0,max=100"`
}

// AdabMarks hold the single conduct mark, weighted 1.0.
type AdabMarks struct {
	Attitude float64 `json:"attitude" validate:"min=0,max=100"`
}

// Marks carries all raw sub-criterion marks for one assessment.
type Marks struct {
	Fashahah FashahahMarks `json:"fashahah"`
	Tajwid   TajwidMarks   `json:"tajwid"`
	Tartil   TartilMarks   `json:"tartil"`
	Voice    VoiceMarks    `json:"voice"`
	Adab     AdabMarks     `json:"adab"`
}

// Scores carries the five derived category scores and the final score,
// at full precision; rounding is a presentation concern.
type Scores struct {
	Fashahah float64 `json:"fashahah_score"`
	Tajwid   float64 `json:"tajwid_score"`
	Tartil   float64 `json:"tartil_score"`
	Voice    float64 `json:"voice_score"`
	Adab     float64 `json:"adab_score"`
	Final    float64 `json:"final_score"`
}

// Compute derives category scores and the final weighted score from raw
// marks. Every mark must lie in [0,100]; out-of-range input is rejected,
// never clamped. The function is pure and safe for concurrent use.
func Compute(m Marks) (Scores, error) {
	if err := validate(m); err != nil {
		return Scores{}, err
	}

	fashahah := m.Fashahah.MakharijulHuruf*0.25 +
		m.Fashahah.SifatulHuruf*0.25 +
		m.Fashahah.Harakat*0.25 +
		m.Fashahah.MadQashr*0.25

	tajwid := m.Tajwid.HukumNunMati*0.20 +
		m.Tajwid.HukumMimMati*0.20 +
		m.Tajwid.Mad*0.20 +
		m.Tajwid.WaqafIbtida*0.20 +
		m.Tajwid.TafkhimTarqiq*0.20

	tartil := m.Tartil.Tempo*0.33 +
		m.Tartil.Calmness*0.33 +
		m.Tartil.Fluency*0.34

	voice := m.Voice.Voice*0.5 + m.Voice.Tone*0.5

	adab := m.Adab.Attitude

	final := fashahah*WeightFashahah +
		tajwid*WeightTajwid +
		tartil*WeightTartil +
		voice*WeightVoice +
		adab*WeightAdab

	return Scores{
		Fashahah: fashahah,
		Tajwid:   tajwid,
		Tartil:   tartil,
		Voice:    voice,
		Adab:     adab,
		Final:    final,
	}, nil
}

func validate(m Marks) error {
	checks := []struct {
		name  string
		value float64
	}{
		{"makharijul_huruf", m.Fashahah.MakharijulHuruf},
		{"sifatul_huruf", m.Fashahah.SifatulHuruf},
		{"harakat", m.Fashahah.Harakat},
		{"mad_qashr", m.Fashahah.MadQashr},
		{"hukum_nun_mati", m.Tajwid.HukumNunMati},
		{"hukum_mim_mati", m.Tajwid.HukumMimMati},
		{"mad", m.Tajwid.Mad},
		{"waqaf_ibtida", m.Tajwid.WaqafIbtida},
		{"tafkhim_tarqiq", m.Tajwid.TafkhimTarqiq},
		{"tempo", m.Tartil.Tempo},
		{"calmness", m.Tartil.Calmness},
		{"fluency", m.Tartil.Fluency},
		{"voice", m.Voice.Voice},
		{"tone", m.Voice.Tone},
		{"attitude", m.Adab.Attitude},
	}
	for _, c := range checks {
		if c.value < 0 || c.value > 100 {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("mark %s must be between 0 and 100, got %v", c.name, c.value))
		}
	}
	return nil
}
