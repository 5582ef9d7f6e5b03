package model

import "time"

// Gender values
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// Work type values
const (
	WorkTypeChildren     = "children"
	WorkTypeGovtJob      = "Govt_job"
	WorkTypeNeverWorked  = "Never_worked"
	WorkTypePrivate      = "Private"
	WorkTypeSelfEmployed = "Self-employed"
)

// Residence type values
const (
	ResidenceRural = "Rural"
	ResidenceUrban = "Urban"
)

// Smoking status values
const (
	SmokingFormerly = "formerly smoked"
	SmokingNever    = "never smoked"
	SmokingSmokes   = "smokes"
	SmokingUnknown  = "Unknown"
)

const (
	MinAge = 0
	MaxAge = 120
)

// Patient is a single stroke-risk record. ID is assigned by the store,
// ExternalID is supplied by the caller and unique across the store.
type Patient struct {
	ID              int64    `json:"id" db:"id"`
	ExternalID      int64    `json:"external_id" db:"external_id" validate:"required"`
	Gender          string   `json:"gender" db:"gender" validate:"required,oneof=Male Female Other"`
	Age             int      `json:"age" db:"age" validate:"min=0,max=120"`
	Hypertension    bool     `json:"hypertension" db:"hypertension"`
	EverMarried     string   `json:"ever_married" db:"ever_married" validate:"required,oneof=Yes No"`
	WorkType        string   `json:"work_type" db:"work_type" validate:"required,oneof=children Govt_job Never_worked Private Self-employed"`
	ResidenceType   string   `json:"residence_type" db:"residence_type" validate:"required,oneof=Rural Urban"`
	AvgGlucoseLevel float64  `json:"avg_glucose_level" db:"avg_glucose_level" validate:"gte=0"`
	BMI             *float64 `json:"bmi" db:"bmi" validate:"omitempty,gt=0"`
	SmokingStatus   string   `json:"smoking_status" db:"smoking_status" validate:"required,oneof='formerly smoked' 'never smoked' smokes Unknown"`
	Stroke          bool     `json:"stroke" db:"stroke"`
	DatasetID       *int64   `json:"dataset_id,omitempty" db:"dataset_id"`
}

// PatientRequest is the body for creating or fully replacing a patient.
type PatientRequest struct {
	ExternalID      int64    `json:"external_id" binding:"required"`
	Gender          string   `json:"gender" binding:"required,oneof=Male Female Other"`
	Age             *int     `json:"age" binding:"required,min=0,max=120"`
	Hypertension    bool     `json:"hypertension"`
	EverMarried     string   `json:"ever_married" binding:"required,oneof=Yes No"`
	WorkType        string   `json:"work_type" binding:"required,oneof=children Govt_job Never_worked Private Self-employed"`
	ResidenceType   string   `json:"residence_type" binding:"required,oneof=Rural Urban"`
	AvgGlucoseLevel *float64 `json:"avg_glucose_level" binding:"required,gte=0"`
	BMI             *float64 `json:"bmi" binding:"omitempty,gt=0"`
	SmokingStatus   string   `json:"smoking_status" binding:"required,oneof='formerly smoked' 'never smoked' smokes Unknown"`
	Stroke          bool     `json:"stroke"`
}

// ToPatient copies the request into a new Patient without an ID.
func (r *PatientRequest) ToPatient() *Patient {
	p := &Patient{
		ExternalID:    r.ExternalID,
		Gender:        r.Gender,
		Hypertension:  r.Hypertension,
		EverMarried:   r.EverMarried,
		WorkType:      r.WorkType,
		ResidenceType: r.ResidenceType,
		BMI:           r.BMI,
		SmokingStatus: r.SmokingStatus,
		Stroke:        r.Stroke,
	}
	if r.Age != nil {
		p.Age = *r.Age
	}
	if r.AvgGlucoseLevel != nil {
		p.AvgGlucoseLevel = *r.AvgGlucoseLevel
	}
	return p
}

// PatientSearchParams holds the raw, unvalidated filter strings of a
// patient search. Malformed values are ignored, never rejected.
type PatientSearchParams struct {
	Search string `form:"search" json:"search"`
	Gender string `form:"gender" json:"gender"`
	Stroke string `form:"stroke" json:"stroke"`
	AgeMin string `form:"age_min" json:"age_min"`
	AgeMax string `form:"age_max" json:"age_max"`
}

// ImportResult reports the outcome of a CSV import.
type ImportResult struct {
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
	DatasetID *int64 `json:"dataset_id,omitempty"`
}

// DashboardStats is the summary shown after login.
type DashboardStats struct {
	TotalPatients int64     `json:"total_patients"`
	GeneratedAt   time.Time `json:"generated_at"`
}
