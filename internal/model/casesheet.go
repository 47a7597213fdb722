package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Section names of the composite case sheet record. Each section is
// independently gated for viewing by its own resource code.
const (
	SectionPersonalHistory = "personal_history"
	SectionMedicalHistory  = "medical_history"
	SectionExamination     = "examination"
	SectionDiagnosis       = "diagnosis"
	SectionTreatmentPlan   = "treatment_plan"
	SectionProcedures      = "procedures"
	SectionNotes           = "notes"
)

// SectionResources maps each case sheet section to the resource whose VIEW
// action gates it.
var SectionResources = map[string]Resource{
	SectionPersonalHistory: ResourceCasePersonal,
	SectionMedicalHistory:  ResourceCaseMedical,
	SectionExamination:     ResourceCaseExam,
	SectionDiagnosis:       ResourceCaseDiagnosis,
	SectionTreatmentPlan:   ResourceCaseTreatment,
	SectionProcedures:      ResourceCaseProcedure,
	SectionNotes:           ResourceCaseNotes,
}

// SectionData is one free-form case sheet section, stored as JSONB.
type SectionData map[string]interface{}

func (s SectionData) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *SectionData) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into SectionData", src)
	}
	return json.Unmarshal(b, s)
}

// CaseSheet aggregates the named clinical sections for one patient.
// Section fields are pointers so filtered views can omit them entirely
// rather than returning them nulled.
type CaseSheet struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	PatientID       uuid.UUID    `db:"patient_id" json:"patient_id"`
	PersonalHistory *SectionData `db:"personal_history" json:"personal_history,omitempty"`
	MedicalHistory  *SectionData `db:"medical_history" json:"medical_history,omitempty"`
	Examination     *SectionData `db:"examination" json:"examination,omitempty"`
	Diagnosis       *SectionData `db:"diagnosis" json:"diagnosis,omitempty"`
	TreatmentPlan   *SectionData `db:"treatment_plan" json:"treatment_plan,omitempty"`
	Procedures      *SectionData `db:"procedures" json:"procedures,omitempty"`
	Notes           *SectionData `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// Section returns a pointer to the named section field, or nil for an
// unknown name.
func (c *CaseSheet) Section(name string) **SectionData {
	switch name {
	case SectionPersonalHistory:
		return &c.PersonalHistory
	case SectionMedicalHistory:
		return &c.MedicalHistory
	case SectionExamination:
		return &c.Examination
	case SectionDiagnosis:
		return &c.Diagnosis
	case SectionTreatmentPlan:
		return &c.TreatmentPlan
	case SectionProcedures:
		return &c.Procedures
	case SectionNotes:
		return &c.Notes
	default:
		return nil
	}
}

type CreateCaseSheetRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
}

type UpdateSectionRequest struct {
	Data SectionData `json:"data" binding:"required"`
}
