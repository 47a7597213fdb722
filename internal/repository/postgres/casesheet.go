package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/model"
)

const caseSheetColumns = `
	id, patient_id, personal_history, medical_history, examination,
	diagnosis, treatment_plan, procedures, notes, created_at, updated_at
`

// Section names map directly onto column names; updateSection whitelists
// them against the model's section list before interpolating.
var sectionColumns = map[string]string{
	model.SectionPersonalHistory: "personal_history",
	model.SectionMedicalHistory:  "medical_history",
	model.SectionExamination:     "examination",
	model.SectionDiagnosis:       "diagnosis",
	model.SectionTreatmentPlan:   "treatment_plan",
	model.SectionProcedures:      "procedures",
	model.SectionNotes:           "notes",
}

func (r *caseSheetRepository) Create(ctx context.Context, sheet *model.CaseSheet) error {
	query := `
		INSERT INTO case_sheets (` + caseSheetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		sheet.ID,
		sheet.PatientID,
		sheet.PersonalHistory,
		sheet.MedicalHistory,
		sheet.Examination,
		sheet.Diagnosis,
		sheet.TreatmentPlan,
		sheet.Procedures,
		sheet.Notes,
		sheet.CreatedAt,
		sheet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create case sheet: %w", err)
	}
	return nil
}

func (r *caseSheetRepository) Get(ctx context.Context, id uuid.UUID) (*model.CaseSheet, error) {
	query := `SELECT ` + caseSheetColumns + ` FROM case_sheets WHERE id = $1`

	var sheet model.CaseSheet
	if err := r.db.GetContext(ctx, &sheet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get case sheet: %w", err)
	}
	return &sheet, nil
}

func (r *caseSheetRepository) GetByPatient(ctx context.Context, patientID uuid.UUID) (*model.CaseSheet, error) {
	query := `SELECT ` + caseSheetColumns + ` FROM case_sheets WHERE patient_id = $1`

	var sheet model.CaseSheet
	if err := r.db.GetContext(ctx, &sheet, query, patientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get case sheet by patient: %w", err)
	}
	return &sheet, nil
}

func (r *caseSheetRepository) UpdateSection(ctx context.Context, id uuid.UUID, section string, data model.SectionData) error {
	column, ok := sectionColumns[section]
	if !ok {
		return fmt.Errorf("unknown case sheet section %q", section)
	}

	query := fmt.Sprintf(`UPDATE case_sheets SET %s = $1, updated_at = $2 WHERE id = $3`, column)

	result, err := r.db.ExecContext(ctx, query, data, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update case sheet section: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
