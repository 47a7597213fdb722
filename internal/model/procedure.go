package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/pkg/statemachine"
)

type ProcedureStatus string

const (
	ProcedureStatusPlanned    ProcedureStatus = "PLANNED"
	ProcedureStatusInProgress ProcedureStatus = "IN_PROGRESS"
	ProcedureStatusCompleted  ProcedureStatus = "COMPLETED"
	ProcedureStatusCancelled  ProcedureStatus = "CANCELLED"
)

// EntityTypeProcedure tags the procedure transition table.
const EntityTypeProcedure = "procedure"

// ProcedureTransitions is the exhaustive transition table for procedures.
var ProcedureTransitions = statemachine.Table{
	string(ProcedureStatusPlanned):    {string(ProcedureStatusInProgress), string(ProcedureStatusCancelled)},
	string(ProcedureStatusInProgress): {string(ProcedureStatusCompleted)},
	string(ProcedureStatusCompleted):  {},
	string(ProcedureStatusCancelled):  {},
}

type Procedure struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	CaseSheetID uuid.UUID       `db:"case_sheet_id" json:"case_sheet_id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	Name        string          `db:"name" json:"name"`
	Notes       string          `db:"notes" json:"notes,omitempty"`
	Status      ProcedureStatus `db:"status" json:"status"`
	IsBillable  bool            `db:"is_billable" json:"is_billable"`
	InvoiceID   *uuid.UUID      `db:"invoice_id" json:"invoice_id,omitempty"`
	PerformedBy *uuid.UUID      `db:"performed_by" json:"performed_by,omitempty"`
	PerformedAt *time.Time      `db:"performed_at" json:"performed_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// IsLocked reports whether the procedure is in a terminal status. Locked
// procedures reject every field edit other than reading the status.
func (p *Procedure) IsLocked() bool {
	return p.Status == ProcedureStatusCompleted || p.Status == ProcedureStatusCancelled
}

type CreateProcedureRequest struct {
	CaseSheetID uuid.UUID `json:"case_sheet_id" binding:"required"`
	PatientID   uuid.UUID `json:"patient_id" binding:"required"`
	Name        string    `json:"name" binding:"required,max=256"`
	Notes       string    `json:"notes" binding:"max=4000"`
	IsBillable  bool      `json:"is_billable"`
}

type UpdateProcedureRequest struct {
	Name       *string    `json:"name" binding:"omitempty,max=256"`
	Notes      *string    `json:"notes" binding:"omitempty,max=4000"`
	IsBillable *bool      `json:"is_billable"`
	InvoiceID  *uuid.UUID `json:"invoice_id"`
}
