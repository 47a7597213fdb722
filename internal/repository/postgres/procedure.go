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

const procedureColumns = `
	id, case_sheet_id, patient_id, name, notes, status, is_billable,
	invoice_id, performed_by, performed_at, created_at, updated_at
`

func (r *procedureRepository) Create(ctx context.Context, proc *model.Procedure) error {
	query := `
		INSERT INTO procedures (` + procedureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		proc.ID,
		proc.CaseSheetID,
		proc.PatientID,
		proc.Name,
		proc.Notes,
		proc.Status,
		proc.IsBillable,
		proc.InvoiceID,
		proc.PerformedBy,
		proc.PerformedAt,
		proc.CreatedAt,
		proc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create procedure: %w", err)
	}
	return nil
}

func (r *procedureRepository) Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	query := `SELECT ` + procedureColumns + ` FROM procedures WHERE id = $1`

	var proc model.Procedure
	if err := r.db.GetContext(ctx, &proc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get procedure: %w", err)
	}
	return &proc, nil
}

func (r *procedureRepository) Update(ctx context.Context, proc *model.Procedure) error {
	query := `
		UPDATE procedures
		SET name = $1, notes = $2, is_billable = $3, invoice_id = $4, updated_at = $5
		WHERE id = $6
	`
	proc.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		proc.Name,
		proc.Notes,
		proc.IsBillable,
		proc.InvoiceID,
		proc.UpdatedAt,
		proc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update procedure: %w", err)
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

func (r *procedureRepository) UpdateStatus(ctx context.Context, proc *model.Procedure) error {
	query := `
		UPDATE procedures
		SET status = $1, performed_by = $2, performed_at = $3, updated_at = $4
		WHERE id = $5
	`
	proc.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		proc.Status,
		proc.PerformedBy,
		proc.PerformedAt,
		proc.UpdatedAt,
		proc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update procedure status: %w", err)
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

func (r *procedureRepository) ListByCaseSheet(ctx context.Context, caseSheetID uuid.UUID) ([]*model.Procedure, error) {
	query := `
		SELECT ` + procedureColumns + `
		FROM procedures
		WHERE case_sheet_id = $1
		ORDER BY created_at
	`
	var procs []*model.Procedure
	if err := r.db.SelectContext(ctx, &procs, query, caseSheetID); err != nil {
		return nil, fmt.Errorf("failed to list procedures: %w", err)
	}
	return procs, nil
}
