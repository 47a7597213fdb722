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

const appointmentColumns = `
	id, patient_id, doctor_id, start_time, duration_minutes, status,
	reason, cancel_reason, created_at, updated_at
`

// Overlap predicate against active bookings, half-open intervals: a
// shared boundary instant is not a conflict.
const overlapExists = `
	SELECT 1 FROM appointments a
	WHERE a.doctor_id = $1
	  AND a.status NOT IN ('CANCELLED', 'NO_SHOW')
	  AND a.start_time < $3
	  AND a.start_time + a.duration_minutes * interval '1 minute' > $2
`

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var apt model.Appointment
	if err := r.db.GetContext(ctx, &apt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", idx)
		args = append(args, filters.DoctorID)
		idx++
	}
	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, filters.PatientID)
		idx++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filters.Status)
		idx++
	}
	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND start_time >= $%d", idx)
		args = append(args, filters.StartDate)
		idx++
	}
	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND start_time < $%d", idx)
		args = append(args, filters.EndDate)
		idx++
	}
	query += " ORDER BY start_time"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListActiveForDoctorDay(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		  AND status NOT IN ('CANCELLED', 'NO_SHOW')
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, doctorID, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("failed to list doctor-day appointments: %w", err)
	}
	return appointments, nil
}

// InsertIfNoOverlap performs the overlap check and the insert as a single
// statement so no concurrent insert can slip between them.
func (r *appointmentRepository) InsertIfNoOverlap(ctx context.Context, apt *model.Appointment) (bool, error) {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		SELECT $4, $5, $1, $2, $6, $7, $8, NULL, $9, $10
		WHERE NOT EXISTS (` + overlapExists + `)
	`
	result, err := r.db.ExecContext(ctx, query,
		apt.DoctorID,
		apt.StartTime,
		apt.EndTime(),
		apt.ID,
		apt.PatientID,
		apt.DurationMinutes,
		apt.Status,
		apt.Reason,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// UpdateIfNoOverlap applies a reschedule atomically, ignoring the
// appointment's own row in the overlap check.
func (r *appointmentRepository) UpdateIfNoOverlap(ctx context.Context, apt *model.Appointment) (bool, error) {
	query := `
		UPDATE appointments
		SET doctor_id = $1, start_time = $2, duration_minutes = $5,
		    reason = $6, updated_at = $7
		WHERE id = $4
		  AND NOT EXISTS (` + overlapExists + ` AND a.id <> $4)
	`
	apt.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		apt.DoctorID,
		apt.StartTime,
		apt.EndTime(),
		apt.ID,
		apt.DurationMinutes,
		apt.Reason,
		apt.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reschedule appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, cancel_reason = $2, updated_at = $3
		WHERE id = $4
	`
	apt.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		apt.Status,
		apt.CancelReason,
		apt.UpdatedAt,
		apt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
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
