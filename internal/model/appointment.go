package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/pkg/statemachine"
)

type AppointmentStatus string

const (
	AppointmentStatusBooked      AppointmentStatus = "BOOKED"
	AppointmentStatusCheckedIn   AppointmentStatus = "CHECKED_IN"
	AppointmentStatusInTreatment AppointmentStatus = "IN_TREATMENT"
	AppointmentStatusCompleted   AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled   AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow      AppointmentStatus = "NO_SHOW"
)

// EntityTypeAppointment tags the appointment transition table.
const EntityTypeAppointment = "appointment"

// AppointmentTransitions is the exhaustive transition table for
// appointments. NO_SHOW is terminal: rebooking a missed appointment means
// creating a new one, not reviving the old record.
var AppointmentTransitions = statemachine.Table{
	string(AppointmentStatusBooked):      {string(AppointmentStatusCheckedIn), string(AppointmentStatusCancelled), string(AppointmentStatusNoShow)},
	string(AppointmentStatusCheckedIn):   {string(AppointmentStatusInTreatment), string(AppointmentStatusCancelled)},
	string(AppointmentStatusInTreatment): {string(AppointmentStatusCompleted)},
	string(AppointmentStatusCompleted):   {},
	string(AppointmentStatusCancelled):   {},
	string(AppointmentStatusNoShow):      {},
}

// InactiveAppointmentStatuses never block a doctor's calendar.
var InactiveAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusCancelled,
	AppointmentStatusNoShow,
}

type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Reason          string            `db:"reason" json:"reason,omitempty"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// EndTime derives the end of the booked interval.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID        uuid.UUID `json:"doctor_id" binding:"required"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=5,max=480"`
	Reason          string    `json:"reason" binding:"max=1000"`
}

type RescheduleAppointmentRequest struct {
	DoctorID        *uuid.UUID `json:"doctor_id"`
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes *int       `json:"duration_minutes" binding:"omitempty,min=5,max=480"`
	Reason          *string    `json:"reason" binding:"omitempty,max=1000"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

type AppointmentFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	StartDate time.Time
	EndDate   time.Time
}
