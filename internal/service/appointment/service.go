package appointment

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/model"
	"github.com/clinicops/clinic-api/internal/repository"
	"github.com/clinicops/clinic-api/internal/service/audit"
	"github.com/clinicops/clinic-api/pkg/errors"
	"github.com/clinicops/clinic-api/pkg/statemachine"
)

// Notifier delivers booking mail. Failures are audit-logged, never
// surfaced to the caller.
type Notifier interface {
	AppointmentBooked(ctx context.Context, apt *model.Appointment) error
	AppointmentCancelled(ctx context.Context, apt *model.Appointment) error
}

type Service struct {
	repo     repository.AppointmentRepository
	auditor  *audit.Service
	notifier Notifier
	machine  *statemachine.Machine
}

func NewService(repo repository.AppointmentRepository, auditor *audit.Service, notifier Notifier) *Service {
	machine := statemachine.New()
	machine.Register(model.EntityTypeAppointment, model.AppointmentTransitions)

	return &Service{
		repo:     repo,
		auditor:  auditor,
		notifier: notifier,
		machine:  machine,
	}
}

// Overlaps applies the half-open interval rule: two bookings conflict iff
// each starts before the other ends. Sharing a boundary instant is not a
// conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// HasConflict scans candidate bookings for an overlap with the proposed
// interval, skipping excludeID so a reschedule does not collide with
// itself. Candidates are expected to be active (not cancelled, not
// no-show); the repository query guarantees that.
func HasConflict(candidates []*model.Appointment, proposedStart, proposedEnd time.Time, excludeID uuid.UUID) bool {
	for _, apt := range candidates {
		if excludeID != uuid.Nil && apt.ID == excludeID {
			continue
		}
		if Overlaps(proposedStart, proposedEnd, apt.StartTime, apt.EndTime()) {
			return true
		}
	}
	return false
}

// DayBounds returns the UTC calendar day containing t. All day-boundary
// math for conflict detection is done in UTC; clients are expected to
// submit zoned timestamps, which normalize unambiguously.
func DayBounds(t time.Time) (time.Time, time.Time) {
	utc := t.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// CheckConflict reports whether the proposed interval collides with an
// active booking of the doctor on that day.
func (s *Service) CheckConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error) {
	dayStart, dayEnd := DayBounds(start)
	candidates, err := s.repo.ListActiveForDoctorDay(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return false, fmt.Errorf("failed to load doctor-day bookings: %w", err)
	}
	return HasConflict(candidates, start, end, excludeID), nil
}

// Book creates a new appointment in BOOKED. The overlap check and the
// insert run as one atomic statement in the repository, so two concurrent
// bookings for the same slot cannot both land.
func (s *Service) Book(ctx context.Context, actor model.Identity, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	now := time.Now().UTC()
	apt := &model.Appointment{
		ID:              uuid.New(),
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		StartTime:       req.StartTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          model.AppointmentStatusBooked,
		Reason:          req.Reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	inserted, err := s.repo.InsertIfNoOverlap(ctx, apt)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !inserted {
		return nil, errors.Conflict("appointment conflicts with an existing booking", nil)
	}

	s.auditor.Log(ctx, actor.UserID, "book", "appointment", apt.ID, &audit.LogOptions{
		NewState: string(apt.Status),
		Changes:  apt,
	})

	if s.notifier != nil {
		if err := s.notifier.AppointmentBooked(ctx, apt); err != nil {
			s.auditor.Log(ctx, actor.UserID, "notification_failed", "appointment", apt.ID, &audit.LogOptions{
				Metadata: map[string]interface{}{"error": err.Error()},
			})
		}
	}
	return apt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, errors.Internal(err)
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return appointments, nil
}

// Reschedule moves an appointment to a new slot or doctor. Only
// non-terminal appointments can move; the overlap check excludes the
// appointment's own row.
func (s *Service) Reschedule(ctx context.Context, actor model.Identity, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.machine.IsTerminal(model.EntityTypeAppointment, string(apt.Status)) {
		return nil, errors.Conflict(fmt.Sprintf("cannot reschedule a %s appointment", apt.Status), nil)
	}

	if req.DoctorID != nil {
		apt.DoctorID = *req.DoctorID
	}
	if req.StartTime != nil {
		apt.StartTime = req.StartTime.UTC()
	}
	if req.DurationMinutes != nil {
		apt.DurationMinutes = *req.DurationMinutes
	}
	if req.Reason != nil {
		apt.Reason = *req.Reason
	}

	updated, err := s.repo.UpdateIfNoOverlap(ctx, apt)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !updated {
		return nil, errors.Conflict("appointment conflicts with an existing booking", nil)
	}

	s.auditor.Log(ctx, actor.UserID, "reschedule", "appointment", apt.ID, &audit.LogOptions{
		Changes: apt,
	})
	return apt, nil
}

// Transition applies the requested status through the transition table.
// A same-state request is an accepted no-op.
func (s *Service) Transition(ctx context.Context, actor model.Identity, id uuid.UUID, requested model.AppointmentStatus) (*model.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if apt.Status == requested {
		return apt, nil
	}

	if err := s.machine.Validate(model.EntityTypeAppointment, string(apt.Status), string(requested)); err != nil {
		return nil, err
	}

	oldStatus := apt.Status
	apt.Status = requested
	if err := s.repo.UpdateStatus(ctx, apt); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "transition", "appointment", apt.ID, &audit.LogOptions{
		OldState: string(oldStatus),
		NewState: string(requested),
	})
	return apt, nil
}

func (s *Service) CheckIn(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Appointment, error) {
	return s.Transition(ctx, actor, id, model.AppointmentStatusCheckedIn)
}

func (s *Service) StartTreatment(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Appointment, error) {
	return s.Transition(ctx, actor, id, model.AppointmentStatusInTreatment)
}

func (s *Service) Complete(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Appointment, error) {
	return s.Transition(ctx, actor, id, model.AppointmentStatusCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Appointment, error) {
	return s.Transition(ctx, actor, id, model.AppointmentStatusNoShow)
}

// Cancel ends a non-terminal appointment. Already-terminal appointments
// get a conflict error, deliberately distinct from an invalid-transition
// error: the request names a real action that no longer applies.
func (s *Service) Cancel(ctx context.Context, actor model.Identity, id uuid.UUID, reason string) (*model.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch apt.Status {
	case model.AppointmentStatusCancelled:
		return nil, errors.Conflict("appointment is already cancelled", nil)
	case model.AppointmentStatusCompleted:
		return nil, errors.Conflict("cannot cancel a completed appointment", nil)
	case model.AppointmentStatusNoShow:
		return nil, errors.Conflict("cannot cancel a no-show appointment", nil)
	}

	if err := s.machine.Validate(model.EntityTypeAppointment, string(apt.Status), string(model.AppointmentStatusCancelled)); err != nil {
		return nil, err
	}

	oldStatus := apt.Status
	apt.Status = model.AppointmentStatusCancelled
	apt.CancelReason = &reason
	if err := s.repo.UpdateStatus(ctx, apt); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "cancel", "appointment", apt.ID, &audit.LogOptions{
		OldState: string(oldStatus),
		NewState: string(apt.Status),
		Changes:  map[string]interface{}{"cancel_reason": reason},
	})

	if s.notifier != nil {
		if err := s.notifier.AppointmentCancelled(ctx, apt); err != nil {
			s.auditor.Log(ctx, actor.UserID, "notification_failed", "appointment", apt.ID, &audit.LogOptions{
				Metadata: map[string]interface{}{"error": err.Error()},
			})
		}
	}
	return apt, nil
}
