package appointment

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/clinic-api/internal/model"
	"github.com/clinicops/clinic-api/internal/service/audit"
	"github.com/clinicops/clinic-api/pkg/errors"
	"github.com/clinicops/clinic-api/pkg/logger"
)

type fakeRepo struct {
	appointments map[uuid.UUID]*model.Appointment
	overlap      bool
	updates      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := f.appointments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *apt
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context, _ *model.AppointmentFilters) ([]*model.Appointment, error) {
	out := make([]*model.Appointment, 0, len(f.appointments))
	for _, apt := range f.appointments {
		out = append(out, apt)
	}
	return out, nil
}

func (f *fakeRepo) ListActiveForDoctorDay(_ context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, apt := range f.appointments {
		if apt.DoctorID != doctorID {
			continue
		}
		for _, inactive := range model.InactiveAppointmentStatuses {
			if apt.Status == inactive {
				goto next
			}
		}
		if !apt.StartTime.Before(dayStart) && apt.StartTime.Before(dayEnd) {
			out = append(out, apt)
		}
	next:
	}
	return out, nil
}

func (f *fakeRepo) InsertIfNoOverlap(_ context.Context, apt *model.Appointment) (bool, error) {
	if f.overlap {
		return false, nil
	}
	f.appointments[apt.ID] = apt
	return true, nil
}

func (f *fakeRepo) UpdateIfNoOverlap(_ context.Context, apt *model.Appointment) (bool, error) {
	if f.overlap {
		return false, nil
	}
	f.appointments[apt.ID] = apt
	return true, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, apt *model.Appointment) error {
	f.appointments[apt.ID] = apt
	f.updates++
	return nil
}

type fakeAuditRepo struct{}

func (fakeAuditRepo) Create(context.Context, *model.AuditLog) error { return nil }
func (fakeAuditRepo) List(context.Context, map[string]interface{}) ([]*model.AuditLog, error) {
	return nil, nil
}
func (fakeAuditRepo) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeOutboxRepo struct{}

func (fakeOutboxRepo) Create(context.Context, *model.OutboxEvent) error { return nil }
func (fakeOutboxRepo) FetchPending(context.Context, int) ([]*model.OutboxEvent, error) {
	return nil, nil
}
func (fakeOutboxRepo) MarkProcessed(context.Context, uuid.UUID) error      { return nil }
func (fakeOutboxRepo) MarkFailed(context.Context, uuid.UUID, string) error { return nil }

func newTestService(repo *fakeRepo) *Service {
	auditor := audit.NewService(&fakeAuditRepo{}, &fakeOutboxRepo{}, logger.NewLogger(nil))
	return NewService(repo, auditor, nil)
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"partial overlap", at(10, 0), at(10, 30), at(10, 15), at(10, 45), true},
		{"shared boundary", at(10, 0), at(10, 30), at(10, 30), at(11, 0), false},
		{"contained", at(10, 0), at(11, 0), at(10, 15), at(10, 45), true},
		{"identical", at(10, 0), at(10, 30), at(10, 0), at(10, 30), true},
		{"disjoint", at(9, 0), at(9, 30), at(10, 0), at(10, 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			// The rule is symmetric.
			assert.Equal(t, tt.want, Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd))
		})
	}
}

func TestHasConflictExcludesSelf(t *testing.T) {
	id := uuid.New()
	booked := []*model.Appointment{{
		ID:              id,
		StartTime:       at(10, 0),
		DurationMinutes: 30,
	}}

	assert.True(t, HasConflict(booked, at(10, 15), at(10, 45), uuid.Nil))
	assert.False(t, HasConflict(booked, at(10, 15), at(10, 45), id))
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	start, end := DayBounds(time.Date(2026, 3, 10, 2, 0, 0, 0, loc)) // 2026-03-09T20:30Z

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), end)
}

func TestBook(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	actor := model.Identity{UserID: uuid.New(), RoleCode: "RECEPTIONIST"}

	apt, err := svc.Book(context.Background(), actor, &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		StartTime:       at(10, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusBooked, apt.Status)
	assert.Equal(t, at(10, 30), apt.EndTime())
}

func TestBookConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.overlap = true
	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), model.Identity{UserID: uuid.New()}, &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		StartTime:       at(10, 15),
		DurationMinutes: 30,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrConflict, errors.Kind(err))
}

func TestTransitionRejectsSkippedStates(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	apt := &model.Appointment{
		ID:              uuid.New(),
		Status:          model.AppointmentStatusBooked,
		StartTime:       at(10, 0),
		DurationMinutes: 30,
	}
	repo.appointments[apt.ID] = apt

	_, err := svc.Complete(context.Background(), model.Identity{UserID: uuid.New()}, apt.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidTransition, errors.Kind(err))
	assert.Equal(t, model.AppointmentStatusBooked, repo.appointments[apt.ID].Status)
}

func TestTransitionPath(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	actor := model.Identity{UserID: uuid.New()}
	apt := &model.Appointment{
		ID:     uuid.New(),
		Status: model.AppointmentStatusBooked,
	}
	repo.appointments[apt.ID] = apt

	got, err := svc.CheckIn(context.Background(), actor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCheckedIn, got.Status)

	got, err = svc.StartTreatment(context.Background(), actor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusInTreatment, got.Status)

	got, err = svc.Complete(context.Background(), actor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, got.Status)
}

func TestTransitionSameStateIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	apt := &model.Appointment{
		ID:     uuid.New(),
		Status: model.AppointmentStatusCheckedIn,
	}
	repo.appointments[apt.ID] = apt

	got, err := svc.CheckIn(context.Background(), model.Identity{UserID: uuid.New()}, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCheckedIn, got.Status)
	assert.Zero(t, repo.updates)
}

func TestCancelTerminalStates(t *testing.T) {
	tests := []struct {
		status  model.AppointmentStatus
		message string
	}{
		{model.AppointmentStatusCancelled, "already cancelled"},
		{model.AppointmentStatusCompleted, "completed"},
		{model.AppointmentStatusNoShow, "no-show"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			repo := newFakeRepo()
			svc := newTestService(repo)
			apt := &model.Appointment{ID: uuid.New(), Status: tt.status}
			repo.appointments[apt.ID] = apt

			_, err := svc.Cancel(context.Background(), model.Identity{UserID: uuid.New()}, apt.ID, "test")
			require.Error(t, err)
			assert.Equal(t, errors.ErrConflict, errors.Kind(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestCancelRecordsReason(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	apt := &model.Appointment{ID: uuid.New(), Status: model.AppointmentStatusBooked}
	repo.appointments[apt.ID] = apt

	got, err := svc.Cancel(context.Background(), model.Identity{UserID: uuid.New()}, apt.ID, "patient request")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "patient request", *got.CancelReason)
}

func TestRescheduleTerminalRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	apt := &model.Appointment{ID: uuid.New(), Status: model.AppointmentStatusCompleted}
	repo.appointments[apt.ID] = apt

	newStart := at(14, 0)
	_, err := svc.Reschedule(context.Background(), model.Identity{UserID: uuid.New()}, apt.ID, &model.RescheduleAppointmentRequest{
		StartTime: &newStart,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrConflict, errors.Kind(err))
}

func TestCheckConflict(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	doctorID := uuid.New()
	existing := &model.Appointment{
		ID:              uuid.New(),
		DoctorID:        doctorID,
		StartTime:       at(10, 0),
		DurationMinutes: 30,
		Status:          model.AppointmentStatusBooked,
	}
	repo.appointments[existing.ID] = existing

	conflict, err := svc.CheckConflict(context.Background(), doctorID, at(10, 15), at(10, 45), uuid.Nil)
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = svc.CheckConflict(context.Background(), doctorID, at(10, 30), at(11, 0), uuid.Nil)
	require.NoError(t, err)
	assert.False(t, conflict)
}
