package procedure

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

type fakeProcedureRepo struct {
	procedures map[uuid.UUID]*model.Procedure
	updates    int
}

func newFakeProcedureRepo() *fakeProcedureRepo {
	return &fakeProcedureRepo{procedures: make(map[uuid.UUID]*model.Procedure)}
}

func (f *fakeProcedureRepo) Create(_ context.Context, proc *model.Procedure) error {
	f.procedures[proc.ID] = proc
	return nil
}

func (f *fakeProcedureRepo) Get(_ context.Context, id uuid.UUID) (*model.Procedure, error) {
	proc, ok := f.procedures[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *proc
	return &cp, nil
}

func (f *fakeProcedureRepo) Update(_ context.Context, proc *model.Procedure) error {
	f.procedures[proc.ID] = proc
	f.updates++
	return nil
}

func (f *fakeProcedureRepo) UpdateStatus(_ context.Context, proc *model.Procedure) error {
	f.procedures[proc.ID] = proc
	return nil
}

func (f *fakeProcedureRepo) ListByCaseSheet(_ context.Context, caseSheetID uuid.UUID) ([]*model.Procedure, error) {
	var out []*model.Procedure
	for _, proc := range f.procedures {
		if proc.CaseSheetID == caseSheetID {
			out = append(out, proc)
		}
	}
	return out, nil
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

func newTestService(repo *fakeProcedureRepo) *Service {
	auditor := audit.NewService(&fakeAuditRepo{}, &fakeOutboxRepo{}, logger.NewLogger(nil))
	return NewService(repo, auditor)
}

func seedProcedure(repo *fakeProcedureRepo, status model.ProcedureStatus) *model.Procedure {
	proc := &model.Procedure{
		ID:          uuid.New(),
		CaseSheetID: uuid.New(),
		PatientID:   uuid.New(),
		Name:        "Root canal",
		Status:      status,
	}
	repo.procedures[proc.ID] = proc
	return proc
}

func TestCreateStartsPlanned(t *testing.T) {
	repo := newFakeProcedureRepo()
	svc := newTestService(repo)

	proc, err := svc.Create(context.Background(), model.Identity{UserID: uuid.New()}, &model.CreateProcedureRequest{
		CaseSheetID: uuid.New(),
		PatientID:   uuid.New(),
		Name:        "Scaling",
		IsBillable:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ProcedureStatusPlanned, proc.Status)
}

func TestLockedProcedureRejectsEdits(t *testing.T) {
	for _, status := range []model.ProcedureStatus{model.ProcedureStatusCompleted, model.ProcedureStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			repo := newFakeProcedureRepo()
			svc := newTestService(repo)
			proc := seedProcedure(repo, status)

			name := "Edited"
			_, err := svc.Update(context.Background(), model.Identity{UserID: uuid.New()}, proc.ID, &model.UpdateProcedureRequest{
				Name: &name,
			})
			require.Error(t, err)
			assert.Equal(t, errors.ErrConflict, errors.Kind(err))
			assert.Zero(t, repo.updates)
			assert.Equal(t, "Root canal", repo.procedures[proc.ID].Name)
		})
	}
}

func TestUpdateInProgressAllowed(t *testing.T) {
	repo := newFakeProcedureRepo()
	svc := newTestService(repo)
	proc := seedProcedure(repo, model.ProcedureStatusInProgress)

	notes := "bleeding controlled"
	got, err := svc.Update(context.Background(), model.Identity{UserID: uuid.New()}, proc.ID, &model.UpdateProcedureRequest{
		Notes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, notes, got.Notes)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	repo := newFakeProcedureRepo()
	svc := newTestService(repo)
	proc := seedProcedure(repo, model.ProcedureStatusPlanned)

	_, err := svc.Complete(context.Background(), model.Identity{UserID: uuid.New()}, proc.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidTransition, errors.Kind(err))
}

func TestCompleteStampsPerformer(t *testing.T) {
	repo := newFakeProcedureRepo()
	svc := newTestService(repo)
	proc := seedProcedure(repo, model.ProcedureStatusInProgress)
	actor := model.Identity{UserID: uuid.New(), RoleCode: "DOCTOR"}

	got, err := svc.Complete(context.Background(), actor, proc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProcedureStatusCompleted, got.Status)
	require.NotNil(t, got.PerformedBy)
	assert.Equal(t, actor.UserID, *got.PerformedBy)
	assert.NotNil(t, got.PerformedAt)
}

func TestTransitionTable(t *testing.T) {
	repo := newFakeProcedureRepo()
	svc := newTestService(repo)
	actor := model.Identity{UserID: uuid.New()}

	proc := seedProcedure(repo, model.ProcedureStatusPlanned)
	got, err := svc.Start(context.Background(), actor, proc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProcedureStatusInProgress, got.Status)

	// PLANNED cannot jump straight to COMPLETED through the generic path.
	planned := seedProcedure(repo, model.ProcedureStatusPlanned)
	_, err = svc.Transition(context.Background(), actor, planned.ID, model.ProcedureStatusCompleted)
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidTransition, errors.Kind(err))

	// Cancelled is terminal.
	cancelled := seedProcedure(repo, model.ProcedureStatusCancelled)
	_, err = svc.Start(context.Background(), actor, cancelled.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidTransition, errors.Kind(err))
}
