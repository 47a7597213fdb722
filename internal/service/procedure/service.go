package procedure

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

type Service struct {
	repo    repository.ProcedureRepository
	auditor *audit.Service
	machine *statemachine.Machine
}

func NewService(repo repository.ProcedureRepository, auditor *audit.Service) *Service {
	machine := statemachine.New()
	machine.Register(model.EntityTypeProcedure, model.ProcedureTransitions)

	return &Service{
		repo:    repo,
		auditor: auditor,
		machine: machine,
	}
}

func (s *Service) Create(ctx context.Context, actor model.Identity, req *model.CreateProcedureRequest) (*model.Procedure, error) {
	now := time.Now().UTC()
	proc := &model.Procedure{
		ID:          uuid.New(),
		CaseSheetID: req.CaseSheetID,
		PatientID:   req.PatientID,
		Name:        req.Name,
		Notes:       req.Notes,
		Status:      model.ProcedureStatusPlanned,
		IsBillable:  req.IsBillable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, proc); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "create", "procedure", proc.ID, &audit.LogOptions{
		NewState: string(proc.Status),
		Changes:  proc,
	})
	return proc, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	proc, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("procedure", err)
		}
		return nil, errors.Internal(err)
	}
	return proc, nil
}

func (s *Service) ListByCaseSheet(ctx context.Context, caseSheetID uuid.UUID) ([]*model.Procedure, error) {
	procs, err := s.repo.ListByCaseSheet(ctx, caseSheetID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return procs, nil
}

// Update edits procedure fields. A locked procedure (COMPLETED or
// CANCELLED) rejects every field edit before the transition table is even
// a consideration, regardless of the caller's permissions.
func (s *Service) Update(ctx context.Context, actor model.Identity, id uuid.UUID, req *model.UpdateProcedureRequest) (*model.Procedure, error) {
	proc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if proc.IsLocked() {
		return nil, errors.Conflict(fmt.Sprintf("procedure is %s and locked against edits", proc.Status), nil)
	}

	if req.Name != nil {
		proc.Name = *req.Name
	}
	if req.Notes != nil {
		proc.Notes = *req.Notes
	}
	if req.IsBillable != nil {
		proc.IsBillable = *req.IsBillable
	}
	if req.InvoiceID != nil {
		proc.InvoiceID = req.InvoiceID
	}

	if err := s.repo.Update(ctx, proc); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "update", "procedure", proc.ID, &audit.LogOptions{
		Changes: proc,
	})
	return proc, nil
}

// Transition applies the requested status through the transition table.
// Same-state requests are accepted as no-ops.
func (s *Service) Transition(ctx context.Context, actor model.Identity, id uuid.UUID, requested model.ProcedureStatus) (*model.Procedure, error) {
	proc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if proc.Status == requested {
		return proc, nil
	}

	if err := s.machine.Validate(model.EntityTypeProcedure, string(proc.Status), string(requested)); err != nil {
		return nil, err
	}

	oldStatus := proc.Status
	proc.Status = requested
	if err := s.repo.UpdateStatus(ctx, proc); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "transition", "procedure", proc.ID, &audit.LogOptions{
		OldState: string(oldStatus),
		NewState: string(requested),
	})
	return proc, nil
}

func (s *Service) Start(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Procedure, error) {
	return s.Transition(ctx, actor, id, model.ProcedureStatusInProgress)
}

func (s *Service) Cancel(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Procedure, error) {
	return s.Transition(ctx, actor, id, model.ProcedureStatusCancelled)
}

// Complete is the dedicated completion path and is stricter than the
// generic transition: the procedure must currently be IN_PROGRESS, and
// completion stamps who performed it and when.
func (s *Service) Complete(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Procedure, error) {
	proc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if proc.Status != model.ProcedureStatusInProgress {
		return nil, errors.InvalidTransition(string(proc.Status), string(model.ProcedureStatusCompleted))
	}

	now := time.Now().UTC()
	oldStatus := proc.Status
	proc.Status = model.ProcedureStatusCompleted
	proc.PerformedBy = &actor.UserID
	proc.PerformedAt = &now

	if err := s.repo.UpdateStatus(ctx, proc); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "complete", "procedure", proc.ID, &audit.LogOptions{
		OldState: string(oldStatus),
		NewState: string(proc.Status),
		Metadata: map[string]interface{}{"performed_by": actor.UserID, "performed_at": now},
	})
	return proc, nil
}
