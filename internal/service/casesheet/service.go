package casesheet

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
	"github.com/clinicops/clinic-api/internal/service/rbac"
	"github.com/clinicops/clinic-api/pkg/errors"
)

type Service struct {
	repo    repository.CaseSheetRepository
	rbacSvc *rbac.Service
	auditor *audit.Service
}

func NewService(repo repository.CaseSheetRepository, rbacSvc *rbac.Service, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		rbacSvc: rbacSvc,
		auditor: auditor,
	}
}

// FilterSections derives the view of a case sheet the role is entitled
// to: each section needs VIEW on its own resource, failing sections are
// omitted entirely rather than nulled in place. Record id, patient
// reference, and timestamps always survive. The super-role sees the full
// record.
func FilterSections(sheet *model.CaseSheet, role *model.Role, superRole bool) *model.CaseSheet {
	if superRole {
		return sheet
	}

	filtered := &model.CaseSheet{
		ID:        sheet.ID,
		PatientID: sheet.PatientID,
		CreatedAt: sheet.CreatedAt,
		UpdatedAt: sheet.UpdatedAt,
	}
	if role == nil || !role.IsActive {
		return filtered
	}

	for name, resource := range model.SectionResources {
		if !role.Permissions.Has(resource, model.ActionView) {
			continue
		}
		if src := sheet.Section(name); src != nil && *src != nil {
			*filtered.Section(name) = *src
		}
	}
	return filtered
}

func (s *Service) Create(ctx context.Context, actor model.Identity, req *model.CreateCaseSheetRequest) (*model.CaseSheet, error) {
	now := time.Now().UTC()
	sheet := &model.CaseSheet{
		ID:        uuid.New(),
		PatientID: req.PatientID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, sheet); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "create", "case_sheet", sheet.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"patient_id": sheet.PatientID},
	})
	return sheet, nil
}

// Get returns the case sheet with sections the caller may not view
// removed.
func (s *Service) Get(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.CaseSheet, error) {
	sheet, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("case sheet", err)
		}
		return nil, errors.Internal(err)
	}

	if actor.IsSuperRole() {
		return sheet, nil
	}

	role, err := s.rbacSvc.RoleByCode(ctx, actor.RoleCode)
	if err != nil {
		// An unresolvable role sees only the envelope fields.
		role = nil
	}
	return FilterSections(sheet, role, false), nil
}

// UpdateSection writes one named section. Each section is gated by EDIT
// on its own resource, so the check has to happen here rather than in the
// per-route permission middleware.
func (s *Service) UpdateSection(ctx context.Context, actor model.Identity, id uuid.UUID, section string, data model.SectionData) (*model.CaseSheet, error) {
	resource, ok := model.SectionResources[section]
	if !ok {
		return nil, errors.Validation(fmt.Sprintf("unknown case sheet section %q", section), nil)
	}

	if err := s.rbacSvc.Authorize(ctx, actor, resource, model.ActionEdit); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSection(ctx, id, section, data); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("case sheet", err)
		}
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "update_section", "case_sheet", id, &audit.LogOptions{
		Changes:  data,
		Metadata: map[string]interface{}{"section": section},
	})

	return s.Get(ctx, actor, id)
}
