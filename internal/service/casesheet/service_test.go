package casesheet

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
	"github.com/clinicops/clinic-api/internal/service/rbac"
	"github.com/clinicops/clinic-api/pkg/errors"
	"github.com/clinicops/clinic-api/pkg/logger"
)

func section(kv ...string) *model.SectionData {
	data := model.SectionData{}
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i]] = kv[i+1]
	}
	return &data
}

func fullSheet() *model.CaseSheet {
	now := time.Now().UTC()
	return &model.CaseSheet{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		PersonalHistory: section("occupation", "engineer"),
		MedicalHistory:  section("allergies", "penicillin"),
		Examination:     section("finding", "caries 36"),
		Diagnosis:       section("code", "K02.1"),
		TreatmentPlan:   section("plan", "restoration"),
		Procedures:      section("done", "none"),
		Notes:           section("note", "anxious patient"),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestFilterSectionsByRole(t *testing.T) {
	sheet := fullSheet()
	role := &model.Role{
		Code: "RECEPTIONIST",
		Permissions: model.PermissionSet{
			model.ResourceCasePersonal: {model.ActionView, model.ActionEdit},
			model.ResourceCaseNotes:    {model.ActionEdit}, // edit without view
		},
		IsActive: true,
	}

	filtered := FilterSections(sheet, role, false)

	assert.NotNil(t, filtered.PersonalHistory)
	assert.Nil(t, filtered.MedicalHistory)
	assert.Nil(t, filtered.Examination)
	assert.Nil(t, filtered.Diagnosis)
	assert.Nil(t, filtered.TreatmentPlan)
	assert.Nil(t, filtered.Procedures)
	// EDIT does not imply VIEW.
	assert.Nil(t, filtered.Notes)

	// Envelope fields always survive.
	assert.Equal(t, sheet.ID, filtered.ID)
	assert.Equal(t, sheet.PatientID, filtered.PatientID)
	assert.Equal(t, sheet.CreatedAt, filtered.CreatedAt)
	assert.Equal(t, sheet.UpdatedAt, filtered.UpdatedAt)
}

func TestFilterSectionsSuperRole(t *testing.T) {
	sheet := fullSheet()
	filtered := FilterSections(sheet, nil, true)
	assert.Equal(t, sheet, filtered)
}

func TestFilterSectionsNoRole(t *testing.T) {
	sheet := fullSheet()

	for _, role := range []*model.Role{nil, {Code: "X", IsActive: false, Permissions: model.PermissionSet{
		model.ResourceCasePersonal: {model.ActionView},
	}}} {
		filtered := FilterSections(sheet, role, false)
		assert.Nil(t, filtered.PersonalHistory)
		assert.Nil(t, filtered.Notes)
		assert.Equal(t, sheet.ID, filtered.ID)
	}
}

func TestFilterSectionsDoesNotMutateSource(t *testing.T) {
	sheet := fullSheet()
	_ = FilterSections(sheet, &model.Role{IsActive: true, Permissions: model.PermissionSet{}}, false)
	assert.NotNil(t, sheet.Diagnosis)
}

// --- service wiring ---

type fakeSheetRepo struct {
	sheets map[uuid.UUID]*model.CaseSheet
}

func newFakeSheetRepo() *fakeSheetRepo {
	return &fakeSheetRepo{sheets: make(map[uuid.UUID]*model.CaseSheet)}
}

func (f *fakeSheetRepo) Create(_ context.Context, sheet *model.CaseSheet) error {
	f.sheets[sheet.ID] = sheet
	return nil
}

func (f *fakeSheetRepo) Get(_ context.Context, id uuid.UUID) (*model.CaseSheet, error) {
	sheet, ok := f.sheets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *sheet
	return &cp, nil
}

func (f *fakeSheetRepo) GetByPatient(_ context.Context, patientID uuid.UUID) (*model.CaseSheet, error) {
	for _, sheet := range f.sheets {
		if sheet.PatientID == patientID {
			return sheet, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSheetRepo) UpdateSection(_ context.Context, id uuid.UUID, name string, data model.SectionData) error {
	sheet, ok := f.sheets[id]
	if !ok {
		return sql.ErrNoRows
	}
	*sheet.Section(name) = &data
	return nil
}

type fakeRoleRepo struct {
	roles map[string]*model.Role
}

func (f *fakeRoleRepo) Create(context.Context, *model.Role) error { return nil }
func (f *fakeRoleRepo) Get(context.Context, uuid.UUID) (*model.Role, error) {
	return nil, sql.ErrNoRows
}
func (f *fakeRoleRepo) GetByCode(_ context.Context, code string) (*model.Role, error) {
	role, ok := f.roles[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return role, nil
}
func (f *fakeRoleRepo) Update(context.Context, *model.Role) error     { return nil }
func (f *fakeRoleRepo) Delete(context.Context, uuid.UUID) error       { return nil }
func (f *fakeRoleRepo) List(context.Context) ([]*model.Role, error)   { return nil, nil }
func (f *fakeRoleRepo) ExistsByCode(context.Context, string) (bool, error) {
	return false, nil
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

func newTestService(sheets *fakeSheetRepo, roles map[string]*model.Role) *Service {
	auditor := audit.NewService(&fakeAuditRepo{}, &fakeOutboxRepo{}, logger.NewLogger(nil))
	rbacSvc := rbac.NewService(&fakeRoleRepo{roles: roles}, auditor)
	return NewService(sheets, rbacSvc, auditor)
}

func TestGetFiltersByCallerRole(t *testing.T) {
	repo := newFakeSheetRepo()
	sheet := fullSheet()
	repo.sheets[sheet.ID] = sheet

	roles := map[string]*model.Role{
		"ASSISTANT": {
			Code: "ASSISTANT",
			Permissions: model.PermissionSet{
				model.ResourceCaseExam: {model.ActionView},
			},
			IsActive: true,
		},
	}
	svc := newTestService(repo, roles)

	got, err := svc.Get(context.Background(), model.Identity{UserID: uuid.New(), RoleCode: "ASSISTANT"}, sheet.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Examination)
	assert.Nil(t, got.Diagnosis)
	assert.Nil(t, got.PersonalHistory)
}

func TestGetSuperRoleSeesAll(t *testing.T) {
	repo := newFakeSheetRepo()
	sheet := fullSheet()
	repo.sheets[sheet.ID] = sheet
	svc := newTestService(repo, nil)

	got, err := svc.Get(context.Background(), model.Identity{UserID: uuid.New(), RoleCode: model.SuperRoleCode}, sheet.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Diagnosis)
	assert.NotNil(t, got.Notes)
}

func TestUpdateSectionUnknownName(t *testing.T) {
	svc := newTestService(newFakeSheetRepo(), nil)

	_, err := svc.UpdateSection(context.Background(), model.Identity{RoleCode: model.SuperRoleCode}, uuid.New(), "x_rays", model.SectionData{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrValidation, errors.Kind(err))
}

func TestUpdateSectionRequiresEdit(t *testing.T) {
	repo := newFakeSheetRepo()
	sheet := fullSheet()
	repo.sheets[sheet.ID] = sheet

	roles := map[string]*model.Role{
		"ASSISTANT": {
			Code: "ASSISTANT",
			Permissions: model.PermissionSet{
				model.ResourceCaseNotes: {model.ActionView}, // view only
			},
			IsActive: true,
		},
	}
	svc := newTestService(repo, roles)
	actor := model.Identity{UserID: uuid.New(), RoleCode: "ASSISTANT"}

	_, err := svc.UpdateSection(context.Background(), actor, sheet.ID, model.SectionNotes, model.SectionData{"note": "updated"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrPermissionDenied, errors.Kind(err))
}

func TestUpdateSectionWrites(t *testing.T) {
	repo := newFakeSheetRepo()
	sheet := fullSheet()
	repo.sheets[sheet.ID] = sheet

	roles := map[string]*model.Role{
		"DOCTOR": {
			Code: "DOCTOR",
			Permissions: model.PermissionSet{
				model.ResourceCaseDiagnosis: {model.ActionView, model.ActionEdit},
			},
			IsActive: true,
		},
	}
	svc := newTestService(repo, roles)
	actor := model.Identity{UserID: uuid.New(), RoleCode: "DOCTOR"}

	got, err := svc.UpdateSection(context.Background(), actor, sheet.ID, model.SectionDiagnosis, model.SectionData{"code": "K04.0"})
	require.NoError(t, err)
	require.NotNil(t, got.Diagnosis)
	assert.Equal(t, "K04.0", (*got.Diagnosis)["code"])
	// The caller's filtered view omits sections it cannot see.
	assert.Nil(t, got.PersonalHistory)
}
