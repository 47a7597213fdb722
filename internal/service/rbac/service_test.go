package rbac

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

type fakeRoleRepo struct {
	byID   map[uuid.UUID]*model.Role
	byCode map[string]*model.Role
	gets   int
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		byID:   make(map[uuid.UUID]*model.Role),
		byCode: make(map[string]*model.Role),
	}
}

func (f *fakeRoleRepo) add(role *model.Role) {
	f.byID[role.ID] = role
	f.byCode[role.Code] = role
}

func (f *fakeRoleRepo) Create(_ context.Context, role *model.Role) error {
	f.add(role)
	return nil
}

func (f *fakeRoleRepo) Get(_ context.Context, id uuid.UUID) (*model.Role, error) {
	role, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *role
	return &cp, nil
}

func (f *fakeRoleRepo) GetByCode(_ context.Context, code string) (*model.Role, error) {
	f.gets++
	role, ok := f.byCode[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *role
	return &cp, nil
}

func (f *fakeRoleRepo) Update(_ context.Context, role *model.Role) error {
	f.add(role)
	return nil
}

func (f *fakeRoleRepo) Delete(_ context.Context, id uuid.UUID) error {
	if role, ok := f.byID[id]; ok {
		delete(f.byCode, role.Code)
		delete(f.byID, id)
	}
	return nil
}

func (f *fakeRoleRepo) List(_ context.Context) ([]*model.Role, error) {
	out := make([]*model.Role, 0, len(f.byID))
	for _, role := range f.byID {
		out = append(out, role)
	}
	return out, nil
}

func (f *fakeRoleRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	_, ok := f.byCode[code]
	return ok, nil
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

func newTestService(repo *fakeRoleRepo) *Service {
	auditor := audit.NewService(&fakeAuditRepo{}, &fakeOutboxRepo{}, logger.NewLogger(nil))
	return NewService(repo, auditor)
}

func receptionistRole() *model.Role {
	return &model.Role{
		ID:          uuid.New(),
		Code:        "RECEPTIONIST",
		DisplayName: "Receptionist",
		Permissions: model.PermissionSet{
			model.ResourcePatient:     {model.ActionView, model.ActionCreate, model.ActionEdit},
			model.ResourceAppointment: {model.ActionView, model.ActionCreate, model.ActionEdit},
			model.ResourceBilling:     {model.ActionView},
		},
		IsActive: true,
	}
}

func TestAllowedMatrix(t *testing.T) {
	repo := newFakeRoleRepo()
	repo.add(receptionistRole())
	svc := newTestService(repo)
	identity := model.Identity{UserID: uuid.New(), RoleCode: "RECEPTIONIST"}

	tests := []struct {
		resource model.Resource
		action   model.Action
		want     bool
	}{
		{model.ResourcePatient, model.ActionView, true},
		{model.ResourcePatient, model.ActionCreate, true},
		{model.ResourcePatient, model.ActionDelete, false},
		{model.ResourceAppointment, model.ActionEdit, true},
		{model.ResourceBilling, model.ActionFinancial, false},
		{model.ResourceCaseDiagnosis, model.ActionView, false},
	}

	for _, tt := range tests {
		allowed, err := svc.Allowed(context.Background(), identity, tt.resource, tt.action)
		require.NoError(t, err)
		assert.Equal(t, tt.want, allowed, "%s %s", tt.resource, tt.action)
	}
}

func TestAllowedSuperRoleBypass(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := newTestService(repo)
	identity := model.Identity{UserID: uuid.New(), RoleCode: model.SuperRoleCode}

	allowed, err := svc.Allowed(context.Background(), identity, model.ResourceRoleManagement, model.ActionAdmin)
	require.NoError(t, err)
	assert.True(t, allowed)
	// No lookup happened: the super-role never touches the repo.
	assert.Zero(t, repo.gets)
}

func TestAllowedUnknownRoleDenies(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := newTestService(repo)
	identity := model.Identity{UserID: uuid.New(), RoleCode: "GHOST"}

	allowed, err := svc.Allowed(context.Background(), identity, model.ResourcePatient, model.ActionView)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAllowedInactiveRoleDenies(t *testing.T) {
	repo := newFakeRoleRepo()
	role := receptionistRole()
	role.IsActive = false
	repo.add(role)
	svc := newTestService(repo)
	identity := model.Identity{UserID: uuid.New(), RoleCode: "RECEPTIONIST"}

	allowed, err := svc.Allowed(context.Background(), identity, model.ResourcePatient, model.ActionView)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAuthorizeDeniedMessage(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := newTestService(repo)

	err := svc.Authorize(context.Background(), model.Identity{RoleCode: "GHOST"}, model.ResourcePatient, model.ActionView)
	require.Error(t, err)
	assert.Equal(t, errors.ErrPermissionDenied, errors.Kind(err))
	assert.Equal(t, "insufficient permission", err.(*errors.AppError).Message)
}

func TestCreateRole(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := newTestService(repo)
	actor := model.Identity{UserID: uuid.New(), RoleCode: model.SuperRoleCode}

	role, err := svc.CreateRole(context.Background(), actor, &model.CreateRoleRequest{
		Code:        "nurse",
		DisplayName: "Nurse",
		Permissions: model.PermissionSet{
			model.ResourcePatient: {model.ActionView},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "NURSE", role.Code)
	assert.True(t, role.IsActive)
}

func TestCreateRoleReservedCode(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := newTestService(repo)

	_, err := svc.CreateRole(context.Background(), model.Identity{}, &model.CreateRoleRequest{
		Code:        "super_admin",
		DisplayName: "Imposter",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrConflict, errors.Kind(err))
}

func TestCreateRoleDuplicateCode(t *testing.T) {
	repo := newFakeRoleRepo()
	repo.add(receptionistRole())
	svc := newTestService(repo)

	_, err := svc.CreateRole(context.Background(), model.Identity{}, &model.CreateRoleRequest{
		Code:        "receptionist",
		DisplayName: "Another",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrConflict, errors.Kind(err))
}

func TestCreateRoleUnknownVocabulary(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := newTestService(repo)

	_, err := svc.CreateRole(context.Background(), model.Identity{}, &model.CreateRoleRequest{
		Code:        "custom",
		DisplayName: "Custom",
		Permissions: model.PermissionSet{
			"SPACESHIP": {model.ActionView},
		},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrValidation, errors.Kind(err))
	assert.Contains(t, err.Error(), "SPACESHIP")
}

func TestSystemRoleImmutable(t *testing.T) {
	repo := newFakeRoleRepo()
	role := receptionistRole()
	role.IsSystemRole = true
	repo.add(role)
	svc := newTestService(repo)
	actor := model.Identity{UserID: uuid.New(), RoleCode: model.SuperRoleCode}

	name := "Renamed"
	_, err := svc.UpdateRole(context.Background(), actor, role.ID, &model.UpdateRoleRequest{DisplayName: &name})
	require.Error(t, err)
	assert.Equal(t, errors.ErrPermissionDenied, errors.Kind(err))

	err = svc.DeleteRole(context.Background(), actor, role.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrPermissionDenied, errors.Kind(err))
}

func TestPermissionChangeEffectiveImmediately(t *testing.T) {
	repo := newFakeRoleRepo()
	role := receptionistRole()
	repo.add(role)
	svc := newTestService(repo)
	identity := model.Identity{UserID: uuid.New(), RoleCode: "RECEPTIONIST"}

	allowed, err := svc.Allowed(context.Background(), identity, model.ResourcePatient, model.ActionView)
	require.NoError(t, err)
	require.True(t, allowed)

	// Strip the permission; the cached entry must not survive the write.
	_, err = svc.ReplacePermissions(context.Background(), model.Identity{UserID: uuid.New()}, role.ID, model.PermissionSet{
		model.ResourceAppointment: {model.ActionView},
	})
	require.NoError(t, err)

	allowed, err = svc.Allowed(context.Background(), identity, model.ResourcePatient, model.ActionView)
	require.NoError(t, err)
	assert.False(t, allowed)
}
