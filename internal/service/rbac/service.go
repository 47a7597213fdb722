package rbac

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/clinicops/clinic-api/internal/model"
	"github.com/clinicops/clinic-api/internal/repository"
	"github.com/clinicops/clinic-api/internal/service/audit"
	"github.com/clinicops/clinic-api/pkg/errors"
)

// Roles are read on every gated call and written rarely, so lookups by
// code go through an in-process cache. Every role write evicts the entry
// before returning: a permission downgrade takes effect on the next call,
// not when a TTL happens to expire.
const (
	roleCacheTTL     = 5 * time.Minute
	roleCacheCleanup = 10 * time.Minute
)

type Service struct {
	repo    repository.RoleRepository
	auditor *audit.Service
	cache   *cache.Cache
}

func NewService(repo repository.RoleRepository, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		cache:   cache.New(roleCacheTTL, roleCacheCleanup),
	}
}

// Allowed reports whether the identity may perform action on resource.
// The super-role is granted everything without a matrix lookup. A missing
// or inactive role is a plain deny, indistinguishable from a missing
// permission.
func (s *Service) Allowed(ctx context.Context, identity model.Identity, resource model.Resource, action model.Action) (bool, error) {
	if identity.IsSuperRole() {
		return true, nil
	}

	role, err := s.roleByCode(ctx, identity.RoleCode)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to resolve role: %w", err)
	}

	if !role.IsActive {
		return false, nil
	}
	return role.Permissions.Has(resource, action), nil
}

// Authorize is Allowed expressed as the error the request boundary wants:
// nil on allow, a permission-denied error otherwise.
func (s *Service) Authorize(ctx context.Context, identity model.Identity, resource model.Resource, action model.Action) error {
	allowed, err := s.Allowed(ctx, identity, resource, action)
	if err != nil {
		return errors.Internal(err)
	}
	if !allowed {
		return errors.PermissionDenied(nil)
	}
	return nil
}

// RoleByCode resolves a role through the cache. Callers must treat the
// returned role as read-only.
func (s *Service) RoleByCode(ctx context.Context, code string) (*model.Role, error) {
	role, err := s.roleByCode(ctx, code)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("role", err)
		}
		return nil, errors.Internal(err)
	}
	return role, nil
}

func (s *Service) roleByCode(ctx context.Context, code string) (*model.Role, error) {
	code = model.NormalizeRoleCode(code)
	if cached, ok := s.cache.Get(code); ok {
		return cached.(*model.Role), nil
	}

	role, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	s.cache.Set(code, role, cache.DefaultExpiration)
	return role, nil
}

func (s *Service) evict(code string) {
	s.cache.Delete(model.NormalizeRoleCode(code))
}

func (s *Service) CreateRole(ctx context.Context, actor model.Identity, req *model.CreateRoleRequest) (*model.Role, error) {
	code := model.NormalizeRoleCode(req.Code)
	if code == "" {
		return nil, errors.Validation("role code is required", nil)
	}
	if code == model.SuperRoleCode {
		return nil, errors.Conflict(fmt.Sprintf("role code %s is reserved", model.SuperRoleCode), nil)
	}
	if req.Permissions == nil {
		req.Permissions = model.PermissionSet{}
	}
	if err := req.Permissions.Validate(); err != nil {
		return nil, errors.Validation(err.Error(), err)
	}

	exists, err := s.repo.ExistsByCode(ctx, code)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if exists {
		return nil, errors.Conflict(fmt.Sprintf("role code %s already exists", code), nil)
	}

	now := time.Now().UTC()
	role := &model.Role{
		ID:          uuid.New(),
		Code:        code,
		DisplayName: req.DisplayName,
		Permissions: req.Permissions,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, role); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "create", "role", role.ID, &audit.LogOptions{
		Changes: role,
	})
	return role, nil
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("role", err)
		}
		return nil, errors.Internal(err)
	}
	return role, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*model.Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return roles, nil
}

func (s *Service) UpdateRole(ctx context.Context, actor model.Identity, id uuid.UUID, req *model.UpdateRoleRequest) (*model.Role, error) {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		role.DisplayName = *req.DisplayName
	}
	if req.Permissions != nil {
		if err := req.Permissions.Validate(); err != nil {
			return nil, errors.Validation(err.Error(), err)
		}
		role.Permissions = *req.Permissions
	}

	if err := s.repo.Update(ctx, role); err != nil {
		return nil, errors.Internal(err)
	}
	s.evict(role.Code)

	s.auditor.Log(ctx, actor.UserID, "update", "role", role.ID, &audit.LogOptions{
		Changes: role,
	})
	return role, nil
}

// ReplacePermissions swaps the role's whole permission matrix.
func (s *Service) ReplacePermissions(ctx context.Context, actor model.Identity, id uuid.UUID, perms model.PermissionSet) (*model.Role, error) {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := perms.Validate(); err != nil {
		return nil, errors.Validation(err.Error(), err)
	}

	role.Permissions = perms
	if err := s.repo.Update(ctx, role); err != nil {
		return nil, errors.Internal(err)
	}
	s.evict(role.Code)

	s.auditor.Log(ctx, actor.UserID, "replace_permissions", "role", role.ID, &audit.LogOptions{
		Changes: perms,
	})
	return role, nil
}

// ToggleActive flips the role between active and disabled.
func (s *Service) ToggleActive(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Role, error) {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return nil, err
	}

	role.IsActive = !role.IsActive
	if err := s.repo.Update(ctx, role); err != nil {
		return nil, errors.Internal(err)
	}
	s.evict(role.Code)

	s.auditor.Log(ctx, actor.UserID, "toggle_active", "role", role.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"is_active": role.IsActive},
	})
	return role, nil
}

func (s *Service) DeleteRole(ctx context.Context, actor model.Identity, id uuid.UUID) error {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Internal(err)
	}
	s.evict(role.Code)

	s.auditor.Log(ctx, actor.UserID, "delete", "role", id, nil)
	return nil
}

// mutableRole loads a role and rejects mutation of system roles, no
// matter who asks.
func (s *Service) mutableRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("role", err)
		}
		return nil, errors.Internal(err)
	}
	if role.IsSystemRole {
		return nil, errors.PermissionDenied(fmt.Errorf("system role %s is immutable", role.Code))
	}
	return role, nil
}
