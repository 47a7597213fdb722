package user

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/model"
	"github.com/clinicops/clinic-api/internal/repository"
	"github.com/clinicops/clinic-api/internal/service/audit"
	"github.com/clinicops/clinic-api/pkg/auth"
	"github.com/clinicops/clinic-api/pkg/errors"
	"github.com/clinicops/clinic-api/pkg/security"
)

// Service manages staff accounts and issues the identity tokens the rest
// of the API trusts.
type Service struct {
	repo    repository.UserRepository
	hasher  security.PasswordHasher
	jwtSvc  auth.JWTService
	auditor *audit.Service
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher, jwtSvc auth.JWTService, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		hasher:  hasher,
		jwtSvc:  jwtSvc,
		auditor: auditor,
	}
}

func (s *Service) Create(ctx context.Context, actor model.Identity, req *model.CreateUserRequest) (*model.User, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.Validation("invalid password", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		RoleCode:     model.NormalizeRoleCode(req.RoleCode),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "create", "user", user.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"email": user.Email, "role_code": user.RoleCode},
	})
	return user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("user", err)
		}
		return nil, errors.Internal(err)
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return users, nil
}

// Login verifies credentials and returns a signed token carrying the
// user id and role code. Bad email and bad password are reported
// identically.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.PermissionDenied(err)
		}
		return nil, errors.Internal(err)
	}

	if !user.IsActive {
		return nil, errors.PermissionDenied(nil)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, errors.PermissionDenied(err)
	}

	token, err := s.jwtSvc.GenerateToken(user.ID, user.RoleCode)
	if err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, user.ID, "login", "user", user.ID, nil)

	return &model.LoginResponse{
		Token: token,
		User:  user,
	}, nil
}
