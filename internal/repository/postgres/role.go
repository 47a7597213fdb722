package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/model"
)

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	query := `
		INSERT INTO roles (id, code, display_name, permissions, is_system_role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		role.ID,
		role.Code,
		role.DisplayName,
		role.Permissions,
		role.IsSystemRole,
		role.IsActive,
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

func (r *roleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	query := `
		SELECT id, code, display_name, permissions, is_system_role, is_active, created_at, updated_at
		FROM roles
		WHERE id = $1
	`
	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

func (r *roleRepository) GetByCode(ctx context.Context, code string) (*model.Role, error) {
	query := `
		SELECT id, code, display_name, permissions, is_system_role, is_active, created_at, updated_at
		FROM roles
		WHERE code = $1
	`
	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get role by code: %w", err)
	}
	return &role, nil
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	query := `
		UPDATE roles
		SET display_name = $1, permissions = $2, is_active = $3, updated_at = $4
		WHERE id = $5
	`
	role.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		role.DisplayName,
		role.Permissions,
		role.IsActive,
		role.UpdatedAt,
		role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM roles WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *roleRepository) List(ctx context.Context) ([]*model.Role, error) {
	query := `
		SELECT id, code, display_name, permissions, is_system_role, is_active, created_at, updated_at
		FROM roles
		ORDER BY code
	`
	var roles []*model.Role
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func (r *roleRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM roles WHERE code = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("failed to check role code: %w", err)
	}
	return exists, nil
}
