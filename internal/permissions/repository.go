package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-app/warden/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPermissions returns all permissions with module names and role counts,
// ordered by module name then action.
func (r *Repository) ListPermissions(ctx context.Context) ([]Summary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.action, p.module_id, p.created_at, p.updated_at,
		        m.name, count(g.role_id) AS role_count
		 FROM permissions p
		 JOIN modules m ON m.id = p.module_id
		 LEFT JOIN grants g ON g.permission_id = p.id
		 GROUP BY p.id, m.name
		 ORDER BY m.name, p.action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Action, &s.ModuleID, &s.CreatedAt, &s.UpdatedAt,
			&s.ModuleName, &s.RoleCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetPermission fetches a permission with its module name.
func (r *Repository) GetPermission(ctx context.Context, id int64) (Permission, string, error) {
	var (
		p          Permission
		moduleName string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT p.id, p.name, p.action, p.module_id, p.created_at, p.updated_at, m.name
		 FROM permissions p
		 JOIN modules m ON m.id = p.module_id
		 WHERE p.id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Action, &p.ModuleID, &p.CreatedAt, &p.UpdatedAt, &moduleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, "", fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
		}
		return Permission{}, "", err
	}
	return p, moduleName, nil
}

// CreatePermission inserts a new permission.
func (r *Repository) CreatePermission(ctx context.Context, name, action string, moduleID int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, action, module_id) VALUES ($1, $2, $3)
		 RETURNING id, name, action, module_id, created_at, updated_at`,
		name, action, moduleID,
	).Scan(&p.ID, &p.Name, &p.Action, &p.ModuleID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Permission{}, mapPermissionError(err)
	}
	return p, nil
}

// UpdatePermission updates an existing permission.
func (r *Repository) UpdatePermission(ctx context.Context, id int64, name, action string, moduleID int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx,
		`UPDATE permissions SET name = $2, action = $3, module_id = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING id, name, action, module_id, created_at, updated_at`,
		id, name, action, moduleID,
	).Scan(&p.ID, &p.Name, &p.Action, &p.ModuleID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
		}
		return Permission{}, mapPermissionError(err)
	}
	return p, nil
}

// DeletePermission removes a permission.
func (r *Repository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
	}
	return nil
}

// ListRoles returns the roles a permission is granted to.
func (r *Repository) ListRoles(ctx context.Context, permissionID int64) ([]RoleSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ro.id, ro.name
		 FROM roles ro
		 JOIN grants g ON g.role_id = ro.id
		 WHERE g.permission_id = $1
		 ORDER BY ro.name`, permissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []RoleSummary
	for rows.Next() {
		var role RoleSummary
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ModuleExists reports whether the referenced module exists.
func (r *Repository) ModuleExists(ctx context.Context, moduleID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM modules WHERE id = $1)`, moduleID,
	).Scan(&exists)
	return exists, err
}

// GrantedCount reports how many roles currently hold the permission.
func (r *Repository) GrantedCount(ctx context.Context, permissionID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM grants WHERE permission_id = $1`, permissionID,
	).Scan(&n)
	return n, err
}

func mapPermissionError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: permission already exists for this action and module", httpx.ErrConflict)
		case "23503":
			return fmt.Errorf("%w: module does not exist", httpx.ErrNotFound)
		}
	}
	return err
}
