package roles

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

// ListRoles returns all roles with group and permission counts, ordered by
// name.
func (r *Repository) ListRoles(ctx context.Context) ([]Summary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.description, r.created_at, r.updated_at,
		        count(DISTINCT ra.group_id) AS group_count,
		        count(DISTINCT g.permission_id) AS permission_count
		 FROM roles r
		 LEFT JOIN role_assignments ra ON ra.role_id = r.id
		 LEFT JOIN grants g ON g.role_id = r.id
		 GROUP BY r.id
		 ORDER BY r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt,
			&s.GroupCount, &s.PermissionCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2)
		 RETURNING id, name, description, created_at, updated_at`,
		name, description,
	).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, mapRoleError(err)
	}
	return role, nil
}

// UpdateRole updates name and description of an existing role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = now() WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`,
		id, name, description,
	).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
		}
		return Role{}, mapRoleError(err)
	}
	return role, nil
}

// DeleteRole removes a role. Grants and role assignments cascade at the
// store level.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	return nil
}

// ListPermissions returns the permissions granted to a role, ordered by
// module name then action.
func (r *Repository) ListPermissions(ctx context.Context, roleID int64) ([]PermissionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.action, p.module_id, m.name
		 FROM permissions p
		 JOIN grants g ON g.permission_id = p.id
		 JOIN modules m ON m.id = p.module_id
		 WHERE g.role_id = $1
		 ORDER BY m.name, p.action`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []PermissionSummary
	for rows.Next() {
		var p PermissionSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.Action, &p.ModuleID, &p.ModuleName); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListGroups returns the groups this role is assigned to.
func (r *Repository) ListGroups(ctx context.Context, roleID int64) ([]GroupSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT gr.id, gr.name
		 FROM groups gr
		 JOIN role_assignments ra ON ra.group_id = gr.id
		 WHERE ra.role_id = $1
		 ORDER BY gr.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []GroupSummary
	for rows.Next() {
		var g GroupSummary
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func mapRoleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: role name already exists", httpx.ErrConflict)
	}
	return err
}
