package groups

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

// ListGroups returns all groups ordered by name.
func (r *Repository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetGroup fetches a group by ID.
func (r *Repository) GetGroup(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, fmt.Errorf("%w: group %d", httpx.ErrNotFound, id)
		}
		return Group{}, err
	}
	return g, nil
}

// CreateGroup inserts a new group.
func (r *Repository) CreateGroup(ctx context.Context, name, description string) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx,
		`INSERT INTO groups (name, description) VALUES ($1, $2)
		 RETURNING id, name, description, created_at, updated_at`,
		name, description,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return Group{}, mapGroupError(err)
	}
	return g, nil
}

// UpdateGroup updates name and description of an existing group.
func (r *Repository) UpdateGroup(ctx context.Context, id int64, name, description string) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx,
		`UPDATE groups SET name = $2, description = $3, updated_at = now() WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`,
		id, name, description,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, fmt.Errorf("%w: group %d", httpx.ErrNotFound, id)
		}
		return Group{}, mapGroupError(err)
	}
	return g, nil
}

// DeleteGroup removes a group. Memberships and role assignments cascade at
// the store level.
func (r *Repository) DeleteGroup(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: group %d", httpx.ErrNotFound, id)
	}
	return nil
}

// ListMembers returns the users belonging to a group.
func (r *Repository) ListMembers(ctx context.Context, groupID int64) ([]MemberSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.username, u.email
		 FROM users u
		 JOIN memberships m ON m.user_id = u.id
		 WHERE m.group_id = $1
		 ORDER BY u.username`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []MemberSummary
	for rows.Next() {
		var m MemberSummary
		if err := rows.Scan(&m.ID, &m.Username, &m.Email); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListRoles returns the roles assigned to a group.
func (r *Repository) ListRoles(ctx context.Context, groupID int64) ([]RoleSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.description
		 FROM roles r
		 JOIN role_assignments ra ON ra.role_id = r.id
		 WHERE ra.group_id = $1
		 ORDER BY r.name`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []RoleSummary
	for rows.Next() {
		var role RoleSummary
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// MembersByGroup returns members keyed by group id, for list views.
func (r *Repository) MembersByGroup(ctx context.Context) (map[int64][]MemberSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.group_id, u.id, u.username, u.email
		 FROM memberships m
		 JOIN users u ON u.id = m.user_id
		 ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[int64][]MemberSummary)
	for rows.Next() {
		var groupID int64
		var m MemberSummary
		if err := rows.Scan(&groupID, &m.ID, &m.Username, &m.Email); err != nil {
			return nil, err
		}
		members[groupID] = append(members[groupID], m)
	}
	return members, rows.Err()
}

// RolesByGroup returns assigned roles keyed by group id, for list views.
func (r *Repository) RolesByGroup(ctx context.Context) (map[int64][]RoleSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ra.group_id, r.id, r.name, r.description
		 FROM role_assignments ra
		 JOIN roles r ON r.id = ra.role_id
		 ORDER BY r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make(map[int64][]RoleSummary)
	for rows.Next() {
		var groupID int64
		var role RoleSummary
		if err := rows.Scan(&groupID, &role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		roles[groupID] = append(roles[groupID], role)
	}
	return roles, rows.Err()
}

func mapGroupError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: group name already exists", httpx.ErrConflict)
	}
	return err
}
