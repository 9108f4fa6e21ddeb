package modules

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-app/warden/internal/platform/db"
	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/rbac"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListModules returns all modules with their permission counts, ordered by
// name.
func (r *Repository) ListModules(ctx context.Context) ([]Summary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.name, m.description, m.created_at, m.updated_at,
		        count(p.id) AS permission_count
		 FROM modules m
		 LEFT JOIN permissions p ON p.module_id = m.id
		 GROUP BY m.id
		 ORDER BY m.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt,
			&s.PermissionCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetModule fetches a module by ID.
func (r *Repository) GetModule(ctx context.Context, id int64) (Module, error) {
	var m Module
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM modules WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, fmt.Errorf("%w: module %d", httpx.ErrNotFound, id)
		}
		return Module{}, err
	}
	return m, nil
}

// CreateModule inserts a new module together with one permission per CRUD
// action, in a single transaction.
func (r *Repository) CreateModule(ctx context.Context, name, description string) (Module, error) {
	var m Module
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO modules (name, description) VALUES ($1, $2)
			 RETURNING id, name, description, created_at, updated_at`,
			name, description,
		).Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return mapModuleError(err)
		}
		for _, action := range rbac.Actions {
			if _, err := tx.Exec(ctx,
				`INSERT INTO permissions (name, action, module_id) VALUES ($1, $2, $3)`,
				PermissionName(action, name), action, m.ID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Module{}, err
	}
	return m, nil
}

// UpdateModule updates name and description of an existing module.
func (r *Repository) UpdateModule(ctx context.Context, id int64, name, description string) (Module, error) {
	var m Module
	err := r.pool.QueryRow(ctx,
		`UPDATE modules SET name = $2, description = $3, updated_at = now() WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`,
		id, name, description,
	).Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, fmt.Errorf("%w: module %d", httpx.ErrNotFound, id)
		}
		return Module{}, mapModuleError(err)
	}
	return m, nil
}

// DeleteModule removes a module and its permissions through the cascade.
func (r *Repository) DeleteModule(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: module %d", httpx.ErrNotFound, id)
	}
	return nil
}

// ListPermissions returns the permissions belonging to a module, ordered by
// action.
func (r *Repository) ListPermissions(ctx context.Context, moduleID int64) ([]PermissionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, action FROM permissions WHERE module_id = $1 ORDER BY action`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []PermissionSummary
	for rows.Next() {
		var p PermissionSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GrantedCount reports how many of the module's permissions are currently
// granted to roles.
func (r *Repository) GrantedCount(ctx context.Context, moduleID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM grants g
		 JOIN permissions p ON p.id = g.permission_id
		 WHERE p.module_id = $1`, moduleID,
	).Scan(&n)
	return n, err
}

func mapModuleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: module name already exists", httpx.ErrConflict)
	}
	return err
}
