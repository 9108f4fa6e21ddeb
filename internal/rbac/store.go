package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-app/warden/internal/platform/db"
)

// Store is the persistence surface the resolver and coordinator consume.
type Store interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]EffectivePermission, error)
	HasPermission(ctx context.Context, userID int64, moduleName, action string) (bool, error)

	AnchorExists(ctx context.Context, rel Relation, anchorID int64) (bool, error)
	ExistingCounterparts(ctx context.Context, rel Relation, ids []int64) ([]int64, error)
	CounterpartIDs(ctx context.Context, rel Relation, anchorID int64) ([]int64, error)
	Detach(ctx context.Context, rel Relation, anchorID, counterpartID int64) (bool, error)
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
}

// TxStore exposes the mutations available inside an attach transaction.
type TxStore interface {
	Attach(ctx context.Context, rel Relation, anchorID, counterpartID int64) (created bool, err error)
}

// PGStore provides PostgreSQL backed persistence for the authorization core.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const effectivePermissionsQuery = `
SELECT DISTINCT p.id, p.module_id, m.name, p.action
FROM permissions p
JOIN modules m ON m.id = p.module_id
JOIN grants g ON g.permission_id = p.id
JOIN role_assignments ra ON ra.role_id = g.role_id
JOIN memberships mb ON mb.group_id = ra.group_id
WHERE mb.user_id = $1`

// EffectivePermissions returns the distinct permissions reachable from the
// user through the membership, role assignment, and grant chain. An unknown
// user simply matches no rows.
func (s *PGStore) EffectivePermissions(ctx context.Context, userID int64) ([]EffectivePermission, error) {
	rows, err := s.pool.Query(ctx, effectivePermissionsQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []EffectivePermission
	for rows.Next() {
		var p EffectivePermission
		if err := rows.Scan(&p.PermissionID, &p.ModuleID, &p.ModuleName, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

const hasPermissionQuery = `
SELECT EXISTS (
    SELECT 1
    FROM permissions p
    JOIN modules m ON m.id = p.module_id
    JOIN grants g ON g.permission_id = p.id
    JOIN role_assignments ra ON ra.role_id = g.role_id
    JOIN memberships mb ON mb.group_id = ra.group_id
    WHERE mb.user_id = $1 AND m.name = $2 AND p.action = $3
)`

// HasPermission answers the targeted existence query behind the policy gate.
func (s *PGStore) HasPermission(ctx context.Context, userID int64, moduleName, action string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, hasPermissionQuery, userID, moduleName, action).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// AnchorExists reports whether the relation's anchor entity exists.
func (s *PGStore) AnchorExists(ctx context.Context, rel Relation, anchorID int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, rel.AnchorTable)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, anchorID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ExistingCounterparts returns the subset of ids that exist in the
// counterpart entity table.
func (s *PGStore) ExistingCounterparts(ctx context.Context, rel Relation, ids []int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1)`, rel.CounterpartTable)
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var existing []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing = append(existing, id)
	}
	return existing, rows.Err()
}

// CounterpartIDs returns the current counterpart set of an anchor.
func (s *PGStore) CounterpartIDs(ctx context.Context, rel Relation, anchorID int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s`,
		rel.CounterpartColumn, rel.Table, rel.AnchorColumn, rel.CounterpartColumn)
	rows, err := s.pool.Query(ctx, query, anchorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Detach deletes a single relation pair and reports whether a row existed.
func (s *PGStore) Detach(ctx context.Context, rel Relation, anchorID, counterpartID int64) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`,
		rel.Table, rel.AnchorColumn, rel.CounterpartColumn)
	tag, err := s.pool.Exec(ctx, query, anchorID, counterpartID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// WithTx runs fn inside a single transaction.
func (s *PGStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxStore{tx: tx})
	})
}

type pgTxStore struct {
	tx pgx.Tx
}

// Attach inserts one relation pair, absorbing duplicates. Each insert runs
// under a savepoint so an item failure does not poison the enclosing
// transaction before the coordinator has aggregated every result.
func (t *pgTxStore) Attach(ctx context.Context, rel Relation, anchorID, counterpartID int64) (bool, error) {
	inner, err := t.tx.Begin(ctx)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		rel.Table, rel.AnchorColumn, rel.CounterpartColumn)
	tag, err := inner.Exec(ctx, query, anchorID, counterpartID)
	if err != nil {
		_ = inner.Rollback(ctx)
		return false, err
	}

	if err := inner.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
