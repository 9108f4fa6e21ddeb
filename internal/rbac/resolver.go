package rbac

import (
	"context"
	"sort"
)

// Resolver computes the permissions reachable for a user through the
// membership, role assignment, and grant chain. It is a pure read path.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// EffectivePermissions returns the deduplicated permission set for a user,
// ordered by module name then action for deterministic presentation. A user
// that does not exist resolves to an empty set, not an error.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) ([]EffectivePermission, error) {
	rows, err := r.store.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A permission reachable through several chains must appear once.
	seen := make(map[int64]struct{}, len(rows))
	perms := make([]EffectivePermission, 0, len(rows))
	for _, p := range rows {
		if _, ok := seen[p.PermissionID]; ok {
			continue
		}
		seen[p.PermissionID] = struct{}{}
		perms = append(perms, p)
	}

	sort.Slice(perms, func(i, j int) bool {
		if perms[i].ModuleName != perms[j].ModuleName {
			return perms[i].ModuleName < perms[j].ModuleName
		}
		return perms[i].Action < perms[j].Action
	})
	return perms, nil
}

// HasPermission reports whether the (user, module, action) triple lies in the
// user's effective permission set. It is a targeted existence query, not a
// full resolution followed by filtering.
func (r *Resolver) HasPermission(ctx context.Context, userID int64, moduleName, action string) (bool, error) {
	return r.store.HasPermission(ctx, userID, moduleName, action)
}
