package rbac

import (
	"context"
	"fmt"
	"sort"
)

// memoryStore implements Store over plain maps so the resolver and
// coordinator can be exercised without a database.
type memoryStore struct {
	entities    map[string]map[int64]struct{} // entity table -> ids
	moduleNames map[int64]string
	permissions map[int64]memPermission
	pairs       map[string]map[[2]int64]struct{} // relation table -> (anchor, counterpart)

	failAttach map[[2]int64]bool
}

type memPermission struct {
	moduleID int64
	action   string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entities: map[string]map[int64]struct{}{
			"users":       {},
			"groups":      {},
			"roles":       {},
			"modules":     {},
			"permissions": {},
		},
		moduleNames: map[int64]string{},
		permissions: map[int64]memPermission{},
		pairs: map[string]map[[2]int64]struct{}{
			"memberships":      {},
			"role_assignments": {},
			"grants":           {},
		},
		failAttach: map[[2]int64]bool{},
	}
}

func (m *memoryStore) addEntity(table string, id int64) {
	m.entities[table][id] = struct{}{}
}

func (m *memoryStore) addModule(id int64, name string) {
	m.addEntity("modules", id)
	m.moduleNames[id] = name
}

func (m *memoryStore) addPermission(id, moduleID int64, action string) {
	m.addEntity("permissions", id)
	m.permissions[id] = memPermission{moduleID: moduleID, action: action}
}

func (m *memoryStore) addPair(table string, anchorID, counterpartID int64) {
	m.pairs[table][[2]int64{anchorID, counterpartID}] = struct{}{}
}

func (m *memoryStore) pairCount(table string) int {
	return len(m.pairs[table])
}

func (m *memoryStore) EffectivePermissions(ctx context.Context, userID int64) ([]EffectivePermission, error) {
	// Walk the chain the way the SQL join does, duplicates included; the
	// resolver is responsible for collapsing multiple paths.
	var out []EffectivePermission
	for membership := range m.pairs["memberships"] {
		if membership[1] != userID {
			continue
		}
		groupID := membership[0]
		for assignment := range m.pairs["role_assignments"] {
			if assignment[0] != groupID {
				continue
			}
			roleID := assignment[1]
			for grant := range m.pairs["grants"] {
				if grant[0] != roleID {
					continue
				}
				perm := m.permissions[grant[1]]
				out = append(out, EffectivePermission{
					PermissionID: grant[1],
					ModuleID:     perm.moduleID,
					ModuleName:   m.moduleNames[perm.moduleID],
					Action:       perm.action,
				})
			}
		}
	}
	return out, nil
}

func (m *memoryStore) HasPermission(ctx context.Context, userID int64, moduleName, action string) (bool, error) {
	perms, err := m.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.ModuleName == moduleName && p.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) AnchorExists(ctx context.Context, rel Relation, anchorID int64) (bool, error) {
	_, ok := m.entities[rel.AnchorTable][anchorID]
	return ok, nil
}

func (m *memoryStore) ExistingCounterparts(ctx context.Context, rel Relation, ids []int64) ([]int64, error) {
	var existing []int64
	for _, id := range ids {
		if _, ok := m.entities[rel.CounterpartTable][id]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

func (m *memoryStore) CounterpartIDs(ctx context.Context, rel Relation, anchorID int64) ([]int64, error) {
	var ids []int64
	for pair := range m.pairs[rel.Table] {
		if pair[0] == anchorID {
			ids = append(ids, pair[1])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryStore) Detach(ctx context.Context, rel Relation, anchorID, counterpartID int64) (bool, error) {
	key := [2]int64{anchorID, counterpartID}
	if _, ok := m.pairs[rel.Table][key]; !ok {
		return false, nil
	}
	delete(m.pairs[rel.Table], key)
	return true, nil
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	snapshot := make(map[string]map[[2]int64]struct{}, len(m.pairs))
	for table, pairs := range m.pairs {
		copied := make(map[[2]int64]struct{}, len(pairs))
		for k := range pairs {
			copied[k] = struct{}{}
		}
		snapshot[table] = copied
	}
	if err := fn(ctx, m); err != nil {
		m.pairs = snapshot
		return err
	}
	return nil
}

// Attach implements TxStore.
func (m *memoryStore) Attach(ctx context.Context, rel Relation, anchorID, counterpartID int64) (bool, error) {
	key := [2]int64{anchorID, counterpartID}
	if m.failAttach[key] {
		return false, fmt.Errorf("simulated store failure for %v", key)
	}
	if _, ok := m.pairs[rel.Table][key]; ok {
		return false, nil
	}
	m.pairs[rel.Table][key] = struct{}{}
	return true, nil
}
