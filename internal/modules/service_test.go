package modules

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/rbac"
)

type memoryModuleRepo struct {
	modules map[int64]Module
	perms   map[int64][]PermissionSummary
	granted map[int64]int
	nextID  int64
}

func newMemoryModuleRepo() *memoryModuleRepo {
	return &memoryModuleRepo{
		modules: map[int64]Module{},
		perms:   map[int64][]PermissionSummary{},
		granted: map[int64]int{},
	}
}

func (r *memoryModuleRepo) ListModules(ctx context.Context) ([]Summary, error) {
	var out []Summary
	for _, m := range r.modules {
		out = append(out, Summary{Module: m, PermissionCount: len(r.perms[m.ID])})
	}
	return out, nil
}

func (r *memoryModuleRepo) GetModule(ctx context.Context, id int64) (Module, error) {
	m, ok := r.modules[id]
	if !ok {
		return Module{}, fmt.Errorf("%w: module %d", httpx.ErrNotFound, id)
	}
	return m, nil
}

func (r *memoryModuleRepo) CreateModule(ctx context.Context, name, description string) (Module, error) {
	r.nextID++
	m := Module{ID: r.nextID, Name: name, Description: description}
	r.modules[m.ID] = m
	for _, action := range rbac.Actions {
		r.nextID++
		r.perms[m.ID] = append(r.perms[m.ID], PermissionSummary{
			ID:     r.nextID,
			Name:   PermissionName(action, name),
			Action: action,
		})
	}
	return m, nil
}

func (r *memoryModuleRepo) UpdateModule(ctx context.Context, id int64, name, description string) (Module, error) {
	m, ok := r.modules[id]
	if !ok {
		return Module{}, fmt.Errorf("%w: module %d", httpx.ErrNotFound, id)
	}
	m.Name, m.Description = name, description
	r.modules[id] = m
	return m, nil
}

func (r *memoryModuleRepo) DeleteModule(ctx context.Context, id int64) error {
	if _, ok := r.modules[id]; !ok {
		return fmt.Errorf("%w: module %d", httpx.ErrNotFound, id)
	}
	delete(r.modules, id)
	delete(r.perms, id)
	return nil
}

func (r *memoryModuleRepo) ListPermissions(ctx context.Context, moduleID int64) ([]PermissionSummary, error) {
	return r.perms[moduleID], nil
}

func (r *memoryModuleRepo) GrantedCount(ctx context.Context, moduleID int64) (int, error) {
	return r.granted[moduleID], nil
}

func TestCreateSeedsCrudPermissions(t *testing.T) {
	repo := newMemoryModuleRepo()
	svc := NewService(repo)

	detail, err := svc.Create(context.Background(), "User Management", "people admin")
	require.NoError(t, err)
	require.Len(t, detail.Permissions, 4)

	actions := make(map[string]string, 4)
	for _, p := range detail.Permissions {
		actions[p.Action] = p.Name
	}
	require.Equal(t, "create_user_management", actions["create"])
	require.Equal(t, "read_user_management", actions["read"])
	require.Equal(t, "update_user_management", actions["update"])
	require.Equal(t, "delete_user_management", actions["delete"])
}

func TestDeleteBlockedWhileGranted(t *testing.T) {
	repo := newMemoryModuleRepo()
	svc := NewService(repo)
	detail, err := svc.Create(context.Background(), "Billing", "")
	require.NoError(t, err)
	repo.granted[detail.ID] = 2

	err = svc.Delete(context.Background(), detail.ID)
	require.ErrorIs(t, err, httpx.ErrDependencyInUse)

	repo.granted[detail.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), detail.ID))
}

func TestDeleteUnknownModule(t *testing.T) {
	svc := NewService(newMemoryModuleRepo())

	err := svc.Delete(context.Background(), 77)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestPermissionNameNormalization(t *testing.T) {
	require.Equal(t, "read_user_management", PermissionName("read", "User Management"))
	require.Equal(t, "create_billing", PermissionName("create", " Billing "))
	require.Equal(t, "delete_ap_invoices", PermissionName("delete", "AP-Invoices"))
}
