package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// seedBillingChain wires user 42 -> group "Finance" -> role "Auditor" ->
// permission 9 (read on module "Billing").
func seedBillingChain(store *memoryStore) {
	store.addEntity("users", 42)
	store.addEntity("groups", 7)
	store.addEntity("roles", 3)
	store.addModule(5, "Billing")
	store.addPermission(9, 5, ActionRead)
	store.addPair("memberships", 7, 42)
	store.addPair("role_assignments", 7, 3)
	store.addPair("grants", 3, 9)
}

func TestResolverIncludesChainedPermission(t *testing.T) {
	store := newMemoryStore()
	seedBillingChain(store)
	resolver := NewResolver(store)

	perms, err := resolver.EffectivePermissions(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	require.Equal(t, "Billing", perms[0].ModuleName)
	require.Equal(t, ActionRead, perms[0].Action)
	require.Equal(t, int64(9), perms[0].PermissionID)
}

func TestResolverExcludesAfterGrantRemoved(t *testing.T) {
	store := newMemoryStore()
	seedBillingChain(store)
	resolver := NewResolver(store)

	removed, err := store.Detach(context.Background(), Grants, 3, 9)
	require.NoError(t, err)
	require.True(t, removed)

	perms, err := resolver.EffectivePermissions(context.Background(), 42)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestResolverUnknownUserYieldsEmptySet(t *testing.T) {
	store := newMemoryStore()
	seedBillingChain(store)
	resolver := NewResolver(store)

	perms, err := resolver.EffectivePermissions(context.Background(), 999)
	require.NoError(t, err)
	require.NotNil(t, perms)
	require.Empty(t, perms)
}

func TestResolverDeduplicatesMultiplePaths(t *testing.T) {
	store := newMemoryStore()
	seedBillingChain(store)
	// A second group reaching the same permission through another role.
	store.addEntity("groups", 8)
	store.addEntity("roles", 4)
	store.addPair("memberships", 8, 42)
	store.addPair("role_assignments", 8, 4)
	store.addPair("grants", 4, 9)
	resolver := NewResolver(store)

	perms, err := resolver.EffectivePermissions(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, perms, 1)
}

func TestResolverOrdersByModuleThenAction(t *testing.T) {
	store := newMemoryStore()
	seedBillingChain(store)
	store.addModule(6, "Accounts")
	store.addPermission(10, 6, ActionUpdate)
	store.addPermission(11, 6, ActionCreate)
	store.addPermission(12, 5, ActionDelete)
	store.addPair("grants", 3, 10)
	store.addPair("grants", 3, 11)
	store.addPair("grants", 3, 12)
	resolver := NewResolver(store)

	perms, err := resolver.EffectivePermissions(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, perms, 4)

	got := make([][2]string, len(perms))
	for i, p := range perms {
		got[i] = [2]string{p.ModuleName, p.Action}
	}
	want := [][2]string{
		{"Accounts", ActionCreate},
		{"Accounts", ActionUpdate},
		{"Billing", ActionDelete},
		{"Billing", ActionRead},
	}
	require.Equal(t, want, got)
}

func TestResolverHasPermission(t *testing.T) {
	store := newMemoryStore()
	seedBillingChain(store)
	resolver := NewResolver(store)

	ok, err := resolver.HasPermission(context.Background(), 42, "Billing", ActionRead)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.HasPermission(context.Background(), 42, "Billing", ActionDelete)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = resolver.HasPermission(context.Background(), 999, "Billing", ActionRead)
	require.NoError(t, err)
	require.False(t, ok)
}
