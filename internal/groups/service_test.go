package groups

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/rbac"
)

type memoryGroupRepo struct {
	groups  map[int64]Group
	members map[int64][]MemberSummary
	roles   map[int64][]RoleSummary
	nextID  int64
}

func newMemoryGroupRepo() *memoryGroupRepo {
	return &memoryGroupRepo{
		groups:  map[int64]Group{},
		members: map[int64][]MemberSummary{},
		roles:   map[int64][]RoleSummary{},
	}
}

func (r *memoryGroupRepo) ListGroups(ctx context.Context) ([]Group, error) {
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out, nil
}

func (r *memoryGroupRepo) GetGroup(ctx context.Context, id int64) (Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return Group{}, fmt.Errorf("%w: group %d", httpx.ErrNotFound, id)
	}
	return g, nil
}

func (r *memoryGroupRepo) CreateGroup(ctx context.Context, name, description string) (Group, error) {
	for _, g := range r.groups {
		if g.Name == name {
			return Group{}, fmt.Errorf("%w: group name already exists", httpx.ErrConflict)
		}
	}
	r.nextID++
	g := Group{ID: r.nextID, Name: name, Description: description}
	r.groups[g.ID] = g
	return g, nil
}

func (r *memoryGroupRepo) UpdateGroup(ctx context.Context, id int64, name, description string) (Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return Group{}, fmt.Errorf("%w: group %d", httpx.ErrNotFound, id)
	}
	g.Name, g.Description = name, description
	r.groups[id] = g
	return g, nil
}

func (r *memoryGroupRepo) DeleteGroup(ctx context.Context, id int64) error {
	if _, ok := r.groups[id]; !ok {
		return fmt.Errorf("%w: group %d", httpx.ErrNotFound, id)
	}
	delete(r.groups, id)
	delete(r.members, id)
	delete(r.roles, id)
	return nil
}

func (r *memoryGroupRepo) ListMembers(ctx context.Context, groupID int64) ([]MemberSummary, error) {
	return r.members[groupID], nil
}

func (r *memoryGroupRepo) ListRoles(ctx context.Context, groupID int64) ([]RoleSummary, error) {
	return r.roles[groupID], nil
}

func (r *memoryGroupRepo) MembersByGroup(ctx context.Context) (map[int64][]MemberSummary, error) {
	return r.members, nil
}

func (r *memoryGroupRepo) RolesByGroup(ctx context.Context) (map[int64][]RoleSummary, error) {
	return r.roles, nil
}

type stubCoordinator struct {
	repo     *memoryGroupRepo
	attached []rbac.Relation
	err      error
}

func (c *stubCoordinator) Attach(ctx context.Context, rel rbac.Relation, anchorID int64, ids []int64) (rbac.AttachResult, error) {
	if c.err != nil {
		return rbac.AttachResult{}, c.err
	}
	c.attached = append(c.attached, rel)
	if rel.Table == rbac.Memberships.Table {
		for _, id := range ids {
			c.repo.members[anchorID] = append(c.repo.members[anchorID], MemberSummary{ID: id})
		}
	}
	return rbac.AttachResult{AnchorID: anchorID, Added: len(ids), CounterpartIDs: ids}, nil
}

func (c *stubCoordinator) Detach(ctx context.Context, rel rbac.Relation, anchorID, counterpartID int64) error {
	return c.err
}

func newGroupService() (*Service, *memoryGroupRepo, *stubCoordinator) {
	repo := newMemoryGroupRepo()
	coord := &stubCoordinator{repo: repo}
	return NewService(repo, coord), repo, coord
}

func TestListJoinsMembersAndRoles(t *testing.T) {
	svc, repo, _ := newGroupService()
	repo.groups[1] = Group{ID: 1, Name: "Finance"}
	repo.members[1] = []MemberSummary{{ID: 42, Username: "auditor"}}
	repo.roles[1] = []RoleSummary{{ID: 3, Name: "Auditor"}}

	details, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, "Finance", details[0].Name)
	require.Len(t, details[0].Users, 1)
	require.Len(t, details[0].Roles, 1)
}

func TestGetReturnsEmptySlicesNotNil(t *testing.T) {
	svc, repo, _ := newGroupService()
	repo.groups[1] = Group{ID: 1, Name: "Finance"}

	detail, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, detail.Users)
	require.NotNil(t, detail.Roles)
	require.Empty(t, detail.Users)
}

func TestGetUnknownGroup(t *testing.T) {
	svc, _, _ := newGroupService()

	_, err := svc.Get(context.Background(), 9)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestAttachUsersReturnsRefreshedView(t *testing.T) {
	svc, repo, coord := newGroupService()
	repo.groups[1] = Group{ID: 1, Name: "Finance"}

	added, detail, err := svc.AttachUsers(context.Background(), 1, []int64{10, 11})
	require.NoError(t, err)
	require.Equal(t, 2, added)
	require.Len(t, detail.Users, 2)
	require.Len(t, coord.attached, 1)
	require.Equal(t, rbac.Memberships.Table, coord.attached[0].Table)
}

func TestAttachUsersPropagatesCoordinatorError(t *testing.T) {
	svc, repo, coord := newGroupService()
	repo.groups[1] = Group{ID: 1, Name: "Finance"}
	coord.err = &rbac.MissingCounterpartsError{Noun: "user", IDs: []int64{999}}

	_, _, err := svc.AttachUsers(context.Background(), 1, []int64{10, 999})
	require.ErrorIs(t, err, httpx.ErrInvalidArgument)
}

func TestCreateStartsEmpty(t *testing.T) {
	svc, _, _ := newGroupService()

	detail, err := svc.Create(context.Background(), "Finance", "finance staff")
	require.NoError(t, err)
	require.NotZero(t, detail.ID)
	require.Empty(t, detail.Users)
	require.Empty(t, detail.Roles)
}
