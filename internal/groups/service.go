package groups

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/warden-app/warden/internal/rbac"
)

// RepositoryPort defines data access methods for groups.
type RepositoryPort interface {
	ListGroups(ctx context.Context) ([]Group, error)
	GetGroup(ctx context.Context, id int64) (Group, error)
	CreateGroup(ctx context.Context, name, description string) (Group, error)
	UpdateGroup(ctx context.Context, id int64, name, description string) (Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	ListMembers(ctx context.Context, groupID int64) ([]MemberSummary, error)
	ListRoles(ctx context.Context, groupID int64) ([]RoleSummary, error)
	MembersByGroup(ctx context.Context) (map[int64][]MemberSummary, error)
	RolesByGroup(ctx context.Context) (map[int64][]RoleSummary, error)
}

// CoordinatorPort is the slice of the assignment coordinator this service
// consumes.
type CoordinatorPort interface {
	Attach(ctx context.Context, rel rbac.Relation, anchorID int64, counterpartIDs []int64) (rbac.AttachResult, error)
	Detach(ctx context.Context, rel rbac.Relation, anchorID, counterpartID int64) error
}

// Service handles group business logic.
type Service struct {
	repo  RepositoryPort
	coord CoordinatorPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, coord CoordinatorPort) *Service {
	return &Service{repo: repo, coord: coord}
}

// List returns all groups with their members and roles. The three reads are
// independent and issued concurrently.
func (s *Service) List(ctx context.Context) ([]Detail, error) {
	var (
		groups  []Group
		members map[int64][]MemberSummary
		roles   map[int64][]RoleSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		groups, err = s.repo.ListGroups(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.repo.MembersByGroup(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = s.repo.RolesByGroup(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	details := make([]Detail, len(groups))
	for i, group := range groups {
		details[i] = Detail{
			Group: group,
			Users: emptyIfNil(members[group.ID]),
			Roles: emptyIfNilRoles(roles[group.ID]),
		}
	}
	return details, nil
}

// Get returns a single group with members and roles, loaded concurrently.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	return s.snapshot(ctx, id)
}

// Create inserts a new group. A new group starts with no members or roles.
func (s *Service) Create(ctx context.Context, name, description string) (Detail, error) {
	group, err := s.repo.CreateGroup(ctx, name, description)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Group: group, Users: []MemberSummary{}, Roles: []RoleSummary{}}, nil
}

// Update modifies a group and returns the refreshed view.
func (s *Service) Update(ctx context.Context, id int64, name, description string) (Detail, error) {
	if _, err := s.repo.UpdateGroup(ctx, id, name, description); err != nil {
		return Detail{}, err
	}
	return s.snapshot(ctx, id)
}

// Delete removes a group and, through the store cascade, its memberships
// and role assignments.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteGroup(ctx, id)
}

// AttachUsers bulk-adds users to the group and returns the added count with
// the refreshed group view.
func (s *Service) AttachUsers(ctx context.Context, groupID int64, userIDs []int64) (int, Detail, error) {
	res, err := s.coord.Attach(ctx, rbac.Memberships, groupID, userIDs)
	if err != nil {
		return 0, Detail{}, err
	}
	detail, err := s.snapshot(ctx, groupID)
	if err != nil {
		return 0, Detail{}, err
	}
	return res.Added, detail, nil
}

// DetachUser removes one user from the group.
func (s *Service) DetachUser(ctx context.Context, groupID, userID int64) error {
	return s.coord.Detach(ctx, rbac.Memberships, groupID, userID)
}

// AttachRoles bulk-assigns roles to the group.
func (s *Service) AttachRoles(ctx context.Context, groupID int64, roleIDs []int64) (int, Detail, error) {
	res, err := s.coord.Attach(ctx, rbac.RoleAssignments, groupID, roleIDs)
	if err != nil {
		return 0, Detail{}, err
	}
	detail, err := s.snapshot(ctx, groupID)
	if err != nil {
		return 0, Detail{}, err
	}
	return res.Added, detail, nil
}

// DetachRole removes one role from the group.
func (s *Service) DetachRole(ctx context.Context, groupID, roleID int64) error {
	return s.coord.Detach(ctx, rbac.RoleAssignments, groupID, roleID)
}

// snapshot loads the group row, member list, and role list concurrently and
// joins them in memory.
func (s *Service) snapshot(ctx context.Context, id int64) (Detail, error) {
	var (
		group   Group
		members []MemberSummary
		roles   []RoleSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		group, err = s.repo.GetGroup(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.repo.ListMembers(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = s.repo.ListRoles(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}

	return Detail{Group: group, Users: emptyIfNil(members), Roles: emptyIfNilRoles(roles)}, nil
}

func emptyIfNil(members []MemberSummary) []MemberSummary {
	if members == nil {
		return []MemberSummary{}
	}
	return members
}

func emptyIfNilRoles(roles []RoleSummary) []RoleSummary {
	if roles == nil {
		return []RoleSummary{}
	}
	return roles
}
