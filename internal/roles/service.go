package roles

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/warden-app/warden/internal/rbac"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Summary, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context, roleID int64) ([]PermissionSummary, error)
	ListGroups(ctx context.Context, roleID int64) ([]GroupSummary, error)
}

// CoordinatorPort is the slice of the assignment coordinator this service
// consumes.
type CoordinatorPort interface {
	Attach(ctx context.Context, rel rbac.Relation, anchorID int64, counterpartIDs []int64) (rbac.AttachResult, error)
	Detach(ctx context.Context, rel rbac.Relation, anchorID, counterpartID int64) error
}

// Service handles role business logic.
type Service struct {
	repo  RepositoryPort
	coord CoordinatorPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, coord CoordinatorPort) *Service {
	return &Service{repo: repo, coord: coord}
}

// List returns all roles with usage counts.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	summaries, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// Get returns a role with its granted permissions and carrying groups.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	return s.snapshot(ctx, id)
}

// Create inserts a new role. A new role starts with no grants.
func (s *Service) Create(ctx context.Context, name, description string) (Detail, error) {
	role, err := s.repo.CreateRole(ctx, name, description)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Role: role, Permissions: []PermissionSummary{}, Groups: []GroupSummary{}}, nil
}

// Update modifies a role and returns the refreshed view.
func (s *Service) Update(ctx context.Context, id int64, name, description string) (Detail, error) {
	if _, err := s.repo.UpdateRole(ctx, id, name, description); err != nil {
		return Detail{}, err
	}
	return s.snapshot(ctx, id)
}

// Delete removes a role and, through the store cascade, its grants and
// assignments.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// AttachPermissions bulk-grants permissions to the role and returns the
// added count with the refreshed role view.
func (s *Service) AttachPermissions(ctx context.Context, roleID int64, permissionIDs []int64) (int, Detail, error) {
	res, err := s.coord.Attach(ctx, rbac.Grants, roleID, permissionIDs)
	if err != nil {
		return 0, Detail{}, err
	}
	detail, err := s.snapshot(ctx, roleID)
	if err != nil {
		return 0, Detail{}, err
	}
	return res.Added, detail, nil
}

// DetachPermission revokes one permission from the role.
func (s *Service) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	return s.coord.Detach(ctx, rbac.Grants, roleID, permissionID)
}

// snapshot loads the role row, grant list, and group list concurrently and
// joins them in memory.
func (s *Service) snapshot(ctx context.Context, id int64) (Detail, error) {
	var (
		role  Role
		perms []PermissionSummary
		grps  []GroupSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		role, err = s.repo.GetRole(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = s.repo.ListPermissions(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		grps, err = s.repo.ListGroups(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}

	if perms == nil {
		perms = []PermissionSummary{}
	}
	if grps == nil {
		grps = []GroupSummary{}
	}
	return Detail{Role: role, Permissions: perms, Groups: grps}, nil
}
