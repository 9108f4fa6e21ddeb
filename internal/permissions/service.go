package permissions

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/rbac"
)

// RepositoryPort defines data access methods for permissions.
type RepositoryPort interface {
	ListPermissions(ctx context.Context) ([]Summary, error)
	GetPermission(ctx context.Context, id int64) (Permission, string, error)
	CreatePermission(ctx context.Context, name, action string, moduleID int64) (Permission, error)
	UpdatePermission(ctx context.Context, id int64, name, action string, moduleID int64) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	ListRoles(ctx context.Context, permissionID int64) ([]RoleSummary, error)
	ModuleExists(ctx context.Context, moduleID int64) (bool, error)
	GrantedCount(ctx context.Context, permissionID int64) (int, error)
}

// Service handles permission business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all permissions ordered by module then action.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	summaries, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// Get returns a permission with the roles holding it.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	return s.snapshot(ctx, id)
}

// Create inserts a new permission after verifying the action and module.
func (s *Service) Create(ctx context.Context, name, action string, moduleID int64) (Detail, error) {
	if !rbac.ValidAction(action) {
		return Detail{}, fmt.Errorf("%w: unknown action %q", httpx.ErrInvalidArgument, action)
	}
	exists, err := s.repo.ModuleExists(ctx, moduleID)
	if err != nil {
		return Detail{}, err
	}
	if !exists {
		return Detail{}, fmt.Errorf("%w: module %d", httpx.ErrNotFound, moduleID)
	}
	p, err := s.repo.CreatePermission(ctx, name, action, moduleID)
	if err != nil {
		return Detail{}, err
	}
	return s.snapshot(ctx, p.ID)
}

// Update modifies a permission, re-validating the action and module target.
func (s *Service) Update(ctx context.Context, id int64, name, action string, moduleID int64) (Detail, error) {
	if !rbac.ValidAction(action) {
		return Detail{}, fmt.Errorf("%w: unknown action %q", httpx.ErrInvalidArgument, action)
	}
	exists, err := s.repo.ModuleExists(ctx, moduleID)
	if err != nil {
		return Detail{}, err
	}
	if !exists {
		return Detail{}, fmt.Errorf("%w: module %d", httpx.ErrNotFound, moduleID)
	}
	if _, err := s.repo.UpdatePermission(ctx, id, name, action, moduleID); err != nil {
		return Detail{}, err
	}
	return s.snapshot(ctx, id)
}

// Delete removes a permission. A permission still granted to roles cannot
// be removed.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, _, err := s.repo.GetPermission(ctx, id); err != nil {
		return err
	}
	granted, err := s.repo.GrantedCount(ctx, id)
	if err != nil {
		return err
	}
	if granted > 0 {
		return fmt.Errorf("%w: permission is granted to %d roles", httpx.ErrDependencyInUse, granted)
	}
	return s.repo.DeletePermission(ctx, id)
}

// snapshot loads the permission row and its role list concurrently.
func (s *Service) snapshot(ctx context.Context, id int64) (Detail, error) {
	var (
		p          Permission
		moduleName string
		roles      []RoleSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, moduleName, err = s.repo.GetPermission(ctx, id)
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

	if roles == nil {
		roles = []RoleSummary{}
	}
	return Detail{Permission: p, ModuleName: moduleName, Roles: roles}, nil
}
