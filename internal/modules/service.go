package modules

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/warden-app/warden/internal/platform/httpx"
)

// RepositoryPort defines data access methods for modules.
type RepositoryPort interface {
	ListModules(ctx context.Context) ([]Summary, error)
	GetModule(ctx context.Context, id int64) (Module, error)
	CreateModule(ctx context.Context, name, description string) (Module, error)
	UpdateModule(ctx context.Context, id int64, name, description string) (Module, error)
	DeleteModule(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context, moduleID int64) ([]PermissionSummary, error)
	GrantedCount(ctx context.Context, moduleID int64) (int, error)
}

// Service handles module business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all modules with permission counts.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	summaries, err := s.repo.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// Get returns a module with its permissions.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	return s.snapshot(ctx, id)
}

// Create inserts a new module. The store seeds one permission per CRUD
// action for it in the same transaction.
func (s *Service) Create(ctx context.Context, name, description string) (Detail, error) {
	m, err := s.repo.CreateModule(ctx, name, description)
	if err != nil {
		return Detail{}, err
	}
	return s.snapshot(ctx, m.ID)
}

// Update modifies a module and returns the refreshed view. Existing
// permission names keep the name derived at creation time.
func (s *Service) Update(ctx context.Context, id int64, name, description string) (Detail, error) {
	if _, err := s.repo.UpdateModule(ctx, id, name, description); err != nil {
		return Detail{}, err
	}
	return s.snapshot(ctx, id)
}

// Delete removes a module. A module whose permissions are still granted to
// a role cannot be removed.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetModule(ctx, id); err != nil {
		return err
	}
	granted, err := s.repo.GrantedCount(ctx, id)
	if err != nil {
		return err
	}
	if granted > 0 {
		return fmt.Errorf("%w: module permissions are granted to %d role assignments", httpx.ErrDependencyInUse, granted)
	}
	return s.repo.DeleteModule(ctx, id)
}

// snapshot loads the module row and its permission list concurrently.
func (s *Service) snapshot(ctx context.Context, id int64) (Detail, error) {
	var (
		m     Module
		perms []PermissionSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		m, err = s.repo.GetModule(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = s.repo.ListPermissions(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}

	if perms == nil {
		perms = []PermissionSummary{}
	}
	return Detail{Module: m, Permissions: perms}, nil
}
