package users

import (
	"context"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/warden-app/warden/internal/rbac"
)

const bcryptCost = 12

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id int64, username, email, passwordHash *string) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListGroups(ctx context.Context, userID int64) ([]GroupSummary, error)
	GroupsByUser(ctx context.Context) (map[int64][]GroupSummary, error)
}

// CoordinatorPort is the slice of the assignment coordinator this service
// consumes.
type CoordinatorPort interface {
	Attach(ctx context.Context, rel rbac.Relation, anchorID int64, counterpartIDs []int64) (rbac.AttachResult, error)
	Detach(ctx context.Context, rel rbac.Relation, anchorID, counterpartID int64) error
}

// Service handles user administration logic.
type Service struct {
	repo  RepositoryPort
	coord CoordinatorPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, coord CoordinatorPort) *Service {
	return &Service{repo: repo, coord: coord}
}

// List returns all users with their group memberships. The two reads are
// independent and issued concurrently.
func (s *Service) List(ctx context.Context) ([]Detail, error) {
	var (
		users  []User
		groups map[int64][]GroupSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.repo.ListUsers(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = s.repo.GroupsByUser(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	details := make([]Detail, len(users))
	for i, u := range users {
		details[i] = Detail{User: u, Groups: emptyIfNil(groups[u.ID])}
	}
	return details, nil
}

// Get returns a single user with group memberships.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	return s.snapshot(ctx, id)
}

// Create hashes the password and inserts the account.
func (s *Service) Create(ctx context.Context, username, email, password string) (Detail, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return Detail{}, err
	}
	u, err := s.repo.CreateUser(ctx, username, email, string(hashed))
	if err != nil {
		return Detail{}, err
	}
	return Detail{User: u, Groups: []GroupSummary{}}, nil
}

// Apply performs a partial update, rehashing the password only when one was
// supplied.
func (s *Service) Apply(ctx context.Context, id int64, upd Update) (Detail, error) {
	var passwordHash *string
	if upd.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), bcryptCost)
		if err != nil {
			return Detail{}, err
		}
		s := string(hashed)
		passwordHash = &s
	}
	if _, err := s.repo.UpdateUser(ctx, id, upd.Username, upd.Email, passwordHash); err != nil {
		return Detail{}, err
	}
	return s.snapshot(ctx, id)
}

// AttachGroups bulk-adds the user to groups and returns the added count with
// the refreshed user view.
func (s *Service) AttachGroups(ctx context.Context, userID int64, groupIDs []int64) (int, Detail, error) {
	res, err := s.coord.Attach(ctx, rbac.UserMemberships, userID, groupIDs)
	if err != nil {
		return 0, Detail{}, err
	}
	detail, err := s.snapshot(ctx, userID)
	if err != nil {
		return 0, Detail{}, err
	}
	return res.Added, detail, nil
}

// DetachGroup removes the user from one group.
func (s *Service) DetachGroup(ctx context.Context, userID, groupID int64) error {
	return s.coord.Detach(ctx, rbac.UserMemberships, userID, groupID)
}

// Delete removes a user and, through the store cascade, their memberships.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

// snapshot loads the user row and group list concurrently.
func (s *Service) snapshot(ctx context.Context, id int64) (Detail, error) {
	var (
		u      User
		groups []GroupSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		u, err = s.repo.GetUser(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = s.repo.ListGroups(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}

	return Detail{User: u, Groups: emptyIfNil(groups)}, nil
}

func emptyIfNil(groups []GroupSummary) []GroupSummary {
	if groups == nil {
		return []GroupSummary{}
	}
	return groups
}
