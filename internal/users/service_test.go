package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/rbac"
)

type memoryUserRepo struct {
	users  map[int64]User
	hashes map[int64]string
	groups map[int64][]GroupSummary
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		users:  map[int64]User{},
		hashes: map[int64]string{},
		groups: map[int64][]GroupSummary{},
	}
}

func (r *memoryUserRepo) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryUserRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	return u, nil
}

func (r *memoryUserRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return User{}, fmt.Errorf("%w: username or email already exists", httpx.ErrConflict)
		}
	}
	r.nextID++
	u := User{ID: r.nextID, Username: username, Email: email}
	r.users[u.ID] = u
	r.hashes[u.ID] = passwordHash
	return u, nil
}

func (r *memoryUserRepo) UpdateUser(ctx context.Context, id int64, username, email, passwordHash *string) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	if username != nil {
		u.Username = *username
	}
	if email != nil {
		u.Email = *email
	}
	if passwordHash != nil {
		r.hashes[id] = *passwordHash
	}
	r.users[id] = u
	return u, nil
}

func (r *memoryUserRepo) DeleteUser(ctx context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	delete(r.users, id)
	delete(r.hashes, id)
	delete(r.groups, id)
	return nil
}

func (r *memoryUserRepo) ListGroups(ctx context.Context, userID int64) ([]GroupSummary, error) {
	return r.groups[userID], nil
}

func (r *memoryUserRepo) GroupsByUser(ctx context.Context) (map[int64][]GroupSummary, error) {
	return r.groups, nil
}

type stubCoordinator struct {
	repo *memoryUserRepo
	err  error
}

func (c *stubCoordinator) Attach(ctx context.Context, rel rbac.Relation, anchorID int64, ids []int64) (rbac.AttachResult, error) {
	if c.err != nil {
		return rbac.AttachResult{}, c.err
	}
	for _, id := range ids {
		c.repo.groups[anchorID] = append(c.repo.groups[anchorID], GroupSummary{ID: id})
	}
	return rbac.AttachResult{AnchorID: anchorID, Added: len(ids), CounterpartIDs: ids}, nil
}

func (c *stubCoordinator) Detach(ctx context.Context, rel rbac.Relation, anchorID, counterpartID int64) error {
	return c.err
}

func newUserService() (*Service, *memoryUserRepo) {
	repo := newMemoryUserRepo()
	return NewService(repo, &stubCoordinator{repo: repo}), repo
}

func TestCreateStoresHashNotPassword(t *testing.T) {
	svc, repo := newUserService()

	detail, err := svc.Create(context.Background(), "auditor", "auditor@example.com", "correct horse battery")
	require.NoError(t, err)

	hash := repo.hashes[detail.ID]
	require.NotEqual(t, "correct horse battery", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery")))
}

func TestApplyPartialUpdateKeepsOtherFields(t *testing.T) {
	svc, repo := newUserService()
	detail, err := svc.Create(context.Background(), "auditor", "auditor@example.com", "correct horse battery")
	require.NoError(t, err)
	originalHash := repo.hashes[detail.ID]

	email := "finance@example.com"
	updated, err := svc.Apply(context.Background(), detail.ID, Update{Email: &email})
	require.NoError(t, err)
	require.Equal(t, "auditor", updated.Username)
	require.Equal(t, "finance@example.com", updated.Email)
	require.Equal(t, originalHash, repo.hashes[detail.ID], "password hash must not change")
}

func TestApplyRehashesNewPassword(t *testing.T) {
	svc, repo := newUserService()
	detail, err := svc.Create(context.Background(), "auditor", "auditor@example.com", "correct horse battery")
	require.NoError(t, err)
	originalHash := repo.hashes[detail.ID]

	password := "staple every day"
	_, err = svc.Apply(context.Background(), detail.ID, Update{Password: &password})
	require.NoError(t, err)
	require.NotEqual(t, originalHash, repo.hashes[detail.ID])
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[detail.ID]), []byte(password)))
}

func TestListJoinsGroups(t *testing.T) {
	svc, repo := newUserService()
	detail, err := svc.Create(context.Background(), "auditor", "auditor@example.com", "correct horse battery")
	require.NoError(t, err)
	repo.groups[detail.ID] = []GroupSummary{{ID: 7, Name: "Finance"}}

	details, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Len(t, details[0].Groups, 1)
	require.Equal(t, "Finance", details[0].Groups[0].Name)
}

func TestAttachGroupsReturnsRefreshedView(t *testing.T) {
	svc, _ := newUserService()
	detail, err := svc.Create(context.Background(), "auditor", "auditor@example.com", "correct horse battery")
	require.NoError(t, err)

	added, refreshed, err := svc.AttachGroups(context.Background(), detail.ID, []int64{7, 8})
	require.NoError(t, err)
	require.Equal(t, 2, added)
	require.Len(t, refreshed.Groups, 2)
}

func TestDeleteUnknownUser(t *testing.T) {
	svc, _ := newUserService()

	err := svc.Delete(context.Background(), 12)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
