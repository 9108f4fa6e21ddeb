package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/warden-app/warden/internal/platform/httpx"
)

const bcryptCost = 12

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SignUp hashes the password and creates the account.
func (s *Service) SignUp(ctx context.Context, username, email, password string) (User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, username, email, string(hashed))
}

// Authenticate validates email/password credentials. Failures are reported
// uniformly so callers cannot distinguish an unknown email from a wrong
// password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, errInvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials()
	}
	return user, nil
}

func errInvalidCredentials() error {
	return fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthenticated)
}
