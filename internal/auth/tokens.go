package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/shared"
)

const tokenKeyPrefix = "auth:token:"

// TokenStore issues and resolves opaque bearer tokens backed by Redis.
// Expiry is handled entirely by the key TTL.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

type tokenPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Issue creates a new token for the identity.
func (s *TokenStore) Issue(ctx context.Context, ident shared.Identity) (string, error) {
	payload, err := json.Marshal(tokenPayload{
		UserID:   ident.UserID,
		Username: ident.Username,
		Email:    ident.Email,
	})
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, tokenKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store token: %w", err)
	}
	return token, nil
}

// Lookup resolves a token to its identity. Unknown or expired tokens are
// reported as unauthenticated.
func (s *TokenStore) Lookup(ctx context.Context, token string) (shared.Identity, error) {
	raw, err := s.client.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Identity{}, fmt.Errorf("%w: invalid or expired token", httpx.ErrUnauthenticated)
		}
		return shared.Identity{}, fmt.Errorf("auth: lookup token: %w", err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return shared.Identity{}, fmt.Errorf("auth: decode token payload: %w", err)
	}
	return shared.Identity{
		UserID:   payload.UserID,
		Username: payload.Username,
		Email:    payload.Email,
	}, nil
}

// Revoke deletes a token. Revoking an unknown token is a no-op.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKeyPrefix+token).Err()
}
