package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-app/warden/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users ordered by username.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, email, created_at, updated_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, created_at, updated_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
		}
		return User{}, err
	}
	return u, nil
}

// CreateUser inserts a user with an already-hashed password.
func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3)
		 RETURNING id, username, email, created_at, updated_at`,
		username, email, passwordHash,
	).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapUserError(err)
	}
	return u, nil
}

// UpdateUser applies a partial update. Nil fields keep their stored value.
func (r *Repository) UpdateUser(ctx context.Context, id int64, username, email, passwordHash *string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET
		    username = COALESCE($2, username),
		    email = COALESCE($3, email),
		    password_hash = COALESCE($4, password_hash),
		    updated_at = now()
		 WHERE id = $1
		 RETURNING id, username, email, created_at, updated_at`,
		id, username, email, passwordHash,
	).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
		}
		return User{}, mapUserError(err)
	}
	return u, nil
}

// DeleteUser removes a user. Memberships cascade at the store level.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	return nil
}

// ListGroups returns the groups a user belongs to.
func (r *Repository) ListGroups(ctx context.Context, userID int64) ([]GroupSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.name
		 FROM groups g
		 JOIN memberships m ON m.group_id = g.id
		 WHERE m.user_id = $1
		 ORDER BY g.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []GroupSummary
	for rows.Next() {
		var g GroupSummary
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GroupsByUser returns group memberships keyed by user id, for list views.
func (r *Repository) GroupsByUser(ctx context.Context) (map[int64][]GroupSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.user_id, g.id, g.name
		 FROM memberships m
		 JOIN groups g ON g.id = m.group_id
		 ORDER BY g.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make(map[int64][]GroupSummary)
	for rows.Next() {
		var userID int64
		var g GroupSummary
		if err := rows.Scan(&userID, &g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups[userID] = append(groups[userID], g)
	}
	return groups, rows.Err()
}

func mapUserError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: username or email already exists", httpx.ErrConflict)
	}
	return err
}
