// Package auth provides credential verification and opaque bearer tokens.
// It is the identity producer consumed by the permission gate; authorization
// itself lives in the rbac package.
package auth

import "time"

// User represents a user account with credentials.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
