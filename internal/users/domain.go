// Package users manages user accounts from the administration side.
package users

import "time"

// User is the public view of an account. Password hashes never leave the
// repository layer.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupSummary is a group the user belongs to.
type GroupSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Detail is the full view of a user with group memberships.
type Detail struct {
	User
	Groups []GroupSummary `json:"groups"`
}

// Update carries the optional fields of a partial user update. Nil fields
// are left untouched.
type Update struct {
	Username *string
	Email    *string
	Password *string
}
