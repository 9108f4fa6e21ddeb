// Package groups manages group accounts and their membership and role
// relations.
package groups

import "time"

// Group represents a collection of users sharing role assignments.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MemberSummary is the user shape embedded in group views.
type MemberSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RoleSummary is the role shape embedded in group views.
type RoleSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Detail is a group with its current members and roles.
type Detail struct {
	Group
	Users []MemberSummary `json:"users"`
	Roles []RoleSummary   `json:"roles"`
}
