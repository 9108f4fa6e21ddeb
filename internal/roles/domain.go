// Package roles manages roles and the permissions granted to them.
package roles

import "time"

// Role is a named bundle of permissions assignable to groups.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is the list view of a role with usage counts.
type Summary struct {
	Role
	GroupCount      int `json:"group_count"`
	PermissionCount int `json:"permission_count"`
}

// PermissionSummary is a granted permission as shown on a role.
type PermissionSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Action     string `json:"action"`
	ModuleID   int64  `json:"module_id"`
	ModuleName string `json:"module_name"`
}

// GroupSummary is a group that carries this role.
type GroupSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Detail is the full view of a role.
type Detail struct {
	Role
	Permissions []PermissionSummary `json:"permissions"`
	Groups      []GroupSummary      `json:"groups"`
}
