// Package permissions manages individual (module, action) capabilities.
package permissions

import "time"

// Permission allows one action on one module. The (action, module) pair is
// the permission's identity; the name is display metadata.
type Permission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Action    string    `json:"action"`
	ModuleID  int64     `json:"module_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the list view of a permission with its module name and the
// number of roles it is granted to.
type Summary struct {
	Permission
	ModuleName string `json:"module_name"`
	RoleCount  int    `json:"role_count"`
}

// RoleSummary is a role holding this permission.
type RoleSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Detail is the full view of a permission.
type Detail struct {
	Permission
	ModuleName string        `json:"module_name"`
	Roles      []RoleSummary `json:"roles"`
}
