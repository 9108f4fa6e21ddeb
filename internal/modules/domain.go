// Package modules manages protected application modules and seeds their
// default CRUD permissions.
package modules

import (
	"strings"
	"time"
	"unicode"
)

// Module is a protected area of the application that permissions refer to.
type Module struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is the list view of a module with its permission count.
type Summary struct {
	Module
	PermissionCount int `json:"permission_count"`
}

// PermissionSummary is a permission as shown on a module.
type PermissionSummary struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

// Detail is the full view of a module.
type Detail struct {
	Module
	Permissions []PermissionSummary `json:"permissions"`
}

// PermissionName derives the default permission name for an action on a
// module, e.g. "read_user_management" for action "read" on "User Management".
func PermissionName(action, moduleName string) string {
	return action + "_" + snakeCase(moduleName)
}

func snakeCase(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteByte('_')
		}
	}
	return b.String()
}
