// Package rbac implements the authorization core: effective-permission
// resolution, bulk relation assignment, and the permission gate middleware.
package rbac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/warden-app/warden/internal/platform/httpx"
)

// Actions permissions can be scoped to.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Actions lists every valid permission action.
var Actions = []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// ValidAction reports whether s names a known action.
func ValidAction(s string) bool {
	switch s {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// EffectivePermission is one resolved (module, action) capability for a user.
type EffectivePermission struct {
	PermissionID int64  `json:"permissionId"`
	ModuleID     int64  `json:"moduleId"`
	ModuleName   string `json:"moduleName"`
	Action       string `json:"action"`
}

// Relation describes one of the many-to-many join tables the coordinator
// can mutate. Table and column names are fixed package-level values, never
// caller input.
type Relation struct {
	Table             string
	AnchorTable       string
	AnchorColumn      string
	AnchorNoun        string
	CounterpartTable  string
	CounterpartColumn string
	CounterpartNoun   string
}

// The three relations of the access-control graph.
var (
	// Memberships links users into groups, anchored on the group.
	Memberships = Relation{
		Table:             "memberships",
		AnchorTable:       "groups",
		AnchorColumn:      "group_id",
		AnchorNoun:        "group",
		CounterpartTable:  "users",
		CounterpartColumn: "user_id",
		CounterpartNoun:   "user",
	}

	// UserMemberships is the memberships table anchored on the user, for
	// assigning groups from the user side.
	UserMemberships = Relation{
		Table:             "memberships",
		AnchorTable:       "users",
		AnchorColumn:      "user_id",
		AnchorNoun:        "user",
		CounterpartTable:  "groups",
		CounterpartColumn: "group_id",
		CounterpartNoun:   "group",
	}

	// RoleAssignments links roles onto groups, anchored on the group.
	RoleAssignments = Relation{
		Table:             "role_assignments",
		AnchorTable:       "groups",
		AnchorColumn:      "group_id",
		AnchorNoun:        "group",
		CounterpartTable:  "roles",
		CounterpartColumn: "role_id",
		CounterpartNoun:   "role",
	}

	// Grants links permissions onto roles, anchored on the role.
	Grants = Relation{
		Table:             "grants",
		AnchorTable:       "roles",
		AnchorColumn:      "role_id",
		AnchorNoun:        "role",
		CounterpartTable:  "permissions",
		CounterpartColumn: "permission_id",
		CounterpartNoun:   "permission",
	}
)

// ItemFailure reports one counterpart that could not be attached.
type ItemFailure struct {
	CounterpartID int64  `json:"counterpartId"`
	Reason        string `json:"reason"`
}

// AttachResult is the outcome of a successful bulk attach.
type AttachResult struct {
	AnchorID       int64
	Added          int
	CounterpartIDs []int64
}

// MissingCounterpartsError reports counterpart ids that failed the
// existence pre-check. No relation rows were written.
type MissingCounterpartsError struct {
	Noun string
	IDs  []int64
}

func (e *MissingCounterpartsError) Error() string {
	return fmt.Sprintf("%ss do not exist: %s", e.Noun, joinIDs(e.IDs))
}

// Is marks the error as an invalid-argument condition.
func (e *MissingCounterpartsError) Is(target error) bool {
	return target == httpx.ErrInvalidArgument
}

// BatchError aggregates per-item mutation failures. The whole batch was
// rolled back; nothing was applied.
type BatchError struct {
	Failures []ItemFailure
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of the requested assignments failed", len(e.Failures))
}

// Is marks the error as an invalid-argument condition.
func (e *BatchError) Is(target error) bool {
	return target == httpx.ErrInvalidArgument
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
