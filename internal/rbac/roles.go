package rbac

import (
	"errors"
	"strings"
)

// ErrInvalidRole is returned when a role string is not one of the known roles
var ErrInvalidRole = errors.New("invalid organization role")

// Role represents a user's role within an organization
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
	RoleViewer  Role = "VIEWER"
)

// Roles lists every role from most to least privileged.
var Roles = []Role{RoleOwner, RoleAdmin, RoleManager, RoleMember, RoleViewer}

// roleLevel defines the role hierarchy (higher number = more permissions)
var roleLevel = map[Role]int{
	RoleViewer:  1,
	RoleMember:  2,
	RoleManager: 3,
	RoleAdmin:   4,
	RoleOwner:   5,
}

// Priority returns the position of the role in the hierarchy.
// Unknown roles have priority 0 and never satisfy a requirement.
func (r Role) Priority() int {
	return roleLevel[r]
}

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	_, ok := roleLevel[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// AtLeast reports whether actual is the same as or above required
func AtLeast(actual, required Role) bool {
	if !actual.IsValid() || !required.IsValid() {
		return false
	}
	return actual.Priority() >= required.Priority()
}

// ParseRole converts user input into a Role. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", ErrInvalidRole
	}
	return r, nil
}
