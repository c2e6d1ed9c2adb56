package authz

import (
	"fmt"
	"strings"
)

// Role is a user's privilege level inside the organization they belong to.
type Role string

const (
	RoleGuest  Role = "GUEST"
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
	RoleOwner  Role = "OWNER"
)

// Roles lists every valid role, highest rank first.
var Roles = []Role{RoleOwner, RoleAdmin, RoleMember, RoleGuest}

// Rank returns the position of the role in the total order
// OWNER(4) > ADMIN(3) > MEMBER(2) > GUEST(1). Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleGuest:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r dominates required.
func (r Role) AtLeast(required Role) bool {
	if !r.Valid() || !required.Valid() {
		return false
	}
	return r.Rank() >= required.Rank()
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts user input such as "admin" into a Role.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// Satisfies reports whether actual dominates at least one role of required.
// A single match is enough.
func Satisfies(actual Role, required []Role) bool {
	for _, r := range required {
		if actual.AtLeast(r) {
			return true
		}
	}
	return false
}
