package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of staff roles a connection can be bound to.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleCoordinator  Role = "coordinator"
	RoleTechnician   Role = "technician"
	RoleReceptionist Role = "receptionist"
)

// validRoles is the closed enumeration checked at the registry boundary.
var validRoles = map[Role]bool{
	RoleAdmin:        true,
	RoleManager:      true,
	RoleCoordinator:  true,
	RoleTechnician:   true,
	RoleReceptionist: true,
}

// ParseRole normalizes and validates a role string against the closed set.
// Unknown roles are rejected rather than silently creating rooms for them.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !validRoles[role] {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// IsValid reports whether the role belongs to the closed set.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}
