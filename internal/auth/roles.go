package auth

import (
	"fmt"
	"strings"
)

// Role is a user's authority level in the console.
type Role string

const (
	RoleServiceAdmin      Role = "SERVICE_ADMIN"
	RoleOrganizationAdmin Role = "ORGANIZATION_ADMIN"
	RoleBusinessUnitAdmin Role = "BUSINESS_UNIT_ADMIN"
	RoleGeneralUser       Role = "GENERAL_USER"
)

// Roles lists the built-in roles from most to least privileged.
var Roles = []Role{
	RoleServiceAdmin,
	RoleOrganizationAdmin,
	RoleBusinessUnitAdmin,
	RoleGeneralUser,
}

// Known reports whether r is one of the built-in roles.
func (r Role) Known() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole normalizes raw (trimmed, upper-cased, dashes as underscores) and
// checks it against the built-in roles.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), "-", "_"))
	if role == "" {
		return "", fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	if !role.Known() {
		return "", fmt.Errorf("%w: unknown role %s", ErrInvalidInput, raw)
	}
	return role, nil
}
