package domain

import (
	"errors"
	"strings"
)

// ErrUnknownRole is returned for any role discriminant outside the fixed set.
var ErrUnknownRole = errors.New("unknown role")

// Role is the discriminant selecting which RoleExtension variant applies to an identity.
type Role string

const (
	RoleBusiness        Role = "business"
	RoleProfessional    Role = "professional"
	RoleCapitalProvider Role = "capital_provider"
	RoleInstitution     Role = "institution"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleBusiness, RoleProfessional, RoleCapitalProvider, RoleInstitution}

// ParseRole normalizes s and returns the matching Role, or ErrUnknownRole.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleBusiness, RoleProfessional, RoleCapitalProvider, RoleInstitution:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// Label is the human-readable role name used in review output.
func (r Role) Label() string {
	switch r {
	case RoleBusiness:
		return "Business"
	case RoleProfessional:
		return "Independent professional"
	case RoleCapitalProvider:
		return "Capital provider"
	case RoleInstitution:
		return "Public institution"
	default:
		return string(r)
	}
}
