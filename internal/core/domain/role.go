package domain

import (
	"errors"
	"strings"
)

// Role is the single authorization category of an identity.
type Role string

const (
	RoleUnset    Role = ""
	RoleFarmer   Role = "farmer"
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

var ErrInvalidRole = errors.New("invalid role")

// Roles lists every assignable role.
var Roles = []Role{RoleFarmer, RoleBuyer, RoleSupplier, RoleAdmin}

// ParseRole maps a backend role value onto the enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return RoleUnset, ErrInvalidRole
	}
	return r, nil
}

// Valid reports whether r is one of the assignable roles. RoleUnset is not valid.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleSupplier, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Theme is the role-keyed presentation tag applied to the UI root.
// The zero value means no tag.
type Theme string

const ThemeNone Theme = ""

// ThemeFor derives the presentation tag for a role. It is the only place a
// tag is computed, so a role always maps to exactly one tag.
func ThemeFor(r Role) Theme {
	if !r.Valid() {
		return ThemeNone
	}
	return Theme(string(r) + "-theme")
}

// Dashboard routes handed to the UI shell.
const (
	RouteLoading = "loading"
	RouteAuth    = "/auth"
)

// DashboardRoute picks the screen for the current state. An authenticated
// identity without a known dashboard role falls back to the auth route.
func DashboardRoute(loading bool, user *User, r Role) string {
	switch {
	case loading:
		return RouteLoading
	case user == nil:
		return RouteAuth
	}
	switch r {
	case RoleFarmer, RoleBuyer, RoleSupplier:
		return "/dashboard/" + string(r)
	default:
		return RouteAuth
	}
}
