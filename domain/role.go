package domain

import "strings"

// Role is a board member's role. It is supplied by the hosting service and
// never changes for the lifetime of a controller.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleMentor    Role = "mentor"
	RoleStudent   Role = "student"
	RoleSpectator Role = "spectator"
	// RoleNone is any caller without a recognized membership.
	RoleNone Role = ""
)

// MemberRoles lists the roles a board member may hold.
var MemberRoles = []Role{RoleAdmin, RoleMentor, RoleStudent, RoleSpectator}

// ParseRole maps a raw role value onto a known role. Unrecognized values map
// to RoleNone.
func ParseRole(raw string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if r.Valid() {
		return r
	}
	return RoleNone
}

// Valid reports whether r is one of the member roles.
func (r Role) Valid() bool {
	for _, m := range MemberRoles {
		if r == m {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	if r == RoleNone {
		return "other"
	}
	return string(r)
}
