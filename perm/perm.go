// Package perm derives what a board role may do.
package perm

import "lini/domain"

// Capabilities is the capability set derived from a role. It is never stored;
// call For whenever a role is known.
type Capabilities struct {
	Role domain.Role
}

// For returns the capability set of role.
func For(role domain.Role) Capabilities {
	return Capabilities{Role: role}
}

// ManageLists reports whether the role may create, rename, delete and reorder
// lists.
func (c Capabilities) ManageLists() bool {
	return c.Role == domain.RoleAdmin || c.Role == domain.RoleMentor
}

// ManageCards reports whether the role may create, edit, move and delete
// cards.
func (c Capabilities) ManageCards() bool {
	return c.Role == domain.RoleAdmin || c.Role == domain.RoleMentor || c.Role == domain.RoleStudent
}

// Reset reports whether the role may reset the whole board.
func (c Capabilities) Reset() bool {
	return c.Role == domain.RoleAdmin
}

// ManageRoles reports whether the role may change other members' roles.
func (c Capabilities) ManageRoles() bool {
	return c.Role == domain.RoleAdmin
}

// Read reports whether the role may view the board at all.
func (c Capabilities) Read() bool {
	return c.Role.Valid()
}
