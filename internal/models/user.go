package models

import (
	"strings"
	"time"
)

// Role is a member's role inside a family
type Role string

const (
	RoleNone   Role = ""
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Valid reports whether the role is parent or child
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

// ParseRole converts free-form input into a Role, returning RoleNone when unknown
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleParent:
		return RoleParent
	case RoleChild:
		return RoleChild
	default:
		return RoleNone
	}
}

// User is the engine's view of an identity issued by the external identity provider
type User struct {
	ID        string
	FamilyID  *string // Nil when the user is not in a family
	Role      Role    // RoleNone when the user is not in a family
	JoinedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasFamily reports whether the user currently belongs to a family
func (u *User) HasFamily() bool {
	return u.FamilyID != nil && *u.FamilyID != ""
}

// InFamily reports whether the user currently belongs to the given family
func (u *User) InFamily(familyID string) bool {
	return u.HasFamily() && *u.FamilyID == familyID
}
