package entities

import "strings"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Rank orders roles admin > user > guest; unknown roles rank lowest.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleUser:
		return 2
	case RoleGuest:
		return 1
	default:
		return 0
	}
}

func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleGuest
	}
}

// Actor is the authenticated caller resolved at the transport edge.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) Authenticated() bool {
	return strings.TrimSpace(a.UserID) != ""
}
