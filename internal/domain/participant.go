package domain

import "strings"

// Role is the marketplace side a participant acts on.
type Role string

const (
	// RoleBuyer files quote requests.
	RoleBuyer Role = "buyer"
	// RoleLender responds to quote requests with quotes.
	RoleLender Role = "lender"
	// RoleUnknown is used when the identity collaborator supplied no role.
	RoleUnknown Role = ""
)

// ParseRole normalizes a role string. Unrecognized values map to RoleUnknown.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleBuyer:
		return RoleBuyer
	case RoleLender:
		return RoleLender
	default:
		return RoleUnknown
	}
}

// Participant is a buyer or lender as reported by the identity collaborator.
type Participant struct {
	ID   string `json:"id"`
	Role Role   `json:"role,omitempty"`
}

// IsLender returns true if the participant acts on the lender side.
func (p Participant) IsLender() bool {
	return p.Role == RoleLender
}
