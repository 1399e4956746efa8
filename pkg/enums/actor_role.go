package enums

import "fmt"

// ActorRole is the role carried in an access token.
type ActorRole string

const (
	// ActorRoleTrader is a regular marketplace participant (seller or bidder).
	ActorRoleTrader ActorRole = "trader"
	// ActorRoleOperator may mutate marketplace configuration and mint dev assets.
	ActorRoleOperator ActorRole = "operator"
)

var validActorRoles = []ActorRole{
	ActorRoleTrader,
	ActorRoleOperator,
}

// IsValid reports whether the value matches the canonical actor role enum.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts the raw string to ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
