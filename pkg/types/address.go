package types

import (
	"fmt"
	"strings"
)

// Address identifies a funds/custody account known to the engine. Addresses are
// opaque caller-supplied identifiers; the engine only compares them for equality.
type Address string

// EngineEscrowAddress is the internal account that holds custody of listed
// assets and escrowed funds between listing and settlement.
const EngineEscrowAddress Address = "engine:escrow"

const maxAddressLen = 128

// ParseAddress normalizes and validates a raw address string.
func ParseAddress(value string) (Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("address is required")
	}
	if len(trimmed) > maxAddressLen {
		return "", fmt.Errorf("address exceeds %d characters", maxAddressLen)
	}
	return Address(trimmed), nil
}

func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}
