package enums

import "fmt"

// ListingMode describes how a listing is sold.
type ListingMode string

const (
	ListingModeFixedPrice ListingMode = "fixed_price"
	ListingModeAuction    ListingMode = "auction"
)

var validListingModes = []ListingMode{
	ListingModeFixedPrice,
	ListingModeAuction,
}

// IsValid reports whether the value matches the canonical listing mode enum.
func (m ListingMode) IsValid() bool {
	for _, candidate := range validListingModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseListingMode converts the raw string to ListingMode.
func ParseListingMode(value string) (ListingMode, error) {
	for _, candidate := range validListingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing mode %q", value)
}
