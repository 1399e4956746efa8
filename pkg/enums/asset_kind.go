package enums

import "fmt"

// AssetKind distinguishes the two custody families the engine supports.
type AssetKind string

const (
	// AssetKindUnique is a single-copy collectible (quantity is always 1).
	AssetKindUnique AssetKind = "unique"
	// AssetKindCounted is a semi-fungible collectible minted in counted units.
	AssetKindCounted AssetKind = "counted"
)

var validAssetKinds = []AssetKind{
	AssetKindUnique,
	AssetKindCounted,
}

// IsValid reports whether the value matches the canonical asset kind enum.
func (a AssetKind) IsValid() bool {
	for _, candidate := range validAssetKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssetKind converts the raw string to AssetKind.
func ParseAssetKind(value string) (AssetKind, error) {
	for _, candidate := range validAssetKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid asset kind %q", value)
}
