package types

import (
	"fmt"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
)

// AssetRef identifies one unit (or counted batch) of a collectible asset.
// Quantity must be 1 for unique assets and may exceed 1 for counted assets.
type AssetRef struct {
	Kind     enums.AssetKind `json:"kind"`
	TokenID  int64           `json:"token_id"`
	Quantity int64           `json:"quantity"`
}

// Validate checks the invariants the custody layer relies on.
func (r AssetRef) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid asset kind %q", r.Kind)
	}
	if r.TokenID <= 0 {
		return fmt.Errorf("token id must be positive")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if r.Kind == enums.AssetKindUnique && r.Quantity != 1 {
		return fmt.Errorf("unique assets carry exactly one unit")
	}
	return nil
}
