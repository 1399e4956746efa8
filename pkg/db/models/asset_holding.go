package models

import (
	"time"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// AssetHolding tracks how many units of a token an address controls inside the
// custody registry. Unique tokens hold at most one unit across all owners.
type AssetHolding struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	AssetKind enums.AssetKind `gorm:"column:asset_kind;type:text;not null;uniqueIndex:ux_asset_holdings_owner,priority:1"`
	TokenID   int64           `gorm:"column:token_id;not null;uniqueIndex:ux_asset_holdings_owner,priority:2"`
	Owner     types.Address   `gorm:"column:owner;type:text;not null;uniqueIndex:ux_asset_holdings_owner,priority:3"`
	Quantity  int64           `gorm:"column:quantity;not null;default:0"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// AssetApproval authorizes an operator address to pull custody on behalf of
// an owner, the registry analogue of a blanket transfer approval.
type AssetApproval struct {
	ID        int64         `gorm:"column:id;primaryKey;autoIncrement"`
	Owner     types.Address `gorm:"column:owner;type:text;not null;uniqueIndex:ux_asset_approvals_pair,priority:1"`
	Operator  types.Address `gorm:"column:operator;type:text;not null;uniqueIndex:ux_asset_approvals_pair,priority:2"`
	Approved  bool          `gorm:"column:approved;not null;default:false"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
