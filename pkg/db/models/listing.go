package models

import (
	"time"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// Listing represents one asset unit (or counted batch) offered for sale. The
// asset stays under engine custody for the whole interval between Listed and
// any terminal state.
type Listing struct {
	ID              int64              `gorm:"column:id;primaryKey;autoIncrement"`
	AssetKind       enums.AssetKind    `gorm:"column:asset_kind;type:text;not null"`
	TokenID         int64              `gorm:"column:token_id;not null"`
	Quantity        int64              `gorm:"column:quantity;not null;default:1"`
	Seller          types.Address      `gorm:"column:seller;type:text;not null"`
	Mode            enums.ListingMode  `gorm:"column:mode;type:text;not null"`
	PriceCents      int64              `gorm:"column:price_cents;not null;default:0"`
	StartPriceCents int64              `gorm:"column:start_price_cents;not null;default:0"`
	HighBidCents    int64              `gorm:"column:high_bid_cents;not null;default:0"`
	HighBidder      *types.Address     `gorm:"column:high_bidder;type:text"`
	BidCount        int                `gorm:"column:bid_count;not null;default:0"`
	ListingFeeCents int64              `gorm:"column:listing_fee_cents;not null;default:0"`
	State           enums.ListingState `gorm:"column:state;type:text;not null;default:'created'"`
	Buyer           *types.Address     `gorm:"column:buyer;type:text"`
	MinHoldUntil    time.Time          `gorm:"column:min_hold_until;not null"`
	AuctionEndsAt   *time.Time         `gorm:"column:auction_ends_at"`
	SettledAt       *time.Time         `gorm:"column:settled_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// AssetRef rebuilds the custody reference for this listing.
func (l Listing) AssetRef() types.AssetRef {
	return types.AssetRef{
		Kind:     l.AssetKind,
		TokenID:  l.TokenID,
		Quantity: l.Quantity,
	}
}

// IsAuction reports whether the listing is sold by auction.
func (l Listing) IsAuction() bool {
	return l.Mode == enums.ListingModeAuction
}
