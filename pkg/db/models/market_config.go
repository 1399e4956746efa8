package models

import (
	"time"

	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// MarketConfig is the singleton operator-controlled configuration row.
// Commission percentages are read at settlement time only, so changes never
// apply retroactively to already-settled listings.
type MarketConfig struct {
	ID                     int64         `gorm:"column:id;primaryKey"`
	OperatorAddress        types.Address `gorm:"column:operator_address;type:text;not null"`
	ListingFeeCents        int64         `gorm:"column:listing_fee_cents;not null"`
	AuctionListingFeeCents int64         `gorm:"column:auction_listing_fee_cents;not null"`
	FixedCommissionPct     int64         `gorm:"column:fixed_commission_pct;not null"`
	AuctionCommissionPct   int64         `gorm:"column:auction_commission_pct;not null"`
	MinBidIncrementCents   int64         `gorm:"column:min_bid_increment_cents;not null"`
	MinHoldSeconds         int64         `gorm:"column:min_hold_seconds;not null"`
	UniqueAdapterAddress   string        `gorm:"column:unique_adapter_address;type:text;not null;default:''"`
	CountedAdapterAddress  string        `gorm:"column:counted_adapter_address;type:text;not null;default:''"`
	UpdatedAt              time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// MarketConfigID is the fixed primary key of the singleton row.
const MarketConfigID int64 = 1

// MinHold returns the configured grace period as a duration.
func (m MarketConfig) MinHold() time.Duration {
	return time.Duration(m.MinHoldSeconds) * time.Second
}
