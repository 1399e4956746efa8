package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// Bid is an offer against an auction listing. EscrowCents is the total the
// engine holds for this bid: the ceiling when one was declared, otherwise the
// bid amount. AmountCents never exceeds EscrowCents while the bid is active.
type Bid struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID    int64          `gorm:"column:listing_id;not null;index:ix_bids_listing"`
	Bidder       types.Address  `gorm:"column:bidder;type:text;not null"`
	AmountCents  int64          `gorm:"column:amount_cents;not null"`
	CeilingCents int64          `gorm:"column:ceiling_cents;not null;default:0"`
	EscrowCents  int64          `gorm:"column:escrow_cents;not null"`
	State        enums.BidState `gorm:"column:state;type:text;not null;default:'active'"`
	PlacedAt     time.Time      `gorm:"column:placed_at;not null"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// HasCeiling reports whether this bid authorized automatic re-bidding.
func (b Bid) HasCeiling() bool {
	return b.CeilingCents > 0
}
