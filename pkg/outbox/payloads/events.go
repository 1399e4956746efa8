package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// ListingCreatedEvent signals a new listing entering the market.
type ListingCreatedEvent struct {
	ListingID  int64           `json:"listing_id"`
	Seller     types.Address   `json:"seller"`
	Mode       enums.ListingMode `json:"mode"`
	AssetKind  enums.AssetKind `json:"asset_kind"`
	TokenID    int64           `json:"token_id"`
	Quantity   int64           `json:"quantity"`
	PriceCents int64           `json:"price_cents"`
	EndsAt     *time.Time      `json:"ends_at,omitempty"`
}

// ListingCancelledEvent is emitted when a seller reclaims an unsold listing.
type ListingCancelledEvent struct {
	ListingID   int64         `json:"listing_id"`
	Seller      types.Address `json:"seller"`
	CancelledAt time.Time     `json:"cancelled_at"`
}

// ListingSoldEvent is emitted when a fixed-price listing settles.
type ListingSoldEvent struct {
	ListingID       int64         `json:"listing_id"`
	Seller          types.Address `json:"seller"`
	Buyer           types.Address `json:"buyer"`
	PriceCents      int64         `json:"price_cents"`
	CommissionCents int64         `json:"commission_cents"`
	SettledAt       time.Time     `json:"settled_at"`
}

// BidPlacedEvent records a directly placed bid.
type BidPlacedEvent struct {
	BidID        uuid.UUID     `json:"bid_id"`
	ListingID    int64         `json:"listing_id"`
	Bidder       types.Address `json:"bidder"`
	AmountCents  int64         `json:"amount_cents"`
	CeilingCents int64         `json:"ceiling_cents,omitempty"`
}

// BidAutoRaisedEvent records a counter-bid issued on behalf of a ceiling bidder.
type BidAutoRaisedEvent struct {
	BidID       uuid.UUID     `json:"bid_id"`
	ListingID   int64         `json:"listing_id"`
	Bidder      types.Address `json:"bidder"`
	AmountCents int64         `json:"amount_cents"`
}

// BidRefundedEvent is emitted when escrowed funds return to a bidder's credit.
type BidRefundedEvent struct {
	BidID       uuid.UUID     `json:"bid_id"`
	ListingID   int64         `json:"listing_id"`
	Bidder      types.Address `json:"bidder"`
	AmountCents int64         `json:"amount_cents"`
}

// AuctionFinishedEvent reports the outcome of a finished auction. Winner is
// empty when the auction closed without bids and the asset returned to the
// seller.
type AuctionFinishedEvent struct {
	ListingID       int64         `json:"listing_id"`
	Seller          types.Address `json:"seller"`
	Winner          types.Address `json:"winner,omitempty"`
	HammerCents     int64         `json:"hammer_cents"`
	CommissionCents int64         `json:"commission_cents"`
	FinishedAt      time.Time     `json:"finished_at"`
}

// FundsWithdrawnEvent is emitted when a trader pulls credit out of the ledger.
type FundsWithdrawnEvent struct {
	Address     types.Address `json:"address"`
	AmountCents int64         `json:"amount_cents"`
	WithdrawnAt time.Time     `json:"withdrawn_at"`
}
