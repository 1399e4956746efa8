package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/internal/bidding"
	"github.com/okabe-dev/bidhouse-backend/internal/listings"
	"github.com/okabe-dev/bidhouse-backend/pkg/clock"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/metrics"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox/payloads"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type custodyAdapter interface {
	Transfer(ctx context.Context, tx *gorm.DB, ref types.AssetRef, from, to types.Address) error
}

type ledgerWriter interface {
	ConsumeEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error
	ReleaseEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error
	GrantCredit(ctx context.Context, tx *gorm.DB, entryType enums.LedgerEntryType, address types.Address, amountCents int64, listingID *int64) error
}

type marketReader interface {
	Get(ctx context.Context) (*models.MarketConfig, error)
}

// Service closes listings: it splits the sale amount between seller and
// operator, moves custody to the buyer and writes the terminal listing state.
// Commission percentages are read at settlement time, never at listing time.
type Service interface {
	SettleFixedPrice(ctx context.Context, tx *gorm.DB, listing *models.Listing, cfg *models.MarketConfig, buyer types.Address) (int64, error)
	RefundActiveBids(ctx context.Context, tx *gorm.DB, listing *models.Listing) error
	FinishAuction(ctx context.Context, input FinishInput) (*FinishResult, error)
}

// FinishInput identifies the auction to close. Any actor may finish an
// auction once the hold period has passed.
type FinishInput struct {
	ListingID int64
	Actor     types.Address
}

// FinishResult reports the auction outcome. Winner is empty when the auction
// closed without bids and the asset returned to the seller.
type FinishResult struct {
	ListingID       int64         `json:"listing_id"`
	Winner          types.Address `json:"winner"`
	HammerCents     int64         `json:"hammer_cents"`
	CommissionCents int64         `json:"commission_cents"`
	ProceedsCents   int64         `json:"proceeds_cents"`
}

type service struct {
	listings listings.Repository
	bids     bidding.Repository
	tx       txRunner
	market   marketReader
	ledger   ledgerWriter
	custody  custodyAdapter
	outbox   outboxPublisher
	metrics  *metrics.MarketMetrics
	clock    clock.Clock
}

// NewService wires the settlement engine. Metrics may be nil.
func NewService(
	listingRepo listings.Repository,
	bidRepo bidding.Repository,
	tx txRunner,
	market marketReader,
	ledger ledgerWriter,
	custody custodyAdapter,
	publisher outboxPublisher,
	marketMetrics *metrics.MarketMetrics,
	clk clock.Clock,
) (Service, error) {
	if listingRepo == nil || bidRepo == nil || tx == nil || market == nil || ledger == nil || custody == nil || publisher == nil {
		return nil, fmt.Errorf("settlement service requires listing repo, bid repo, tx runner, market, ledger, custody and publisher")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{
		listings: listingRepo,
		bids:     bidRepo,
		tx:       tx,
		market:   market,
		ledger:   ledger,
		custody:  custody,
		outbox:   publisher,
		metrics:  marketMetrics,
		clock:    clk,
	}, nil
}

// SettleFixedPrice runs inside the caller's transaction: the buyer's payment
// is already deposited and the listing row is already locked. It returns the
// commission retained by the operator.
func (s *service) SettleFixedPrice(ctx context.Context, tx *gorm.DB, listing *models.Listing, cfg *models.MarketConfig, buyer types.Address) (int64, error) {
	commission := commissionFor(listing.PriceCents, cfg.FixedCommissionPct)
	proceeds := listing.PriceCents - commission

	if proceeds > 0 {
		if err := s.ledger.GrantCredit(ctx, tx, enums.LedgerEntrySaleProceeds, listing.Seller, proceeds, &listing.ID); err != nil {
			return 0, err
		}
	}
	if commission > 0 {
		if err := s.ledger.GrantCredit(ctx, tx, enums.LedgerEntryCommission, cfg.OperatorAddress, commission, &listing.ID); err != nil {
			return 0, err
		}
	}
	if err := s.custody.Transfer(ctx, tx, listing.AssetRef(), types.EngineEscrowAddress, buyer); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	if err := s.listings.WithTx(tx).Update(ctx, listing.ID, map[string]any{
		"state":      enums.ListingStateSold,
		"buyer":      buyer,
		"settled_at": now,
	}); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark listing sold")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventListingSold,
		AggregateType: enums.AggregateListing,
		AggregateID:   fmt.Sprintf("%d", listing.ID),
		Version:       1,
		Actor:         &outbox.ActorRef{Address: buyer, Role: string(enums.ActorRoleTrader)},
		OccurredAt:    now,
		Data: payloads.ListingSoldEvent{
			ListingID:       listing.ID,
			Seller:          listing.Seller,
			Buyer:           buyer,
			PriceCents:      listing.PriceCents,
			CommissionCents: commission,
			SettledAt:       now,
		},
	}); err != nil {
		return 0, err
	}

	listing.State = enums.ListingStateSold
	listing.Buyer = &buyer
	listing.SettledAt = &now

	s.metrics.IncListingClosed("sold")
	s.metrics.ObserveSettlement(string(enums.ListingModeFixedPrice), now.Sub(listing.CreatedAt))
	return commission, nil
}

// RefundActiveBids converts every active bid's escrow back to bidder credit
// inside the caller's transaction. Used when an auction is withdrawn after
// the hold period.
func (s *service) RefundActiveBids(ctx context.Context, tx *gorm.DB, listing *models.Listing) error {
	return s.refundActiveBids(ctx, tx, listing, s.clock.Now())
}

func (s *service) refundActiveBids(ctx context.Context, tx *gorm.DB, listing *models.Listing, now time.Time) error {
	bidRepo := s.bids.WithTx(tx)
	actives, err := bidRepo.ListActiveByListing(ctx, listing.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active bids")
	}
	for i := range actives {
		bid := &actives[i]
		if err := s.ledger.ReleaseEscrow(ctx, tx, bid.Bidder, bid.EscrowCents, listing.ID); err != nil {
			return err
		}
		if err := bidRepo.Update(ctx, bid.ID, map[string]any{
			"state": enums.BidStateRefunded,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund bid")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidRefunded,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID.String(),
			Version:       1,
			OccurredAt:    now,
			Data: payloads.BidRefundedEvent{
				BidID:       bid.ID,
				ListingID:   listing.ID,
				Bidder:      bid.Bidder,
				AmountCents: bid.EscrowCents,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) FinishAuction(ctx context.Context, input FinishInput) (*FinishResult, error) {
	cfg, err := s.market.Get(ctx)
	if err != nil {
		return nil, err
	}

	var result *FinishResult
	var outcome string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		listingRepo := s.listings.WithTx(tx)
		listing, err := listingRepo.GetForUpdate(ctx, input.ListingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock listing")
		}
		if !listing.IsAuction() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not an auction")
		}
		if listing.State != enums.ListingStateListed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("listing is %s, not listed", listing.State))
		}
		now := s.clock.Now()
		if now.Before(listing.MinHoldUntil) {
			return pkgerrors.New(pkgerrors.CodeTooEarlyToFinish,
				fmt.Sprintf("auction is held until %s", listing.MinHoldUntil.UTC().Format("2006-01-02T15:04:05Z")))
		}

		if listing.HighBidder == nil {
			return s.finishWithoutSale(ctx, tx, listingRepo, listing, now, &result, &outcome)
		}
		return s.finishWithWinner(ctx, tx, listingRepo, listing, cfg, now, &result, &outcome)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncListingClosed(outcome)
	return result, nil
}

func (s *service) finishWithoutSale(
	ctx context.Context,
	tx *gorm.DB,
	listingRepo listings.Repository,
	listing *models.Listing,
	now time.Time,
	result **FinishResult,
	outcome *string,
) error {
	if err := s.custody.Transfer(ctx, tx, listing.AssetRef(), types.EngineEscrowAddress, listing.Seller); err != nil {
		return err
	}
	if err := listingRepo.Update(ctx, listing.ID, map[string]any{
		"state":      enums.ListingStateCancelled,
		"settled_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close auction without sale")
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAuctionFinished,
		AggregateType: enums.AggregateListing,
		AggregateID:   fmt.Sprintf("%d", listing.ID),
		Version:       1,
		OccurredAt:    now,
		Data: payloads.AuctionFinishedEvent{
			ListingID:  listing.ID,
			Seller:     listing.Seller,
			FinishedAt: now,
		},
	}); err != nil {
		return err
	}
	*result = &FinishResult{ListingID: listing.ID}
	*outcome = "no_sale"
	s.metrics.ObserveSettlement(string(enums.ListingModeAuction), now.Sub(listing.CreatedAt))
	return nil
}

func (s *service) finishWithWinner(
	ctx context.Context,
	tx *gorm.DB,
	listingRepo listings.Repository,
	listing *models.Listing,
	cfg *models.MarketConfig,
	now time.Time,
	result **FinishResult,
	outcome *string,
) error {
	bidRepo := s.bids.WithTx(tx)
	winner := *listing.HighBidder

	winning, err := bidRepo.GetActiveByBidder(ctx, listing.ID, winner)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "winning bid is not active")
	}

	hammer := listing.HighBidCents
	commission := commissionFor(hammer, cfg.AuctionCommissionPct)
	proceeds := hammer - commission

	if err := s.ledger.ConsumeEscrow(ctx, tx, winner, hammer, listing.ID); err != nil {
		return err
	}
	if remainder := winning.EscrowCents - hammer; remainder > 0 {
		if err := s.ledger.ReleaseEscrow(ctx, tx, winner, remainder, listing.ID); err != nil {
			return err
		}
	}
	if err := bidRepo.Update(ctx, winning.ID, map[string]any{
		"state": enums.BidStateConsumed,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume winning bid")
	}

	// Any straggler escrow goes back to its bidder before the books close.
	if err := s.refundActiveBids(ctx, tx, listing, now); err != nil {
		return err
	}

	if proceeds > 0 {
		if err := s.ledger.GrantCredit(ctx, tx, enums.LedgerEntrySaleProceeds, listing.Seller, proceeds, &listing.ID); err != nil {
			return err
		}
	}
	if commission > 0 {
		if err := s.ledger.GrantCredit(ctx, tx, enums.LedgerEntryCommission, cfg.OperatorAddress, commission, &listing.ID); err != nil {
			return err
		}
	}
	if err := s.custody.Transfer(ctx, tx, listing.AssetRef(), types.EngineEscrowAddress, winner); err != nil {
		return err
	}
	if err := listingRepo.Update(ctx, listing.ID, map[string]any{
		"state":      enums.ListingStateFinalized,
		"buyer":      winner,
		"settled_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize auction")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAuctionFinished,
		AggregateType: enums.AggregateListing,
		AggregateID:   fmt.Sprintf("%d", listing.ID),
		Version:       1,
		OccurredAt:    now,
		Data: payloads.AuctionFinishedEvent{
			ListingID:       listing.ID,
			Seller:          listing.Seller,
			Winner:          winner,
			HammerCents:     hammer,
			CommissionCents: commission,
			FinishedAt:      now,
		},
	}); err != nil {
		return err
	}

	*result = &FinishResult{
		ListingID:       listing.ID,
		Winner:          winner,
		HammerCents:     hammer,
		CommissionCents: commission,
		ProceedsCents:   proceeds,
	}
	*outcome = "finalized"
	s.metrics.ObserveSettlement(string(enums.ListingModeAuction), now.Sub(listing.CreatedAt))
	return nil
}

// commissionFor computes the operator's cut, rounding half away from zero.
func commissionFor(amountCents, pct int64) int64 {
	if amountCents <= 0 || pct <= 0 {
		return 0
	}
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
