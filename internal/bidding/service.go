package bidding

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

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

type ledgerWriter interface {
	Deposit(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID *int64) error
	LockEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error
	ReleaseEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error
	GrantCredit(ctx context.Context, tx *gorm.DB, entryType enums.LedgerEntryType, address types.Address, amountCents int64, listingID *int64) error
}

type marketReader interface {
	Get(ctx context.Context) (*models.MarketConfig, error)
}

// Service is the bidding engine. Between requests exactly one bid per auction
// is active: the high bid. Every superseded bid has its escrow released back
// to the bidder's credit before the transaction commits, so escrow held always
// equals the sum of active bids' EscrowCents.
type Service interface {
	PlaceBid(ctx context.Context, input PlaceBidInput) (*PlaceBidResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListForListing(ctx context.Context, listingID int64) ([]models.Bid, error)
	ActiveBidFor(ctx context.Context, listingID int64, bidder types.Address) (*models.Bid, error)
}

// PlaceBidInput describes a bid. CeilingCents of zero means no automatic
// re-bidding; when set, the full ceiling is escrowed up front and the engine
// counters rival bids on the bidder's behalf up to it.
type PlaceBidInput struct {
	ListingID    int64
	Bidder       types.Address
	AmountCents  int64
	CeilingCents int64
	PaymentCents int64
}

// PlaceBidResult reports the bid as stored plus the auction state once any
// automatic counter-bidding settled.
type PlaceBidResult struct {
	Bid          *models.Bid
	HighBidCents int64
	HighBidder   types.Address
	AutoRaises   int
}

type service struct {
	repo     Repository
	listings listings.Repository
	tx       txRunner
	market   marketReader
	ledger   ledgerWriter
	outbox   outboxPublisher
	metrics  *metrics.MarketMetrics
	clock    clock.Clock
}

// NewService wires the bidding engine. Metrics may be nil.
func NewService(
	repo Repository,
	listingRepo listings.Repository,
	tx txRunner,
	market marketReader,
	ledger ledgerWriter,
	publisher outboxPublisher,
	marketMetrics *metrics.MarketMetrics,
	clk clock.Clock,
) (Service, error) {
	if repo == nil || listingRepo == nil || tx == nil || market == nil || ledger == nil || publisher == nil {
		return nil, fmt.Errorf("bidding service requires repo, listing repo, tx runner, market, ledger and publisher")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{
		repo:     repo,
		listings: listingRepo,
		tx:       tx,
		market:   market,
		ledger:   ledger,
		outbox:   publisher,
		metrics:  marketMetrics,
		clock:    clk,
	}, nil
}

func (s *service) PlaceBid(ctx context.Context, input PlaceBidInput) (*PlaceBidResult, error) {
	if input.Bidder.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bidder address required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid amount must be positive")
	}
	if input.CeilingCents != 0 && input.CeilingCents < input.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ceiling cannot be below the bid amount")
	}

	cfg, err := s.market.Get(ctx)
	if err != nil {
		return nil, err
	}
	step := cfg.MinBidIncrementCents
	if step <= 0 {
		step = 1
	}

	var result *PlaceBidResult
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
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing does not accept bids")
		}
		if listing.State != enums.ListingStateListed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("listing is %s, not listed", listing.State))
		}
		now := s.clock.Now()
		if listing.AuctionEndsAt != nil && !now.Before(*listing.AuctionEndsAt) {
			return pkgerrors.New(pkgerrors.CodeAuctionClosed, "auction no longer accepts bids")
		}
		if listing.Seller == input.Bidder {
			return pkgerrors.New(pkgerrors.CodeValidation, "seller cannot bid on their own listing")
		}

		minimum := listing.StartPriceCents
		if listing.HighBidder != nil {
			minimum = listing.HighBidCents + step
		}
		if input.AmountCents < minimum {
			return pkgerrors.New(pkgerrors.CodeBidTooLow,
				fmt.Sprintf("bid must be at least %d cents", minimum))
		}

		required := input.AmountCents
		if input.CeilingCents > 0 {
			required = input.CeilingCents
		}
		if input.PaymentCents < required {
			return pkgerrors.New(pkgerrors.CodeInsufficientPayment,
				fmt.Sprintf("escrow of %d cents required, got %d", required, input.PaymentCents))
		}

		repo := s.repo.WithTx(tx)

		// A bidder raising their own position retires the old bid first.
		prior, err := repo.GetActiveByBidder(ctx, listing.ID, input.Bidder)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prior bid")
		}
		if prior != nil {
			if err := s.refund(ctx, tx, repo, prior); err != nil {
				return err
			}
		}

		if err := s.ledger.Deposit(ctx, tx, input.Bidder, input.PaymentCents, &listing.ID); err != nil {
			return err
		}
		if overpay := input.PaymentCents - required; overpay > 0 {
			if err := s.ledger.GrantCredit(ctx, tx, enums.LedgerEntryRefund, input.Bidder, overpay, &listing.ID); err != nil {
				return err
			}
		}
		if err := s.ledger.LockEscrow(ctx, tx, input.Bidder, required, listing.ID); err != nil {
			return err
		}

		bid := &models.Bid{
			ID:           uuid.New(),
			ListingID:    listing.ID,
			Bidder:       input.Bidder,
			AmountCents:  input.AmountCents,
			CeilingCents: input.CeilingCents,
			EscrowCents:  required,
			State:        enums.BidStateActive,
			PlacedAt:     now,
		}
		if err := repo.Create(ctx, bid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert bid")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidPlaced,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID.String(),
			Version:       1,
			Actor:         &outbox.ActorRef{Address: input.Bidder, Role: string(enums.ActorRoleTrader)},
			OccurredAt:    now,
			Data: payloads.BidPlacedEvent{
				BidID:        bid.ID,
				ListingID:    listing.ID,
				Bidder:       input.Bidder,
				AmountCents:  input.AmountCents,
				CeilingCents: input.CeilingCents,
			},
		}); err != nil {
			return err
		}

		high := bid
		highAmount := input.AmountCents
		raises := 0

		// Ceiling bids counter until nobody can beat the high bid by one
		// increment. Each pass strictly raises the high amount, so the loop
		// is bounded by the largest outstanding ceiling.
		for {
			next, err := s.bestCounter(ctx, repo, listing.ID, high, highAmount+step)
			if err != nil {
				return err
			}
			if next == nil {
				break
			}
			raised := highAmount + step
			if next.CeilingCents < raised {
				raised = next.CeilingCents
			}
			if err := repo.Update(ctx, next.ID, map[string]any{
				"amount_cents": raised,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "raise ceiling bid")
			}
			next.AmountCents = raised
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBidAutoRaised,
				AggregateType: enums.AggregateBid,
				AggregateID:   next.ID.String(),
				Version:       1,
				OccurredAt:    now,
				Data: payloads.BidAutoRaisedEvent{
					BidID:       next.ID,
					ListingID:   listing.ID,
					Bidder:      next.Bidder,
					AmountCents: raised,
				},
			}); err != nil {
				return err
			}
			high = next
			highAmount = raised
			raises++
		}

		// Everyone who lost the exchange gets their escrow back now.
		actives, err := repo.ListActiveByListing(ctx, listing.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active bids")
		}
		for i := range actives {
			if actives[i].ID == high.ID {
				continue
			}
			if err := s.refund(ctx, tx, repo, &actives[i]); err != nil {
				return err
			}
		}

		highBidder := high.Bidder
		if err := listingRepo.Update(ctx, listing.ID, map[string]any{
			"high_bid_cents": highAmount,
			"high_bidder":    highBidder,
			"bid_count":      listing.BidCount + 1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update listing high bid")
		}

		result = &PlaceBidResult{
			Bid:          bid,
			HighBidCents: highAmount,
			HighBidder:   highBidder,
			AutoRaises:   raises,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncBidPlaced()
	s.metrics.AddAutoRebids(result.AutoRaises)
	return result, nil
}

// bestCounter picks the active ceiling bid that counters the current high bid
// at target, preferring the largest ceiling and breaking ties by earliest
// placement. A ceiling equal to the high bid's never counters unless it was
// placed before the high bid: the earlier side keeps the lead outright rather
// than the two trading raises until one side's headroom runs out.
func (s *service) bestCounter(ctx context.Context, repo Repository, listingID int64, high *models.Bid, target int64) (*models.Bid, error) {
	actives, err := repo.ListActiveByListing(ctx, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active bids")
	}
	var best *models.Bid
	for i := range actives {
		candidate := &actives[i]
		if candidate.Bidder == high.Bidder || !candidate.HasCeiling() {
			continue
		}
		if candidate.CeilingCents < target {
			continue
		}
		if high.HasCeiling() && candidate.CeilingCents == high.CeilingCents && !candidate.PlacedAt.Before(high.PlacedAt) {
			continue
		}
		if best == nil || candidate.CeilingCents > best.CeilingCents ||
			(candidate.CeilingCents == best.CeilingCents && candidate.PlacedAt.Before(best.PlacedAt)) {
			best = candidate
		}
	}
	return best, nil
}

func (s *service) refund(ctx context.Context, tx *gorm.DB, repo Repository, bid *models.Bid) error {
	if err := s.ledger.ReleaseEscrow(ctx, tx, bid.Bidder, bid.EscrowCents, bid.ListingID); err != nil {
		return err
	}
	if err := repo.Update(ctx, bid.ID, map[string]any{
		"state": enums.BidStateRefunded,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund bid")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBidRefunded,
		AggregateType: enums.AggregateBid,
		AggregateID:   bid.ID.String(),
		Version:       1,
		OccurredAt:    s.clock.Now(),
		Data: payloads.BidRefundedEvent{
			BidID:       bid.ID,
			ListingID:   bid.ListingID,
			Bidder:      bid.Bidder,
			AmountCents: bid.EscrowCents,
		},
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	bid, err := s.repo.Get(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
	}
	return bid, nil
}

func (s *service) ListForListing(ctx context.Context, listingID int64) ([]models.Bid, error) {
	bids, err := s.repo.ListByListing(ctx, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	return bids, nil
}

func (s *service) ActiveBidFor(ctx context.Context, listingID int64, bidder types.Address) (*models.Bid, error) {
	if bidder.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bidder address required")
	}
	bid, err := s.repo.GetActiveByBidder(ctx, listingID, bidder)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active bid for bidder")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active bid")
	}
	return bid, nil
}
