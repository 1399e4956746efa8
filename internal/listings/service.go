package listings

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/clock"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/metrics"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox/payloads"
	"github.com/okabe-dev/bidhouse-backend/pkg/pagination"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type custodyAdapter interface {
	IsApprovedFor(ctx context.Context, tx *gorm.DB, owner, operator types.Address) (bool, error)
	Transfer(ctx context.Context, tx *gorm.DB, ref types.AssetRef, from, to types.Address) error
}

type ledgerWriter interface {
	Deposit(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID *int64) error
	GrantCredit(ctx context.Context, tx *gorm.DB, entryType enums.LedgerEntryType, address types.Address, amountCents int64, listingID *int64) error
}

type marketReader interface {
	Get(ctx context.Context) (*models.MarketConfig, error)
}

// settler performs the ledger and custody legs of a fixed-price sale inside
// the caller's transaction, and converts outstanding bid escrow back to
// bidder credit when an auction is withdrawn.
type settler interface {
	SettleFixedPrice(ctx context.Context, tx *gorm.DB, listing *models.Listing, cfg *models.MarketConfig, buyer types.Address) (int64, error)
	RefundActiveBids(ctx context.Context, tx *gorm.DB, listing *models.Listing) error
}

// Service is the listing registry: it owns the Listed half of the listing
// lifecycle. Sold and Finalized transitions belong to settlement.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Listing, error)
	CreateAuction(ctx context.Context, input CreateAuctionInput) (*models.Listing, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Listing, error)
	Buy(ctx context.Context, input BuyInput) (*models.Listing, error)
	Get(ctx context.Context, id int64) (*models.Listing, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

// CreateInput describes a fixed-price listing request. PaymentCents must cover
// the configured listing fee; the full amount is retained as operator credit,
// including any excess over the minimum.
type CreateInput struct {
	Seller       types.Address
	Ref          types.AssetRef
	PriceCents   int64
	PaymentCents int64
}

// CreateAuctionInput describes an auction listing request. EndsAt is optional:
// when set, bids are rejected after it, but settlement is still gated by the
// minimum hold period.
type CreateAuctionInput struct {
	Seller          types.Address
	Ref             types.AssetRef
	StartPriceCents int64
	PaymentCents    int64
	EndsAt          *time.Time
}

// CancelInput identifies the listing to withdraw from the market.
type CancelInput struct {
	ListingID int64
	Actor     types.Address
}

// BuyInput is an immediate purchase of a fixed-price listing.
type BuyInput struct {
	ListingID    int64
	Buyer        types.Address
	PaymentCents int64
}

// ListInput pages through the listing feed, newest first.
type ListInput struct {
	Filter ListFilter
	Cursor string
	Limit  int
}

// ListResult carries one page and the cursor for the next one.
type ListResult struct {
	Listings   []models.Listing
	NextCursor string
}

type service struct {
	repo    Repository
	tx      txRunner
	market  marketReader
	ledger  ledgerWriter
	custody custodyAdapter
	settler settler
	outbox  outboxPublisher
	metrics *metrics.MarketMetrics
	clock   clock.Clock
}

// NewService wires the listing registry. Metrics may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	market marketReader,
	ledger ledgerWriter,
	custody custodyAdapter,
	settler settler,
	publisher outboxPublisher,
	marketMetrics *metrics.MarketMetrics,
	clk clock.Clock,
) (Service, error) {
	if repo == nil || tx == nil || market == nil || ledger == nil || custody == nil || settler == nil || publisher == nil {
		return nil, fmt.Errorf("listings service requires repo, tx runner, market, ledger, custody, settler and publisher")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{
		repo:    repo,
		tx:      tx,
		market:  market,
		ledger:  ledger,
		custody: custody,
		settler: settler,
		outbox:  publisher,
		metrics: marketMetrics,
		clock:   clk,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Listing, error) {
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	return s.create(ctx, createRequest{
		seller:     input.Seller,
		ref:        input.Ref,
		mode:       enums.ListingModeFixedPrice,
		priceCents: input.PriceCents,
		payment:    input.PaymentCents,
	})
}

func (s *service) CreateAuction(ctx context.Context, input CreateAuctionInput) (*models.Listing, error) {
	if input.StartPriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start price must be positive")
	}
	if input.EndsAt != nil && !input.EndsAt.After(s.clock.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction end must be in the future")
	}
	return s.create(ctx, createRequest{
		seller:     input.Seller,
		ref:        input.Ref,
		mode:       enums.ListingModeAuction,
		startCents: input.StartPriceCents,
		payment:    input.PaymentCents,
		endsAt:     input.EndsAt,
	})
}

type createRequest struct {
	seller     types.Address
	ref        types.AssetRef
	mode       enums.ListingMode
	priceCents int64
	startCents int64
	payment    int64
	endsAt     *time.Time
}

func (s *service) create(ctx context.Context, req createRequest) (*models.Listing, error) {
	if req.seller.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller address required")
	}
	if err := req.ref.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid asset reference")
	}

	cfg, err := s.market.Get(ctx)
	if err != nil {
		return nil, err
	}
	fee := cfg.ListingFeeCents
	if req.mode == enums.ListingModeAuction {
		fee = cfg.AuctionListingFeeCents
	}
	if req.payment < fee {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientPayment,
			fmt.Sprintf("listing fee is %d cents, got %d", fee, req.payment))
	}

	var created *models.Listing
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		approved, err := s.custody.IsApprovedFor(ctx, tx, req.seller, types.EngineEscrowAddress)
		if err != nil {
			return err
		}
		if !approved {
			return pkgerrors.New(pkgerrors.CodeCustodyTransfer, "engine is not approved to transfer the asset")
		}
		if err := s.custody.Transfer(ctx, tx, req.ref, req.seller, types.EngineEscrowAddress); err != nil {
			return err
		}

		now := s.clock.Now()
		listing := &models.Listing{
			AssetKind:       req.ref.Kind,
			TokenID:         req.ref.TokenID,
			Quantity:        req.ref.Quantity,
			Seller:          req.seller,
			Mode:            req.mode,
			PriceCents:      req.priceCents,
			StartPriceCents: req.startCents,
			ListingFeeCents: req.payment,
			State:           enums.ListingStateListed,
			MinHoldUntil:    now.Add(cfg.MinHold()),
			AuctionEndsAt:   req.endsAt,
		}
		if err := s.repo.WithTx(tx).Create(ctx, listing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert listing")
		}

		if err := s.ledger.Deposit(ctx, tx, req.seller, req.payment, &listing.ID); err != nil {
			return err
		}
		// The whole declared fee is kept, not just the configured minimum.
		if req.payment > 0 {
			if err := s.ledger.GrantCredit(ctx, tx, enums.LedgerEntryListingFee, cfg.OperatorAddress, req.payment, &listing.ID); err != nil {
				return err
			}
		}

		priceCents := req.priceCents
		if req.mode == enums.ListingModeAuction {
			priceCents = req.startCents
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventListingCreated,
			AggregateType: enums.AggregateListing,
			AggregateID:   fmt.Sprintf("%d", listing.ID),
			Version:       1,
			Actor:         &outbox.ActorRef{Address: req.seller, Role: string(enums.ActorRoleTrader)},
			OccurredAt:    now,
			Data: payloads.ListingCreatedEvent{
				ListingID:  listing.ID,
				Seller:     req.seller,
				Mode:       req.mode,
				AssetKind:  req.ref.Kind,
				TokenID:    req.ref.TokenID,
				Quantity:   req.ref.Quantity,
				PriceCents: priceCents,
				EndsAt:     req.endsAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		created = listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncListingCreated(string(req.mode))
	return created, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Listing, error) {
	if input.Actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor address required")
	}

	var cancelled *models.Listing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.GetForUpdate(ctx, input.ListingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock listing")
		}
		if listing.Seller != input.Actor {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller may cancel")
		}
		if listing.State != enums.ListingStateListed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("listing is %s, not listed", listing.State))
		}
		now := s.clock.Now()
		if listing.IsAuction() && listing.BidCount > 0 {
			// The hold period is a brake against pulling an auction to dodge
			// a standing bid; bare listings cancel immediately.
			if now.Before(listing.MinHoldUntil) {
				return pkgerrors.New(pkgerrors.CodeTooEarlyToCancel,
					fmt.Sprintf("listing is held until %s", listing.MinHoldUntil.UTC().Format("2006-01-02T15:04:05Z")))
			}
			if err := s.settler.RefundActiveBids(ctx, tx, listing); err != nil {
				return err
			}
		}

		if err := s.custody.Transfer(ctx, tx, listing.AssetRef(), types.EngineEscrowAddress, listing.Seller); err != nil {
			return err
		}
		if err := repo.Update(ctx, listing.ID, map[string]any{
			"state": enums.ListingStateCancelled,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel listing")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventListingCancelled,
			AggregateType: enums.AggregateListing,
			AggregateID:   fmt.Sprintf("%d", listing.ID),
			Version:       1,
			Actor:         &outbox.ActorRef{Address: input.Actor, Role: string(enums.ActorRoleTrader)},
			OccurredAt:    now,
			Data: payloads.ListingCancelledEvent{
				ListingID:   listing.ID,
				Seller:      listing.Seller,
				CancelledAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		listing.State = enums.ListingStateCancelled
		cancelled = listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncListingClosed("cancelled")
	return cancelled, nil
}

func (s *service) Buy(ctx context.Context, input BuyInput) (*models.Listing, error) {
	if input.Buyer.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer address required")
	}

	cfg, err := s.market.Get(ctx)
	if err != nil {
		return nil, err
	}

	var sold *models.Listing
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.GetForUpdate(ctx, input.ListingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock listing")
		}
		if listing.Mode != enums.ListingModeFixedPrice {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not sold at a fixed price")
		}
		if listing.State != enums.ListingStateListed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("listing is %s, not listed", listing.State))
		}
		if listing.Seller == input.Buyer {
			return pkgerrors.New(pkgerrors.CodeValidation, "seller cannot buy their own listing")
		}
		if input.PaymentCents < listing.PriceCents {
			return pkgerrors.New(pkgerrors.CodeInsufficientPayment,
				fmt.Sprintf("price is %d cents, got %d", listing.PriceCents, input.PaymentCents))
		}

		if err := s.ledger.Deposit(ctx, tx, input.Buyer, input.PaymentCents, &listing.ID); err != nil {
			return err
		}
		if overpay := input.PaymentCents - listing.PriceCents; overpay > 0 {
			if err := s.ledger.GrantCredit(ctx, tx, enums.LedgerEntryRefund, input.Buyer, overpay, &listing.ID); err != nil {
				return err
			}
		}

		if _, err := s.settler.SettleFixedPrice(ctx, tx, listing, cfg, input.Buyer); err != nil {
			return err
		}

		sold = listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sold, nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.Listing, error) {
	listing, err := s.repo.Get(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	limit := pagination.NormalizeLimit(input.Limit)
	var cursor *pagination.Cursor
	if input.Cursor != "" {
		parsed, err := pagination.ParseCursor(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		cursor = parsed
	}

	rows, err := s.repo.List(ctx, input.Filter, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}

	result := &ListResult{Listings: rows}
	if len(rows) > limit {
		result.Listings = rows[:limit]
		last := result.Listings[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}
