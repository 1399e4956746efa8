package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/internal/bidding"
	"github.com/okabe-dev/bidhouse-backend/internal/custody"
	"github.com/okabe-dev/bidhouse-backend/internal/ledger"
	"github.com/okabe-dev/bidhouse-backend/internal/listings"
	"github.com/okabe-dev/bidhouse-backend/internal/market"
	"github.com/okabe-dev/bidhouse-backend/pkg/clock"
	"github.com/okabe-dev/bidhouse-backend/pkg/config"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutboxPublisher) lastOfType(eventType enums.OutboxEventType) *outbox.DomainEvent {
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].EventType == eventType {
			return &s.events[i]
		}
	}
	return nil
}

// marketEnv wires the whole trading stack against one in-memory database.
type marketEnv struct {
	db        *gorm.DB
	listings  listings.Service
	bidding   bidding.Service
	settle    Service
	ledger    ledger.Service
	registry  *custody.Registry
	publisher *stubOutboxPublisher
	clk       *clock.Fixed
}

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:settlement_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  address TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  listing_id INTEGER,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS bids (
  id TEXT PRIMARY KEY,
  listing_id INTEGER NOT NULL,
  bidder TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  ceiling_cents INTEGER NOT NULL DEFAULT 0,
  escrow_cents INTEGER NOT NULL,
  state TEXT NOT NULL DEFAULT 'active',
  placed_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	require.NoError(t, db.AutoMigrate(
		&models.Listing{},
		&models.Credit{},
		&models.AssetHolding{},
		&models.AssetApproval{},
		&models.MarketConfig{},
	))

	return db
}

func newMarketEnv(t *testing.T) *marketEnv {
	t.Helper()

	db := setupSettlementTestDB(t)
	tx := sqliteTxRunner{db: db}
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	publisher := &stubOutboxPublisher{}

	marketSvc, err := market.NewService(market.NewRepository(db), tx)
	require.NoError(t, err)
	_, err = marketSvc.Seed(context.Background(), config.MarketConfig{
		OperatorAddress:        "operator:root",
		ListingFeeCents:        100,
		AuctionListingFeeCents: 150,
		FixedCommissionPct:     5,
		AuctionCommissionPct:   10,
		MinBidIncrementCents:   100,
		MinHoldPeriod:          72 * time.Hour,
	})
	require.NoError(t, err)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db), tx, publisher, clk)
	require.NoError(t, err)

	registry := custody.NewRegistry(db)
	router, err := custody.NewRouter(registry, registry)
	require.NoError(t, err)

	listingRepo := listings.NewRepository(db)
	bidRepo := bidding.NewRepository(db)

	settleSvc, err := NewService(listingRepo, bidRepo, tx, marketSvc, ledgerSvc, router, publisher, nil, clk)
	require.NoError(t, err)

	listingSvc, err := listings.NewService(listingRepo, tx, marketSvc, ledgerSvc, router, settleSvc, publisher, nil, clk)
	require.NoError(t, err)

	biddingSvc, err := bidding.NewService(bidRepo, listingRepo, tx, marketSvc, ledgerSvc, publisher, nil, clk)
	require.NoError(t, err)

	return &marketEnv{
		db:        db,
		listings:  listingSvc,
		bidding:   biddingSvc,
		settle:    settleSvc,
		ledger:    ledgerSvc,
		registry:  registry,
		publisher: publisher,
		clk:       clk,
	}
}

func (e *marketEnv) mintAndApprove(t *testing.T, ref types.AssetRef, owner types.Address) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.registry.Mint(ctx, nil, ref, owner))
	require.NoError(t, e.registry.SetApproval(ctx, nil, owner, types.EngineEscrowAddress, true))
}

func (e *marketEnv) balanceOf(t *testing.T, address types.Address) int64 {
	t.Helper()
	balance, err := e.ledger.BalanceOf(context.Background(), address)
	require.NoError(t, err)
	return balance
}

func (e *marketEnv) holding(t *testing.T, ref types.AssetRef, owner types.Address) int64 {
	t.Helper()
	quantity, err := e.registry.BalanceOf(context.Background(), nil, ref.Kind, ref.TokenID, owner)
	require.NoError(t, err)
	return quantity
}

func TestBuySettlesFixedPriceSale(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	ref := types.AssetRef{Kind: enums.AssetKindUnique, TokenID: 7, Quantity: 1}
	env.mintAndApprove(t, ref, "trader:alice")

	listing, err := env.listings.Create(ctx, listings.CreateInput{
		Seller:       "trader:alice",
		Ref:          ref,
		PriceCents:   5000,
		PaymentCents: 100,
	})
	require.NoError(t, err)

	sold, err := env.listings.Buy(ctx, listings.BuyInput{
		ListingID:    listing.ID,
		Buyer:        "trader:bob",
		PaymentCents: 5000,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.ListingStateSold, sold.State)
	require.NotNil(t, sold.Buyer)
	assert.Equal(t, types.Address("trader:bob"), *sold.Buyer)
	require.NotNil(t, sold.SettledAt)

	// 5% of 5000 goes to the operator, on top of the listing fee.
	assert.Equal(t, int64(4750), env.balanceOf(t, "trader:alice"))
	assert.Equal(t, int64(350), env.balanceOf(t, "operator:root"))
	assert.Zero(t, env.balanceOf(t, "trader:bob"))

	assert.Equal(t, int64(1), env.holding(t, ref, "trader:bob"))
	assert.Zero(t, env.holding(t, ref, types.EngineEscrowAddress))

	event := env.publisher.lastOfType(enums.EventListingSold)
	require.NotNil(t, event)

	audit, err := env.ledger.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, audit.Balanced)
	assert.Zero(t, audit.EscrowHeldCents)
}

func TestFinishAuctionTooEarly(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	ref := types.AssetRef{Kind: enums.AssetKindUnique, TokenID: 8, Quantity: 1}
	env.mintAndApprove(t, ref, "trader:alice")

	listing, err := env.listings.CreateAuction(ctx, listings.CreateAuctionInput{
		Seller:          "trader:alice",
		Ref:             ref,
		StartPriceCents: 1000,
		PaymentCents:    150,
	})
	require.NoError(t, err)

	env.clk.Advance(72*time.Hour - time.Second)
	_, err = env.settle.FinishAuction(ctx, FinishInput{ListingID: listing.ID, Actor: "trader:anyone"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeTooEarlyToFinish))
}

func TestFinishAuctionPaysWinner(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	ref := types.AssetRef{Kind: enums.AssetKindUnique, TokenID: 9, Quantity: 1}
	env.mintAndApprove(t, ref, "trader:alice")

	listing, err := env.listings.CreateAuction(ctx, listings.CreateAuctionInput{
		Seller:          "trader:alice",
		Ref:             ref,
		StartPriceCents: 1000,
		PaymentCents:    150,
	})
	require.NoError(t, err)

	_, err = env.bidding.PlaceBid(ctx, bidding.PlaceBidInput{
		ListingID:    listing.ID,
		Bidder:       "trader:bob",
		AmountCents:  1000,
		PaymentCents: 1000,
	})
	require.NoError(t, err)

	// The hold boundary itself is enough.
	env.clk.Advance(72 * time.Hour)
	result, err := env.settle.FinishAuction(ctx, FinishInput{ListingID: listing.ID, Actor: "trader:anyone"})
	require.NoError(t, err)

	assert.Equal(t, types.Address("trader:bob"), result.Winner)
	assert.Equal(t, int64(1000), result.HammerCents)
	assert.Equal(t, int64(100), result.CommissionCents)
	assert.Equal(t, int64(900), result.ProceedsCents)

	assert.Equal(t, int64(900), env.balanceOf(t, "trader:alice"))
	assert.Equal(t, int64(250), env.balanceOf(t, "operator:root"))
	assert.Equal(t, int64(1), env.holding(t, ref, "trader:bob"))

	final, err := env.listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStateFinalized, final.State)

	audit, err := env.ledger.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, audit.Balanced)
	assert.Zero(t, audit.EscrowHeldCents)
}

func TestFinishAuctionReturnsCeilingRemainder(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	ref := types.AssetRef{Kind: enums.AssetKindUnique, TokenID: 10, Quantity: 1}
	env.mintAndApprove(t, ref, "trader:alice")

	listing, err := env.listings.CreateAuction(ctx, listings.CreateAuctionInput{
		Seller:          "trader:alice",
		Ref:             ref,
		StartPriceCents: 1000,
		PaymentCents:    150,
	})
	require.NoError(t, err)

	_, err = env.bidding.PlaceBid(ctx, bidding.PlaceBidInput{
		ListingID:    listing.ID,
		Bidder:       "trader:bob",
		AmountCents:  1000,
		CeilingCents: 2000,
		PaymentCents: 2000,
	})
	require.NoError(t, err)

	env.clk.Advance(73 * time.Hour)
	result, err := env.settle.FinishAuction(ctx, FinishInput{ListingID: listing.ID, Actor: "trader:anyone"})
	require.NoError(t, err)

	// Bob only pays the hammer price; the unused ceiling escrow comes back.
	assert.Equal(t, int64(1000), result.HammerCents)
	assert.Equal(t, int64(1000), env.balanceOf(t, "trader:bob"))
	assert.Equal(t, int64(900), env.balanceOf(t, "trader:alice"))

	audit, err := env.ledger.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, audit.Balanced)
	assert.Zero(t, audit.EscrowHeldCents)
}

func TestFinishAuctionWithoutBidsReturnsAsset(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	ref := types.AssetRef{Kind: enums.AssetKindUnique, TokenID: 11, Quantity: 1}
	env.mintAndApprove(t, ref, "trader:alice")

	listing, err := env.listings.CreateAuction(ctx, listings.CreateAuctionInput{
		Seller:          "trader:alice",
		Ref:             ref,
		StartPriceCents: 1000,
		PaymentCents:    150,
	})
	require.NoError(t, err)

	env.clk.Advance(73 * time.Hour)
	result, err := env.settle.FinishAuction(ctx, FinishInput{ListingID: listing.ID, Actor: "trader:anyone"})
	require.NoError(t, err)

	assert.True(t, result.Winner.IsZero())
	assert.Zero(t, result.HammerCents)
	assert.Equal(t, int64(1), env.holding(t, ref, "trader:alice"))

	final, err := env.listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStateCancelled, final.State)

	event := env.publisher.lastOfType(enums.EventAuctionFinished)
	require.NotNil(t, event)
}

func TestFinishAuctionTwiceRejected(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	ref := types.AssetRef{Kind: enums.AssetKindUnique, TokenID: 12, Quantity: 1}
	env.mintAndApprove(t, ref, "trader:alice")

	listing, err := env.listings.CreateAuction(ctx, listings.CreateAuctionInput{
		Seller:          "trader:alice",
		Ref:             ref,
		StartPriceCents: 1000,
		PaymentCents:    150,
	})
	require.NoError(t, err)

	env.clk.Advance(73 * time.Hour)
	_, err = env.settle.FinishAuction(ctx, FinishInput{ListingID: listing.ID, Actor: "trader:anyone"})
	require.NoError(t, err)

	_, err = env.settle.FinishAuction(ctx, FinishInput{ListingID: listing.ID, Actor: "trader:anyone"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestCancelAuctionAfterHoldRefundsBidder(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	ref := types.AssetRef{Kind: enums.AssetKindUnique, TokenID: 13, Quantity: 1}
	env.mintAndApprove(t, ref, "trader:alice")

	listing, err := env.listings.CreateAuction(ctx, listings.CreateAuctionInput{
		Seller:          "trader:alice",
		Ref:             ref,
		StartPriceCents: 1000,
		PaymentCents:    150,
	})
	require.NoError(t, err)

	_, err = env.bidding.PlaceBid(ctx, bidding.PlaceBidInput{
		ListingID:    listing.ID,
		Bidder:       "trader:bob",
		AmountCents:  1000,
		PaymentCents: 1000,
	})
	require.NoError(t, err)

	_, err = env.listings.Cancel(ctx, listings.CancelInput{ListingID: listing.ID, Actor: "trader:alice"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeTooEarlyToCancel))

	env.clk.Advance(72 * time.Hour)
	cancelled, err := env.listings.Cancel(ctx, listings.CancelInput{ListingID: listing.ID, Actor: "trader:alice"})
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStateCancelled, cancelled.State)

	// Bob's escrow comes back as withdrawable credit, the asset returns home.
	assert.Equal(t, int64(1000), env.balanceOf(t, "trader:bob"))
	assert.Equal(t, int64(1), env.holding(t, ref, "trader:alice"))

	audit, err := env.ledger.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, audit.Balanced)
	assert.Zero(t, audit.EscrowHeldCents)
}

func TestCommissionRounding(t *testing.T) {
	cases := []struct {
		amount   int64
		pct      int64
		expected int64
	}{
		{amount: 5000, pct: 5, expected: 250},
		{amount: 999, pct: 5, expected: 50},
		{amount: 1, pct: 10, expected: 0},
		{amount: 5, pct: 10, expected: 1},
		{amount: 1000, pct: 0, expected: 0},
		{amount: 0, pct: 10, expected: 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, commissionFor(tc.amount, tc.pct), "amount=%d pct=%d", tc.amount, tc.pct)
	}
}
