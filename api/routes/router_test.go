package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/internal/bidding"
	"github.com/okabe-dev/bidhouse-backend/internal/custody"
	"github.com/okabe-dev/bidhouse-backend/internal/ledger"
	"github.com/okabe-dev/bidhouse-backend/internal/listings"
	"github.com/okabe-dev/bidhouse-backend/internal/market"
	"github.com/okabe-dev/bidhouse-backend/internal/settlement"
	pkgauth "github.com/okabe-dev/bidhouse-backend/pkg/auth"
	"github.com/okabe-dev/bidhouse-backend/pkg/config"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubMarketService struct{}

func (stubMarketService) Get(context.Context) (*models.MarketConfig, error) {
	return &models.MarketConfig{}, nil
}

func (stubMarketService) Seed(context.Context, config.MarketConfig) (*models.MarketConfig, error) {
	return &models.MarketConfig{}, nil
}

func (stubMarketService) Update(context.Context, market.UpdateInput) (*models.MarketConfig, error) {
	return &models.MarketConfig{}, nil
}

type stubLedgerService struct{}

func (stubLedgerService) BalanceOf(context.Context, types.Address) (int64, error) { return 0, nil }

func (stubLedgerService) Withdraw(context.Context, ledger.WithdrawInput) (*ledger.WithdrawResult, error) {
	return &ledger.WithdrawResult{}, nil
}

func (stubLedgerService) Audit(context.Context) (*ledger.AuditReport, error) {
	return &ledger.AuditReport{Balanced: true}, nil
}

func (stubLedgerService) EntriesFor(context.Context, types.Address, int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (stubLedgerService) EntriesForListing(context.Context, int64) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (stubLedgerService) Deposit(context.Context, *gorm.DB, types.Address, int64, *int64) error {
	return nil
}

func (stubLedgerService) LockEscrow(context.Context, *gorm.DB, types.Address, int64, int64) error {
	return nil
}

func (stubLedgerService) ReleaseEscrow(context.Context, *gorm.DB, types.Address, int64, int64) error {
	return nil
}

func (stubLedgerService) ConsumeEscrow(context.Context, *gorm.DB, types.Address, int64, int64) error {
	return nil
}

func (stubLedgerService) GrantCredit(context.Context, *gorm.DB, enums.LedgerEntryType, types.Address, int64, *int64) error {
	return nil
}

type stubCustodyService struct{}

func (stubCustodyService) SetApproval(context.Context, custody.SetApprovalInput) error { return nil }

func (stubCustodyService) HoldingsOf(context.Context, types.Address) ([]models.AssetHolding, error) {
	return nil, nil
}

func (stubCustodyService) BalanceOf(context.Context, enums.AssetKind, int64, types.Address) (int64, error) {
	return 0, nil
}

func (stubCustodyService) Mint(context.Context, custody.MintInput) error { return nil }

type stubListingsService struct{}

func (stubListingsService) Create(context.Context, listings.CreateInput) (*models.Listing, error) {
	return &models.Listing{}, nil
}

func (stubListingsService) CreateAuction(context.Context, listings.CreateAuctionInput) (*models.Listing, error) {
	return &models.Listing{}, nil
}

func (stubListingsService) Cancel(context.Context, listings.CancelInput) (*models.Listing, error) {
	return &models.Listing{}, nil
}

func (stubListingsService) Buy(context.Context, listings.BuyInput) (*models.Listing, error) {
	return &models.Listing{}, nil
}

func (stubListingsService) Get(context.Context, int64) (*models.Listing, error) {
	return &models.Listing{}, nil
}

func (stubListingsService) List(context.Context, listings.ListInput) (*listings.ListResult, error) {
	return &listings.ListResult{}, nil
}

type stubBiddingService struct{}

func (stubBiddingService) PlaceBid(context.Context, bidding.PlaceBidInput) (*bidding.PlaceBidResult, error) {
	return &bidding.PlaceBidResult{Bid: &models.Bid{ID: uuid.New()}}, nil
}

func (stubBiddingService) Get(context.Context, uuid.UUID) (*models.Bid, error) {
	return &models.Bid{}, nil
}

func (stubBiddingService) ListForListing(context.Context, int64) ([]models.Bid, error) {
	return nil, nil
}

func (stubBiddingService) ActiveBidFor(context.Context, int64, types.Address) (*models.Bid, error) {
	return &models.Bid{}, nil
}

type stubSettlementService struct{}

func (stubSettlementService) SettleFixedPrice(context.Context, *gorm.DB, *models.Listing, *models.MarketConfig, types.Address) (int64, error) {
	return 0, nil
}

func (stubSettlementService) RefundActiveBids(context.Context, *gorm.DB, *models.Listing) error {
	return nil
}

func (stubSettlementService) FinishAuction(context.Context, settlement.FinishInput) (*settlement.FinishResult, error) {
	return &settlement.FinishResult{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "bidhouse-test",
			ExpirationMinutes: 15,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		nil, // redis disabled: idempotency and rate limits pass through
		Services{
			Market:     stubMarketService{},
			Ledger:     stubLedgerService{},
			Custody:    stubCustodyService{},
			Listings:   stubListingsService{},
			Bidding:    stubBiddingService{},
			Settlement: stubSettlementService{},
		},
		nil,
		nil,
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	address, err := types.ParseAddress("trader:route-test")
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	token, mintErr := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		Address: address,
		Role:    role,
		JTI:     uuid.NewString(),
	})
	if mintErr != nil {
		t.Fatalf("mint token: %v", mintErr)
	}
	return token
}

func TestPublicListingFeedNeedsNoToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public feed got %d", resp.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(testConfig())
	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestTradingRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/listings"},
		{http.MethodPost, "/api/v1/auctions"},
		{http.MethodPost, "/api/v1/listings/1/buy"},
		{http.MethodPost, "/api/v1/auctions/1/bids"},
		{http.MethodPost, "/api/v1/ledger/withdraw"},
	} {
		req := httptest.NewRequest(route.method, route.path, strings.NewReader(`{}`))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s %s got %d", route.method, route.path, resp.Code)
		}
	}
}

func TestTradingRoutesAcceptToken(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/balance", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleTrader))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d", resp.Code)
	}
}

func TestAdminRoutesRequireOperatorRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	trader := httptest.NewRequest(http.MethodGet, "/api/v1/admin/market", nil)
	trader.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleTrader))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, trader)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for trader got %d", resp.Code)
	}

	operator := httptest.NewRequest(http.MethodGet, "/api/v1/admin/market", nil)
	operator.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleOperator))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, operator)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for operator got %d", resp.Code)
	}
}

func TestPlaceBidValidatesPayload(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions/7/bids", strings.NewReader(`{"amount_cents":0}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleTrader))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty bid got %d", resp.Code)
	}
}

func TestListingIDMustBeNumeric(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings/not-a-number", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad listing id got %d", resp.Code)
	}
}
