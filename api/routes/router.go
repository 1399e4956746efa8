package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okabe-dev/bidhouse-backend/api/controllers"
	"github.com/okabe-dev/bidhouse-backend/api/middleware"
	"github.com/okabe-dev/bidhouse-backend/internal/bidding"
	"github.com/okabe-dev/bidhouse-backend/internal/custody"
	"github.com/okabe-dev/bidhouse-backend/internal/ledger"
	"github.com/okabe-dev/bidhouse-backend/internal/listings"
	"github.com/okabe-dev/bidhouse-backend/internal/market"
	"github.com/okabe-dev/bidhouse-backend/internal/settlement"
	"github.com/okabe-dev/bidhouse-backend/pkg/config"
	"github.com/okabe-dev/bidhouse-backend/pkg/db"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	"github.com/okabe-dev/bidhouse-backend/pkg/metrics"
	pkgredis "github.com/okabe-dev/bidhouse-backend/pkg/redis"
)

// Services bundles everything the HTTP surface depends on.
type Services struct {
	Market     market.Service
	Ledger     ledger.Service
	Custody    custody.Service
	Listings   listings.Service
	Bidding    bidding.Service
	Settlement settlement.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	svcs Services,
	marketMetrics *metrics.MarketMetrics,
	promRegistry *prometheus.Registry,
) http.Handler {
	// A typed nil *Client must not become a non-nil IdempotencyStore.
	var idemStore pkgredis.IdempotencyStore
	var redisPinger pkgredis.Pinger
	if redisClient != nil {
		idemStore = redisClient
		redisPinger = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	// The listing feed and bid tape are public reads; everything that moves
	// funds or assets sits behind auth.
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.With(middleware.RateLimit(redisClient, "session", 30, time.Minute, logg)).
				Post("/", controllers.OpenSession(svcs.Market, redisClient, cfg.JWT, logg))
			r.Post("/refresh", controllers.RefreshSession(svcs.Market, redisClient, cfg.JWT, logg))
		})

		r.Get("/listings", controllers.ListListings(svcs.Listings, logg))
		r.Get("/listings/{id}", controllers.GetListing(svcs.Listings, logg))
		r.Get("/auctions/{id}/bids", controllers.ListBids(svcs.Bidding, logg))
		r.Get("/market", controllers.GetMarketConfig(svcs.Market, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idemStore, logg))

			r.Delete("/session", controllers.CloseSession(redisClient, logg))

			r.Post("/listings", controllers.CreateListing(svcs.Listings, logg))
			r.Post("/listings/{id}/cancel", controllers.CancelListing(svcs.Listings, logg))
			r.Post("/listings/{id}/buy", controllers.BuyListing(svcs.Listings, logg))

			r.Post("/auctions", controllers.CreateAuction(svcs.Listings, logg))
			r.With(middleware.RateLimit(redisClient, "bids", 60, time.Minute, logg)).
				Post("/auctions/{id}/bids", controllers.PlaceBid(svcs.Bidding, logg))
			r.Post("/auctions/{id}/finish", controllers.FinishAuction(svcs.Settlement, logg))

			r.Route("/ledger", func(r chi.Router) {
				r.Get("/balance", controllers.LedgerBalance(svcs.Ledger, logg))
				r.Get("/entries", controllers.LedgerEntries(svcs.Ledger, logg))
				r.Post("/withdraw", controllers.LedgerWithdraw(svcs.Ledger, marketMetrics, logg))
			})

			r.Route("/custody", func(r chi.Router) {
				r.Get("/holdings", controllers.CustodyHoldings(svcs.Custody, logg))
				r.Post("/approvals", controllers.SetCustodyApproval(svcs.Custody, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireOperator(logg))
			r.Use(middleware.Idempotency(idemStore, logg))

			r.Get("/market", controllers.GetMarketConfig(svcs.Market, logg))
			r.Patch("/market", controllers.UpdateMarketConfig(svcs.Market, logg))
			r.Post("/assets/mint", controllers.MintAsset(svcs.Custody, logg))
			r.Get("/ledger/audit", controllers.LedgerAudit(svcs.Ledger, logg))
		})
	})

	return r
}
