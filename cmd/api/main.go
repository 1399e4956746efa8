package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okabe-dev/bidhouse-backend/api/routes"
	"github.com/okabe-dev/bidhouse-backend/internal/bidding"
	"github.com/okabe-dev/bidhouse-backend/internal/custody"
	"github.com/okabe-dev/bidhouse-backend/internal/ledger"
	"github.com/okabe-dev/bidhouse-backend/internal/listings"
	"github.com/okabe-dev/bidhouse-backend/internal/market"
	"github.com/okabe-dev/bidhouse-backend/internal/settlement"
	"github.com/okabe-dev/bidhouse-backend/pkg/clock"
	"github.com/okabe-dev/bidhouse-backend/pkg/config"
	"github.com/okabe-dev/bidhouse-backend/pkg/db"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	"github.com/okabe-dev/bidhouse-backend/pkg/metrics"
	"github.com/okabe-dev/bidhouse-backend/pkg/migrate"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox"
	"github.com/okabe-dev/bidhouse-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	marketMetrics := metrics.NewMarketMetrics(promRegistry)

	clk := clock.System()
	publisher := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	marketRepo := market.NewRepository(dbClient.DB())
	marketSvc, err := market.NewService(marketRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create market service", err)
		os.Exit(1)
	}
	if cfg.FeatureFlags.SeedMarket {
		if _, err := marketSvc.Seed(context.Background(), cfg.Market); err != nil {
			logg.Error(context.Background(), "failed to seed market config", err)
			os.Exit(1)
		}
	}

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerSvc, err := ledger.NewService(ledgerRepo, dbClient, publisher, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	custodyRegistry := custody.NewRegistry(dbClient.DB())
	custodyRouter, err := custody.NewRouter(custodyRegistry, custodyRegistry)
	if err != nil {
		logg.Error(context.Background(), "failed to create custody router", err)
		os.Exit(1)
	}
	custodySvc, err := custody.NewService(custodyRegistry, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create custody service", err)
		os.Exit(1)
	}

	listingRepo := listings.NewRepository(dbClient.DB())
	bidRepo := bidding.NewRepository(dbClient.DB())

	settlementSvc, err := settlement.NewService(listingRepo, bidRepo, dbClient, marketSvc, ledgerSvc, custodyRouter, publisher, marketMetrics, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}
	listingSvc, err := listings.NewService(listingRepo, dbClient, marketSvc, ledgerSvc, custodyRouter, settlementSvc, publisher, marketMetrics, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create listing service", err)
		os.Exit(1)
	}
	biddingSvc, err := bidding.NewService(bidRepo, listingRepo, dbClient, marketSvc, ledgerSvc, publisher, marketMetrics, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create bidding service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Market:     marketSvc,
			Ledger:     ledgerSvc,
			Custody:    custodySvc,
			Listings:   listingSvc,
			Bidding:    biddingSvc,
			Settlement: settlementSvc,
		}, marketMetrics, promRegistry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
