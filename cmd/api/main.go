package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/agrivet-pos/api/routes"
	"github.com/angelmondragon/agrivet-pos/internal/catalog"
	"github.com/angelmondragon/agrivet-pos/internal/checkout"
	product "github.com/angelmondragon/agrivet-pos/internal/products"
	"github.com/angelmondragon/agrivet-pos/internal/session"
	"github.com/angelmondragon/agrivet-pos/internal/stock"
	"github.com/angelmondragon/agrivet-pos/internal/transactions"
	"github.com/angelmondragon/agrivet-pos/pkg/config"
	"github.com/angelmondragon/agrivet-pos/pkg/db"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
	"github.com/angelmondragon/agrivet-pos/pkg/metrics"
	"github.com/angelmondragon/agrivet-pos/pkg/migrate"
	"github.com/angelmondragon/agrivet-pos/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeAutoRun(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	deps := routes.Deps{Config: cfg, Logger: logg, DB: dbClient}

	// Without Redis, sessions live in memory only and checkout retries are not deduplicated.
	var snapshots session.SnapshotStore
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		store, err := session.NewRedisSnapshotStore(redisClient, cfg.Session.SnapshotTTL)
		if err != nil {
			logg.Error(ctx, "failed to create snapshot store", err)
			os.Exit(1)
		}
		snapshots = store
		deps.Redis = redisClient
		deps.Idempotency = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; carts will not survive a restart")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Gatherer = registry
	deps.HTTPMetrics = metrics.NewHTTPMetrics(registry)

	productRepo := product.NewRepository(dbClient.DB())
	catalogStore, err := catalog.NewStore(product.RepositoryLoader{Repo: productRepo}, logg)
	if err != nil {
		logg.Error(ctx, "failed to create catalog store", err)
		os.Exit(1)
	}
	productService, err := product.NewService(productRepo, dbClient, catalogStore, logg)
	if err != nil {
		logg.Error(ctx, "failed to create product service", err)
		os.Exit(1)
	}
	if _, err := catalogStore.Reload(ctx); err != nil {
		logg.Error(ctx, "failed to load catalog", err)
		os.Exit(1)
	}

	stockGateway := stock.NewGateway(dbClient.DB())
	txRepo := transactions.NewRepository(dbClient.DB())
	sink, err := transactions.NewSink(dbClient, txRepo, productRepo, stockGateway, transactions.BreakerSettings{
		MaxFailures:  cfg.Checkout.BreakerMaxFailures,
		OpenInterval: cfg.Checkout.BreakerOpenInterval,
	}, logg)
	if err != nil {
		logg.Error(ctx, "failed to create transaction sink", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(sink, checkout.Options{
		SinkTimeout:    cfg.Checkout.SinkTimeout,
		PaymentMethods: cfg.Checkout.PaymentMethods,
		Metrics:        metrics.NewCheckoutMetrics(registry),
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	sessions, err := session.NewManager(catalogStore, checkoutService, snapshots, logg)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}
	restored, err := sessions.RestoreAll(ctx)
	if err != nil {
		logg.Error(ctx, "failed to restore sessions", err)
	}

	deps.Products = productService
	deps.Catalog = catalogStore
	deps.Stock = stockGateway
	deps.Sessions = sessions
	deps.Transactions = txRepo
	deps.Breaker = sink

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	srvCtx := logg.WithFields(ctx, map[string]any{
		"env":               cfg.App.Env,
		"addr":              addr,
		"store":             cfg.App.StoreName,
		"dialect":           dbClient.Dialect(),
		"catalog_products":  catalogStore.Snapshot().Len(),
		"sessions_restored": restored,
	})
	logg.Info(srvCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(srvCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(srvCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(srvCtx, "graceful shutdown failed", err)
		}
	}
}
