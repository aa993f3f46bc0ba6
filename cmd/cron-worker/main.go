package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/agrivet-pos/internal/cron"
	"github.com/angelmondragon/agrivet-pos/internal/session"
	"github.com/angelmondragon/agrivet-pos/internal/transactions"
	"github.com/angelmondragon/agrivet-pos/pkg/config"
	"github.com/angelmondragon/agrivet-pos/pkg/db"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
	"github.com/angelmondragon/agrivet-pos/pkg/metrics"
	"github.com/angelmondragon/agrivet-pos/pkg/migrate"
	"github.com/angelmondragon/agrivet-pos/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Jobs.Location()
	if err != nil {
		logg.Error(ctx, "invalid store timezone", err)
		os.Exit(1)
	}

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

	registry := cron.NewRegistry()
	var lock cron.Lock = cron.NewLocalLock()
	closeParams := cron.DailyCloseJobParams{
		Logger:   logg,
		Sales:    transactions.NewRepository(dbClient.DB()),
		Location: loc,
	}

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

		redisLock, err := cron.NewRedisLock(redisClient, redisClient.JobLockKey(cfg.App.Env), 0)
		if err != nil {
			logg.Error(ctx, "failed to create job lock", err)
			os.Exit(1)
		}
		lock = redisLock
		closeParams.Markers = redisClient

		snapshots, err := session.NewRedisSnapshotStore(redisClient, cfg.Session.SnapshotTTL)
		if err != nil {
			logg.Error(ctx, "failed to create snapshot store", err)
			os.Exit(1)
		}
		pruneJob, err := cron.NewSnapshotPruneJob(logg, snapshots)
		if err != nil {
			logg.Error(ctx, "failed to create snapshot prune job", err)
			os.Exit(1)
		}
		registry.Register(pruneJob)
	}

	closeJob, err := cron.NewDailyCloseJob(closeParams)
	if err != nil {
		logg.Error(ctx, "failed to create daily close job", err)
		os.Exit(1)
	}
	registry.Register(closeJob)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Jobs.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create job service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Jobs.Interval.String(),
		"timezone": loc.String(),
		"jobs":     len(registry.Jobs()),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}
