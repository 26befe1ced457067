package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/geoapp/geoapp-api/internal/app"
	"github.com/geoapp/geoapp-api/internal/data"
	"github.com/geoapp/geoapp-api/internal/observability"
	"github.com/geoapp/geoapp-api/internal/platform/cache"
	"github.com/geoapp/geoapp-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	identity, err := app.OpenIdentity(ctx, cfg, logger)
	if err != nil {
		logger.Error("open identity store", slog.Any("error", err))
		os.Exit(1)
	}
	defer identity.Close()

	dataService := data.NewService(data.NewRedisStore(redisClient, data.Organisation), logger)
	provisionJob := jobs.NewProvisionBucketJob(dataService, logger, metrics)
	reconcileJob := jobs.NewReconcileBucketsJob(identity.Store, dataService, logger, metrics)

	var cron []jobs.CronRegistration
	if cfg.ReconcileCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.ReconcileCron, Task: jobs.NewReconcileBucketsTask()})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskProvisionBucket, Handler: provisionJob.Handle},
			{Type: jobs.TaskReconcileBuckets, Handler: reconcileJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
