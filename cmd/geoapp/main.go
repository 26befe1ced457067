package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/geoapp/geoapp-api/internal/app"
	"github.com/geoapp/geoapp-api/internal/auth"
	"github.com/geoapp/geoapp-api/internal/bootstrap"
	"github.com/geoapp/geoapp-api/internal/data"
	"github.com/geoapp/geoapp-api/internal/observability"
	"github.com/geoapp/geoapp-api/internal/platform/cache"
	"github.com/geoapp/geoapp-api/internal/rbac"
	"github.com/geoapp/geoapp-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return err
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	identity, err := app.OpenIdentity(ctx, cfg, logger)
	if err != nil {
		logger.Error("open identity store", slog.Any("error", err))
		return err
	}
	defer identity.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	seeder, err := bootstrap.NewSeeder(identity.Store, cfg.Admin(), logger)
	if err != nil {
		logger.Error("bootstrap config", slog.Any("error", err))
		return err
	}
	if err := seeder.Seed(ctx); err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(cfg.Signing(), identity.Store, metrics)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		return err
	}
	verifier, err := auth.NewVerifier(cfg.Signing())
	if err != nil {
		logger.Error("init token verifier", slog.Any("error", err))
		return err
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	rbacMiddleware := rbac.Middleware{Logger: logger, Metrics: metrics}
	authService := auth.NewService(identity.Store, issuer, jobClient, logger)
	dataService := data.NewService(data.NewRedisStore(redisClient, data.Organisation), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Authenticator: auth.Authenticator{Verifier: verifier, Logger: logger},
		AuthHandler:   auth.NewHandler(logger, authService, issuer, rbacMiddleware),
		DataHandler:   data.NewHandler(logger, dataService, rbacMiddleware),
		JobHandler:    jobs.NewHandler(inspector, logger),
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		return err
	}
	return nil
}
