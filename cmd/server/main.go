package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sentipulse/sentipulse-go/internal/api"
	"github.com/sentipulse/sentipulse-go/internal/api/handlers"
	"github.com/sentipulse/sentipulse-go/internal/cache"
	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/database"
	"github.com/sentipulse/sentipulse-go/internal/logging"
	"github.com/sentipulse/sentipulse-go/internal/middleware"
	"github.com/sentipulse/sentipulse-go/internal/services"
	"github.com/sentipulse/sentipulse-go/internal/telemetry"
	"github.com/sentipulse/sentipulse-go/pkg/classifier"
	"github.com/sentipulse/sentipulse-go/pkg/marketfeed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := telemetry.InitTelemetry(telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
	}); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown telemetry: %v\n", err)
		}
	}()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logging.ParseLogrusLevel(cfg.LogLevel))

	appLog := logging.NewStandardOTLPLogger(logging.OTLPConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})

	db, err := database.NewPostgresConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(context.Background(), db.Pool); err != nil {
		return fmt.Errorf("failed to ensure database schema: %w", err)
	}

	recovery := services.NewErrorRecoveryManager(logger)
	for name, policy := range services.DefaultRetryPolicies() {
		recovery.RegisterRetryPolicy(name, policy)
	}

	redis, err := database.NewRedisConnectionWithRetry(cfg.Redis, recovery)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redis.Close()

	signalCache := cache.NewRedisSignalCache(redis.Client,
		time.Duration(cfg.Cache.SignalTTLMinutes)*time.Minute,
		time.Duration(cfg.Cache.SummaryTTLMinutes)*time.Minute)
	cooldowns := cache.NewRedisCooldownCache(redis.Client)

	feed := marketfeed.NewClient(&cfg.MarketFeed)
	defer func() {
		if err := feed.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close market feed client")
		}
	}()
	predictor := classifier.NewClient(&cfg.Classifier)

	markets := database.NewMarketRepository(db.Pool)
	features := database.NewFeatureRepository(db.Pool)
	signals := database.NewSignalRepository(db.Pool)
	backtests := database.NewBacktestRepository(db.Pool)
	pipelines := database.NewPipelineRepository(db.Pool)

	collector := services.NewCollectorService(feed, markets, cfg, recovery, cooldowns, logger)
	if err := collector.Start(); err != nil {
		return fmt.Errorf("failed to start collector service: %w", err)
	}
	defer collector.Stop()

	featureService := services.NewFeatureService(markets, features, signals, cfg.MarketFeed.COTMarket, logger)
	signalService := services.NewSignalService(features, signals, signalCache, predictor, logger)
	backtestService := services.NewBacktestService(featureService, backtests, signalCache, logger)
	notifier := services.NewNotificationService(cfg.Telegram, logger)
	monitor := services.NewResourceMonitor()
	pipelineService := services.NewPipelineService(collector, featureService, signalService,
		backtestService, notifier, pipelines, monitor, cfg, logger)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))

	auth := middleware.NewAuthMiddleware(cfg.Security.JWTSecret)
	admin := middleware.NewAdminMiddleware(cfg.Security.AdminKeyHash)

	api.SetupRoutes(router, cfg, &api.Handlers{
		Health:    handlers.NewHealthHandler(db, redis, collector, monitor, signalCache, cooldowns, api.Version),
		Features:  handlers.NewFeatureHandler(featureService, cfg.Collector.BackfillDays),
		Signals:   handlers.NewSignalHandler(signalService),
		Backtests: handlers.NewBacktestHandler(backtestService, cfg.Backtest, cfg.Pipeline.Symbol),
		Pipeline:  handlers.NewPipelineHandler(pipelineService),
		Auth:      handlers.NewAuthHandler(auth, admin, api.JWTExpiry(cfg.Security)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	go func() {
		appLog.LogStartup(cfg.Telemetry.ServiceName, api.Version, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.LogShutdown(cfg.Telemetry.ServiceName, "signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}
