package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentipulse/sentipulse-go/internal/api/handlers"
	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/middleware"
)

// Version is stamped at build time.
var Version = "dev"

// Handlers bundles the constructed endpoint handlers for route setup.
type Handlers struct {
	Health    *handlers.HealthHandler
	Features  *handlers.FeatureHandler
	Signals   *handlers.SignalHandler
	Backtests *handlers.BacktestHandler
	Pipeline  *handlers.PipelineHandler
	Auth      *handlers.AuthHandler
}

// SetupRoutes registers every endpoint. Reads are open; mutating
// endpoints require a Bearer JWT and admin endpoints the admin key.
func SetupRoutes(router *gin.Engine, cfg *config.Config, h *Handlers) {
	auth := middleware.NewAuthMiddleware(cfg.Security.JWTSecret)
	admin := middleware.NewAdminMiddlewareWithTokens(cfg.Security.AdminKeyHash, auth)

	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	router.GET("/live", h.Health.Live)
	router.GET("/health/detailed", h.Health.DetailedHealth)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelemetryMiddleware())
	{
		features := v1.Group("/features")
		{
			features.GET("/:symbol", h.Features.GetTable)
			features.POST("/:symbol/rebuild", admin.RequireAdminAuth(), h.Features.Rebuild)
		}

		signals := v1.Group("/signals")
		{
			signals.GET("/:symbol", h.Signals.GetOverview)
			signals.GET("/:symbol/latest", h.Signals.GetLatest)
			signals.POST("/:symbol/refresh", admin.RequireAdminAuth(), h.Signals.Refresh)
		}

		backtests := v1.Group("/backtests")
		{
			backtests.GET("", h.Backtests.ListRuns)
			backtests.GET("/:id", h.Backtests.GetRun)
			backtests.GET("/:id/trades.csv", h.Backtests.ExportLedger)
			backtests.POST("", auth.RequireScope(middleware.ScopeBacktest), h.Backtests.Run)
		}

		pipeline := v1.Group("/pipeline")
		{
			pipeline.GET("/runs", h.Pipeline.ListRuns)
			pipeline.GET("/runs/:id", h.Pipeline.GetRun)
			pipeline.POST("/runs", admin.RequireAdminAuth(), h.Pipeline.Trigger)
		}

		v1.POST("/auth/token", h.Auth.MintToken)
	}
}

// JWTExpiry parses the configured token lifetime, defaulting to 1h.
func JWTExpiry(cfg config.SecurityConfig) time.Duration {
	d, err := time.ParseDuration(cfg.JWTExpiry)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}
