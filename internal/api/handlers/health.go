package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentipulse/sentipulse-go/internal/cache"
	"github.com/sentipulse/sentipulse-go/internal/services"
)

var startTime = time.Now()

// HealthChecker is the probe surface of a backing dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CollectorStatus reports whether the background collector loop is alive.
type CollectorStatus interface {
	IsHealthy() bool
}

// CacheStatsProvider exposes signal cache counters for the detailed view.
type CacheStatsProvider interface {
	GetStats() cache.SignalCacheStats
}

// HealthHandler serves the liveness, readiness and detailed health
// endpoints.
type HealthHandler struct {
	db        HealthChecker
	redis     HealthChecker
	collector CollectorStatus
	monitor   *services.ResourceMonitor
	caches    CacheStatsProvider
	cooldowns cache.SourceCooldownCache
	version   string
}

// HealthResponse is the liveness/readiness payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db, redis HealthChecker, collector CollectorStatus, monitor *services.ResourceMonitor, caches CacheStatsProvider, cooldowns cache.SourceCooldownCache, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		collector: collector,
		monitor:   monitor,
		caches:    caches,
		cooldowns: cooldowns,
		version:   version,
	}
}

func (h *HealthHandler) probe(ctx context.Context) (string, map[string]string) {
	checks := make(map[string]string)

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "unhealthy: not configured"
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "unhealthy: not configured"
	}

	if h.collector != nil {
		if h.collector.IsHealthy() {
			checks["collector"] = "healthy"
		} else {
			checks["collector"] = "unhealthy: loop not running"
		}
	}

	status := "healthy"
	for _, s := range checks {
		if s != "healthy" {
			status = "unhealthy"
			break
		}
	}
	return status, checks
}

// Health serves GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	status, checks := h.probe(c.Request.Context())

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Services:  checks,
		Version:   h.version,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	})
}

// Live serves GET /live. The process answering is the whole check.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready serves GET /ready: the service is ready once both stores answer.
func (h *HealthHandler) Ready(c *gin.Context) {
	status, checks := h.probe(c.Request.Context())
	if status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "services": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "services": checks})
}

// DetailedHealth serves GET /health/detailed with resource and cache
// statistics on top of the dependency checks.
func (h *HealthHandler) DetailedHealth(c *gin.Context) {
	status, checks := h.probe(c.Request.Context())

	detail := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"services":  checks,
		"version":   h.version,
		"uptime":    time.Since(startTime).Round(time.Second).String(),
	}
	if h.monitor != nil {
		detail["system"] = h.monitor.SystemInfo()
		detail["resources"] = h.monitor.Sample(c.Request.Context())
	}
	if h.caches != nil {
		detail["signal_cache"] = h.caches.GetStats()
	}
	if h.cooldowns != nil {
		detail["cooldowns"] = h.cooldowns.GetStats()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, detail)
}
