package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// SignalReader is the signal service surface the handler consumes.
type SignalReader interface {
	Latest(ctx context.Context, symbol string) (*models.Signal, error)
	Overview(ctx context.Context, symbol string, req models.SignalOverviewRequest) ([]models.Signal, error)
	Refresh(ctx context.Context, symbol string) (int, error)
}

// SignalHandler serves the signal overview, the cached latest signal
// and the admin refresh.
type SignalHandler struct {
	signals SignalReader
}

// NewSignalHandler creates a signal handler.
func NewSignalHandler(signals SignalReader) *SignalHandler {
	return &SignalHandler{signals: signals}
}

// GetLatest serves GET /api/v1/signals/:symbol/latest.
func (h *SignalHandler) GetLatest(c *gin.Context) {
	symbol := c.Param("symbol")

	signal, err := h.signals.Latest(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, signal)
}

// GetOverview serves GET /api/v1/signals/:symbol with min_probability,
// since and limit query filters.
func (h *SignalHandler) GetOverview(c *gin.Context) {
	symbol := c.Param("symbol")

	req := models.SignalOverviewRequest{}
	if raw := c.Query("min_probability"); raw != "" {
		minProbability, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(c, utils.NewValidationErrorf("invalid min_probability %q", raw))
			return
		}
		req.MinProbability = minProbability
	}
	since, err := parseDay(c.Query("since"))
	if err != nil {
		respondError(c, err)
		return
	}
	req.Since = since
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(c, utils.NewValidationErrorf("invalid limit %q", raw))
			return
		}
		req.Limit = limit
	}

	signals, err := h.signals.Overview(c.Request.Context(), symbol, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":  symbol,
		"count":   len(signals),
		"signals": signals,
	})
}

// Refresh serves POST /api/v1/signals/:symbol/refresh.
func (h *SignalHandler) Refresh(c *gin.Context) {
	symbol := c.Param("symbol")

	written, err := h.signals.Refresh(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":  symbol,
		"signals": written,
	})
}
