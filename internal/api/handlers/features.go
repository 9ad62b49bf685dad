package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentipulse/sentipulse-go/internal/models"
)

// FeatureReader is the feature service surface the handler consumes.
type FeatureReader interface {
	Table(ctx context.Context, symbol string, from, to *time.Time) ([]models.PredictionRecord, error)
	Rebuild(ctx context.Context, symbol string, from, to time.Time) ([]models.FeatureRow, error)
}

// FeatureHandler serves the stored feature table and the admin rebuild.
type FeatureHandler struct {
	features     FeatureReader
	backfillDays int
}

// NewFeatureHandler creates a feature handler. backfillDays bounds the
// default rebuild window when the request names no range.
func NewFeatureHandler(features FeatureReader, backfillDays int) *FeatureHandler {
	if backfillDays <= 0 {
		backfillDays = 730
	}
	return &FeatureHandler{features: features, backfillDays: backfillDays}
}

// GetTable serves GET /api/v1/features/:symbol. start and end narrow the
// table to [start, end] calendar days.
func (h *FeatureHandler) GetTable(c *gin.Context) {
	symbol := c.Param("symbol")

	from, err := parseDay(c.Query("start"))
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := parseDay(c.Query("end"))
	if err != nil {
		respondError(c, err)
		return
	}

	records, err := h.features.Table(c.Request.Context(), symbol, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"count":  len(records),
		"rows":   records,
	})
}

type rebuildRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Rebuild serves POST /api/v1/features/:symbol/rebuild. An empty body
// rebuilds over the configured backfill window.
func (h *FeatureHandler) Rebuild(c *gin.Context) {
	symbol := c.Param("symbol")

	var req rebuildRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	from, err := parseDay(req.Start)
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := parseDay(req.End)
	if err != nil {
		respondError(c, err)
		return
	}

	end := models.NormalizeDay(time.Now())
	start := end.AddDate(0, 0, -h.backfillDays)
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}

	rows, err := h.features.Rebuild(c.Request.Context(), symbol, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"rows":   len(rows),
		"start":  models.DayKey(start),
		"end":    models.DayKey(end),
	})
}
