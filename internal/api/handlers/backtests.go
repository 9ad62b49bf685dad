package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/services"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// BacktestRunner is the backtest service surface the handler consumes.
type BacktestRunner interface {
	Run(ctx context.Context, cfg services.BacktestRunConfig, from, to *time.Time) (*models.BacktestRun, error)
	GetRun(ctx context.Context, id string) (*models.BacktestRun, error)
	ListRuns(ctx context.Context, symbol string, limit int) ([]models.BacktestRun, error)
	WriteLedgerCSV(ctx context.Context, id string, w io.Writer) error
}

// BacktestHandler serves backtest runs: trigger, stored results and the
// CSV ledger export.
type BacktestHandler struct {
	backtests BacktestRunner
	defaults  config.BacktestConfig
	symbol    string
}

// NewBacktestHandler creates a backtest handler. symbol is the default
// when a run request names none.
func NewBacktestHandler(backtests BacktestRunner, defaults config.BacktestConfig, symbol string) *BacktestHandler {
	return &BacktestHandler{backtests: backtests, defaults: defaults, symbol: symbol}
}

type runBacktestRequest struct {
	Symbol               string   `json:"symbol"`
	ProbabilityThreshold *float64 `json:"probability_threshold"`
	HoldDays             *int     `json:"hold_days"`
	TransactionCost      *float64 `json:"transaction_cost"`
	Start                string   `json:"start"`
	End                  string   `json:"end"`
}

// Run serves POST /api/v1/backtests. Omitted parameters fall back to
// the configured defaults.
func (h *BacktestHandler) Run(c *gin.Context) {
	var req runBacktestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	symbol := req.Symbol
	if symbol == "" {
		symbol = h.symbol
	}

	cfg := services.DefaultBacktestRunConfig(symbol, h.defaults)
	if req.ProbabilityThreshold != nil {
		cfg.ProbabilityThreshold = decimal.NewFromFloat(*req.ProbabilityThreshold)
	}
	if req.HoldDays != nil {
		cfg.HoldDays = *req.HoldDays
	}
	if req.TransactionCost != nil {
		cfg.TransactionCost = decimal.NewFromFloat(*req.TransactionCost)
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

	run, err := h.backtests.Run(c.Request.Context(), cfg, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

// GetRun serves GET /api/v1/backtests/:id with the summary and ledger.
func (h *BacktestHandler) GetRun(c *gin.Context) {
	run, err := h.backtests.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListRuns serves GET /api/v1/backtests, newest first.
func (h *BacktestHandler) ListRuns(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		symbol = h.symbol
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, utils.NewValidationErrorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	runs, err := h.backtests.ListRuns(c.Request.Context(), symbol, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"count":  len(runs),
		"runs":   runs,
	})
}

// ExportLedger serves GET /api/v1/backtests/:id/trades.csv.
func (h *BacktestHandler) ExportLedger(c *gin.Context) {
	id := c.Param("id")

	// Resolve the run before any CSV bytes go out so a missing id still
	// gets a clean JSON 404.
	if _, err := h.backtests.GetRun(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="trades-`+id+`.csv"`)
	c.Status(http.StatusOK)
	if err := h.backtests.WriteLedgerCSV(c.Request.Context(), id, c.Writer); err != nil {
		respondError(c, err)
	}
}
