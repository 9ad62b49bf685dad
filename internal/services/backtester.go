package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/telemetry"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// BacktestRunConfig contains the configuration for one simulation run.
// The value is immutable for the duration of the run; there is no
// package-level state behind it.
type BacktestRunConfig struct {
	Symbol               string          `json:"symbol"`
	ProbabilityThreshold decimal.Decimal `json:"probability_threshold"`
	HoldDays             int             `json:"hold_days"`
	TransactionCost      decimal.Decimal `json:"transaction_cost"`
}

// DefaultBacktestRunConfig builds a run configuration from the service
// configuration, falling back to the stock defaults (threshold 0.70,
// hold 5 days, cost 0.001) for unset fields.
func DefaultBacktestRunConfig(symbol string, cfg config.BacktestConfig) BacktestRunConfig {
	run := BacktestRunConfig{
		Symbol:               symbol,
		ProbabilityThreshold: decimal.NewFromFloat(cfg.ProbabilityThreshold),
		HoldDays:             cfg.HoldDays,
		TransactionCost:      decimal.NewFromFloat(cfg.TransactionCost),
	}
	if run.ProbabilityThreshold.IsZero() {
		run.ProbabilityThreshold = decimal.NewFromFloat(0.70)
	}
	if run.HoldDays == 0 {
		run.HoldDays = 5
	}
	if cfg.TransactionCost == 0 {
		run.TransactionCost = decimal.NewFromFloat(0.001)
	}
	return run
}

// BacktestOutcome is the simulator's complete output: the entry-date
// ascending trade ledger and the summary derived from it.
type BacktestOutcome struct {
	Trades  []models.TradeRecord   `json:"trades"`
	Summary models.BacktestSummary `json:"summary"`
}

// Backtester simulates the fixed-hold trading strategy over a prediction
// table. One run at a time; the input table is never mutated.
//
// Every qualifying trade compounds sequentially at 100% of capital, even
// when holding windows overlap. That is the strategy's defined semantics,
// carried over from the research pipeline this service grew out of: the
// simulator does not model shared capital across concurrent positions.
type Backtester struct {
	tracer *telemetry.BusinessTracer
	mu     sync.Mutex
}

// NewBacktester creates a backtester instance.
func NewBacktester() *Backtester {
	return &Backtester{
		tracer: telemetry.NewBusinessTracer(),
	}
}

// Run executes one simulation over the full date-sorted prediction table.
// Eligibility is tested per row during the walk, never by pre-filtering:
// exit rows are resolved by positional offset into the original table.
//
// A table that is not strictly ascending and unique by date fails with a
// validation error before any trade opens; silently running on such a
// table would corrupt the positional offset math. Zero qualifying trades
// is not an error and yields the all-zero summary.
func (b *Backtester) Run(ctx context.Context, records []models.PredictionRecord, cfg BacktestRunConfig) (*BacktestOutcome, error) {
	_, span := b.tracer.TraceBacktest(ctx, cfg.Symbol, cfg.HoldDays, cfg.ProbabilityThreshold.InexactFloat64())
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := validateRunConfig(cfg); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if err := validateTableOrder(records); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	outcome := b.simulate(records, cfg)

	b.tracer.RecordBacktestSummary(span, telemetry.BacktestMetrics{
		TotalTrades:         outcome.Summary.TotalTrades,
		ProfitableTrades:    outcome.Summary.ProfitableTrades,
		WinRate:             outcome.Summary.WinRate.InexactFloat64(),
		CumulativeReturnPct: outcome.Summary.CumulativeReturnPct.InexactFloat64(),
	})
	return outcome, nil
}

func (b *Backtester) simulate(records []models.PredictionRecord, cfg BacktestRunConfig) *BacktestOutcome {
	var (
		trades     []models.TradeRecord
		profitable int
		sumReturn  = decimal.Zero
		cumulative = decimal.NewFromInt(1)
		one        = decimal.NewFromInt(1)
		hundred    = decimal.NewFromInt(100)
	)

	// The last usable entry index is length-H-1: its exit row is the
	// final row of the table.
	for i := 0; i+cfg.HoldDays < len(records); i++ {
		entry := records[i]
		if !entry.HasPrediction() {
			continue
		}
		if entry.Probability.Decimal.LessThan(cfg.ProbabilityThreshold) {
			continue
		}
		if entry.Close.IsZero() {
			continue
		}
		exit := records[i+cfg.HoldDays]

		r := exit.Close.Sub(entry.Close).Div(entry.Close)
		if !entry.Prediction.IsBullish() {
			// Bearish call models a short position profiting from decline.
			r = r.Neg()
		}
		r = r.Sub(cfg.TransactionCost)

		returnPct := r.Mul(hundred)
		trades = append(trades, models.TradeRecord{
			EntryDate:   entry.Date,
			ExitDate:    exit.Date,
			Prediction:  *entry.Prediction,
			Probability: entry.Probability.Decimal,
			EntryClose:  entry.Close,
			ExitClose:   exit.Close,
			ReturnPct:   returnPct,
		})

		sumReturn = sumReturn.Add(returnPct)
		cumulative = cumulative.Mul(one.Add(r))
		if r.GreaterThan(decimal.Zero) {
			profitable++
		}
	}

	summary := models.BacktestSummary{
		TotalTrades:         len(trades),
		ProfitableTrades:    profitable,
		WinRate:             decimal.Zero,
		AvgReturnPct:        decimal.Zero,
		CumulativeReturnPct: decimal.Zero,
	}
	if len(trades) > 0 {
		total := decimal.NewFromInt(int64(len(trades)))
		summary.WinRate = decimal.NewFromInt(int64(profitable)).Div(total).Mul(hundred)
		summary.AvgReturnPct = sumReturn.Div(total)
		summary.CumulativeReturnPct = cumulative.Sub(one).Mul(hundred)
	}

	return &BacktestOutcome{Trades: trades, Summary: summary}
}

// validateRunConfig enforces the configuration bounds before a run.
func validateRunConfig(cfg BacktestRunConfig) error {
	if cfg.ProbabilityThreshold.LessThan(decimal.Zero) || cfg.ProbabilityThreshold.GreaterThan(decimal.NewFromInt(1)) {
		return utils.NewValidationErrorf("probability_threshold must be within [0, 1], got %s", cfg.ProbabilityThreshold)
	}
	if cfg.HoldDays < 1 {
		return utils.NewValidationErrorf("hold_days must be at least 1, got %d", cfg.HoldDays)
	}
	if cfg.TransactionCost.LessThan(decimal.Zero) {
		return utils.NewValidationErrorf("transaction_cost must not be negative, got %s", cfg.TransactionCost)
	}
	return nil
}

// validateTableOrder verifies the precondition for positional-offset and
// rolling-window math: strictly ascending, unique dates.
func validateTableOrder(records []models.PredictionRecord) error {
	var prev time.Time
	for i, r := range records {
		day := models.NormalizeDay(r.Date)
		if i > 0 && !day.After(prev) {
			return utils.NewValidationErrorf(
				"prediction table must be strictly ascending by date: row %d (%s) does not follow %s",
				i, models.DayKey(day), models.DayKey(prev))
		}
		prev = day
	}
	return nil
}
