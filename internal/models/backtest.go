package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one synthetic trade produced by the simulator. Immutable
// once created and scoped to a single run.
type TradeRecord struct {
	EntryDate   time.Time       `json:"entry_date" db:"entry_date"`
	ExitDate    time.Time       `json:"exit_date" db:"exit_date"`
	Prediction  Direction       `json:"prediction" db:"prediction"`
	Probability decimal.Decimal `json:"probability" db:"probability"`
	EntryClose  decimal.Decimal `json:"entry_close" db:"entry_close"`
	ExitClose   decimal.Decimal `json:"exit_close" db:"exit_close"`
	ReturnPct   decimal.Decimal `json:"return_pct" db:"return_pct"`
}

// BacktestSummary aggregates one simulation run
type BacktestSummary struct {
	TotalTrades         int             `json:"total_trades"`
	ProfitableTrades    int             `json:"profitable_trades"`
	WinRate             decimal.Decimal `json:"win_rate"`
	AvgReturnPct        decimal.Decimal `json:"avg_return_pct"`
	CumulativeReturnPct decimal.Decimal `json:"cumulative_return_pct"`
}

// BacktestRun is a persisted simulation run with its parameters and results
type BacktestRun struct {
	ID                   string          `json:"id" db:"id"`
	Symbol               string          `json:"symbol" db:"symbol"`
	ProbabilityThreshold decimal.Decimal `json:"probability_threshold" db:"probability_threshold"`
	HoldDays             int             `json:"hold_days" db:"hold_days"`
	TransactionCost      decimal.Decimal `json:"transaction_cost" db:"transaction_cost"`
	Summary              BacktestSummary `json:"summary"`
	Trades               []TradeRecord   `json:"trades,omitempty"`
	StartedAt            time.Time       `json:"started_at" db:"started_at"`
	FinishedAt           time.Time       `json:"finished_at" db:"finished_at"`
}
