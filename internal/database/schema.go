package database

import (
	"context"
	"fmt"
)

// schemaStatements are applied in order at startup. Every statement is
// idempotent so repeated boots against the same database are safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS market_candles (
		symbol TEXT NOT NULL,
		day DATE NOT NULL,
		open NUMERIC(18,6) NOT NULL,
		high NUMERIC(18,6) NOT NULL,
		low NUMERIC(18,6) NOT NULL,
		close NUMERIC(18,6) NOT NULL,
		volume NUMERIC(20,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, day)
	)`,
	`CREATE TABLE IF NOT EXISTS cot_positions (
		market TEXT NOT NULL,
		report_date DATE NOT NULL,
		commercial_long NUMERIC(18,2) NOT NULL,
		commercial_short NUMERIC(18,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (market, report_date)
	)`,
	`CREATE TABLE IF NOT EXISTS sentiment_readings (
		symbol TEXT NOT NULL,
		report_date DATE NOT NULL,
		bullish NUMERIC(8,4) NOT NULL,
		neutral NUMERIC(8,4) NOT NULL,
		bearish NUMERIC(8,4) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, report_date)
	)`,
	`CREATE TABLE IF NOT EXISTS feature_rows (
		symbol TEXT NOT NULL,
		day DATE NOT NULL,
		close NUMERIC(18,6) NOT NULL,
		return_1d NUMERIC(20,10),
		ma_10 NUMERIC(20,10),
		ma_20 NUMERIC(20,10),
		volatility_10d NUMERIC(20,10),
		net_commercial NUMERIC(18,2),
		bullish NUMERIC(8,4),
		bearish NUMERIC(8,4),
		neutral NUMERIC(8,4),
		bull_bear_spread NUMERIC(8,4),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, day)
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id UUID PRIMARY KEY,
		symbol TEXT NOT NULL,
		day DATE NOT NULL,
		prediction SMALLINT NOT NULL,
		probability NUMERIC(8,6) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (symbol, day)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_symbol_probability
		ON signals (symbol, probability DESC)`,
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		id UUID PRIMARY KEY,
		symbol TEXT NOT NULL,
		probability_threshold NUMERIC(8,6) NOT NULL,
		hold_days INTEGER NOT NULL,
		transaction_cost NUMERIC(10,8) NOT NULL,
		total_trades INTEGER NOT NULL,
		profitable_trades INTEGER NOT NULL,
		win_rate NUMERIC(8,4) NOT NULL,
		avg_return_pct NUMERIC(20,10) NOT NULL,
		cumulative_return_pct NUMERIC(20,10) NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backtest_runs_symbol_started
		ON backtest_runs (symbol, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS backtest_trades (
		run_id UUID NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		entry_date DATE NOT NULL,
		exit_date DATE NOT NULL,
		prediction SMALLINT NOT NULL,
		probability NUMERIC(8,6) NOT NULL,
		entry_close NUMERIC(18,6) NOT NULL,
		exit_close NUMERIC(18,6) NOT NULL,
		return_pct NUMERIC(20,10) NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id UUID PRIMARY KEY,
		status TEXT NOT NULL,
		stages JSONB NOT NULL DEFAULT '[]'::jsonb,
		error TEXT,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`,
}

// EnsureSchema creates the tables and indexes the service depends on.
func EnsureSchema(ctx context.Context, pool DatabasePool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
