package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// BacktestRepository handles database operations for backtest runs and
// their trades.
type BacktestRepository struct {
	pool DatabasePool
}

// NewBacktestRepository creates a new backtest repository.
func NewBacktestRepository(pool DatabasePool) *BacktestRepository {
	return &BacktestRepository{
		pool: pool,
	}
}

// InsertRun persists a completed backtest run together with its trades.
// Trades are stored with their position in the run so the original order is
// reproducible.
//
// Parameters:
//
//	ctx: Context.
//	run: The completed run, including trades.
//
// Returns:
//
//	error: Error if the operation fails.
func (r *BacktestRepository) InsertRun(ctx context.Context, run *models.BacktestRun) error {
	runQuery := `
		INSERT INTO backtest_runs (id, symbol, probability_threshold, hold_days,
			transaction_cost, total_trades, profitable_trades, win_rate,
			avg_return_pct, cumulative_return_pct, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, runQuery,
		run.ID, run.Symbol, run.ProbabilityThreshold, run.HoldDays,
		run.TransactionCost, run.Summary.TotalTrades, run.Summary.ProfitableTrades,
		run.Summary.WinRate, run.Summary.AvgReturnPct, run.Summary.CumulativeReturnPct,
		run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert backtest run: %w", err)
	}

	tradeQuery := `
		INSERT INTO backtest_trades (run_id, seq, entry_date, exit_date,
			prediction, probability, entry_close, exit_close, return_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for i, trade := range run.Trades {
		_, err := r.pool.Exec(ctx, tradeQuery,
			run.ID, i, models.NormalizeDay(trade.EntryDate), models.NormalizeDay(trade.ExitDate),
			int(trade.Prediction), trade.Probability, trade.EntryClose, trade.ExitClose,
			trade.ReturnPct)
		if err != nil {
			return fmt.Errorf("failed to insert backtest trade %d: %w", i, err)
		}
	}

	return nil
}

// GetRun returns a backtest run with its trades in run order.
func (r *BacktestRepository) GetRun(ctx context.Context, id string) (*models.BacktestRun, error) {
	runQuery := `
		SELECT id, symbol, probability_threshold, hold_days, transaction_cost,
			total_trades, profitable_trades, win_rate, avg_return_pct,
			cumulative_return_pct, started_at, finished_at
		FROM backtest_runs
		WHERE id = $1
	`

	var run models.BacktestRun
	err := r.pool.QueryRow(ctx, runQuery, id).Scan(
		&run.ID, &run.Symbol, &run.ProbabilityThreshold, &run.HoldDays,
		&run.TransactionCost, &run.Summary.TotalTrades, &run.Summary.ProfitableTrades,
		&run.Summary.WinRate, &run.Summary.AvgReturnPct, &run.Summary.CumulativeReturnPct,
		&run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("backtest_run", id)
		}
		return nil, fmt.Errorf("failed to get backtest run: %w", err)
	}

	trades, err := r.getTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Trades = trades

	return &run, nil
}

// ListRuns returns recent backtest runs without their trades, newest first.
// An empty symbol returns runs across all symbols.
func (r *BacktestRepository) ListRuns(ctx context.Context, symbol string, limit int) ([]models.BacktestRun, error) {
	query := `
		SELECT id, symbol, probability_threshold, hold_days, transaction_cost,
			total_trades, profitable_trades, win_rate, avg_return_pct,
			cumulative_return_pct, started_at, finished_at
		FROM backtest_runs
	`
	var args []interface{}

	if symbol != "" {
		args = append(args, symbol)
		query += fmt.Sprintf(" WHERE symbol = $%d", len(args))
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []models.BacktestRun
	for rows.Next() {
		var run models.BacktestRun
		err := rows.Scan(
			&run.ID, &run.Symbol, &run.ProbabilityThreshold, &run.HoldDays,
			&run.TransactionCost, &run.Summary.TotalTrades, &run.Summary.ProfitableTrades,
			&run.Summary.WinRate, &run.Summary.AvgReturnPct, &run.Summary.CumulativeReturnPct,
			&run.StartedAt, &run.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest runs: %w", err)
	}

	return runs, nil
}

func (r *BacktestRepository) getTrades(ctx context.Context, runID string) ([]models.TradeRecord, error) {
	query := `
		SELECT entry_date, exit_date, prediction, probability, entry_close,
			exit_close, return_pct
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest trades: %w", err)
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var trade models.TradeRecord
		var prediction int
		err := rows.Scan(&trade.EntryDate, &trade.ExitDate, &prediction,
			&trade.Probability, &trade.EntryClose, &trade.ExitClose, &trade.ReturnPct)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest trade: %w", err)
		}
		trade.Prediction = models.Direction(prediction)
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest trades: %w", err)
	}

	return trades, nil
}
