package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sentipulse/sentipulse-go/internal/models"
)

// BacktestService wraps the simulator with persistence: it loads the
// prediction table, runs the simulation, stores the run with its ledger
// and caches the latest summary per symbol.
type BacktestService struct {
	table      PredictionTableLoader
	runs       BacktestStore
	cache      SignalCache
	backtester *Backtester
	logger     *logrus.Logger
}

// PredictionTableLoader loads the full date-sorted prediction table for a
// symbol. The feature service is the production implementation.
type PredictionTableLoader interface {
	Table(ctx context.Context, symbol string, from, to *time.Time) ([]models.PredictionRecord, error)
}

// NewBacktestService creates a backtest service.
func NewBacktestService(table PredictionTableLoader, runs BacktestStore, signalCache SignalCache, logger *logrus.Logger) *BacktestService {
	return &BacktestService{
		table:      table,
		runs:       runs,
		cache:      signalCache,
		backtester: NewBacktester(),
		logger:     logger,
	}
}

// Run executes one backtest over the symbol's stored prediction table
// bounded by [from, to], persists the run with its ledger, and caches
// the summary. Zero qualifying trades still persists a valid run.
func (s *BacktestService) Run(ctx context.Context, cfg BacktestRunConfig, from, to *time.Time) (*models.BacktestRun, error) {
	records, err := s.table.Table(ctx, cfg.Symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction table for %s: %w", cfg.Symbol, err)
	}

	startedAt := time.Now().UTC()
	outcome, err := s.backtester.Run(ctx, records, cfg)
	if err != nil {
		return nil, err
	}

	run := &models.BacktestRun{
		ID:                   uuid.New().String(),
		Symbol:               cfg.Symbol,
		ProbabilityThreshold: cfg.ProbabilityThreshold,
		HoldDays:             cfg.HoldDays,
		TransactionCost:      cfg.TransactionCost,
		Summary:              outcome.Summary,
		Trades:               outcome.Trades,
		StartedAt:            startedAt,
		FinishedAt:           time.Now().UTC(),
	}

	if err := s.runs.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist backtest run for %s: %w", cfg.Symbol, err)
	}

	if s.cache != nil {
		s.cache.SetSummary(cfg.Symbol, run.ID, run.Summary)
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":       cfg.Symbol,
		"run_id":       run.ID,
		"total_trades": run.Summary.TotalTrades,
		"win_rate":     run.Summary.WinRate,
	}).Info("Backtest run completed")

	return run, nil
}

// GetRun returns a stored run with its ledger.
func (s *BacktestService) GetRun(ctx context.Context, id string) (*models.BacktestRun, error) {
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns stored runs for a symbol, newest first.
func (s *BacktestService) ListRuns(ctx context.Context, symbol string, limit int) ([]models.BacktestRun, error) {
	return s.runs.ListRuns(ctx, symbol, limit)
}

// LatestSummary returns the cached most recent summary for a symbol, or
// nil when none is cached.
func (s *BacktestService) LatestSummary(symbol string) (string, *models.BacktestSummary) {
	if s.cache == nil {
		return "", nil
	}
	entry, ok := s.cache.GetSummary(symbol)
	if !ok {
		return "", nil
	}
	return entry.RunID, &entry.Summary
}

// csvHeader is the ledger export schema.
var csvHeader = []string{"entry_date", "exit_date", "prediction", "probability", "entry_close", "exit_close", "return_pct"}

// WriteLedgerCSV streams a stored run's trade ledger as CSV, entry-date
// ascending, one row per trade under the fixed header.
func (s *BacktestService) WriteLedgerCSV(ctx context.Context, id string, w io.Writer) error {
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, trade := range run.Trades {
		record := []string{
			models.DayKey(trade.EntryDate),
			models.DayKey(trade.ExitDate),
			fmt.Sprintf("%d", int(trade.Prediction)),
			trade.Probability.String(),
			trade.EntryClose.String(),
			trade.ExitClose.String(),
			trade.ReturnPct.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV trade row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
