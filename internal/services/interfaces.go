package services

import (
	"context"
	"time"

	"github.com/sentipulse/sentipulse-go/internal/cache"
	"github.com/sentipulse/sentipulse-go/internal/models"
)

// Narrow store interfaces over the database repositories. Services accept
// these so tests can inject mocks without a live pool; the concrete
// repositories in internal/database satisfy them.

// MarketStore persists and serves the three raw time series.
type MarketStore interface {
	UpsertCandles(ctx context.Context, candles []models.Candle) (int64, error)
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	LatestCandleDay(ctx context.Context, symbol string) (*time.Time, error)
	UpsertPositioning(ctx context.Context, market string, points []models.PositioningPoint) (int64, error)
	GetPositioning(ctx context.Context, market string, from, to time.Time) ([]models.PositioningPoint, error)
	UpsertSentiment(ctx context.Context, symbol string, points []models.SentimentPoint) (int64, error)
	GetSentiment(ctx context.Context, symbol string, from, to time.Time) ([]models.SentimentPoint, error)
}

// FeatureStore persists and serves aggregated feature tables.
type FeatureStore interface {
	ReplaceFeatureRows(ctx context.Context, symbol string, featureRows []models.FeatureRow) (int64, error)
	GetFeatureRows(ctx context.Context, symbol string, from, to *time.Time, limit int) ([]models.FeatureRow, error)
	CountFeatureRows(ctx context.Context, symbol string) (int64, error)
}

// SignalStore persists and serves classifier signals.
type SignalStore interface {
	UpsertSignal(ctx context.Context, signal *models.Signal) error
	GetSignals(ctx context.Context, symbol string, req models.SignalOverviewRequest) ([]models.Signal, error)
	GetLatestSignal(ctx context.Context, symbol string) (*models.Signal, error)
}

// BacktestStore persists and serves backtest runs with their ledgers.
type BacktestStore interface {
	InsertRun(ctx context.Context, run *models.BacktestRun) error
	GetRun(ctx context.Context, id string) (*models.BacktestRun, error)
	ListRuns(ctx context.Context, symbol string, limit int) ([]models.BacktestRun, error)
}

// PipelineStore persists and serves pipeline runs.
type PipelineStore interface {
	InsertRun(ctx context.Context, run *models.PipelineRun) error
	UpdateRun(ctx context.Context, run *models.PipelineRun) error
	GetRun(ctx context.Context, id string) (*models.PipelineRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

// SignalCache is the Redis-backed cache surface the services consume.
type SignalCache interface {
	GetLatestSignal(symbol string) (*models.Signal, bool)
	SetLatestSignal(signal models.Signal)
	GetSummary(symbol string) (*cache.SummaryCacheEntry, bool)
	SetSummary(symbol, runID string, summary models.BacktestSummary)
	InvalidateSymbol(symbol string) error
}
