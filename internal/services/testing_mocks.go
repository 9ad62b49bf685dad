package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/sentipulse/sentipulse-go/internal/cache"
	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/pkg/marketfeed"
)

// Testify mocks for the store and stage interfaces, shared by the
// service tests in this package.

// MockMarketStore implements MarketStore.
type MockMarketStore struct {
	mock.Mock
}

func (m *MockMarketStore) UpsertCandles(ctx context.Context, candles []models.Candle) (int64, error) {
	args := m.Called(ctx, candles)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMarketStore) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	args := m.Called(ctx, symbol, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Candle), args.Error(1)
}

func (m *MockMarketStore) LatestCandleDay(ctx context.Context, symbol string) (*time.Time, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockMarketStore) UpsertPositioning(ctx context.Context, market string, points []models.PositioningPoint) (int64, error) {
	args := m.Called(ctx, market, points)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMarketStore) GetPositioning(ctx context.Context, market string, from, to time.Time) ([]models.PositioningPoint, error) {
	args := m.Called(ctx, market, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PositioningPoint), args.Error(1)
}

func (m *MockMarketStore) UpsertSentiment(ctx context.Context, symbol string, points []models.SentimentPoint) (int64, error) {
	args := m.Called(ctx, symbol, points)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMarketStore) GetSentiment(ctx context.Context, symbol string, from, to time.Time) ([]models.SentimentPoint, error) {
	args := m.Called(ctx, symbol, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SentimentPoint), args.Error(1)
}

// MockFeatureStore implements FeatureStore.
type MockFeatureStore struct {
	mock.Mock
}

func (m *MockFeatureStore) ReplaceFeatureRows(ctx context.Context, symbol string, featureRows []models.FeatureRow) (int64, error) {
	args := m.Called(ctx, symbol, featureRows)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeatureStore) GetFeatureRows(ctx context.Context, symbol string, from, to *time.Time, limit int) ([]models.FeatureRow, error) {
	args := m.Called(ctx, symbol, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeatureRow), args.Error(1)
}

func (m *MockFeatureStore) CountFeatureRows(ctx context.Context, symbol string) (int64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(int64), args.Error(1)
}

// MockSignalStore implements SignalStore.
type MockSignalStore struct {
	mock.Mock
}

func (m *MockSignalStore) UpsertSignal(ctx context.Context, signal *models.Signal) error {
	args := m.Called(ctx, signal)
	return args.Error(0)
}

func (m *MockSignalStore) GetSignals(ctx context.Context, symbol string, req models.SignalOverviewRequest) ([]models.Signal, error) {
	args := m.Called(ctx, symbol, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Signal), args.Error(1)
}

func (m *MockSignalStore) GetLatestSignal(ctx context.Context, symbol string) (*models.Signal, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Signal), args.Error(1)
}

// MockBacktestStore implements BacktestStore.
type MockBacktestStore struct {
	mock.Mock
}

func (m *MockBacktestStore) InsertRun(ctx context.Context, run *models.BacktestRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockBacktestStore) GetRun(ctx context.Context, id string) (*models.BacktestRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BacktestRun), args.Error(1)
}

func (m *MockBacktestStore) ListRuns(ctx context.Context, symbol string, limit int) ([]models.BacktestRun, error) {
	args := m.Called(ctx, symbol, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BacktestRun), args.Error(1)
}

// MockPipelineStore implements PipelineStore.
type MockPipelineStore struct {
	mock.Mock
}

func (m *MockPipelineStore) InsertRun(ctx context.Context, run *models.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockPipelineStore) UpdateRun(ctx context.Context, run *models.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockPipelineStore) GetRun(ctx context.Context, id string) (*models.PipelineRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PipelineRun), args.Error(1)
}

func (m *MockPipelineStore) ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PipelineRun), args.Error(1)
}

// MockSignalCache implements SignalCache.
type MockSignalCache struct {
	mock.Mock
}

func (m *MockSignalCache) GetLatestSignal(symbol string) (*models.Signal, bool) {
	args := m.Called(symbol)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*models.Signal), args.Bool(1)
}

func (m *MockSignalCache) SetLatestSignal(signal models.Signal) {
	m.Called(signal)
}

func (m *MockSignalCache) GetSummary(symbol string) (*cache.SummaryCacheEntry, bool) {
	args := m.Called(symbol)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*cache.SummaryCacheEntry), args.Bool(1)
}

func (m *MockSignalCache) SetSummary(symbol, runID string, summary models.BacktestSummary) {
	m.Called(symbol, runID, summary)
}

func (m *MockSignalCache) InvalidateSymbol(symbol string) error {
	args := m.Called(symbol)
	return args.Error(0)
}

// MockMarketFeed implements marketfeed.MarketFeed.
type MockMarketFeed struct {
	mock.Mock
}

func (m *MockMarketFeed) HealthCheck(ctx context.Context) (*marketfeed.HealthResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketfeed.HealthResponse), args.Error(1)
}

func (m *MockMarketFeed) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	args := m.Called(ctx, symbol, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Candle), args.Error(1)
}

func (m *MockMarketFeed) GetPositioning(ctx context.Context, market string, from, to time.Time) ([]models.PositioningPoint, error) {
	args := m.Called(ctx, market, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PositioningPoint), args.Error(1)
}

func (m *MockMarketFeed) GetSentiment(ctx context.Context, from, to time.Time) ([]models.SentimentPoint, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SentimentPoint), args.Error(1)
}

func (m *MockMarketFeed) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockPredictor implements classifier.Predictor.
type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(ctx context.Context, rows []models.FeatureRow) ([]models.Prediction, error) {
	args := m.Called(ctx, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Prediction), args.Error(1)
}

// MockCollectStage implements CollectStage.
type MockCollectStage struct {
	mock.Mock
}

func (m *MockCollectStage) CollectOnce(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockFeatureStage implements FeatureStage.
type MockFeatureStage struct {
	mock.Mock
}

func (m *MockFeatureStage) Rebuild(ctx context.Context, symbol string, from, to time.Time) ([]models.FeatureRow, error) {
	args := m.Called(ctx, symbol, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeatureRow), args.Error(1)
}

// MockPredictStage implements PredictStage.
type MockPredictStage struct {
	mock.Mock
}

func (m *MockPredictStage) Refresh(ctx context.Context, symbol string) (int, error) {
	args := m.Called(ctx, symbol)
	return args.Int(0), args.Error(1)
}

func (m *MockPredictStage) Digest(ctx context.Context, symbol string, minProbability decimal.Decimal, size int) ([]string, error) {
	args := m.Called(ctx, symbol, minProbability, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockBacktestStage implements BacktestStage.
type MockBacktestStage struct {
	mock.Mock
}

func (m *MockBacktestStage) Run(ctx context.Context, cfg BacktestRunConfig, from, to *time.Time) (*models.BacktestRun, error) {
	args := m.Called(ctx, cfg, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BacktestRun), args.Error(1)
}

// MockNotifyStage implements NotifyStage.
type MockNotifyStage struct {
	mock.Mock
}

func (m *MockNotifyStage) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockNotifyStage) NotifyPipelineRun(ctx context.Context, run *models.PipelineRun, summaryText string) error {
	args := m.Called(ctx, run, summaryText)
	return args.Error(0)
}

func (m *MockNotifyStage) NotifySignalDigest(ctx context.Context, symbol string, lines []string) error {
	args := m.Called(ctx, symbol, lines)
	return args.Error(0)
}
