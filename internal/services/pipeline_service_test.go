package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/models"
)

func pipelineConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			Symbol:         "XAUUSD",
			MinProbability: 0.6,
			DigestSize:     5,
		},
		Collector: config.CollectorConfig{BackfillDays: 365},
		Backtest: config.BacktestConfig{
			ProbabilityThreshold: 0.7,
			HoldDays:             5,
			TransactionCost:      0.001,
		},
	}
}

func newPipelineFixture() (*PipelineService, *MockCollectStage, *MockFeatureStage, *MockPredictStage, *MockBacktestStage, *MockNotifyStage, *MockPipelineStore) {
	collector := &MockCollectStage{}
	features := &MockFeatureStage{}
	signals := &MockPredictStage{}
	backtests := &MockBacktestStage{}
	notifier := &MockNotifyStage{}
	runs := &MockPipelineStore{}

	svc := NewPipelineService(collector, features, signals, backtests, notifier, runs,
		NewResourceMonitor(), pipelineConfig(), newTestLogger())
	return svc, collector, features, signals, backtests, notifier, runs
}

func TestPipelineTriggerRunsStagesInOrder(t *testing.T) {
	svc, collector, features, signals, backtests, notifier, runs := newPipelineFixture()

	var order []string
	runs.On("InsertRun", mock.Anything, mock.Anything).Return(nil)
	runs.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	collector.On("CollectOnce", mock.Anything).Run(func(mock.Arguments) {
		order = append(order, "collect")
	}).Return(nil)
	features.On("Rebuild", mock.Anything, "XAUUSD", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		order = append(order, "features")
	}).Return([]models.FeatureRow{{}}, nil)
	signals.On("Refresh", mock.Anything, "XAUUSD").Run(func(mock.Arguments) {
		order = append(order, "predict")
	}).Return(3, nil)
	signals.On("Digest", mock.Anything, "XAUUSD", mock.Anything, 5).Return([]string{"line"}, nil)
	backtests.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		order = append(order, "backtest")
	}).Return(&models.BacktestRun{Summary: models.BacktestSummary{TotalTrades: 4}}, nil)
	notifier.On("Enabled").Return(true)
	notifier.On("NotifySignalDigest", mock.Anything, "XAUUSD", []string{"line"}).Run(func(mock.Arguments) {
		order = append(order, "notify")
	}).Return(nil)
	notifier.On("NotifyPipelineRun", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	run, err := svc.Trigger(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusSucceeded, run.Status)
	assert.Equal(t, []string{"collect", "features", "predict", "backtest", "notify"}, order)
	require.Len(t, run.Stages, 5)
	for _, stage := range run.Stages {
		assert.True(t, stage.Succeeded, stage.Name)
	}
	require.NotNil(t, run.FinishedAt)
}

func TestPipelineFailFastStopsAtFirstError(t *testing.T) {
	svc, collector, features, signals, backtests, notifier, runs := newPipelineFixture()

	runs.On("InsertRun", mock.Anything, mock.Anything).Return(nil)
	runs.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	collector.On("CollectOnce", mock.Anything).Return(nil)
	features.On("Rebuild", mock.Anything, "XAUUSD", mock.Anything, mock.Anything).
		Return(nil, errors.New("aggregation blew up"))
	notifier.On("Enabled").Return(false)

	run, err := svc.Trigger(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusFailed, run.Status)
	assert.Contains(t, run.Error, "aggregation blew up")
	require.Len(t, run.Stages, 2)
	assert.True(t, run.Stages[0].Succeeded)
	assert.False(t, run.Stages[1].Succeeded)
	signals.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	backtests.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipelineStageTimeoutAbortsRun(t *testing.T) {
	svc, collector, features, signals, _, notifier, runs := newPipelineFixture()
	svc.timeouts = NewTimeoutManager(StageTimeouts{Collect: 10 * time.Millisecond}, newTestLogger())

	runs.On("InsertRun", mock.Anything, mock.Anything).Return(nil)
	runs.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Enabled").Return(false)
	collector.On("CollectOnce", mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	}).Return(context.DeadlineExceeded)

	run, err := svc.Trigger(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusFailed, run.Status)
	assert.Contains(t, run.Error, "deadline exceeded")
	require.Len(t, run.Stages, 1)
	assert.False(t, run.Stages[0].Succeeded)
	features.AssertNotCalled(t, "Rebuild", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	signals.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestPipelineRejectsConcurrentTrigger(t *testing.T) {
	svc, _, _, _, _, _, _ := newPipelineFixture()

	svc.mu.Lock()
	svc.running = true
	svc.mu.Unlock()

	_, err := svc.Trigger(context.Background())
	require.ErrorIs(t, err, ErrPipelineBusy)
	assert.True(t, svc.Running())
}

func TestPipelineSummarize(t *testing.T) {
	svc, _, _, _, _, _, _ := newPipelineFixture()

	run := &models.PipelineRun{
		Stages: []models.StageResult{
			{Name: "collect", Succeeded: true, Detail: "raw series collected", DurationMS: 120},
			{Name: "features", Succeeded: false, Error: "no candles", DurationMS: 4},
		},
	}
	btRun := &models.BacktestRun{Summary: models.BacktestSummary{
		TotalTrades:         12,
		WinRate:             decimal.RequireFromString("58.33"),
		AvgReturnPct:        decimal.RequireFromString("0.42"),
		CumulativeReturnPct: decimal.RequireFromString("5.1"),
	}}

	text := svc.Summarize(run, btRun)

	assert.Contains(t, text, "✅ Collect (120ms): raw series collected")
	assert.Contains(t, text, "❌ Features (4ms): no candles")
	assert.Contains(t, text, "Trades: 12 | Win rate: 58.33% | Avg: 0.42% | Cumulative: 5.10%")
}

func TestPipelineDigestSkippedWhenNotifierDisabled(t *testing.T) {
	svc, collector, features, signals, backtests, notifier, runs := newPipelineFixture()

	runs.On("InsertRun", mock.Anything, mock.Anything).Return(nil)
	runs.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	collector.On("CollectOnce", mock.Anything).Return(nil)
	features.On("Rebuild", mock.Anything, "XAUUSD", mock.Anything, mock.Anything).Return([]models.FeatureRow{}, nil)
	signals.On("Refresh", mock.Anything, "XAUUSD").Return(0, nil)
	signals.On("Digest", mock.Anything, "XAUUSD", mock.Anything, 5).Return([]string{}, nil)
	backtests.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.BacktestRun{}, nil)
	notifier.On("Enabled").Return(false)

	run, err := svc.Trigger(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusSucceeded, run.Status)
	notifier.AssertNotCalled(t, "NotifySignalDigest", mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "NotifyPipelineRun", mock.Anything, mock.Anything, mock.Anything)
}
