package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

type stubTableLoader struct {
	records []models.PredictionRecord
	err     error
}

func (s *stubTableLoader) Table(_ context.Context, _ string, _, _ *time.Time) ([]models.PredictionRecord, error) {
	return s.records, s.err
}

func TestBacktestServiceRunPersistsAndCaches(t *testing.T) {
	bullish := models.DirectionBullish
	loader := &stubTableLoader{records: []models.PredictionRecord{
		tradingRecord("2024-01-01", "100", &bullish, "0.9"),
		tradingRecord("2024-01-02", "105", nil, ""),
		tradingRecord("2024-01-03", "110", nil, ""),
	}}
	runs := &MockBacktestStore{}
	signalCache := &MockSignalCache{}

	var persisted *models.BacktestRun
	runs.On("InsertRun", mock.Anything, mock.AnythingOfType("*models.BacktestRun")).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).(*models.BacktestRun)
		}).Return(nil)
	signalCache.On("SetSummary", "SPY", mock.AnythingOfType("string"), mock.Anything).Return()

	svc := NewBacktestService(loader, runs, signalCache, newTestLogger())
	run, err := svc.Run(context.Background(), runConfig("0.7", 2, "0"), nil, nil)

	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, persisted.ID, run.ID)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 1, run.Summary.TotalTrades)
	assert.True(t, run.Summary.CumulativeReturnPct.Equal(decimal.RequireFromString("10")))
	signalCache.AssertExpectations(t)
}

func TestBacktestServiceRunRejectsBadConfig(t *testing.T) {
	loader := &stubTableLoader{}
	runs := &MockBacktestStore{}

	svc := NewBacktestService(loader, runs, nil, newTestLogger())
	_, err := svc.Run(context.Background(), runConfig("1.5", 5, "0.001"), nil, nil)

	require.Error(t, err)
	var validationErr *utils.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	runs.AssertNotCalled(t, "InsertRun", mock.Anything, mock.Anything)
}

func TestBacktestServiceLatestSummary(t *testing.T) {
	signalCache := &MockSignalCache{}
	signalCache.On("GetSummary", "XAUUSD").Return(nil, false)

	svc := NewBacktestService(&stubTableLoader{}, &MockBacktestStore{}, signalCache, newTestLogger())
	runID, summary := svc.LatestSummary("XAUUSD")

	assert.Empty(t, runID)
	assert.Nil(t, summary)
}

func TestBacktestServiceWriteLedgerCSV(t *testing.T) {
	runs := &MockBacktestStore{}
	runs.On("GetRun", mock.Anything, "run-1").Return(&models.BacktestRun{
		ID:     "run-1",
		Symbol: "XAUUSD",
		Trades: []models.TradeRecord{
			{
				EntryDate:   day("2024-01-01"),
				ExitDate:    day("2024-01-06"),
				Prediction:  models.DirectionBullish,
				Probability: decimal.RequireFromString("0.9"),
				EntryClose:  decimal.RequireFromString("100"),
				ExitClose:   decimal.RequireFromString("110"),
				ReturnPct:   decimal.RequireFromString("9.9"),
			},
			{
				EntryDate:   day("2024-01-02"),
				ExitDate:    day("2024-01-07"),
				Prediction:  models.DirectionBearish,
				Probability: decimal.RequireFromString("0.75"),
				EntryClose:  decimal.RequireFromString("110"),
				ExitClose:   decimal.RequireFromString("100"),
				ReturnPct:   decimal.RequireFromString("8.9909"),
			},
		},
	}, nil)

	svc := NewBacktestService(&stubTableLoader{}, runs, nil, newTestLogger())
	var buf bytes.Buffer
	require.NoError(t, svc.WriteLedgerCSV(context.Background(), "run-1", &buf))

	want := "entry_date,exit_date,prediction,probability,entry_close,exit_close,return_pct\n" +
		"2024-01-01,2024-01-06,1,0.9,100,110,9.9\n" +
		"2024-01-02,2024-01-07,0,0.75,110,100,8.9909\n"
	assert.Equal(t, want, buf.String())
}

func TestBacktestServiceWriteLedgerCSVNotFound(t *testing.T) {
	runs := &MockBacktestStore{}
	runs.On("GetRun", mock.Anything, "missing").Return(nil, utils.NewNotFoundError("backtest run", "missing"))

	svc := NewBacktestService(&stubTableLoader{}, runs, nil, newTestLogger())
	var buf bytes.Buffer
	err := svc.WriteLedgerCSV(context.Background(), "missing", &buf)

	require.Error(t, err)
	assert.True(t, utils.IsNotFoundError(err))
	assert.Zero(t, buf.Len())
}
