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

	"github.com/sentipulse/sentipulse-go/internal/models"
)

func TestSignalServiceRefresh(t *testing.T) {
	features := &MockFeatureStore{}
	signals := &MockSignalStore{}
	signalCache := &MockSignalCache{}
	predictor := &MockPredictor{}

	rows := []models.FeatureRow{
		{Date: day("2024-01-01"), Close: decimal.NewFromInt(2000)},
		{Date: day("2024-01-02"), Close: decimal.NewFromInt(2010)},
	}
	predictions := []models.Prediction{
		{Date: day("2024-01-01"), Direction: models.DirectionBullish, Probability: decimal.RequireFromString("0.72")},
		{Date: day("2024-01-02"), Direction: models.DirectionBearish, Probability: decimal.RequireFromString("0.66")},
	}

	features.On("GetFeatureRows", mock.Anything, "XAUUSD", (*time.Time)(nil), (*time.Time)(nil), 0).Return(rows, nil)
	predictor.On("Predict", mock.Anything, rows).Return(predictions, nil)
	signals.On("UpsertSignal", mock.Anything, mock.MatchedBy(func(s *models.Signal) bool {
		return s.Symbol == "XAUUSD" && s.ID != ""
	})).Return(nil).Twice()
	signalCache.On("InvalidateSymbol", "XAUUSD").Return(nil)

	svc := NewSignalService(features, signals, signalCache, predictor, newTestLogger())
	written, err := svc.Refresh(context.Background(), "XAUUSD")

	require.NoError(t, err)
	assert.Equal(t, 2, written)
	signals.AssertExpectations(t)
	signalCache.AssertExpectations(t)
}

func TestSignalServiceRefreshEmptyTable(t *testing.T) {
	features := &MockFeatureStore{}
	signals := &MockSignalStore{}
	predictor := &MockPredictor{}

	features.On("GetFeatureRows", mock.Anything, "XAUUSD", (*time.Time)(nil), (*time.Time)(nil), 0).
		Return([]models.FeatureRow{}, nil)

	svc := NewSignalService(features, signals, nil, predictor, newTestLogger())
	written, err := svc.Refresh(context.Background(), "XAUUSD")

	require.NoError(t, err)
	assert.Zero(t, written)
	predictor.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestSignalServiceRefreshClassifierError(t *testing.T) {
	features := &MockFeatureStore{}
	signals := &MockSignalStore{}
	predictor := &MockPredictor{}

	rows := []models.FeatureRow{{Date: day("2024-01-01"), Close: decimal.NewFromInt(2000)}}
	features.On("GetFeatureRows", mock.Anything, "XAUUSD", (*time.Time)(nil), (*time.Time)(nil), 0).Return(rows, nil)
	predictor.On("Predict", mock.Anything, rows).Return(nil, errors.New("sidecar unavailable"))

	svc := NewSignalService(features, signals, nil, predictor, newTestLogger())
	_, err := svc.Refresh(context.Background(), "XAUUSD")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier failed")
	signals.AssertNotCalled(t, "UpsertSignal", mock.Anything, mock.Anything)
}

func TestSignalServiceLatestCacheHit(t *testing.T) {
	signals := &MockSignalStore{}
	signalCache := &MockSignalCache{}

	cached := &models.Signal{Symbol: "XAUUSD", Date: day("2024-01-02"), Prediction: models.DirectionBullish}
	signalCache.On("GetLatestSignal", "XAUUSD").Return(cached, true)

	svc := NewSignalService(nil, signals, signalCache, nil, newTestLogger())
	got, err := svc.Latest(context.Background(), "XAUUSD")

	require.NoError(t, err)
	assert.Equal(t, cached, got)
	signals.AssertNotCalled(t, "GetLatestSignal", mock.Anything, mock.Anything)
}

func TestSignalServiceLatestCacheMissFillsCache(t *testing.T) {
	signals := &MockSignalStore{}
	signalCache := &MockSignalCache{}

	stored := &models.Signal{Symbol: "XAUUSD", Date: day("2024-01-02"), Prediction: models.DirectionBearish}
	signalCache.On("GetLatestSignal", "XAUUSD").Return(nil, false)
	signals.On("GetLatestSignal", mock.Anything, "XAUUSD").Return(stored, nil)
	signalCache.On("SetLatestSignal", *stored).Return()

	svc := NewSignalService(nil, signals, signalCache, nil, newTestLogger())
	got, err := svc.Latest(context.Background(), "XAUUSD")

	require.NoError(t, err)
	assert.Equal(t, stored, got)
	signalCache.AssertExpectations(t)
}

func TestSignalServiceDigestFormat(t *testing.T) {
	signals := &MockSignalStore{}

	stored := []models.Signal{
		{Symbol: "XAUUSD", Date: day("2024-01-02"), Prediction: models.DirectionBullish, Probability: decimal.RequireFromString("0.912")},
		{Symbol: "XAUUSD", Date: day("2024-01-01"), Prediction: models.DirectionBearish, Probability: decimal.RequireFromString("0.88")},
	}
	signals.On("GetSignals", mock.Anything, "XAUUSD", mock.MatchedBy(func(req models.SignalOverviewRequest) bool {
		return req.Limit == 10
	})).Return(stored, nil)

	svc := NewSignalService(nil, signals, nil, nil, newTestLogger())
	lines, err := svc.Digest(context.Background(), "XAUUSD", decimal.RequireFromString("0.6"), 10)

	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-01-02 XAUUSD bullish (p=0.912)", lines[0])
	assert.Equal(t, "2024-01-01 XAUUSD bearish (p=0.88)", lines[1])
}
