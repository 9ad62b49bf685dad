package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// TestSignalRepository_NewSignalRepository tests the constructor
func TestSignalRepository_NewSignalRepository(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	adapter := NewMockPoolAdapter(mockPool)
	repo := NewSignalRepository(adapter)
	assert.NotNil(t, repo)
	assert.Equal(t, adapter, repo.pool)
}

// TestSignalRepository_UpsertSignal_Insert tests persisting a new signal
func TestSignalRepository_UpsertSignal_Insert(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	createdAt := time.Date(2024, time.March, 15, 21, 5, 0, 0, time.UTC)
	signal := &models.Signal{
		ID:          "0c4e9fb2-5d9a-4f52-9a41-6c1f6f9f3f10",
		Symbol:      "SPY",
		Date:        time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		Prediction:  models.DirectionBullish,
		Probability: decimal.RequireFromString("0.8125"),
		CreatedAt:   createdAt,
	}

	mockPool.ExpectQuery(`
		INSERT INTO signals \(id, symbol, day, prediction, probability, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)
		ON CONFLICT \(symbol, day\)
		DO UPDATE SET
			prediction = EXCLUDED\.prediction,
			probability = EXCLUDED\.probability
		RETURNING id
	`).WithArgs(signal.ID, signal.Symbol, models.NormalizeDay(signal.Date),
		1, signal.Probability, createdAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(signal.ID))

	err = repo.UpsertSignal(ctx, signal)
	assert.NoError(t, err)
	assert.Equal(t, "0c4e9fb2-5d9a-4f52-9a41-6c1f6f9f3f10", signal.ID)

	err = mockPool.ExpectationsWereMet()
	assert.NoError(t, err, "Expected all expectations to be met")
}

// TestSignalRepository_UpsertSignal_ConflictKeepsStoredID tests that the
// existing row id wins when a symbol and day already has a signal
func TestSignalRepository_UpsertSignal_ConflictKeepsStoredID(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	storedID := "11111111-2222-3333-4444-555555555555"
	signal := &models.Signal{
		ID:          "99999999-8888-7777-6666-555555555555",
		Symbol:      "SPY",
		Date:        time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		Prediction:  models.DirectionBearish,
		Probability: decimal.RequireFromString("0.7350"),
		CreatedAt:   time.Date(2024, time.March, 15, 21, 5, 0, 0, time.UTC),
	}

	mockPool.ExpectQuery(`INSERT INTO signals`).
		WithArgs(signal.ID, signal.Symbol, models.NormalizeDay(signal.Date),
			0, signal.Probability, signal.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(storedID))

	err = repo.UpsertSignal(ctx, signal)
	assert.NoError(t, err)
	assert.Equal(t, storedID, signal.ID)
}

// TestSignalRepository_UpsertSignal_Error tests the write error path
func TestSignalRepository_UpsertSignal_Error(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	signal := &models.Signal{
		ID:          "0c4e9fb2-5d9a-4f52-9a41-6c1f6f9f3f10",
		Symbol:      "SPY",
		Date:        time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		Prediction:  models.DirectionBullish,
		Probability: decimal.RequireFromString("0.8125"),
		CreatedAt:   time.Date(2024, time.March, 15, 21, 5, 0, 0, time.UTC),
	}

	mockPool.ExpectQuery(`INSERT INTO signals`).
		WithArgs(signal.ID, signal.Symbol, models.NormalizeDay(signal.Date),
			1, signal.Probability, signal.CreatedAt).
		WillReturnError(assert.AnError)

	err = repo.UpsertSignal(ctx, signal)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert signal for SPY on 2024-03-15")
}

// TestSignalRepository_GetSignals_MinProbabilityOnly tests the base overview query
func TestSignalRepository_GetSignals_MinProbabilityOnly(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	minProb := decimal.RequireFromString("0.70")
	day1 := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	createdAt := time.Date(2024, time.March, 15, 21, 5, 0, 0, time.UTC)

	mockPool.ExpectQuery(`
		SELECT id, symbol, day, prediction, probability, created_at
		FROM signals
		WHERE symbol = \$1 AND probability >= \$2 ORDER BY probability DESC, day ASC
	`).WithArgs("SPY", minProb).WillReturnRows(
		pgxmock.NewRows([]string{"id", "symbol", "day", "prediction", "probability", "created_at"}).
			AddRow("a1", "SPY", day2, 1, decimal.RequireFromString("0.8125"), createdAt).
			AddRow("a2", "SPY", day1, 0, decimal.RequireFromString("0.7350"), createdAt),
	)

	signals, err := repo.GetSignals(ctx, "SPY", models.SignalOverviewRequest{MinProbability: minProb})
	assert.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, models.DirectionBullish, signals[0].Prediction)
	assert.True(t, signals[0].Probability.Equal(decimal.RequireFromString("0.8125")))
	assert.Equal(t, models.DirectionBearish, signals[1].Prediction)
	assert.True(t, signals[1].Date.Equal(day1))
}

// TestSignalRepository_GetSignals_WithSinceAndLimit tests the narrowed overview query
func TestSignalRepository_GetSignals_WithSinceAndLimit(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	minProb := decimal.RequireFromString("0.70")
	since := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	day := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	createdAt := time.Date(2024, time.March, 15, 21, 5, 0, 0, time.UTC)

	mockPool.ExpectQuery(`
		SELECT id, symbol, day, prediction, probability, created_at
		FROM signals
		WHERE symbol = \$1 AND probability >= \$2 AND day >= \$3 ORDER BY probability DESC, day ASC LIMIT \$4
	`).WithArgs("SPY", minProb, since, 10).WillReturnRows(
		pgxmock.NewRows([]string{"id", "symbol", "day", "prediction", "probability", "created_at"}).
			AddRow("a1", "SPY", day, 1, decimal.RequireFromString("0.8125"), createdAt),
	)

	signals, err := repo.GetSignals(ctx, "SPY", models.SignalOverviewRequest{
		MinProbability: minProb,
		Since:          &since,
		Limit:          10,
	})
	assert.NoError(t, err)
	require.Len(t, signals, 1)

	err = mockPool.ExpectationsWereMet()
	assert.NoError(t, err, "Expected all expectations to be met")
}

// TestSignalRepository_GetSignals_QueryError tests the read error path
func TestSignalRepository_GetSignals_QueryError(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	minProb := decimal.RequireFromString("0.70")
	mockPool.ExpectQuery(`SELECT id, symbol, day, prediction, probability, created_at`).
		WithArgs("SPY", minProb).
		WillReturnError(assert.AnError)

	signals, err := repo.GetSignals(ctx, "SPY", models.SignalOverviewRequest{MinProbability: minProb})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get signals")
	assert.Nil(t, signals)
}

// TestSignalRepository_GetLatestSignal_Success tests fetching the newest signal
func TestSignalRepository_GetLatestSignal_Success(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	day := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	createdAt := time.Date(2024, time.March, 15, 21, 5, 0, 0, time.UTC)

	mockPool.ExpectQuery(`
		SELECT id, symbol, day, prediction, probability, created_at
		FROM signals
		WHERE symbol = \$1
		ORDER BY day DESC
		LIMIT 1
	`).WithArgs("SPY").WillReturnRows(
		pgxmock.NewRows([]string{"id", "symbol", "day", "prediction", "probability", "created_at"}).
			AddRow("a1", "SPY", day, 1, decimal.RequireFromString("0.8125"), createdAt),
	)

	signal, err := repo.GetLatestSignal(ctx, "SPY")
	assert.NoError(t, err)
	require.NotNil(t, signal)
	assert.Equal(t, "SPY", signal.Symbol)
	assert.Equal(t, models.DirectionBullish, signal.Prediction)
	assert.True(t, signal.Date.Equal(day))
}

// TestSignalRepository_GetLatestSignal_NotFound tests the missing-symbol path
func TestSignalRepository_GetLatestSignal_NotFound(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	mockPool.ExpectQuery(`SELECT id, symbol, day, prediction, probability, created_at`).
		WithArgs("EMPTY").
		WillReturnError(pgx.ErrNoRows)

	signal, err := repo.GetLatestSignal(ctx, "EMPTY")
	assert.Error(t, err)
	assert.True(t, utils.IsNotFoundError(err))
	assert.Nil(t, signal)
}
