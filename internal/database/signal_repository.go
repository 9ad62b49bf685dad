package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// SignalRepository handles database operations for persisted signals.
type SignalRepository struct {
	pool DatabasePool
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(pool DatabasePool) *SignalRepository {
	return &SignalRepository{
		pool: pool,
	}
}

// UpsertSignal inserts a signal or refreshes the call for an existing
// symbol and day. The stored row keeps its original id on conflict; the
// signal's ID field is updated to match.
//
// Parameters:
//
//	ctx: Context.
//	signal: The signal to persist.
//
// Returns:
//
//	error: Error if the operation fails.
func (r *SignalRepository) UpsertSignal(ctx context.Context, signal *models.Signal) error {
	query := `
		INSERT INTO signals (id, symbol, day, prediction, probability, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, day)
		DO UPDATE SET
			prediction = EXCLUDED.prediction,
			probability = EXCLUDED.probability
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		signal.ID, signal.Symbol, models.NormalizeDay(signal.Date),
		int(signal.Prediction), signal.Probability, signal.CreatedAt,
	).Scan(&signal.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert signal for %s on %s: %w",
			signal.Symbol, models.DayKey(signal.Date), err)
	}

	return nil
}

// GetSignals returns the signals for a symbol at or above the requested
// probability, newest filter first by probability descending with ties
// broken by ascending day.
func (r *SignalRepository) GetSignals(ctx context.Context, symbol string, req models.SignalOverviewRequest) ([]models.Signal, error) {
	query := `
		SELECT id, symbol, day, prediction, probability, created_at
		FROM signals
		WHERE symbol = $1 AND probability >= $2`
	args := []interface{}{symbol, req.MinProbability}

	if req.Since != nil {
		args = append(args, models.NormalizeDay(*req.Since))
		query += fmt.Sprintf(" AND day >= $%d", len(args))
	}
	query += " ORDER BY probability DESC, day ASC"
	if req.Limit > 0 {
		args = append(args, req.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var s models.Signal
		var prediction int
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Date, &prediction, &s.Probability, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		s.Prediction = models.Direction(prediction)
		signals = append(signals, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return signals, nil
}

// GetLatestSignal returns the most recent signal for a symbol by day.
func (r *SignalRepository) GetLatestSignal(ctx context.Context, symbol string) (*models.Signal, error) {
	query := `
		SELECT id, symbol, day, prediction, probability, created_at
		FROM signals
		WHERE symbol = $1
		ORDER BY day DESC
		LIMIT 1
	`

	var s models.Signal
	var prediction int
	err := r.pool.QueryRow(ctx, query, symbol).Scan(
		&s.ID, &s.Symbol, &s.Date, &prediction, &s.Probability, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("signal", symbol)
		}
		return nil, fmt.Errorf("failed to get latest signal: %w", err)
	}
	s.Prediction = models.Direction(prediction)

	return &s, nil
}
