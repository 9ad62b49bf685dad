package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sentipulse/sentipulse-go/internal/models"
)

// MarketRepository handles database operations for the raw market series:
// daily candles, commercial positioning reports, and sentiment readings.
type MarketRepository struct {
	pool DatabasePool
}

// NewMarketRepository creates a new market data repository.
//
// Parameters:
//
//	pool: The database connection pool.
//
// Returns:
//
//	*MarketRepository: The initialized repository.
func NewMarketRepository(pool DatabasePool) *MarketRepository {
	return &MarketRepository{
		pool: pool,
	}
}

// UpsertCandles inserts or refreshes daily candles. The day component of
// each candle is normalized to a UTC calendar day before writing.
//
// Parameters:
//
//	ctx: Context.
//	candles: Candles to persist.
//
// Returns:
//
//	int64: Number of rows written.
//	error: Error if the operation fails.
func (r *MarketRepository) UpsertCandles(ctx context.Context, candles []models.Candle) (int64, error) {
	query := `
		INSERT INTO market_candles (symbol, day, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, day)
		DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			updated_at = CURRENT_TIMESTAMP
	`

	var written int64
	for _, c := range candles {
		tag, err := r.pool.Exec(ctx, query,
			c.Symbol, models.NormalizeDay(c.Date), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return written, fmt.Errorf("failed to upsert candle for %s on %s: %w",
				c.Symbol, models.DayKey(c.Date), err)
		}
		written += tag.RowsAffected()
	}

	return written, nil
}

// GetCandles returns the candles for a symbol between from and to inclusive,
// ordered by day ascending.
func (r *MarketRepository) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	query := `
		SELECT symbol, day, open, high, low, close, volume
		FROM market_candles
		WHERE symbol = $1 AND day >= $2 AND day <= $3
		ORDER BY day ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, models.NormalizeDay(from), models.NormalizeDay(to))
	if err != nil {
		return nil, fmt.Errorf("failed to get candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Symbol, &c.Date, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// LatestCandleDay returns the most recent candle day stored for a symbol,
// or nil when the symbol has no candles yet.
func (r *MarketRepository) LatestCandleDay(ctx context.Context, symbol string) (*time.Time, error) {
	query := `
		SELECT day
		FROM market_candles
		WHERE symbol = $1
		ORDER BY day DESC
		LIMIT 1
	`

	var day time.Time
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&day)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest candle day: %w", err)
	}

	return &day, nil
}

// UpsertPositioning inserts or refreshes commercial positioning reports for
// a market.
func (r *MarketRepository) UpsertPositioning(ctx context.Context, market string, points []models.PositioningPoint) (int64, error) {
	query := `
		INSERT INTO cot_positions (market, report_date, commercial_long, commercial_short)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (market, report_date)
		DO UPDATE SET
			commercial_long = EXCLUDED.commercial_long,
			commercial_short = EXCLUDED.commercial_short,
			updated_at = CURRENT_TIMESTAMP
	`

	var written int64
	for _, p := range points {
		tag, err := r.pool.Exec(ctx, query,
			market, models.NormalizeDay(p.Date), p.CommercialLong, p.CommercialShort)
		if err != nil {
			return written, fmt.Errorf("failed to upsert positioning for %s on %s: %w",
				market, models.DayKey(p.Date), err)
		}
		written += tag.RowsAffected()
	}

	return written, nil
}

// GetPositioning returns the positioning reports for a market between from
// and to inclusive, ordered by report date ascending.
func (r *MarketRepository) GetPositioning(ctx context.Context, market string, from, to time.Time) ([]models.PositioningPoint, error) {
	query := `
		SELECT report_date, commercial_long, commercial_short
		FROM cot_positions
		WHERE market = $1 AND report_date >= $2 AND report_date <= $3
		ORDER BY report_date ASC
	`

	rows, err := r.pool.Query(ctx, query, market, models.NormalizeDay(from), models.NormalizeDay(to))
	if err != nil {
		return nil, fmt.Errorf("failed to get positioning reports: %w", err)
	}
	defer rows.Close()

	var points []models.PositioningPoint
	for rows.Next() {
		var p models.PositioningPoint
		if err := rows.Scan(&p.Date, &p.CommercialLong, &p.CommercialShort); err != nil {
			return nil, fmt.Errorf("failed to scan positioning report: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positioning reports: %w", err)
	}

	return points, nil
}

// UpsertSentiment inserts or refreshes sentiment survey readings for a
// symbol.
func (r *MarketRepository) UpsertSentiment(ctx context.Context, symbol string, points []models.SentimentPoint) (int64, error) {
	query := `
		INSERT INTO sentiment_readings (symbol, report_date, bullish, neutral, bearish)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, report_date)
		DO UPDATE SET
			bullish = EXCLUDED.bullish,
			neutral = EXCLUDED.neutral,
			bearish = EXCLUDED.bearish,
			updated_at = CURRENT_TIMESTAMP
	`

	var written int64
	for _, p := range points {
		tag, err := r.pool.Exec(ctx, query,
			symbol, models.NormalizeDay(p.Date), p.Bullish, p.Neutral, p.Bearish)
		if err != nil {
			return written, fmt.Errorf("failed to upsert sentiment for %s on %s: %w",
				symbol, models.DayKey(p.Date), err)
		}
		written += tag.RowsAffected()
	}

	return written, nil
}

// GetSentiment returns the sentiment readings for a symbol between from and
// to inclusive, ordered by report date ascending.
func (r *MarketRepository) GetSentiment(ctx context.Context, symbol string, from, to time.Time) ([]models.SentimentPoint, error) {
	query := `
		SELECT report_date, bullish, neutral, bearish
		FROM sentiment_readings
		WHERE symbol = $1 AND report_date >= $2 AND report_date <= $3
		ORDER BY report_date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, models.NormalizeDay(from), models.NormalizeDay(to))
	if err != nil {
		return nil, fmt.Errorf("failed to get sentiment readings: %w", err)
	}
	defer rows.Close()

	var points []models.SentimentPoint
	for rows.Next() {
		var p models.SentimentPoint
		if err := rows.Scan(&p.Date, &p.Bullish, &p.Neutral, &p.Bearish); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment reading: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sentiment readings: %w", err)
	}

	return points, nil
}
