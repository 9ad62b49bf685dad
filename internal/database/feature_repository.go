package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// FeatureRepository handles database operations for aggregated feature rows.
type FeatureRepository struct {
	pool DatabasePool
}

// NewFeatureRepository creates a new feature repository.
func NewFeatureRepository(pool DatabasePool) *FeatureRepository {
	return &FeatureRepository{
		pool: pool,
	}
}

const featureColumns = `day, close, return_1d, ma_10, ma_20, volatility_10d,
		net_commercial, bullish, bearish, neutral, bull_bear_spread`

// ReplaceFeatureRows swaps the stored feature table for a symbol with a
// freshly aggregated one. Rows for days no longer present are removed so the
// stored table always mirrors one aggregation pass.
//
// Parameters:
//
//	ctx: Context.
//	symbol: Symbol the rows belong to.
//	featureRows: The aggregated rows, ordered by day.
//
// Returns:
//
//	int64: Number of rows written.
//	error: Error if the operation fails.
func (r *FeatureRepository) ReplaceFeatureRows(ctx context.Context, symbol string, featureRows []models.FeatureRow) (int64, error) {
	deleteQuery := `DELETE FROM feature_rows WHERE symbol = $1`
	if _, err := r.pool.Exec(ctx, deleteQuery, symbol); err != nil {
		return 0, fmt.Errorf("failed to clear feature rows for %s: %w", symbol, err)
	}

	insertQuery := `
		INSERT INTO feature_rows (symbol, day, close, return_1d, ma_10, ma_20,
			volatility_10d, net_commercial, bullish, bearish, neutral, bull_bear_spread)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var written int64
	for _, row := range featureRows {
		tag, err := r.pool.Exec(ctx, insertQuery,
			symbol, models.NormalizeDay(row.Date), row.Close,
			row.Return1D, row.MA10, row.MA20, row.Volatility10D,
			row.NetCommercial, row.Bullish, row.Bearish, row.Neutral, row.BullBearSpread)
		if err != nil {
			return written, fmt.Errorf("failed to insert feature row for %s on %s: %w",
				symbol, models.DayKey(row.Date), err)
		}
		written += tag.RowsAffected()
	}

	return written, nil
}

// GetFeatureRows returns the stored feature rows for a symbol ordered by day
// ascending. Nil bounds leave the corresponding side open; limit zero means
// no limit.
func (r *FeatureRepository) GetFeatureRows(ctx context.Context, symbol string, from, to *time.Time, limit int) ([]models.FeatureRow, error) {
	query := `SELECT ` + featureColumns + ` FROM feature_rows WHERE symbol = $1`
	args := []interface{}{symbol}

	if from != nil {
		args = append(args, models.NormalizeDay(*from))
		query += fmt.Sprintf(" AND day >= $%d", len(args))
	}
	if to != nil {
		args = append(args, models.NormalizeDay(*to))
		query += fmt.Sprintf(" AND day <= $%d", len(args))
	}
	query += " ORDER BY day ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get feature rows: %w", err)
	}
	defer rows.Close()

	var featureRows []models.FeatureRow
	for rows.Next() {
		var row models.FeatureRow
		if err := scanFeatureRow(rows, &row); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		featureRows = append(featureRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feature rows: %w", err)
	}

	return featureRows, nil
}

// GetLatestFeatureRow returns the most recent feature row for a symbol.
func (r *FeatureRepository) GetLatestFeatureRow(ctx context.Context, symbol string) (*models.FeatureRow, error) {
	query := `SELECT ` + featureColumns + ` FROM feature_rows
		WHERE symbol = $1
		ORDER BY day DESC
		LIMIT 1`

	var row models.FeatureRow
	err := scanFeatureRow(r.pool.QueryRow(ctx, query, symbol), &row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("feature_row", symbol)
		}
		return nil, fmt.Errorf("failed to get latest feature row: %w", err)
	}

	return &row, nil
}

// CountFeatureRows returns the number of stored feature rows for a symbol.
func (r *FeatureRepository) CountFeatureRows(ctx context.Context, symbol string) (int64, error) {
	query := `SELECT COUNT(*) FROM feature_rows WHERE symbol = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, symbol).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feature rows: %w", err)
	}

	return count, nil
}

func scanFeatureRow(row pgx.Row, dst *models.FeatureRow) error {
	return row.Scan(
		&dst.Date,
		&dst.Close,
		&dst.Return1D,
		&dst.MA10,
		&dst.MA20,
		&dst.Volatility10D,
		&dst.NetCommercial,
		&dst.Bullish,
		&dst.Bearish,
		&dst.Neutral,
		&dst.BullBearSpread,
	)
}
