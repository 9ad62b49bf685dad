package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/telemetry"
)

// FeatureService rebuilds feature tables from the stored raw series and
// serves them joined with persisted signals as prediction records.
type FeatureService struct {
	markets    MarketStore
	features   FeatureStore
	signals    SignalStore
	aggregator *FeatureAggregator
	cotMarket  string
	logger     *logrus.Logger
	tracer     *telemetry.BusinessTracer
}

// NewFeatureService creates a feature service.
func NewFeatureService(markets MarketStore, features FeatureStore, signals SignalStore, cotMarket string, logger *logrus.Logger) *FeatureService {
	return &FeatureService{
		markets:    markets,
		features:   features,
		signals:    signals,
		aggregator: NewFeatureAggregator(),
		cotMarket:  cotMarket,
		logger:     logger,
		tracer:     telemetry.NewBusinessTracer(),
	}
}

// Rebuild loads the stored price, positioning and sentiment series for
// [from, to], runs the aggregator and replaces the persisted feature
// table for the symbol. Returns the fresh table.
func (s *FeatureService) Rebuild(ctx context.Context, symbol string, from, to time.Time) ([]models.FeatureRow, error) {
	ctx, span := s.tracer.TraceFeatureAggregation(ctx, symbol, []string{"candles", "positioning", "sentiment"})
	defer span.End()

	candles, err := s.markets.GetCandles(ctx, symbol, from, to)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load candles for %s: %w", symbol, err)
	}

	positioning, err := s.markets.GetPositioning(ctx, s.cotMarket, from, to)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load positioning for %s: %w", s.cotMarket, err)
	}

	sentiment, err := s.markets.GetSentiment(ctx, symbol, from, to)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load sentiment: %w", err)
	}

	rows := s.aggregator.Aggregate(models.PricePointsFromCandles(candles), positioning, sentiment)

	replaced, err := s.features.ReplaceFeatureRows(ctx, symbol, rows)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to persist feature rows for %s: %w", symbol, err)
	}

	stats := telemetry.FeatureTableStats{RowCount: len(rows)}
	if len(rows) > 0 {
		stats.FirstDay = models.DayKey(rows[0].Date)
		stats.LastDay = models.DayKey(rows[len(rows)-1].Date)
	}
	s.tracer.RecordFeatureTableStats(span, stats)
	s.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"rows":   replaced,
	}).Info("Rebuilt feature table")

	return rows, nil
}

// Rows returns the stored feature table for a symbol, optionally bounded
// by [from, to], ascending by day.
func (s *FeatureService) Rows(ctx context.Context, symbol string, from, to *time.Time) ([]models.FeatureRow, error) {
	return s.features.GetFeatureRows(ctx, symbol, from, to, 0)
}

// Table returns the stored feature table joined with persisted signals
// as prediction records, ascending by day. Days the classifier never
// scored keep a nil prediction and an invalid probability.
func (s *FeatureService) Table(ctx context.Context, symbol string, from, to *time.Time) ([]models.PredictionRecord, error) {
	rows, err := s.features.GetFeatureRows(ctx, symbol, from, to, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature rows for %s: %w", symbol, err)
	}

	signals, err := s.signals.GetSignals(ctx, symbol, models.SignalOverviewRequest{
		MinProbability: decimal.Zero,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load signals for %s: %w", symbol, err)
	}

	return AttachSignals(rows, signals), nil
}

// AttachSignals joins a feature table with persisted signals on the exact
// calendar day. The feature table's order is preserved; signals without a
// matching feature day are dropped.
func AttachSignals(rows []models.FeatureRow, signals []models.Signal) []models.PredictionRecord {
	byDay := make(map[string]models.Signal, len(signals))
	for _, s := range signals {
		byDay[models.DayKey(s.Date)] = s
	}

	records := make([]models.PredictionRecord, len(rows))
	for i, row := range rows {
		records[i] = models.PredictionRecord{FeatureRow: row}
		if s, ok := byDay[models.DayKey(row.Date)]; ok {
			direction := s.Prediction
			records[i].Prediction = &direction
			records[i].Probability = decimal.NullDecimal{Decimal: s.Probability, Valid: true}
		}
	}
	return records
}
