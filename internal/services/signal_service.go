package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/telemetry"
	"github.com/sentipulse/sentipulse-go/pkg/classifier"
)

// SignalService attaches classifier output to feature tables, persists
// the resulting signals and serves the overview and latest-signal views.
type SignalService struct {
	features  FeatureStore
	signals   SignalStore
	cache     SignalCache
	predictor classifier.Predictor
	filter    *SignalFilter
	logger    *logrus.Logger
	tracer    *telemetry.BusinessTracer
}

// NewSignalService creates a signal service.
func NewSignalService(features FeatureStore, signals SignalStore, signalCache SignalCache, predictor classifier.Predictor, logger *logrus.Logger) *SignalService {
	return &SignalService{
		features:  features,
		signals:   signals,
		cache:     signalCache,
		predictor: predictor,
		filter:    NewSignalFilter(),
		logger:    logger,
		tracer:    telemetry.NewBusinessTracer(),
	}
}

// Refresh sends the stored feature table for a symbol to the classifier
// and upserts one signal per scored day. The latest-signal cache entry is
// invalidated so the next read sees the fresh call. Returns the number of
// signals written.
func (s *SignalService) Refresh(ctx context.Context, symbol string) (int, error) {
	rows, err := s.features.GetFeatureRows(ctx, symbol, nil, nil, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load feature rows for %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		s.logger.WithField("symbol", symbol).Warn("No feature rows to score")
		return 0, nil
	}

	predictions, err := s.predictor.Predict(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("classifier failed for %s: %w", symbol, err)
	}

	now := time.Now().UTC()
	written := 0
	for _, p := range predictions {
		signal := models.Signal{
			ID:          uuid.New().String(),
			Symbol:      symbol,
			Date:        models.NormalizeDay(p.Date),
			Prediction:  p.Direction,
			Probability: p.Probability,
			CreatedAt:   now,
		}
		if err := s.signals.UpsertSignal(ctx, &signal); err != nil {
			return written, fmt.Errorf("failed to persist signal for %s on %s: %w",
				symbol, models.DayKey(p.Date), err)
		}
		written++
	}

	if s.cache != nil {
		if err := s.cache.InvalidateSymbol(symbol); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to invalidate signal cache")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":  symbol,
		"signals": written,
	}).Info("Refreshed signals")
	return written, nil
}

// Latest returns the most recent signal for a symbol, served from the
// cache when fresh and falling through to the store on a miss.
func (s *SignalService) Latest(ctx context.Context, symbol string) (*models.Signal, error) {
	if s.cache != nil {
		if signal, ok := s.cache.GetLatestSignal(symbol); ok {
			return signal, nil
		}
	}

	signal, err := s.signals.GetLatestSignal(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetLatestSignal(*signal)
	}
	return signal, nil
}

// Overview returns the stored signals for a symbol passing the request's
// probability and date bounds, probability descending with ties broken by
// ascending day, truncated to the request's limit.
func (s *SignalService) Overview(ctx context.Context, symbol string, req models.SignalOverviewRequest) ([]models.Signal, error) {
	ctx, span := s.tracer.TraceSignalFiltering(ctx, symbol, req.MinProbability.InexactFloat64())
	defer span.End()

	signals, err := s.signals.GetSignals(ctx, symbol, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.tracer.RecordSignalMetrics(span, telemetry.SignalMetrics{
		SelectedCount: len(signals),
	})
	return signals, nil
}

// Digest renders the top signals of an overview as the Telegram digest
// lines, one signal per line.
func (s *SignalService) Digest(ctx context.Context, symbol string, minProbability decimal.Decimal, size int) ([]string, error) {
	signals, err := s.Overview(ctx, symbol, models.SignalOverviewRequest{
		MinProbability: minProbability,
		Limit:          size,
	})
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(signals))
	for i, sig := range signals {
		lines[i] = fmt.Sprintf("%s %s %s (p=%s)",
			models.DayKey(sig.Date), sig.Symbol, sig.Prediction, sig.Probability.Round(4))
	}
	return lines, nil
}
