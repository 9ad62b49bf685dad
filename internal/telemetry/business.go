package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessTracer provides utilities for tracing domain operations such as
// feature aggregation, signal filtering, and backtest runs.
type BusinessTracer struct {
	tracer trace.Tracer
}

// NewBusinessTracer creates a new instance of BusinessTracer.
//
// Returns:
//   - A pointer to an initialized BusinessTracer.
func NewBusinessTracer() *BusinessTracer {
	return &BusinessTracer{tracer: GetBusinessTracer()}
}

// TraceFeatureAggregation starts a span covering the assembly of a feature
// table for one symbol.
func (bt *BusinessTracer) TraceFeatureAggregation(ctx context.Context, symbol string, sources []string) (context.Context, trace.Span) {
	ctx, span := bt.tracer.Start(ctx, "feature_aggregation")
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.StringSlice("sources", sources),
	)
	return ctx, span
}

// RecordFeatureTableStats adds the shape of a built feature table to an
// existing span.
func (bt *BusinessTracer) RecordFeatureTableStats(span trace.Span, stats FeatureTableStats) {
	span.SetAttributes(
		attribute.Int("row_count", stats.RowCount),
		attribute.Int("dropped_rows", stats.DroppedRows),
		attribute.String("first_day", stats.FirstDay),
		attribute.String("last_day", stats.LastDay),
		attribute.Int64("build_time_ms", stats.BuildTime.Milliseconds()),
	)
}

// TraceSignalFiltering starts a span covering the selection of eligible
// signals from scored predictions.
func (bt *BusinessTracer) TraceSignalFiltering(ctx context.Context, symbol string, minProbability float64) (context.Context, trace.Span) {
	ctx, span := bt.tracer.Start(ctx, "signal_filtering")
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.Float64("min_probability", minProbability),
	)
	return ctx, span
}

// RecordSignalMetrics records filtering statistics onto a span.
func (bt *BusinessTracer) RecordSignalMetrics(span trace.Span, metrics SignalMetrics) {
	span.SetAttributes(
		attribute.Int("candidate_count", metrics.CandidateCount),
		attribute.Int("eligible_count", metrics.EligibleCount),
		attribute.Int("selected_count", metrics.SelectedCount),
		attribute.Int64("processing_time_ms", metrics.ProcessingTime.Milliseconds()),
	)
}

// TraceBacktest starts a span covering a backtest simulation run.
func (bt *BusinessTracer) TraceBacktest(ctx context.Context, symbol string, holdDays int, threshold float64) (context.Context, trace.Span) {
	ctx, span := bt.tracer.Start(ctx, "backtest_run")
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.Int("hold_days", holdDays),
		attribute.Float64("probability_threshold", threshold),
	)
	return ctx, span
}

// RecordBacktestSummary adds the outcome of a backtest run to a span.
func (bt *BusinessTracer) RecordBacktestSummary(span trace.Span, summary BacktestMetrics) {
	span.SetAttributes(
		attribute.Int("total_trades", summary.TotalTrades),
		attribute.Int("profitable_trades", summary.ProfitableTrades),
		attribute.Float64("win_rate", summary.WinRate),
		attribute.Float64("avg_return_pct", summary.AvgReturnPct),
		attribute.Float64("cumulative_return_pct", summary.CumulativeReturnPct),
	)
}

// TraceMarketDataCollection starts a span covering the collection of market
// data from an upstream source.
func (bt *BusinessTracer) TraceMarketDataCollection(ctx context.Context, source string, symbols []string) (context.Context, trace.Span) {
	ctx, span := bt.tracer.Start(ctx, "market_data_collection")
	span.SetAttributes(
		attribute.String("source", source),
		attribute.StringSlice("symbols", symbols),
	)
	return ctx, span
}

// RecordMarketDataMetrics records collection statistics onto a span.
func (bt *BusinessTracer) RecordMarketDataMetrics(span trace.Span, metrics MarketDataMetrics) {
	span.SetAttributes(
		attribute.Int("collected_count", metrics.CollectedCount),
		attribute.Int("failed_count", metrics.FailedCount),
		attribute.Int64("collection_time_ms", metrics.CollectionTime.Milliseconds()),
		attribute.Float64("success_rate", metrics.SuccessRate),
	)
}

// TraceNotification starts a span covering notification delivery.
func (bt *BusinessTracer) TraceNotification(ctx context.Context, notificationType string, channel string) (context.Context, trace.Span) {
	ctx, span := bt.tracer.Start(ctx, "notification")
	span.SetAttributes(
		attribute.String("notification_type", notificationType),
		attribute.String("channel", channel),
	)
	return ctx, span
}

// RecordNotificationResult records the outcome of a notification attempt
// onto a span.
func (bt *BusinessTracer) RecordNotificationResult(span trace.Span, success bool, recipientCount int, err error) {
	span.SetAttributes(
		attribute.Bool("success", success),
		attribute.Int("recipient_count", recipientCount),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TracePipelineStage starts a span covering one stage of a pipeline run.
func (bt *BusinessTracer) TracePipelineStage(ctx context.Context, runID, stage string) (context.Context, trace.Span) {
	ctx, span := bt.tracer.Start(ctx, "pipeline_stage")
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("stage", stage),
	)
	return ctx, span
}

// RecordPipelineStageResult records the outcome of a pipeline stage onto
// a span.
func (bt *BusinessTracer) RecordPipelineStageResult(span trace.Span, duration time.Duration, err error) {
	span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// FeatureTableStats describes the shape of a built feature table.
type FeatureTableStats struct {
	RowCount    int
	DroppedRows int
	FirstDay    string
	LastDay     string
	BuildTime   time.Duration
}

// SignalMetrics describes the outcome of a signal filtering pass.
type SignalMetrics struct {
	CandidateCount int
	EligibleCount  int
	SelectedCount  int
	ProcessingTime time.Duration
}

// BacktestMetrics describes the summary of a backtest run.
type BacktestMetrics struct {
	TotalTrades         int
	ProfitableTrades    int
	WinRate             float64
	AvgReturnPct        float64
	CumulativeReturnPct float64
}

// MarketDataMetrics describes the outcome of a market data collection pass.
type MarketDataMetrics struct {
	CollectedCount int
	FailedCount    int
	CollectionTime time.Duration
	SuccessRate    float64
}
