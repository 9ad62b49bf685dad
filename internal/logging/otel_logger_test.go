package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
)

// emitRecorder captures emitted log records for inspection.
type emitRecorder struct {
	embedded.Logger
	records []otellog.Record
}

func (r *emitRecorder) Emit(_ context.Context, rec otellog.Record) {
	r.records = append(r.records, rec)
}

func (r *emitRecorder) Enabled(context.Context, otellog.EnabledParameters) bool {
	return true
}

func recordAttributes(rec otellog.Record) map[string]otellog.Value {
	attrs := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	return attrs
}

func TestOTLPHandlerRespectsMinLevel(t *testing.T) {
	h := &otlpHandler{logger: &emitRecorder{}, minLevel: slog.LevelWarn}

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestOTLPHandlerEmitsTypedAttributes(t *testing.T) {
	rec := &emitRecorder{}
	logger := slog.New(&otlpHandler{logger: rec, minLevel: slog.LevelDebug})

	logger.Info("signal filtered",
		"symbol", "XAUUSD",
		"rows", 42,
		"stale", true,
		"win_rate", 0.625,
		"elapsed", 1500*time.Millisecond,
	)

	require.Len(t, rec.records, 1)
	emitted := rec.records[0]
	assert.Equal(t, "signal filtered", emitted.Body().AsString())
	assert.Equal(t, otellog.SeverityInfo, emitted.Severity())

	attrs := recordAttributes(emitted)
	assert.Equal(t, "XAUUSD", attrs["symbol"].AsString())
	assert.Equal(t, int64(42), attrs["rows"].AsInt64())
	assert.Equal(t, true, attrs["stale"].AsBool())
	assert.Equal(t, 0.625, attrs["win_rate"].AsFloat64())
	assert.Equal(t, int64(1500), attrs["elapsed"].AsInt64())
}

func TestOTLPHandlerPresetAttrsAndGroups(t *testing.T) {
	rec := &emitRecorder{}
	logger := slog.New(&otlpHandler{logger: rec, minLevel: slog.LevelDebug})

	logger.With("service", "sentipulse").WithGroup("http").Info("request handled", "status", 200)

	require.Len(t, rec.records, 1)
	attrs := recordAttributes(rec.records[0])
	assert.Equal(t, "sentipulse", attrs["service"].AsString())
	assert.Equal(t, int64(200), attrs["http.status"].AsInt64())
}
