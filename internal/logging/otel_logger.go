package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTLPConfig holds configuration for shipping logs over OTLP.
type OTLPConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string
}

// OTLPLogger emits slog records through an OTLP/HTTP exporter. When
// shipping is disabled it degrades to JSON on stdout so the log call
// sites never need to know which mode is active.
type OTLPLogger struct {
	logger   *slog.Logger
	provider *log.LoggerProvider
	shutdown func(context.Context) error
}

// NewOTLPLogger builds the service logger. The collector endpoint
// defaults to the local OTLP/HTTP port when unset.
func NewOTLPLogger(config OTLPConfig) (*OTLPLogger, error) {
	if !config.Enabled {
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: getSlogLevel(config.LogLevel),
		})
		return &OTLPLogger{
			logger:   slog.New(handler),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	ctx := context.Background()

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:4318"
	}

	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithURLPath("/v1/logs"),
		otlploghttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	)

	handler := &otlpHandler{
		logger:   provider.Logger(config.ServiceName),
		minLevel: getSlogLevel(config.LogLevel),
	}

	return &OTLPLogger{
		logger:   slog.New(handler),
		provider: provider,
		shutdown: provider.Shutdown,
	}, nil
}

// Shutdown flushes any batched records.
func (l *OTLPLogger) Shutdown(ctx context.Context) error {
	if l.shutdown != nil {
		return l.shutdown(ctx)
	}
	return nil
}

// Logger returns the underlying slog.Logger.
func (l *OTLPLogger) Logger() *slog.Logger {
	return l.logger
}

// otlpHandler adapts slog records onto the OpenTelemetry log API.
// Attrs added via With are replayed onto every record, and group names
// become dotted key prefixes.
type otlpHandler struct {
	logger   otellog.Logger
	minLevel slog.Level
	preset   []otellog.KeyValue
	prefix   string
}

func (h *otlpHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *otlpHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make([]otellog.KeyValue, 0, len(h.preset)+record.NumAttrs())
	attrs = append(attrs, h.preset...)
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.convertAttr(a))
		return true
	})

	// Correlate with the active span when there is one.
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			otellog.String("trace_id", sc.TraceID().String()),
			otellog.String("span_id", sc.SpanID().String()),
		)
	}

	logRecord := otellog.Record{}
	logRecord.SetTimestamp(record.Time)
	logRecord.SetObservedTimestamp(time.Now())
	logRecord.SetSeverity(severityFromLevel(record.Level))
	logRecord.SetSeverityText(record.Level.String())
	logRecord.SetBody(otellog.StringValue(record.Message))
	logRecord.AddAttributes(attrs...)

	h.logger.Emit(ctx, logRecord)
	return nil
}

func (h *otlpHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = make([]otellog.KeyValue, 0, len(h.preset)+len(attrs))
	next.preset = append(next.preset, h.preset...)
	for _, a := range attrs {
		next.preset = append(next.preset, h.convertAttr(a))
	}
	return &next
}

func (h *otlpHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *otlpHandler) convertAttr(a slog.Attr) otellog.KeyValue {
	key := h.prefix + a.Key
	switch a.Value.Kind() {
	case slog.KindBool:
		return otellog.Bool(key, a.Value.Bool())
	case slog.KindInt64:
		return otellog.Int64(key, a.Value.Int64())
	case slog.KindUint64:
		return otellog.Int64(key, int64(a.Value.Uint64()))
	case slog.KindFloat64:
		return otellog.Float64(key, a.Value.Float64())
	case slog.KindDuration:
		return otellog.Int64(key, a.Value.Duration().Milliseconds())
	default:
		return otellog.String(key, a.Value.String())
	}
}

func severityFromLevel(level slog.Level) otellog.Severity {
	switch {
	case level >= slog.LevelError:
		return otellog.SeverityError
	case level >= slog.LevelWarn:
		return otellog.SeverityWarn
	case level >= slog.LevelInfo:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}
