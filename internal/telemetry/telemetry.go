package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ServiceName is the identifier for the application service.
	ServiceName = "github.com/sentipulse/sentipulse-go"
	// ServiceVersion indicates the current version of the service.
	ServiceVersion = "1.0.0"
)

// Tracer names for the major subsystems. Spans started from these tracers
// group naturally in trace backends.
const (
	httpTracerName     = "sentipulse.http"
	databaseTracerName = "sentipulse.database"
	businessTracerName = "sentipulse.business"
	cacheTracerName    = "sentipulse.cache"
	externalTracerName = "sentipulse.external"
)

// TelemetryConfig holds configuration settings for the tracing pipeline.
type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	TraceExporter  string // "otlp" or "stdout"
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
	LogLevel       string
}

// DefaultConfig returns a TelemetryConfig with default settings.
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:        true,
		OTLPEndpoint:   "http://localhost:4318",
		TraceExporter:  "otlp",
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    "development",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
		LogLevel:       "info",
	}
}

var (
	globalProvider *Provider
	globalLogger   *slog.Logger
)

// Provider owns the configured tracer provider and exposes its shutdown hook.
type Provider struct {
	Shutdown func(context.Context) error
	logger   *slog.Logger
	flush    func(context.Context) error
}

// normalizeOTLPEndpoint splits a collector base URL into the host:port and
// URL path expected by the OTLP HTTP exporter. The /v1/traces suffix is
// appended when the URL does not already carry it.
func normalizeOTLPEndpoint(endpoint string) (hostport string, urlPath string, insecure bool, resolved string, err error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", false, "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", false, "", fmt.Errorf("endpoint %q must use an http or https scheme", endpoint)
	}
	if u.Host == "" {
		return "", "", false, "", fmt.Errorf("endpoint %q has no host", endpoint)
	}

	basePath := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(basePath, "/v1/traces") {
		basePath += "/v1/traces"
	}

	insecure = u.Scheme == "http"
	resolved = u.Scheme + "://" + u.Host + basePath
	return u.Host, basePath, insecure, resolved, nil
}

// newTraceExporter builds the span exporter selected by the configuration.
// "stdout" writes spans to standard output for local development; anything
// else is treated as OTLP over HTTP.
func newTraceExporter(ctx context.Context, config *TelemetryConfig) (sdktrace.SpanExporter, error) {
	if config.TraceExporter == "stdout" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	}

	hostport, urlPath, insecure, _, err := normalizeOTLPEndpoint(config.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLPEndpoint %q: %w", config.OTLPEndpoint, err)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(hostport),
		otlptracehttp.WithURLPath(urlPath),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// InitTelemetry initializes the global tracer provider with the provided
// configuration. It is a no-op when telemetry is disabled.
//
// Parameters:
//   - config: The configuration for telemetry.
//
// Returns:
//   - An error if initialization fails.
func InitTelemetry(config TelemetryConfig) error {
	if !config.Enabled {
		return nil
	}
	_, err := InitTelemetryWithProvider(context.Background(), &config, slog.Default())
	return err
}

// InitTelemetryWithProvider wires the OpenTelemetry tracer provider and
// returns a Provider whose Shutdown hook flushes buffered spans. A disabled
// configuration yields a Provider with a no-op shutdown so callers can defer
// it unconditionally.
func InitTelemetryWithProvider(ctx context.Context, config *TelemetryConfig, logger *slog.Logger) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return &Provider{
			Shutdown: func(context.Context) error { return nil },
			logger:   logger,
			flush:    func(context.Context) error { return nil },
		}, nil
	}

	exporter, err := newTraceExporter(ctx, config)
	if err != nil {
		return nil, err
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = ServiceName
	}
	serviceVersion := config.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = ServiceVersion
	}
	environment := config.Environment
	if environment == "" {
		environment = "development"
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
		semconv.DeploymentEnvironment(environment),
	)

	sampler := sdktrace.ParentBased(sdktrace.AlwaysSample())
	if config.SampleRate > 0 && config.SampleRate < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))
	}

	var batchOpts []sdktrace.BatchSpanProcessorOption
	if config.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(config.BatchTimeout))
	}
	if config.MaxExportBatch > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(config.MaxExportBatch))
	}
	if config.MaxQueueSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxQueueSize(config.MaxQueueSize))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter, batchOpts...),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	provider := &Provider{
		Shutdown: tp.Shutdown,
		logger:   logger,
		flush:    tp.ForceFlush,
	}
	globalProvider = provider
	globalLogger = logger
	return provider, nil
}

// Flush exports any buffered spans, blocking up to the timeout duration.
func Flush(timeout time.Duration) {
	if globalProvider == nil || globalProvider.flush == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = globalProvider.flush(ctx)
}

// Shutdown safely shuts down the global telemetry provider, flushing
// remaining spans.
func Shutdown() error {
	if globalProvider == nil || globalProvider.Shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return globalProvider.Shutdown(ctx)
}

// Logger returns the slog.Logger registered during initialization, falling
// back to the process default when telemetry was never initialized.
func Logger() *slog.Logger {
	if globalLogger != nil {
		return globalLogger
	}
	return slog.Default()
}

// GetLogger returns the logger registered during initialization, or nil when
// telemetry has not been initialized.
func GetLogger() *slog.Logger {
	return globalLogger
}

// GetTracer returns a tracer from the global provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// GetHTTPTracer returns the tracer used for inbound HTTP request spans.
func GetHTTPTracer() trace.Tracer {
	return GetTracer(httpTracerName)
}

// GetDatabaseTracer returns the tracer used for database operation spans.
func GetDatabaseTracer() trace.Tracer {
	return GetTracer(databaseTracerName)
}

// GetBusinessTracer returns the tracer used for domain operation spans.
func GetBusinessTracer() trace.Tracer {
	return GetTracer(businessTracerName)
}

// GetCacheTracer returns the tracer used for cache operation spans.
func GetCacheTracer() trace.Tracer {
	return GetTracer(cacheTracerName)
}

// GetExternalTracer returns the tracer used for outbound service call spans.
func GetExternalTracer() trace.Tracer {
	return GetTracer(externalTracerName)
}

// StartSpan starts a span on the given tracer.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}

// SetSpanAttributes sets attributes on a span.
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordError records an error event on a span. Nil errors are ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
}

// SetSpanStatus sets the status of a span.
func SetSpanStatus(span trace.Span, code codes.Code, description string) {
	span.SetStatus(code, description)
}

// StringAttribute creates a string attribute.
func StringAttribute(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// StringSliceAttribute creates a string slice attribute.
func StringSliceAttribute(key string, value []string) attribute.KeyValue {
	return attribute.StringSlice(key, value)
}

// Int64Attribute creates an int64 attribute.
func Int64Attribute(key string, value int64) attribute.KeyValue {
	return attribute.Int64(key, value)
}

// Float64Attribute creates a float64 attribute.
func Float64Attribute(key string, value float64) attribute.KeyValue {
	return attribute.Float64(key, value)
}

// BoolAttribute creates a bool attribute.
func BoolAttribute(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}
