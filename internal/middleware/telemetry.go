package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sentipulse/sentipulse-go/internal/telemetry"
)

// healthPaths are served without tracing; probes fire every few seconds
// and would drown the real request spans.
var healthPaths = map[string]bool{
	"/health":          true,
	"/health/detailed": true,
	"/ready":           true,
	"/live":            true,
}

// TelemetryMiddleware traces API requests as server spans on the HTTP
// tracer. Route parameters that identify domain objects (the symbol and
// the run id) are recorded as span attributes so traces can be filtered
// per instrument or per run.
func TelemetryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		tracer := telemetry.GetHTTPTracer()
		ctx := otel.GetTextMapPropagator().Extract(
			c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.target", c.Request.URL.Path),
			attribute.String("http.client_ip", c.ClientIP()),
		}
		if route := c.FullPath(); route != "" {
			attrs = append(attrs, attribute.String("http.route", route))
		}
		if symbol := c.Param("symbol"); symbol != "" {
			attrs = append(attrs, attribute.String("signal.symbol", symbol))
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, attribute.String("run.id", id))
		}

		ctx, span := tracer.Start(ctx,
			fmt.Sprintf("HTTP %s %s", c.Request.Method, routeOrPath(c)),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int64("http.response.time_ms", time.Since(start).Milliseconds()),
			attribute.Int64("http.response.size_bytes", int64(c.Writer.Size())),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
			span.RecordError(fmt.Errorf("HTTP %d", status))
		} else {
			span.SetStatus(codes.Ok, fmt.Sprintf("HTTP %d", status))
		}
	}
}

// routeOrPath prefers the route template for span names so cardinality
// stays bounded; unmatched requests fall back to the raw path.
func routeOrPath(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
