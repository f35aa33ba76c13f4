package tracing

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans to the logger at debug level
type logExporter struct {
	logger *logrus.Logger
}

// NewLogExporter creates a span exporter backed by logrus
func NewLogExporter(logger *logrus.Logger) sdktrace.SpanExporter {
	return &logExporter{logger: logger}
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		entry := e.logger.WithFields(logrus.Fields{
			"trace_id":    span.SpanContext().TraceID().String(),
			"span_id":     span.SpanContext().SpanID().String(),
			"span":        span.Name(),
			"duration_ms": span.EndTime().Sub(span.StartTime()).Milliseconds(),
		})
		for _, attr := range span.Attributes() {
			entry = entry.WithField(string(attr.Key), attr.Value.Emit())
		}
		if span.Status().Code == codes.Error {
			entry.WithField("error", span.Status().Description).Debug("Span failed")
			continue
		}
		entry.Debug("Span finished")
	}
	return nil
}

func (e *logExporter) Shutdown(ctx context.Context) error {
	return nil
}

// Setup installs a global tracer provider sampling the given ratio of traces.
// The returned function flushes pending spans.
func Setup(ratio float64, logger *logrus.Logger) func(context.Context) error {
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithBatcher(NewLogExporter(logger)),
	)
	otel.SetTracerProvider(provider)

	logger.WithField("sample_ratio", ratio).Debug("Tracing initialized")
	return provider.Shutdown
}
