package reader

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hubhelper/internal/hub"
	"hubhelper/internal/hub/tracing"
)

// TracedReader wraps a hub.Reader with distributed tracing
// Layer order: TracedReader -> MetricsReader -> Reader (real thing)
type TracedReader struct {
	reader   hub.Reader
	tracer   *tracing.Tracer
	settings hub.Settings
}

// NewTracedReader creates a new traced reader that wraps a metrics reader
func NewTracedReader(reader hub.Reader, tracer *tracing.Tracer, settings hub.Settings) hub.Reader {
	return &TracedReader{
		reader:   reader,
		tracer:   tracer,
		settings: settings,
	}
}

// ListRecent implements hub.Reader.ListRecent with distributed tracing
func (r *TracedReader) ListRecent(ctx context.Context) ([]hub.EventContent, error) {
	ctx, span := r.tracer.StartSpan(ctx, "reader.list_recent", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	span.SetAttributes(r.tracer.ReadAttributes(r.settings.EventHubName, r.settings.ConsumerGroup)...)

	events, err := r.reader.ListRecent(ctx)

	span.SetAttributes(attribute.Int("messaging.batch.message_count", len(events)))

	if err != nil {
		r.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(r.tracer.ErrorAttributes(err)...)

	return events, err
}
