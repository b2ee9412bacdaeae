package publisher

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hubhelper/internal/hub"
	"hubhelper/internal/hub/tracing"
)

// TracedPublisher wraps a hub.Publisher with distributed tracing
// Layer order: TracedPublisher -> MetricsPublisher -> Publisher (real thing)
type TracedPublisher struct {
	publisher hub.Publisher
	tracer    *tracing.Tracer
	hubName   string
}

// NewTracedPublisher creates a new traced publisher that wraps a metrics publisher
func NewTracedPublisher(publisher hub.Publisher, tracer *tracing.Tracer, hubName string) hub.Publisher {
	return &TracedPublisher{
		publisher: publisher,
		tracer:    tracer,
		hubName:   hubName,
	}
}

// Publish implements hub.Publisher.Publish with distributed tracing
func (p *TracedPublisher) Publish(ctx context.Context, payload string) error {
	ctx, span := p.tracer.StartSpan(ctx, "publisher.publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	span.SetAttributes(p.tracer.PublishAttributes(p.hubName, len(payload))...)

	err := p.publisher.Publish(ctx, payload)

	if err != nil {
		p.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(p.tracer.ErrorAttributes(err)...)

	return err
}
