package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracerDisabled(t *testing.T) {
	tracer, cleanup, err := NewTracer(Config{ServiceName: "test"})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.StartSpan(context.Background(), "noop")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, cleanup(context.Background()))
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := NewTracerFromProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), "test")

	ctx, span := tracer.StartSpan(context.Background(), "op")
	tracer.RecordError(ctx, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}

func TestAttributes(t *testing.T) {
	tracer := NewTracerFromProvider(sdktrace.NewTracerProvider(), "test")

	attrs := tracer.ReadAttributes("orders", "$Default")
	assert.Contains(t, attrs, attribute.String("messaging.destination.name", "orders"))
	assert.Contains(t, attrs, attribute.String("messaging.consumer.group.name", "$Default"))

	attrs = tracer.PublishAttributes("orders", 42)
	assert.Contains(t, attrs, attribute.Int("messaging.message.body.size", 42))

	assert.Contains(t, tracer.ErrorAttributes(errors.New("x")), attribute.Bool("error", true))
	assert.Equal(t, []attribute.KeyValue{attribute.Bool("error", false)}, tracer.ErrorAttributes(nil))
}
