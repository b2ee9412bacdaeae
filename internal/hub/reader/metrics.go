package reader

import (
	"context"
	"time"

	"hubhelper/internal/hub"
	"hubhelper/internal/hub/metrics"
)

// MetricsReader wraps a hub.Reader with metrics collection
type MetricsReader struct {
	reader        hub.Reader
	registry      *metrics.Registry
	hubName       string
	consumerGroup string
}

// NewMetricsReader creates a new instrumented reader
func NewMetricsReader(reader hub.Reader, registry *metrics.Registry, settings hub.Settings) hub.Reader {
	return &MetricsReader{
		reader:        reader,
		registry:      registry,
		hubName:       settings.EventHubName,
		consumerGroup: settings.ConsumerGroup,
	}
}

// ListRecent implements hub.Reader.ListRecent with metrics collection
func (r *MetricsReader) ListRecent(ctx context.Context) ([]hub.EventContent, error) {
	start := time.Now()

	events, err := r.reader.ListRecent(ctx)
	duration := time.Since(start)

	r.registry.RecordRead(r.hubName, r.consumerGroup, len(events), duration, err)

	return events, err
}
