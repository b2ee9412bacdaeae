package publisher

import (
	"context"
	"time"

	"hubhelper/internal/hub"
	"hubhelper/internal/hub/metrics"
)

// MetricsPublisher wraps a hub.Publisher with metrics collection
type MetricsPublisher struct {
	publisher hub.Publisher
	registry  *metrics.Registry
	hubName   string
}

// NewMetricsPublisher creates a new instrumented publisher
func NewMetricsPublisher(publisher hub.Publisher, registry *metrics.Registry, hubName string) hub.Publisher {
	return &MetricsPublisher{
		publisher: publisher,
		registry:  registry,
		hubName:   hubName,
	}
}

// Publish implements hub.Publisher.Publish with metrics collection
func (p *MetricsPublisher) Publish(ctx context.Context, payload string) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, payload)
	duration := time.Since(start)

	p.registry.RecordPublish(p.hubName, len(payload), duration, err)

	return err
}
