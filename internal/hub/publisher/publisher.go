package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
	"go.uber.org/zap"

	"hubhelper/internal/hub"
	"hubhelper/internal/hub/payload"
	"hubhelper/internal/validator"
)

const (
	contentType  = "application/json"
	closeTimeout = 10 * time.Second
)

// Publisher sends one canonicalized payload per call. Every call opens its
// own producer client and closes it before returning.
type Publisher struct {
	producers hub.ProducerFactory
	logger    *zap.Logger
}

func NewPublisher(producers hub.ProducerFactory, logger *zap.Logger) (*Publisher, error) {
	p := Publisher{
		producers: producers,
		logger:    logger,
	}

	if err := validator.Validate("publisher", p.producers, p.logger); err != nil {
		return nil, fmt.Errorf("failed to validate publisher deps: %w", err)
	}

	p.logger = p.logger.Named("publisher")

	return &p, nil
}

func (p *Publisher) Publish(ctx context.Context, raw string) error {
	body, err := payload.Canonicalize(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", hub.ErrInvalidPayload, err)
	}

	client, err := p.producers()
	if err != nil {
		return fmt.Errorf("failed to create producer client: %w", err)
	}
	defer p.close(client)

	batch, err := client.NewBatch(ctx)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	event := &azeventhubs.EventData{
		Body:        []byte(body),
		ContentType: ptr(contentType),
	}

	err = batch.AddEventData(event, nil)
	switch {
	case err == nil:
	case errors.Is(err, azeventhubs.ErrEventDataTooLarge):
		p.logger.Debug("event rejected by batch", zap.Int("bytes", len(event.Body)))
		return hub.ErrEventTooLarge
	default:
		return fmt.Errorf("failed to add event to batch: %w", err)
	}

	if err := client.SendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	p.logger.Debug("event sent", zap.Int("bytes", len(event.Body)))

	return nil
}

func (p *Publisher) close(client hub.ProducerClient) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := client.Close(ctx); err != nil {
		p.logger.Warn("failed to close producer client", zap.Error(err))
	}
}

func ptr[T any](v T) *T {
	return &v
}
