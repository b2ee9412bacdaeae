// Package client adapts the Azure Event Hubs SDK to the hub client
// interfaces. Each factory call opens a fresh connection from the configured
// connection string.
package client

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"

	"hubhelper/internal/hub"
)

// Options tunes the SDK clients.
type Options struct {
	// ApplicationID is sent to the service as part of the user agent.
	ApplicationID string `env:"EVENTHUB_APPLICATION_ID" envDefault:"hubhelper"`
}

// NewProducerFactory returns a factory of producer clients for the hub named
// in settings.
func NewProducerFactory(settings hub.Settings, opts Options) hub.ProducerFactory {
	return func() (hub.ProducerClient, error) {
		c, err := azeventhubs.NewProducerClientFromConnectionString(
			settings.EventHubConnection,
			settings.EventHubName,
			&azeventhubs.ProducerClientOptions{ApplicationID: opts.ApplicationID},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create producer for hub %s: %w", settings.EventHubName, err)
		}

		return &producer{client: c}, nil
	}
}

// NewConsumerFactory returns a factory of consumer clients for the hub and
// consumer group named in settings.
func NewConsumerFactory(settings hub.Settings, opts Options) hub.ConsumerFactory {
	return func() (hub.ConsumerClient, error) {
		c, err := azeventhubs.NewConsumerClientFromConnectionString(
			settings.EventHubConnection,
			settings.EventHubName,
			settings.ConsumerGroup,
			&azeventhubs.ConsumerClientOptions{ApplicationID: opts.ApplicationID},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer for hub %s group %s: %w", settings.EventHubName, settings.ConsumerGroup, err)
		}

		return &consumer{client: c}, nil
	}
}

type producer struct {
	client *azeventhubs.ProducerClient
}

func (p *producer) NewBatch(ctx context.Context) (hub.EventBatch, error) {
	batch, err := p.client.NewEventDataBatch(ctx, nil)
	if err != nil {
		return nil, err
	}

	return batch, nil
}

func (p *producer) SendBatch(ctx context.Context, batch hub.EventBatch) error {
	b, ok := batch.(*azeventhubs.EventDataBatch)
	if !ok {
		return fmt.Errorf("unsupported batch type %T", batch)
	}

	return p.client.SendEventDataBatch(ctx, b, nil)
}

func (p *producer) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}

type consumer struct {
	client *azeventhubs.ConsumerClient
}

func (c *consumer) PartitionIDs(ctx context.Context) ([]string, error) {
	props, err := c.client.GetEventHubProperties(ctx, nil)
	if err != nil {
		return nil, err
	}

	return props.PartitionIDs, nil
}

func (c *consumer) PartitionProperties(ctx context.Context, partitionID string) (azeventhubs.PartitionProperties, error) {
	return c.client.GetPartitionProperties(ctx, partitionID, nil)
}

func (c *consumer) NewPartitionReceiver(partitionID string) (hub.PartitionReceiver, error) {
	earliest := true
	pc, err := c.client.NewPartitionClient(partitionID, &azeventhubs.PartitionClientOptions{
		StartPosition: azeventhubs.StartPosition{Earliest: &earliest},
	})
	if err != nil {
		return nil, err
	}

	return &partitionReceiver{client: pc}, nil
}

func (c *consumer) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

type partitionReceiver struct {
	client *azeventhubs.PartitionClient
}

func (r *partitionReceiver) ReceiveEvents(ctx context.Context, count int) ([]*azeventhubs.ReceivedEventData, error) {
	return r.client.ReceiveEvents(ctx, count, nil)
}

func (r *partitionReceiver) Close(ctx context.Context) error {
	return r.client.Close(ctx)
}

var (
	_ hub.EventBatch        = (*azeventhubs.EventDataBatch)(nil)
	_ hub.ProducerClient    = (*producer)(nil)
	_ hub.ConsumerClient    = (*consumer)(nil)
	_ hub.PartitionReceiver = (*partitionReceiver)(nil)
)
