package hub

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
)

// EventBatch is a batch of events waiting to be sent. *azeventhubs.EventDataBatch
// satisfies it.
type EventBatch interface {
	// AddEventData appends an event, returning azeventhubs.ErrEventDataTooLarge
	// when it does not fit.
	AddEventData(ed *azeventhubs.EventData, options *azeventhubs.AddEventDataOptions) error

	// NumEvents returns the number of events in the batch.
	NumEvents() int32
}

// ProducerClient is a publish connection to the event hub. A client is owned
// by a single publish call and must be closed by it.
type ProducerClient interface {
	// NewBatch creates an empty batch sized by the service's limits.
	NewBatch(ctx context.Context) (EventBatch, error)

	// SendBatch sends every event in the batch.
	SendBatch(ctx context.Context, batch EventBatch) error

	// Close releases the connection.
	Close(ctx context.Context) error
}

// ConsumerClient is a read connection to the event hub scoped to one
// consumer group. A client is owned by a single read call and must be closed
// by it.
type ConsumerClient interface {
	// PartitionIDs lists the partitions of the hub.
	PartitionIDs(ctx context.Context) ([]string, error)

	// PartitionProperties reports whether a partition is empty and the
	// sequence number of its last enqueued event.
	PartitionProperties(ctx context.Context, partitionID string) (azeventhubs.PartitionProperties, error)

	// NewPartitionReceiver opens a receiver on a partition positioned at the
	// earliest retained event.
	NewPartitionReceiver(partitionID string) (PartitionReceiver, error)

	// Close releases the connection.
	Close(ctx context.Context) error
}

// PartitionReceiver reads events from a single partition.
type PartitionReceiver interface {
	// ReceiveEvents blocks until count events arrive or ctx is done. Events
	// received before ctx expired are returned together with ctx's error.
	ReceiveEvents(ctx context.Context, count int) ([]*azeventhubs.ReceivedEventData, error)

	// Close releases the receiver's link.
	Close(ctx context.Context) error
}

// ProducerFactory opens a new producer client.
type ProducerFactory func() (ProducerClient, error)

// ConsumerFactory opens a new consumer client.
type ConsumerFactory func() (ConsumerClient, error)
