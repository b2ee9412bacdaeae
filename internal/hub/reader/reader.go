package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hubhelper/internal/hub"
	"hubhelper/internal/validator"
)

const closeTimeout = 10 * time.Second

// Config bounds how long a read waits and how much it asks for per poll.
type Config struct {
	// MaxWait is the per-poll deadline. A partition is drained once the last
	// event enqueued before the read started has been received, or when a
	// poll ends at the deadline with fewer events than requested.
	MaxWait time.Duration `env:"READ_MAX_WAIT" envDefault:"5s"`
	// BatchSize is the number of events requested per poll.
	BatchSize int `env:"READ_BATCH_SIZE" envDefault:"100"`
	// Concurrency caps how many partitions are read at once.
	Concurrency int `env:"READ_CONCURRENCY" envDefault:"8"`
}

// Reader drains every non-empty partition from the earliest retained event up
// to the last event enqueued when the read started. Every call
// opens its own consumer client and closes it before returning.
type Reader struct {
	consumers hub.ConsumerFactory
	config    Config
	logger    *zap.Logger
}

func NewReader(consumers hub.ConsumerFactory, config Config, logger *zap.Logger) (*Reader, error) {
	r := Reader{
		consumers: consumers,
		config:    config,
		logger:    logger,
	}

	if err := validator.Validate(
		"reader",
		r.consumers,
		r.config.MaxWait,
		r.config.BatchSize,
		r.config.Concurrency,
		r.logger,
	); err != nil {
		return nil, fmt.Errorf("failed to validate reader deps: %w", err)
	}

	r.logger = r.logger.Named("reader")

	return &r, nil
}

// ListRecent implements hub.Reader. The returned events are sorted even when
// err is non-nil.
func (r *Reader) ListRecent(ctx context.Context) ([]hub.EventContent, error) {
	var acc accumulator

	err := r.read(ctx, &acc)

	events := acc.list()
	hub.SortEvents(events)

	return events, err
}

func (r *Reader) read(ctx context.Context, acc *accumulator) error {
	client, err := r.consumers()
	if err != nil {
		return fmt.Errorf("failed to create consumer client: %w", err)
	}
	defer r.close("consumer client", client)

	ids, err := client.PartitionIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}

	r.logger.Debug("reading partitions", zap.Strings("partitions", ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			return r.drain(gctx, client, id, acc)
		})
	}

	return g.Wait()
}

func (r *Reader) drain(ctx context.Context, client hub.ConsumerClient, partitionID string, acc *accumulator) error {
	logger := r.logger.With(zap.String("partition", partitionID))

	props, err := client.PartitionProperties(ctx, partitionID)
	if err != nil {
		return fmt.Errorf("failed to get properties for partition %s: %w", partitionID, err)
	}
	if props.IsEmpty {
		logger.Debug("partition empty")
		return nil
	}

	receiver, err := client.NewPartitionReceiver(partitionID)
	if err != nil {
		return fmt.Errorf("failed to open partition %s: %w", partitionID, err)
	}
	defer r.close("partition receiver", receiver)

	// Events enqueued after the snapshot are not waited for, so a busy
	// partition still drains.
	last := props.LastEnqueuedSequenceNumber
	seen := int64(-1)
	var total int
	for {
		pollCtx, cancel := context.WithTimeout(ctx, r.config.MaxWait)
		received, err := receiver.ReceiveEvents(pollCtx, r.config.BatchSize)
		cancel()

		total += acc.add(partitionID, received)
		seen = max(seen, maxSequenceNumber(received))

		switch {
		case err == nil && len(received) > 0 && seen < last:
			continue
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		default:
			return fmt.Errorf("failed to receive events from partition %s: %w", partitionID, err)
		}

		logger.Debug("partition drained", zap.Int("events", total), zap.Int64("last_sequence_number", seen))
		return nil
	}
}

func maxSequenceNumber(received []*azeventhubs.ReceivedEventData) int64 {
	seq := int64(-1)
	for _, e := range received {
		if e != nil {
			seq = max(seq, e.SequenceNumber)
		}
	}
	return seq
}

func (r *Reader) close(what string, c interface{ Close(context.Context) error }) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := c.Close(ctx); err != nil {
		r.logger.Warn("failed to close "+what, zap.Error(err))
	}
}

// accumulator collects events from concurrently drained partitions.
type accumulator struct {
	mu     sync.Mutex
	events []hub.EventContent
}

// add converts and stores events that carry a body and returns how many were kept.
func (a *accumulator) add(partitionID string, received []*azeventhubs.ReceivedEventData) int {
	if len(received) == 0 {
		return 0
	}

	converted := make([]hub.EventContent, 0, len(received))
	for _, ev := range received {
		if ev == nil || ev.Body == nil {
			continue
		}
		converted = append(converted, toEventContent(partitionID, ev))
	}

	a.mu.Lock()
	a.events = append(a.events, converted...)
	a.mu.Unlock()

	return len(converted)
}

func (a *accumulator) list() []hub.EventContent {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.events
}

func toEventContent(partitionID string, ev *azeventhubs.ReceivedEventData) hub.EventContent {
	var enqueued time.Time
	if ev.EnqueuedTime != nil {
		enqueued = ev.EnqueuedTime.UTC()
	}

	return hub.EventContent{
		SequenceNumber: ev.SequenceNumber,
		Content:        string(ev.Body),
		EnqueuedTime:   enqueued,
		PartitionID:    partitionID,
	}
}
