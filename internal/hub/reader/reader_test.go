package reader

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"hubhelper/internal/hub"
	"hubhelper/internal/hub/metrics"
	"hubhelper/internal/hub/tracing"
)

var enqueued = time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

type poll struct {
	events []*azeventhubs.ReceivedEventData
	err    error
}

// fakeReceiver replays scripted polls. Once the script is exhausted it
// behaves like an idle partition: it waits for the poll deadline when block
// is set and otherwise reports the deadline straight away. With every set it
// instead behaves like a busy partition and returns one new event per
// interval, forever.
type fakeReceiver struct {
	mu     sync.Mutex
	polls  []poll
	block  bool
	every  time.Duration
	next   int64
	calls  int
	closed bool
}

func (r *fakeReceiver) ReceiveEvents(ctx context.Context, _ int) ([]*azeventhubs.ReceivedEventData, error) {
	r.mu.Lock()
	r.calls++
	if len(r.polls) > 0 {
		p := r.polls[0]
		r.polls = r.polls[1:]
		r.mu.Unlock()
		return p.events, p.err
	}
	if r.every > 0 {
		seq := r.next
		r.next++
		r.mu.Unlock()

		select {
		case <-time.After(r.every):
			return []*azeventhubs.ReceivedEventData{event(seq, "busy")}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	block := r.block
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, context.DeadlineExceeded
}

func (r *fakeReceiver) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type fakeConsumer struct {
	receivers map[string]*fakeReceiver
	props     map[string]azeventhubs.PartitionProperties
	ids       []string
	idsErr    error
	propsErr  error
	openErr   error

	mu     sync.Mutex
	opened []string
	closed bool
}

// PartitionProperties reports an unbounded last sequence number for
// partitions without scripted properties, so their drain ends on the poll
// deadline.
func (c *fakeConsumer) PartitionProperties(_ context.Context, id string) (azeventhubs.PartitionProperties, error) {
	if c.propsErr != nil {
		return azeventhubs.PartitionProperties{}, c.propsErr
	}
	if p, ok := c.props[id]; ok {
		return p, nil
	}
	return azeventhubs.PartitionProperties{PartitionID: id, LastEnqueuedSequenceNumber: math.MaxInt64}, nil
}

func (c *fakeConsumer) PartitionIDs(context.Context) ([]string, error) {
	if c.idsErr != nil {
		return nil, c.idsErr
	}
	return c.ids, nil
}

func (c *fakeConsumer) NewPartitionReceiver(id string) (hub.PartitionReceiver, error) {
	c.mu.Lock()
	c.opened = append(c.opened, id)
	c.mu.Unlock()

	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.receivers[id], nil
}

func (c *fakeConsumer) Close(context.Context) error {
	c.closed = true
	return nil
}

func event(seq int64, body string) *azeventhubs.ReceivedEventData {
	t := enqueued.Add(time.Duration(seq) * time.Second)
	return &azeventhubs.ReceivedEventData{
		EventData:      azeventhubs.EventData{Body: []byte(body)},
		SequenceNumber: seq,
		EnqueuedTime:   &t,
	}
}

func sequenceNumbers(events []hub.EventContent) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.SequenceNumber)
	}
	return out
}

func newTestReader(t *testing.T, consumer *fakeConsumer, config Config) *Reader {
	t.Helper()
	if config.MaxWait == 0 {
		config.MaxWait = time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.Concurrency == 0 {
		config.Concurrency = 4
	}

	r, err := NewReader(func() (hub.ConsumerClient, error) { return consumer, nil }, config, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestNewReaderValidatesDeps(t *testing.T) {
	factory := func() (hub.ConsumerClient, error) { return nil, nil }

	_, err := NewReader(factory, Config{MaxWait: time.Second, BatchSize: 10}, zap.NewNop())
	require.Error(t, err, "concurrency is required")

	_, err = NewReader(nil, Config{MaxWait: time.Second, BatchSize: 10, Concurrency: 1}, zap.NewNop())
	require.Error(t, err)
}

func TestListRecentMergesAndSorts(t *testing.T) {
	consumer := &fakeConsumer{
		ids: []string{"0", "1"},
		receivers: map[string]*fakeReceiver{
			"0": {polls: []poll{{events: []*azeventhubs.ReceivedEventData{event(3, "c"), event(1, "a")}}}},
			"1": {polls: []poll{{events: []*azeventhubs.ReceivedEventData{event(4, "d"), event(1, "a2"), event(5, "e")}}}},
		},
	}
	r := newTestReader(t, consumer, Config{})

	events, err := r.ListRecent(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{5, 4, 3, 1, 1}, sequenceNumbers(events))
	assert.True(t, consumer.closed)
	for id, rec := range consumer.receivers {
		assert.True(t, rec.closed, "partition %s receiver closed", id)
	}
}

func TestListRecentMapsEvents(t *testing.T) {
	consumer := &fakeConsumer{
		ids: []string{"0"},
		receivers: map[string]*fakeReceiver{
			"0": {polls: []poll{{events: []*azeventhubs.ReceivedEventData{
				event(7, `{"a": 1}`),
				{SequenceNumber: 8},
				nil,
			}}}},
		},
	}
	r := newTestReader(t, consumer, Config{})

	events, err := r.ListRecent(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1, "events without a body are skipped")

	got := events[0]
	assert.Equal(t, int64(7), got.SequenceNumber)
	assert.Equal(t, `{"a": 1}`, got.Content)
	assert.Equal(t, "0", got.PartitionID)
	assert.Equal(t, time.UTC, got.EnqueuedTime.Location())
	assert.True(t, enqueued.Add(7*time.Second).Equal(got.EnqueuedTime))
}

func TestListRecentKeepsPollingFullBatches(t *testing.T) {
	receiver := &fakeReceiver{polls: []poll{
		{events: []*azeventhubs.ReceivedEventData{event(1, "a"), event(2, "b")}},
		{events: []*azeventhubs.ReceivedEventData{event(3, "c"), event(4, "d")}},
		{events: []*azeventhubs.ReceivedEventData{event(5, "e")}, err: context.DeadlineExceeded},
	}}
	consumer := &fakeConsumer{ids: []string{"0"}, receivers: map[string]*fakeReceiver{"0": receiver}}
	r := newTestReader(t, consumer, Config{BatchSize: 2})

	events, err := r.ListRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, sequenceNumbers(events))
	assert.Equal(t, 3, receiver.calls)
}

func TestListRecentDrainsOnPollDeadline(t *testing.T) {
	receiver := &fakeReceiver{block: true}
	consumer := &fakeConsumer{ids: []string{"0"}, receivers: map[string]*fakeReceiver{"0": receiver}}
	r := newTestReader(t, consumer, Config{MaxWait: 20 * time.Millisecond})

	start := time.Now()
	events, err := r.ListRecent(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 1, receiver.calls)
}

func TestListRecentStopsAtSnapshotOnBusyPartition(t *testing.T) {
	receiver := &fakeReceiver{every: 2 * time.Millisecond}
	consumer := &fakeConsumer{
		ids:       []string{"0"},
		receivers: map[string]*fakeReceiver{"0": receiver},
		props:     map[string]azeventhubs.PartitionProperties{"0": {PartitionID: "0", LastEnqueuedSequenceNumber: 20}},
	}
	r := newTestReader(t, consumer, Config{MaxWait: 50 * time.Millisecond, BatchSize: 100, Concurrency: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := r.ListRecent(ctx)
	require.NoError(t, err)
	require.Len(t, events, 21)
	assert.Equal(t, int64(20), events[0].SequenceNumber)
	assert.Equal(t, int64(0), events[len(events)-1].SequenceNumber)

	receiver.mu.Lock()
	defer receiver.mu.Unlock()
	assert.Equal(t, 21, receiver.calls)
	assert.True(t, receiver.closed)
}

func TestListRecentSkipsEmptyPartitions(t *testing.T) {
	consumer := &fakeConsumer{
		ids: []string{"0", "1"},
		receivers: map[string]*fakeReceiver{
			"1": {polls: []poll{{events: []*azeventhubs.ReceivedEventData{event(1, "a")}}}},
		},
		props: map[string]azeventhubs.PartitionProperties{
			"0": {PartitionID: "0", IsEmpty: true, LastEnqueuedSequenceNumber: -1},
			"1": {PartitionID: "1", LastEnqueuedSequenceNumber: 1},
		},
	}
	r := newTestReader(t, consumer, Config{})

	events, err := r.ListRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, sequenceNumbers(events))
	assert.Equal(t, []string{"1"}, consumer.opened)
	assert.Equal(t, 1, consumer.receivers["1"].calls, "last event reached without waiting for the deadline")
}

func TestListRecentReturnsPartialOnError(t *testing.T) {
	lost := errors.New("connection lost")
	receiver := &fakeReceiver{polls: []poll{
		{events: []*azeventhubs.ReceivedEventData{event(1, "a"), event(2, "b")}},
		{err: lost},
	}}
	consumer := &fakeConsumer{ids: []string{"0"}, receivers: map[string]*fakeReceiver{"0": receiver}}
	r := newTestReader(t, consumer, Config{BatchSize: 5})

	events, err := r.ListRecent(context.Background())
	require.ErrorIs(t, err, lost)
	assert.Equal(t, []int64{2, 1}, sequenceNumbers(events))
	assert.True(t, receiver.closed)
	assert.True(t, consumer.closed)
}

func TestListRecentSetupFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("client", func(t *testing.T) {
		r, err := NewReader(func() (hub.ConsumerClient, error) { return nil, boom }, Config{MaxWait: time.Second, BatchSize: 1, Concurrency: 1}, zap.NewNop())
		require.NoError(t, err)

		events, err := r.ListRecent(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Empty(t, events)
	})

	t.Run("partitions", func(t *testing.T) {
		consumer := &fakeConsumer{idsErr: boom}
		events, err := newTestReader(t, consumer, Config{}).ListRecent(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Empty(t, events)
		assert.True(t, consumer.closed)
	})

	t.Run("properties", func(t *testing.T) {
		consumer := &fakeConsumer{ids: []string{"0"}, propsErr: boom}
		_, err := newTestReader(t, consumer, Config{}).ListRecent(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Empty(t, consumer.opened)
		assert.True(t, consumer.closed)
	})

	t.Run("receiver", func(t *testing.T) {
		consumer := &fakeConsumer{ids: []string{"0"}, openErr: boom}
		_, err := newTestReader(t, consumer, Config{}).ListRecent(context.Background())
		require.ErrorIs(t, err, boom)
	})
}

func TestListRecentCancelled(t *testing.T) {
	receiver := &fakeReceiver{block: true}
	consumer := &fakeConsumer{ids: []string{"0"}, receivers: map[string]*fakeReceiver{"0": receiver}}
	r := newTestReader(t, consumer, Config{MaxWait: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ListRecent(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, consumer.closed)
}

func TestDecoratedReader(t *testing.T) {
	lost := errors.New("connection lost")
	consumer := &fakeConsumer{
		ids: []string{"0"},
		receivers: map[string]*fakeReceiver{"0": {polls: []poll{
			{events: []*azeventhubs.ReceivedEventData{event(1, "a")}},
			{err: lost},
		}}},
	}
	settings := hub.Settings{EventHubName: "orders", ConsumerGroup: "$Default"}

	registry := metrics.NewRegistry()
	recorder := tracetest.NewSpanRecorder()
	tracer := tracing.NewTracerFromProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), "test")

	r := NewTracedReader(NewMetricsReader(newTestReader(t, consumer, Config{}), registry, settings), tracer, settings)

	events, err := r.ListRecent(context.Background())
	require.ErrorIs(t, err, lost)
	require.Len(t, events, 1)

	expected := `
# HELP hubhelper_read_total Total number of list operations
# TYPE hubhelper_read_total counter
hubhelper_read_total{consumer_group="$Default",hub="orders",status="partial"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry.Gatherer(), strings.NewReader(expected), "hubhelper_read_total"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "reader.list_recent", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
