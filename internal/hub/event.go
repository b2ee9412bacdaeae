package hub

import (
	"cmp"
	"slices"
	"time"
)

// EventContent is a single event read back from the hub for display.
type EventContent struct {
	// SequenceNumber is assigned by the service and only increases within a partition.
	SequenceNumber int64 `json:"sequenceNumber"`
	// Content is the UTF-8 decoded event body.
	Content string `json:"content"`
	// EnqueuedTime is when the service accepted the event, in UTC.
	EnqueuedTime time.Time `json:"enqueuedTime"`
	// PartitionID is the partition the event was read from.
	PartitionID string `json:"partitionId,omitempty"`
}

// EventRequest carries the raw payload submitted for publishing.
type EventRequest struct {
	Payload string `json:"payload"`
}

// SortEvents orders events by sequence number, newest first. Sequence numbers
// are per partition, so ties fall back to enqueued time and then partition.
func SortEvents(events []EventContent) {
	if len(events) == 0 {
		return
	}

	slices.SortStableFunc(events, func(a, b EventContent) int {
		if c := cmp.Compare(b.SequenceNumber, a.SequenceNumber); c != 0 {
			return c
		}
		if c := b.EnqueuedTime.Compare(a.EnqueuedTime); c != 0 {
			return c
		}
		return cmp.Compare(a.PartitionID, b.PartitionID)
	})
}
