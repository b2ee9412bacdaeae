package hub

import "context"

// Reader defines the interface for listing events retained by the event hub.
type Reader interface {
	// ListRecent reads every available event and returns them sorted by
	// sequence number, newest first. On error the events read before the
	// failure are returned alongside it.
	ListRecent(ctx context.Context) ([]EventContent, error)
}
