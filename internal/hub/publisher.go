package hub

import "context"

// Publisher defines the interface for sending payloads to the event hub.
type Publisher interface {
	// Publish validates the raw payload and sends it as a single event.
	Publish(ctx context.Context, payload string) error
}
