package hub

import "errors"

var (
	// ErrInvalidPayload is returned when a payload is not a JSON object or array.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrEventTooLarge is returned when a single event does not fit in a batch.
	ErrEventTooLarge = errors.New("event is too large for the batch")
)
