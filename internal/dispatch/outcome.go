package dispatch

import "errors"

// ErrNotInitialized is carried by the Outcome of a Send made before Init
// succeeded.
var ErrNotInitialized = errors.New("dispatch: router not initialized")

// Status says how a Send ended.
type Status string

const (
	// StatusSent means the provider accepted the message.
	StatusSent Status = "sent"

	// StatusRejected means the whitelist gate blocked the message: no
	// provider was contacted.
	StatusRejected Status = "rejected"

	// StatusUnknownProvider means the configured sender matches no
	// registered provider.
	StatusUnknownProvider Status = "unknown_provider"

	// StatusFailed means the client could not be built or the provider
	// returned an error.
	StatusFailed Status = "failed"

	// StatusNotInitialized means Send was called before a successful Init.
	StatusNotInitialized Status = "not_initialized"
)

// Outcome is the result of one Send. Only a sent Outcome carries a
// MessageID; every other status is a failure.
type Outcome struct {
	MessageID string
	Status    Status

	// Provider is the configured sender identity, when one was resolved.
	Provider string

	// Err holds the underlying cause of StatusFailed and
	// StatusNotInitialized.
	Err error
}

// OK reports whether the message was handed to a provider successfully.
func (o Outcome) OK() bool {
	return o.Status == StatusSent
}
