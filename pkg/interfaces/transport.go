package interfaces

import (
	"context"
	"encoding/json"
)

// Transport pseudo-events emitted by the adapter itself around connection
// lifecycle, alongside the server-originated events.
const (
	TransportConnect    = "connect"
	TransportDisconnect = "disconnect"
)

// DisconnectReasonManual marks an intentional local disconnect so lifecycle
// handlers can distinguish it from a dropped connection.
const DisconnectReasonManual = "manual"

// DisconnectInfo is the payload of the "disconnect" pseudo-event.
type DisconnectInfo struct {
	Reason string `json:"reason"`
}

// EventHandler receives the raw payload of one event. Handlers for a given
// adapter are invoked sequentially in delivery order.
type EventHandler func(data json.RawMessage)

// Transport wraps one persistent bidirectional connection to a namespaced
// real-time endpoint.
type Transport interface {
	// Connect establishes the connection. Idempotent: an already-live
	// connection is reused, never duplicated.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down. Safe when not connected.
	Disconnect() error

	// Emit sends one named event with a JSON payload.
	Emit(event string, payload interface{}) error

	// On registers a handler for a named event.
	On(event string, handler EventHandler)

	// RemoveAllListeners drops every registered handler.
	RemoveAllListeners()

	// Connected reports whether a live connection exists.
	Connected() bool
}
