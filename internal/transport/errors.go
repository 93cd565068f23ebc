package transport

import "errors"

var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrDialFailed       = errors.New("dial failed")
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// DisconnectReasonDropped marks a disconnect the client did not ask for.
const DisconnectReasonDropped = "transport error"
