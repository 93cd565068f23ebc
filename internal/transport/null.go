package transport

import (
	"context"

	"threadsync/pkg/interfaces"
)

// NullAdapter is the substitution used when no service URL resolves. Every
// method is a safe no-op and no event is ever delivered. It is not an error
// path: callers treat it exactly like a live adapter.
type NullAdapter struct{}

// NewNull returns a no-op transport.
func NewNull() *NullAdapter { return &NullAdapter{} }

func (n *NullAdapter) Connect(ctx context.Context) error { return nil }

func (n *NullAdapter) Disconnect() error { return nil }

func (n *NullAdapter) Emit(event string, payload interface{}) error { return nil }

func (n *NullAdapter) On(event string, handler interfaces.EventHandler) {}

func (n *NullAdapter) RemoveAllListeners() {}

func (n *NullAdapter) Connected() bool { return false }
