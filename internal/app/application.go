package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"threadsync/internal/config"
	"threadsync/internal/connection"
	"threadsync/internal/snapshot"
	"threadsync/internal/store"
	"threadsync/internal/transport"
	"threadsync/pkg/interfaces"
)

// Application wires the engine's components in dependency order:
// snapshot → transport → connection → store.
type Application struct {
	cfg       *config.Config
	snapshots interfaces.SnapshotStore
	transport interfaces.Transport
	conn      *connection.Manager
	store     *store.Store
}

// New builds an application. The REST collaborator is injected; everything
// else is constructed from configuration.
func New(cfg *config.Config, api interfaces.ThreadAPI, logger zerolog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var snapshots interfaces.SnapshotStore
	if cfg.Snapshot.Path != "" {
		s, err := snapshot.New(cfg.Snapshot.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing snapshot store: %w", err)
		}
		snapshots = s
	}

	t := transport.New(cfg.SocketEndpoint(), transport.Config{
		PingInterval: cfg.Socket.PingInterval,
		ReadTimeout:  cfg.Socket.ReadTimeout,
		WriteTimeout: cfg.Socket.WriteTimeout,
	}, logger)

	conn := connection.NewManager(t, connection.Config{
		MaxReconnectAttempts: cfg.Socket.ReconnectAttempts,
		ReconnectInterval:    cfg.Socket.ReconnectInterval,
	}, logger)

	st := store.NewStore(api, conn, snapshots, store.Options{
		PostPageSize:  cfg.Pagination.PostPageSize,
		ReplyPageSize: cfg.Pagination.ReplyPageSize,
		MaxReplyDepth: cfg.Discussion.MaxReplyDepth,
	}, logger)
	st.BindTransport(t)

	return &Application{
		cfg:       cfg,
		snapshots: snapshots,
		transport: t,
		conn:      conn,
		store:     st,
	}, nil
}

// Start restores the durable session from the previous run.
func (a *Application) Start(ctx context.Context) error {
	return a.store.Restore(ctx)
}

// Stop leaves the active thread, drops the connection and releases the
// snapshot store.
func (a *Application) Stop() error {
	_ = a.store.Deactivate()
	_ = a.transport.Disconnect()
	a.transport.RemoveAllListeners()
	if a.snapshots != nil {
		return a.snapshots.Close()
	}
	return nil
}

// Store exposes the discussion store.
func (a *Application) Store() *store.Store { return a.store }

// Connection exposes the connection manager, for surfacing lifecycle state.
func (a *Application) Connection() *connection.Manager { return a.conn }
