package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"threadsync/internal/transport"
	"threadsync/pkg/interfaces"
	"threadsync/pkg/types"
)

// State is the connection lifecycle position for the active thread context.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateJoined       State = "joined"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Config bounds the reconnection policy. Attempts are fixed-interval with a
// ceiling; there is no exponential backoff.
type Config struct {
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
}

// identity is the (thread, user) triple replayed on rejoin. Cleared by a
// manual leave so an intentional exit never auto-rejoins.
type identity struct {
	threadID string
	userID   string
	userName string
}

// Manager owns one transport per thread context and implements join/leave
// semantics with automatic rejoin after non-manual drops.
type Manager struct {
	transport interfaces.Transport
	cfg       Config
	logger    zerolog.Logger

	mu       sync.Mutex
	state    State
	joined   *identity
	retrying bool
	lastErr  error
}

// NewManager wires a manager to its transport. Instances are independent so
// callers own the construct/use/dispose lifecycle explicitly.
func NewManager(t interfaces.Transport, cfg Config, logger zerolog.Logger) *Manager {
	m := &Manager{
		transport: t,
		cfg:       cfg,
		logger:    logger.With().Str("component", "connection").Logger(),
		state:     StateDisconnected,
	}
	t.On(interfaces.TransportConnect, m.handleConnect)
	t.On(interfaces.TransportDisconnect, m.handleDisconnect)
	return m
}

// Connect establishes the transport connection without joining a thread.
func (m *Manager) Connect(ctx context.Context) error {
	err := m.transport.Connect(ctx)
	if err == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
	if isFatal(err) {
		// A namespace/configuration problem is terminal: retrying cannot fix
		// it and it must not masquerade as a transient drop.
		m.state = StateFailed
		return fmt.Errorf("%w: %v", ErrConfigurationFatal, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}

// JoinThread connects if needed, announces membership, and stores the
// identity for automatic rejoin after reconnects.
func (m *Manager) JoinThread(ctx context.Context, threadID, userID, userName string) error {
	if threadID == "" || !types.IsValidUserID(userID) {
		return ErrInvalidIdentity
	}

	if !m.transport.Connected() {
		if err := m.Connect(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.joined = &identity{threadID: threadID, userID: userID, userName: userName}
	m.mu.Unlock()

	if err := m.emitJoin(threadID, userID, userName); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = StateJoined
	m.mu.Unlock()
	return nil
}

// LeaveThread emits the leave event and clears the stored identity so no
// rejoin happens after an intentional leave. Idempotent.
func (m *Manager) LeaveThread() error {
	m.mu.Lock()
	id := m.joined
	m.joined = nil
	m.mu.Unlock()

	if id == nil {
		return nil
	}

	err := m.transport.Emit(types.EventLeaveThread, types.LeavePayload{
		ThreadID: id.threadID,
		UserID:   id.userID,
	})
	if err != nil && !errors.Is(err, transport.ErrNotConnected) {
		return err
	}

	m.mu.Lock()
	if m.transport.Connected() {
		m.state = StateConnected
	} else {
		m.state = StateDisconnected
	}
	m.mu.Unlock()
	return nil
}

// Disconnect tears down the transport. The stored identity survives, so a
// later Connect followed by the transport's connect event still rejoins.
func (m *Manager) Disconnect() error {
	return m.transport.Disconnect()
}

// Retry resets a Failed manager and attempts a fresh connection. This is the
// only way out of the Failed state.
func (m *Manager) Retry(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateDisconnected
	m.lastErr = nil
	m.mu.Unlock()
	return m.Connect(ctx)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reconnecting reports whether a transient drop is being retried. It stays
// false for configuration-fatal failures.
func (m *Manager) Reconnecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReconnecting
}

// LastError returns the most recent connection error.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// JoinedThread returns the stored thread id, or "" when no join is active.
func (m *Manager) JoinedThread() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joined == nil {
		return ""
	}
	return m.joined.threadID
}

// handleConnect replays the stored identity after every transport connect,
// covering both the first connection and reconnects.
func (m *Manager) handleConnect(json.RawMessage) {
	m.mu.Lock()
	m.retrying = false
	id := m.joined
	if id == nil {
		m.state = StateConnected
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := m.emitJoin(id.threadID, id.userID, id.userName); err != nil {
		m.logger.Error().Err(err).Str("thread", id.threadID).Msg("rejoin failed")
		return
	}

	m.mu.Lock()
	m.state = StateJoined
	m.mu.Unlock()
	m.logger.Debug().Str("thread", id.threadID).Str("user", id.userID).Msg("joined thread")
}

// handleDisconnect classifies the drop and starts the bounded retry loop for
// non-manual reasons.
func (m *Manager) handleDisconnect(data json.RawMessage) {
	var info interfaces.DisconnectInfo
	_ = json.Unmarshal(data, &info)

	m.mu.Lock()
	if info.Reason == interfaces.DisconnectReasonManual {
		m.state = StateDisconnected
		m.mu.Unlock()
		return
	}

	if m.retrying {
		m.mu.Unlock()
		return
	}
	m.retrying = true
	m.state = StateReconnecting
	m.mu.Unlock()

	m.logger.Warn().Str("reason", info.Reason).Msg("connection dropped, reconnecting")
	go m.retryLoop()
}

// retryLoop attempts reconnection at a fixed interval until success, a fatal
// error, or the attempt ceiling. Exhaustion is terminal until manual Retry.
func (m *Manager) retryLoop() {
	for attempt := 1; attempt <= m.cfg.MaxReconnectAttempts; attempt++ {
		time.Sleep(m.cfg.ReconnectInterval)

		m.mu.Lock()
		if !m.retrying {
			// Connect succeeded through another path.
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		err := m.transport.Connect(context.Background())
		if err == nil {
			// handleConnect takes over: replays the join and resets state.
			return
		}

		m.mu.Lock()
		m.lastErr = err
		if isFatal(err) {
			m.state = StateFailed
			m.retrying = false
			m.mu.Unlock()
			m.logger.Error().Err(err).Msg("reconnect aborted: configuration error")
			return
		}
		m.mu.Unlock()
		m.logger.Debug().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
	}

	m.mu.Lock()
	m.state = StateFailed
	m.retrying = false
	m.mu.Unlock()
	m.logger.Error().Int("attempts", m.cfg.MaxReconnectAttempts).Msg("reconnect attempts exhausted")
}

func (m *Manager) emitJoin(threadID, userID, userName string) error {
	return m.transport.Emit(types.EventJoinThread, types.JoinPayload{
		ThreadID: threadID,
		UserID:   userID,
		UserName: userName,
	})
}

// isFatal reports whether a connection error indicates a namespace or
// configuration problem that no retry can fix.
func isFatal(err error) bool {
	return errors.Is(err, transport.ErrInvalidNamespace)
}
