package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"threadsync/pkg/interfaces"
)

// Config bounds the socket connection.
type Config struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// frame is the wire envelope: every message is a named event with a payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Adapter maintains one live websocket connection to a namespaced endpoint
// and fans inbound events out to registered handlers in delivery order.
type Adapter struct {
	endpoint string
	cfg      Config
	dialer   *websocket.Dialer
	logger   zerolog.Logger

	mu      sync.Mutex
	session *session
	manual  bool

	hmu      sync.RWMutex
	handlers map[string][]interfaces.EventHandler
}

// session is the per-connection state, replaced wholesale on reconnect.
type session struct {
	conn      *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New returns a Transport for the given endpoint. An empty endpoint yields a
// null adapter whose methods are safe no-ops and which never produces events;
// callers must not special-case it.
func New(endpoint string, cfg Config, logger zerolog.Logger) interfaces.Transport {
	if endpoint == "" {
		logger.Warn().Msg("no realtime service URL configured, events disabled")
		return NewNull()
	}
	return &Adapter{
		endpoint: endpoint,
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   logger.With().Str("component", "transport").Logger(),
		handlers: make(map[string][]interfaces.EventHandler),
	}
}

// Connect dials the endpoint. Re-invoking while connected reuses the live
// connection; a second socket is never created.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.session != nil {
		a.mu.Unlock()
		return nil
	}

	conn, resp, err := a.dialer.DialContext(ctx, a.endpoint, nil)
	if err != nil {
		a.mu.Unlock()
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrInvalidNamespace, a.endpoint)
		}
		return fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		conn:    conn,
		writeCh: make(chan []byte, 100),
		ctx:     sctx,
		cancel:  cancel,
	}
	a.session = s
	a.manual = false
	a.mu.Unlock()

	go a.writeLoop(s)
	go a.readLoop(s)
	go a.pingLoop(s)

	a.logger.Debug().Str("endpoint", a.endpoint).Msg("connected")
	a.dispatch(interfaces.TransportConnect, nil)
	return nil
}

// Disconnect closes the live connection. Safe to call when not connected.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	s := a.session
	a.manual = true
	a.mu.Unlock()
	if s == nil {
		return nil
	}
	a.teardown(s)
	return nil
}

// Emit sends one named event. Payload is JSON-marshalled into the frame.
func (a *Adapter) Emit(event string, payload interface{}) error {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling %s payload: %w", event, err)
	}
	msg, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshalling %s frame: %w", event, err)
	}

	select {
	case s.writeCh <- msg:
		return nil
	case <-time.After(a.cfg.WriteTimeout):
		return ErrWriteTimeout
	case <-s.ctx.Done():
		return ErrConnectionClosed
	}
}

// On registers a handler. Handlers for one event run in registration order;
// events run in delivery order.
func (a *Adapter) On(event string, handler interfaces.EventHandler) {
	a.hmu.Lock()
	defer a.hmu.Unlock()
	a.handlers[event] = append(a.handlers[event], handler)
}

// RemoveAllListeners drops every registered handler.
func (a *Adapter) RemoveAllListeners() {
	a.hmu.Lock()
	defer a.hmu.Unlock()
	a.handlers = make(map[string][]interfaces.EventHandler)
}

// Connected reports whether a live connection exists.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

// writeLoop is the single writer for one session. Serializing writes here
// keeps gorilla's one-concurrent-writer requirement.
func (a *Adapter) writeLoop(s *session) {
	for {
		select {
		case data := <-s.writeCh:
			if err := s.conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				a.logger.Debug().Err(err).Msg("write failed")
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// readLoop decodes frames and dispatches them until the connection dies.
func (a *Adapter) readLoop(s *session) {
	if err := s.conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout)); err != nil {
		a.closeWith(s, err)
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			a.closeWith(s, err)
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			a.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		a.dispatch(f.Event, f.Data)
	}
}

// pingLoop keeps the connection alive with control pings.
func (a *Adapter) pingLoop(s *session) {
	ticker := time.NewTicker(a.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(a.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// closeWith tears down after a read failure, reporting the error as the
// disconnect reason unless the disconnect was requested locally.
func (a *Adapter) closeWith(s *session, err error) {
	a.mu.Lock()
	manual := a.manual
	a.mu.Unlock()
	if !manual && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		a.logger.Debug().Err(err).Msg("connection dropped")
	}
	a.teardown(s)
}

// teardown closes one session exactly once and emits the disconnect
// pseudo-event with its reason.
func (a *Adapter) teardown(s *session) {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close()

		a.mu.Lock()
		reason := DisconnectReasonDropped
		if a.manual {
			reason = interfaces.DisconnectReasonManual
		}
		if a.session == s {
			a.session = nil
		}
		a.mu.Unlock()

		info, _ := json.Marshal(interfaces.DisconnectInfo{Reason: reason})
		a.dispatch(interfaces.TransportDisconnect, info)
	})
}

// dispatch invokes handlers synchronously so per-connection delivery order is
// preserved end to end.
func (a *Adapter) dispatch(event string, data json.RawMessage) {
	a.hmu.RLock()
	handlers := make([]interfaces.EventHandler, len(a.handlers[event]))
	copy(handlers, a.handlers[event])
	a.hmu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
}
