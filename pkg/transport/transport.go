// Package transport owns the persistent websocket connection to the
// studio. It frames outbound payloads as JSON text messages, delivers
// inbound frames through handler callbacks, and keeps reconnecting with a
// fixed delay until the owner tears it down.
//
// The transport never lets a socket error escape: every failure is
// reported through OnError and the status callback, then retried.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/stagelink/pkg/logger"
)

// Status describes the connection state visible to the host collaborator.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusOk           Status = "ok"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// ErrNotConnected is returned by Send when no socket is open.
var ErrNotConnected = errors.New("transport not connected")

// DefaultRetryDelay is the fixed pause between reconnect attempts.
const DefaultRetryDelay = 3 * time.Second

// Handlers receives transport lifecycle events. All callbacks are
// optional. They are invoked from the transport's internal goroutines;
// owners that require serialization must post into their own event loop.
type Handlers struct {
	OnOpen    func()
	OnMessage func(text string)
	OnClose   func()
	OnError   func(err error)
	OnStatus  func(status Status, detail string)
}

// Transport maintains one websocket connection to a fixed URL.
type Transport struct {
	url      string
	handlers Handlers
	dialer   *websocket.Dialer
	delay    time.Duration

	mu         sync.Mutex
	conn       *websocket.Conn
	generation uint64
	retry      *time.Timer
	dialing    bool
	closed     bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithRetryDelay overrides the reconnect delay. Mostly for tests.
func WithRetryDelay(d time.Duration) Option {
	return func(t *Transport) { t.delay = d }
}

// New creates a Transport for url. Connect must be called to start it.
func New(url string, handlers Handlers, opts ...Option) *Transport {
	t := &Transport{
		url:      url,
		handlers: handlers,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		delay:    DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect starts the initial connection attempt. It returns immediately;
// success or failure is reported through the handlers.
func (t *Transport) Connect() {
	go t.dial()
}

func (t *Transport) dial() {
	t.mu.Lock()
	if t.closed || t.dialing {
		t.mu.Unlock()
		return
	}
	t.dialing = true
	t.mu.Unlock()

	t.setStatus(StatusConnecting, "")
	logger.InfoCF("transport", "Connecting", map[string]any{"url": t.url})

	conn, _, err := t.dialer.Dial(t.url, nil)
	if err != nil {
		t.mu.Lock()
		t.dialing = false
		t.mu.Unlock()
		t.setStatus(StatusError, err.Error())
		t.emitError(fmt.Errorf("dial %s: %w", t.url, err))
		t.scheduleReconnect()
		return
	}

	t.mu.Lock()
	t.dialing = false
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	t.setStatus(StatusOk, "")
	if t.handlers.OnOpen != nil {
		t.handlers.OnOpen()
	}

	go t.readLoop(conn, gen)
}

// readLoop pumps inbound frames until the connection dies. Both text and
// binary frames are accepted; binary payloads are decoded as UTF-8.
func (t *Transport) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.connectionLost(conn, gen, err)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if t.handlers.OnMessage != nil {
			t.handlers.OnMessage(string(data))
		}
	}
}

func (t *Transport) connectionLost(conn *websocket.Conn, gen uint64, cause error) {
	conn.Close()

	t.mu.Lock()
	stale := gen != t.generation || t.conn != conn
	if !stale {
		t.conn = nil
	}
	closed := t.closed
	t.mu.Unlock()

	// A read-loop exit from a connection that was already replaced or
	// torn down must not trigger another reconnect cycle.
	if stale {
		return
	}

	if !closed {
		logger.WarnCF("transport", "Connection lost", map[string]any{"error": cause.Error()})
		t.emitError(cause)
	}
	t.setStatus(StatusDisconnected, "")
	if t.handlers.OnClose != nil {
		t.handlers.OnClose()
	}
	if !closed {
		t.scheduleReconnect()
	}
}

// scheduleReconnect arms the retry timer unless one is already pending,
// a dial is in flight, or the transport was torn down. The in-flight
// dial retries on its own if it fails, so arming a timer under it would
// race it into a second connection.
func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.retry != nil || t.dialing {
		return
	}
	logger.InfoCF("transport", "Reconnecting", map[string]any{"delay": t.delay.String()})
	t.retry = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		t.retry = nil
		closed := t.closed
		t.mu.Unlock()
		if !closed {
			t.dial()
		}
	})
}

// Send marshals payload to JSON and writes it as a single text frame.
// Strings and raw bytes are sent as-is.
func (t *Transport) Send(payload any) error {
	var data []byte
	switch v := payload.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		data = b
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.emitError(fmt.Errorf("send: %w", err))
		return err
	}
	return nil
}

// Connected reports whether a socket is currently open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Close tears the transport down: the pending reconnect timer (if any)
// is cancelled before the socket is closed, so teardown and reconnect
// can never race into two live connections.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.retry != nil {
		t.retry.Stop()
		t.retry = nil
	}
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	t.setStatus(StatusDisconnected, "")
}

// Fail reports a protocol-level failure on the current connection and
// forces a reconnect cycle. The bridge uses this when the handshake is
// unusable: the socket may be healthy but the session is not.
func (t *Transport) Fail(reason error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	t.setStatus(StatusError, reason.Error())
	t.emitError(reason)
	if conn != nil {
		// readLoop observes the closed socket and drives the normal
		// disconnect + reconnect path.
		conn.Close()
	} else {
		t.scheduleReconnect()
	}
}

func (t *Transport) setStatus(s Status, detail string) {
	if t.handlers.OnStatus != nil {
		t.handlers.OnStatus(s, detail)
	}
}

func (t *Transport) emitError(err error) {
	if t.handlers.OnError != nil {
		t.handlers.OnError(err)
	}
}
