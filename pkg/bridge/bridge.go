// Package bridge implements the remote-object channel protocol over a
// message transport. On connect it performs the one-shot handshake that
// enumerates the studio's objects, then materializes each as a local
// RemoteObject proxy: invocable methods with correlated replies, a
// pushed-property cache, and subscribable signals.
//
// Concurrency contract: OnOpen, OnMessage, OnClose and all RemoteObject
// methods must run on one goroutine, normally the owner's event loop.
// The bridge's own mutex only covers the pending-call table, which
// invocation timeout timers touch from their own goroutines when no
// Post scheduler is configured.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/stagelink/pkg/logger"
)

var (
	// ErrNoSuchMethod is returned when the remote object never declared
	// the requested method.
	ErrNoSuchMethod = errors.New("no such remote method")
	// ErrInvokeTimeout ends a pending call whose reply never arrived.
	ErrInvokeTimeout = errors.New("remote invocation timed out")
	// ErrDisconnected ends pending calls when the connection drops.
	ErrDisconnected = errors.New("connection lost before reply")
)

// DefaultInvokeTimeout bounds how long an invocation may stay pending.
const DefaultInvokeTimeout = 10 * time.Second

// handshakeTimeout bounds how long the bridge waits for the handshake
// reply before condemning the connection attempt.
const handshakeTimeout = 10 * time.Second

// Conn is the slice of the transport the bridge needs: frame output and
// a way to condemn a connection whose handshake is unusable.
type Conn interface {
	Send(payload any) error
	Fail(reason error)
}

// Options configures a Bridge.
type Options struct {
	// Root names the remote object that must exist after the handshake.
	Root string
	// InvokeTimeout overrides DefaultInvokeTimeout when positive.
	InvokeTimeout time.Duration
	// Post, when set, is used to run timeout expirations. The owning
	// event loop passes its own scheduler here so every bridge callback
	// stays serialized with inbound message handling.
	Post func(fn func())
	// OnReady runs after a successful handshake.
	OnReady func()
}

type pendingCall struct {
	reply ReplyHandler
	timer *time.Timer
}

// Bridge correlates requests with replies and routes property updates
// and signals to the right RemoteObject.
type Bridge struct {
	conn Conn
	opts Options

	mu         sync.Mutex
	awaiting   bool
	ready      bool
	objects    map[string]*RemoteObject
	pending    map[string]*pendingCall
	hsDeadline *time.Timer
}

// New creates a Bridge over conn. The bridge is driven by the owner:
// call OnOpen / OnMessage / OnClose from the transport's events.
func New(conn Conn, opts Options) *Bridge {
	if opts.InvokeTimeout <= 0 {
		opts.InvokeTimeout = DefaultInvokeTimeout
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	return &Bridge{
		conn:    conn,
		opts:    opts,
		pending: make(map[string]*pendingCall),
	}
}

// Ready reports whether the handshake completed on the current
// connection.
func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Root returns the root remote object, or nil before the handshake.
func (b *Bridge) Root() *RemoteObject {
	return b.Object(b.opts.Root)
}

// Object returns a discovered remote object by name, or nil.
func (b *Bridge) Object(name string) *RemoteObject {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return nil
	}
	return b.objects[name]
}

// OnOpen starts the handshake on a fresh connection.
func (b *Bridge) OnOpen() {
	b.mu.Lock()
	b.awaiting = true
	b.ready = false
	b.objects = nil
	b.hsDeadline = time.AfterFunc(handshakeTimeout, func() {
		b.opts.Post(func() {
			b.mu.Lock()
			expired := b.awaiting
			b.mu.Unlock()
			if expired {
				b.failHandshake(errors.New("handshake reply never arrived"))
			}
		})
	})
	b.mu.Unlock()

	logger.DebugC("bridge", "Sending handshake")
	if err := b.conn.Send(frame{Type: typeHandshake}); err != nil {
		b.conn.Fail(fmt.Errorf("handshake send: %w", err))
	}
}

// OnClose invalidates every proxy handle and fails all pending calls.
func (b *Bridge) OnClose() {
	b.mu.Lock()
	b.awaiting = false
	b.ready = false
	b.objects = nil
	b.stopHandshakeTimer()
	pending := b.pending
	b.pending = make(map[string]*pendingCall)
	b.mu.Unlock()

	for id, call := range pending {
		call.timer.Stop()
		if call.reply != nil {
			call.reply(nil, ErrDisconnected)
		}
		logger.DebugCF("bridge", "Pending call failed by disconnect", map[string]any{"id": id})
	}
}

// OnMessage routes one inbound frame. The first message after OnOpen is
// always treated as the handshake reply.
func (b *Bridge) OnMessage(text string) {
	b.mu.Lock()
	awaiting := b.awaiting
	b.mu.Unlock()

	if awaiting {
		b.handleHandshakeReply(text)
		return
	}

	var f frame
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		logger.WarnCF("bridge", "Discarding unparseable frame", map[string]any{"error": err.Error()})
		return
	}

	switch f.Type {
	case typeInvokeReply:
		b.handleReply(f)
	case typePropertyUpdate:
		b.handlePropertyUpdate(f)
	case typeSignal:
		b.handleSignal(f)
	default:
		logger.DebugCF("bridge", "Ignoring frame of unknown type", map[string]any{"type": f.Type})
	}
}

func (b *Bridge) handleHandshakeReply(text string) {
	var f frame
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		b.failHandshake(fmt.Errorf("handshake reply unparseable: %w", err))
		return
	}
	if len(f.Objects) == 0 {
		b.failHandshake(errors.New("handshake reply enumerates no objects"))
		return
	}

	objects := make(map[string]*RemoteObject, len(f.Objects))
	for name, spec := range f.Objects {
		objects[name] = newRemoteObject(b, name, spec)
	}
	if _, ok := objects[b.opts.Root]; !ok {
		b.failHandshake(fmt.Errorf("root object %q missing from handshake", b.opts.Root))
		return
	}

	b.mu.Lock()
	b.awaiting = false
	b.ready = true
	b.objects = objects
	b.stopHandshakeTimer()
	b.mu.Unlock()

	logger.InfoCF("bridge", "Handshake complete", map[string]any{
		"objects": len(objects),
		"root":    b.opts.Root,
	})
	if b.opts.OnReady != nil {
		b.opts.OnReady()
	}
}

// failHandshake condemns the connection attempt. Proceeding without a
// root proxy would leave every downstream component pointed at nothing;
// a reconnect gives the studio a chance to answer properly.
func (b *Bridge) failHandshake(reason error) {
	b.mu.Lock()
	b.awaiting = false
	b.stopHandshakeTimer()
	b.mu.Unlock()
	logger.ErrorCF("bridge", "Handshake failed", map[string]any{"error": reason.Error()})
	b.conn.Fail(reason)
}

// stopHandshakeTimer must be called with b.mu held.
func (b *Bridge) stopHandshakeTimer() {
	if b.hsDeadline != nil {
		b.hsDeadline.Stop()
		b.hsDeadline = nil
	}
}

func (b *Bridge) invoke(o *RemoteObject, method string, args []any, reply ReplyHandler) error {
	if !o.HasMethod(method) {
		return fmt.Errorf("%w: %s.%s", ErrNoSuchMethod, o.name, method)
	}

	id := uuid.New().String()
	call := &pendingCall{reply: reply}
	call.timer = time.AfterFunc(b.opts.InvokeTimeout, func() {
		b.opts.Post(func() { b.expire(id) })
	})

	b.mu.Lock()
	b.pending[id] = call
	b.mu.Unlock()

	err := b.conn.Send(frame{
		Type:   typeInvokeMethod,
		Object: o.name,
		Method: method,
		Args:   args,
		ID:     id,
	})
	if err != nil {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		call.timer.Stop()
		return err
	}

	logger.DebugCF("bridge", "Invoked remote method", map[string]any{
		"object": o.name,
		"method": method,
		"id":     id,
	})
	return nil
}

func (b *Bridge) expire(id string) {
	b.mu.Lock()
	call, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	logger.WarnCF("bridge", "Remote invocation timed out", map[string]any{"id": id})
	if call.reply != nil {
		call.reply(nil, ErrInvokeTimeout)
	}
}

func (b *Bridge) handleReply(f frame) {
	b.mu.Lock()
	call, ok := b.pending[f.ID]
	if ok {
		delete(b.pending, f.ID)
	}
	b.mu.Unlock()

	// Replies for unknown or already-expired ids are discarded so a slow
	// response can never cross-correlate with a newer call.
	if !ok {
		logger.DebugCF("bridge", "Discarding stale reply", map[string]any{"id": f.ID})
		return
	}
	call.timer.Stop()
	if call.reply != nil {
		call.reply(f.Result, nil)
	}
}

func (b *Bridge) handlePropertyUpdate(f frame) {
	b.mu.Lock()
	obj := b.objects[f.Object]
	b.mu.Unlock()
	if obj == nil {
		logger.DebugCF("bridge", "Property update for unknown object", map[string]any{"object": f.Object})
		return
	}
	obj.props[f.Property] = f.Value
}

func (b *Bridge) handleSignal(f frame) {
	b.mu.Lock()
	obj := b.objects[f.Object]
	b.mu.Unlock()
	if obj == nil {
		logger.DebugCF("bridge", "Signal for unknown object", map[string]any{"object": f.Object})
		return
	}
	obj.emitSignal(f.Signal, f.Args)
}
