// Package core wires the transport, bridge, mirror, generator and
// dispatcher into one controller. Every reaction (inbound frames,
// lifecycle events, timers, host commands, config changes) is posted to
// a single event loop goroutine, so no two handlers ever run
// concurrently and the SessionState has exactly one writer.
package core

import (
	"sync"

	"github.com/tinyland-inc/stagelink/pkg/bridge"
	"github.com/tinyland-inc/stagelink/pkg/config"
	"github.com/tinyland-inc/stagelink/pkg/descriptors"
	"github.com/tinyland-inc/stagelink/pkg/dispatch"
	"github.com/tinyland-inc/stagelink/pkg/host"
	"github.com/tinyland-inc/stagelink/pkg/logger"
	"github.com/tinyland-inc/stagelink/pkg/mirror"
	"github.com/tinyland-inc/stagelink/pkg/transport"
)

const rootObject = "session"

// Controller owns the connection lifecycle and the session state.
type Controller struct {
	h         host.Host
	cfg       *config.Config
	loop      chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Touched only from the event loop.
	tr     *transport.Transport
	br     *bridge.Bridge
	mr     *mirror.Mirror
	dp     *dispatch.Dispatcher
	trOpts []transport.Option
	closed bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithTransportOptions forwards options to every transport the
// controller builds. Tests use it to shrink the reconnect delay.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *Controller) { c.trOpts = opts }
}

// New creates a Controller for cfg reporting into h. Start must be
// called to connect.
func New(cfg *config.Config, h host.Host, opts ...Option) *Controller {
	c := &Controller{
		h:    h,
		cfg:  cfg,
		loop: make(chan func(), 256),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mr = mirror.New(c.pushDerived)
	c.dp = dispatch.New(c.root)
	return c
}

// Start runs the event loop and begins connecting.
func (c *Controller) Start() {
	go c.run()
	c.post(func() { c.establish(c.cfg) })
}

func (c *Controller) run() {
	for {
		select {
		case fn := <-c.loop:
			fn()
		case <-c.done:
			return
		}
	}
}

// post schedules fn onto the event loop. Safe from any goroutine.
func (c *Controller) post(fn func()) {
	select {
	case c.loop <- fn:
	case <-c.done:
	}
}

// root is the dispatcher's view of the proxy; nil while disconnected.
func (c *Controller) root() *bridge.RemoteObject {
	if c.br == nil {
		return nil
	}
	return c.br.Root()
}

// establish builds a transport+bridge pair for the endpoint and starts
// connecting. Runs on the event loop.
func (c *Controller) establish(cfg *config.Config) {
	c.cfg = cfg

	var tr *transport.Transport
	var br *bridge.Bridge

	// Each handler checks it still belongs to the live transport so a
	// torn-down connection's trailing events cannot leak into the new
	// one.
	handlers := transport.Handlers{
		OnOpen: func() {
			c.post(func() {
				if c.tr == tr {
					br.OnOpen()
				}
			})
		},
		OnMessage: func(text string) {
			c.post(func() {
				if c.tr == tr {
					br.OnMessage(text)
				}
			})
		},
		OnClose: func() {
			c.post(func() {
				if c.tr == tr {
					br.OnClose()
					c.mr.Reset()
				}
			})
		},
		OnError: func(err error) {
			c.post(func() {
				if c.tr == tr {
					logger.WarnCF("core", "Transport error", map[string]any{"error": err.Error()})
				}
			})
		},
		OnStatus: func(s transport.Status, detail string) {
			c.post(func() {
				if c.tr == tr {
					c.h.SetConnectionStatus(s, detail)
				}
			})
		},
	}

	tr = transport.New(cfg.Studio.URL(), handlers, c.trOpts...)
	br = bridge.New(tr, bridge.Options{
		Root:          rootObject,
		InvokeTimeout: cfg.Bridge.InvokeTimeout(),
		Post:          c.post,
		OnReady:       func() { c.onBridgeReady(br) },
	})

	c.tr = tr
	c.br = br
	tr.Connect()
}

func (c *Controller) onBridgeReady(br *bridge.Bridge) {
	// OnReady fires inside OnMessage handling, already on the loop.
	if c.br != br {
		return
	}
	logger.InfoC("core", "Bridge ready, bootstrapping session mirror")
	c.mr.Bootstrap(br.Root())
}

// pushDerived regenerates the descriptor sets and hands them to the
// host. Runs on the event loop, once per mirror change.
func (c *Controller) pushDerived(s mirror.SessionState) {
	d := descriptors.Generate(s)
	c.h.RegisterActions(d.Actions)
	c.h.RegisterFeedbacks(d.Feedbacks)
	c.h.RegisterPresets(d.Presets)
	c.h.SetVariables(d.Variables)
}

// Dispatch fires a logical command from the host. Fire-and-forget: if
// the bridge is down the command is dropped with a log entry.
func (c *Controller) Dispatch(command string, args ...any) {
	c.post(func() { c.dp.Dispatch(command, args...) })
}

// State returns a copy of the current session state.
func (c *Controller) State() mirror.SessionState {
	out := make(chan mirror.SessionState, 1)
	c.post(func() { out <- c.mr.State() })
	select {
	case s := <-out:
		return s
	case <-c.done:
		return mirror.SessionState{}
	}
}

// ApplyConfig reacts to a configuration change. A changed endpoint
// tears the current connection down completely, cancelling any pending
// reconnect, before the new one is established.
func (c *Controller) ApplyConfig(cfg *config.Config) {
	c.post(func() {
		if c.closed {
			return
		}
		if c.cfg.Studio == cfg.Studio {
			c.cfg = cfg
			return
		}
		logger.InfoCF("core", "Endpoint changed, reconnecting", map[string]any{
			"host": cfg.Studio.Host,
			"port": cfg.Studio.Port,
		})
		c.teardown()
		c.establish(cfg)
	})
}

// teardown closes the live connection. Runs on the event loop.
func (c *Controller) teardown() {
	if c.tr != nil {
		c.tr.Close()
		c.tr = nil
	}
	if c.br != nil {
		c.br.OnClose()
		c.br = nil
	}
	c.mr.Reset()
}

// Close shuts the controller down and stops the event loop. Safe to
// call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		fin := make(chan struct{})
		c.post(func() {
			c.closed = true
			c.teardown()
			close(fin)
		})
		<-fin
		close(c.done)
	})
}
