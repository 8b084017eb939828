package bridge

import (
	"encoding/json"
	"sort"
)

// SignalListener receives a signal's declared arguments positionally.
type SignalListener func(args []any)

// ReplyHandler receives the correlated result of a method invocation, or
// the error that ended it (timeout, disconnect, send failure).
type ReplyHandler func(result json.RawMessage, err error)

// RemoteObject is the local proxy for one object discovered during the
// handshake. It is valid for the lifetime of a single connection; the
// bridge invalidates all handles on disconnect. Not safe for concurrent
// use: all methods share the bridge's single-goroutine contract.
type RemoteObject struct {
	name      string
	bridge    *Bridge
	methods   map[string]struct{}
	props     map[string]json.RawMessage
	listeners map[string][]SignalListener
	declared  map[string][]string // signal name -> declared arg names
}

func newRemoteObject(b *Bridge, name string, spec objectSpec) *RemoteObject {
	o := &RemoteObject{
		name:      name,
		bridge:    b,
		methods:   make(map[string]struct{}, len(spec.Methods)),
		props:     make(map[string]json.RawMessage, len(spec.Properties)),
		listeners: make(map[string][]SignalListener),
		declared:  spec.Signals,
	}
	for _, m := range spec.Methods {
		o.methods[m] = struct{}{}
	}
	for k, v := range spec.Properties {
		o.props[k] = v
	}
	return o
}

// Name returns the remote object's name.
func (o *RemoteObject) Name() string { return o.name }

// HasMethod reports whether the remote side declared method in the
// handshake. The dispatcher probes this when resolving method aliases.
func (o *RemoteObject) HasMethod(method string) bool {
	_, ok := o.methods[method]
	return ok
}

// Methods returns the declared method names, sorted.
func (o *RemoteObject) Methods() []string {
	out := make([]string, 0, len(o.methods))
	for m := range o.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Property returns the last value pushed for a property. Properties are
// never polled; the cache is seeded by the handshake and kept current by
// propertyUpdate frames.
func (o *RemoteObject) Property(name string) (json.RawMessage, bool) {
	v, ok := o.props[name]
	return v, ok
}

// PropertyInto unmarshals a cached property value into dst. It returns
// false when the property is unknown or does not decode into dst.
func (o *RemoteObject) PropertyInto(name string, dst any) bool {
	raw, ok := o.props[name]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// Invoke calls a remote method. reply may be nil for fire-and-forget
// calls; otherwise it runs exactly once when the correlated response
// arrives, the call times out, or the connection drops.
func (o *RemoteObject) Invoke(method string, args []any, reply ReplyHandler) error {
	return o.bridge.invoke(o, method, args, reply)
}

// ConnectSignal registers a listener for a named signal. Listeners run
// serially, in registration order, whenever a matching signal frame
// arrives. Unknown signal names are accepted; they simply never fire.
func (o *RemoteObject) ConnectSignal(signal string, fn SignalListener) {
	o.listeners[signal] = append(o.listeners[signal], fn)
}

func (o *RemoteObject) emitSignal(signal string, args []any) {
	for _, fn := range o.listeners[signal] {
		fn(args)
	}
}
