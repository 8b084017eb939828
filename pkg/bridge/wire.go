package bridge

import "encoding/json"

// Frame type discriminators. These are the studio's wire contract and
// must not be renamed.
const (
	typeHandshake      = "handshake"
	typeHandshakeReply = "handshakeReply"
	typeInvokeMethod   = "invokeMethod"
	typeInvokeReply    = "invokeMethodReply"
	typePropertyUpdate = "propertyUpdate"
	typeSignal         = "signal"
)

// frame is the envelope for every message exchanged with the studio.
// Only the fields relevant to a given type are populated.
type frame struct {
	Type     string                `json:"type"`
	Object   string                `json:"object,omitempty"`
	Method   string                `json:"method,omitempty"`
	Property string                `json:"property,omitempty"`
	Signal   string                `json:"signal,omitempty"`
	Args     []any                 `json:"args,omitempty"`
	ID       string                `json:"id,omitempty"`
	Result   json.RawMessage       `json:"result,omitempty"`
	Value    json.RawMessage       `json:"value,omitempty"`
	Objects  map[string]objectSpec `json:"objects,omitempty"`
}

// objectSpec describes one remote object in the handshake reply.
type objectSpec struct {
	Methods    []string                   `json:"methods"`
	Properties map[string]json.RawMessage `json:"properties"`
	Signals    map[string][]string        `json:"signals"`
}
