// Package mirror keeps a local SessionState consistent with the studio's
// push notifications. It bootstraps from the root remote object after
// each handshake and then applies scene-list, current-scene, recording
// and streaming deltas as they arrive, notifying the owner once per
// applied update.
package mirror

import (
	"encoding/json"

	"github.com/tinyland-inc/stagelink/pkg/bridge"
	"github.com/tinyland-inc/stagelink/pkg/logger"
)

// Signal and property names on the session root object. Wire contract.
const (
	sigSessionChanged      = "sessionChanged"
	sigCurrentSceneChanged = "currentSceneChanged"
	sigRecordingChanged    = "isRecordingChanged"
	sigStreamingChanged    = "isStreamingChanged"

	propItems        = "items"
	propCurrentScene = "currentScene"
	propIsRecording  = "isRecording"
	propIsStreaming  = "isStreaming"
)

// itemTypeScene marks session items that are scenes; other item types
// (sources, layers, ...) are filtered out of the mirror.
const itemTypeScene = "scene"

// enumerateAliases are tried in order when the root object does not push
// an items property. Older studio builds only expose an enumeration
// method.
var enumerateAliases = []string{"getScenes", "listScenes"}

// sessionItem is the wire shape of one entry in the session's item list.
type sessionItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Order int    `json:"order"`
}

// Mirror owns the SessionState. All methods must run on the owner's
// event loop; the mirror itself does no locking.
type Mirror struct {
	state    SessionState
	onChange func(SessionState)
}

// New creates a Mirror. onChange fires after every applied update with a
// copy of the new state.
func New(onChange func(SessionState)) *Mirror {
	return &Mirror{onChange: onChange}
}

// State returns a copy of the current session state.
func (m *Mirror) State() SessionState {
	return m.state.clone()
}

// Bootstrap seeds the mirror from a freshly handshaken root object and
// subscribes to its change signals. Called once per connection.
func (m *Mirror) Bootstrap(root *bridge.RemoteObject) {
	root.ConnectSignal(sigSessionChanged, m.onSessionChanged(root))
	root.ConnectSignal(sigCurrentSceneChanged, m.onCurrentSceneChanged)
	root.ConnectSignal(sigRecordingChanged, m.onRecordingChanged)
	root.ConnectSignal(sigStreamingChanged, m.onStreamingChanged)

	root.PropertyInto(propCurrentScene, &m.state.CurrentSceneID)
	root.PropertyInto(propIsRecording, &m.state.IsRecording)
	root.PropertyInto(propIsStreaming, &m.state.IsStreaming)

	var items []sessionItem
	if root.PropertyInto(propItems, &items) {
		m.replaceScenes(items)
		return
	}

	// No items property: fall back to an enumeration method if the
	// studio declares one.
	for _, method := range enumerateAliases {
		if !root.HasMethod(method) {
			continue
		}
		logger.DebugCF("mirror", "Enumerating scenes via method", map[string]any{"method": method})
		err := root.Invoke(method, nil, func(result json.RawMessage, err error) {
			if err != nil {
				logger.WarnCF("mirror", "Scene enumeration failed", map[string]any{"error": err.Error()})
				return
			}
			var items []sessionItem
			if err := json.Unmarshal(result, &items); err != nil {
				logger.WarnCF("mirror", "Scene enumeration result unparseable", map[string]any{"error": err.Error()})
				return
			}
			m.replaceScenes(items)
		})
		if err != nil {
			logger.WarnCF("mirror", "Scene enumeration invoke failed", map[string]any{"error": err.Error()})
		}
		return
	}

	logger.WarnC("mirror", "Root object exposes neither an items property nor an enumeration method")
	m.replaceScenes(nil)
}

// Reset clears the whole state on disconnect so stale scenes and flags
// are not displayed against a dead connection. The next handshake
// re-seeds everything.
func (m *Mirror) Reset() {
	m.state = SessionState{}
	m.notify()
}

// replaceScenes swaps in a whole new scene set. Entries are never
// mutated in place.
func (m *Mirror) replaceScenes(items []sessionItem) {
	scenes := make([]SceneEntry, 0, len(items))
	for _, it := range items {
		if it.Type != itemTypeScene {
			continue
		}
		scenes = append(scenes, SceneEntry{
			ID:    it.ID,
			Name:  CleanName(it.Name),
			Order: it.Order,
		})
	}
	sortScenes(scenes)
	m.state.Scenes = scenes
	logger.InfoCF("mirror", "Scene set replaced", map[string]any{"scenes": len(scenes)})
	m.notify()
}

// onSessionChanged handles a full scene-set replacement. The signal may
// carry the new item list as its first argument; older studios emit it
// bare and expect the listener to re-read the items property, which the
// bridge has already refreshed by the time the signal is delivered.
func (m *Mirror) onSessionChanged(root *bridge.RemoteObject) bridge.SignalListener {
	return func(args []any) {
		if len(args) > 0 {
			if items, ok := decodeItems(args[0]); ok {
				m.replaceScenes(items)
				return
			}
		}
		var items []sessionItem
		root.PropertyInto(propItems, &items)
		m.replaceScenes(items)
	}
}

func (m *Mirror) onCurrentSceneChanged(args []any) {
	if len(args) == 0 {
		return
	}
	id, ok := args[0].(string)
	if !ok {
		return
	}
	// The ID may not be in the scene set yet if this signal raced a
	// sessionChanged replacement; accepted as-is, consumers resolve it
	// against whatever set is current.
	if _, known := m.state.SceneByID(id); !known && id != "" {
		logger.DebugCF("mirror", "Current scene not in scene set", map[string]any{"scene": id})
	}
	m.state.CurrentSceneID = id
	m.notify()
}

func (m *Mirror) onRecordingChanged(args []any) {
	if v, ok := boolArg(args); ok {
		m.state.IsRecording = v
		m.notify()
	}
}

func (m *Mirror) onStreamingChanged(args []any) {
	if v, ok := boolArg(args); ok {
		m.state.IsStreaming = v
		m.notify()
	}
}

func (m *Mirror) notify() {
	if m.onChange != nil {
		m.onChange(m.state.clone())
	}
}

func boolArg(args []any) (bool, bool) {
	if len(args) == 0 {
		return false, false
	}
	v, ok := args[0].(bool)
	return v, ok
}

// decodeItems converts a decoded-JSON signal argument into session
// items via a marshal round trip.
func decodeItems(v any) ([]sessionItem, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var items []sessionItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}
	return items, true
}
