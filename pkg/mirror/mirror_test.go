package mirror

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/stagelink/pkg/bridge"
)

// captureConn records outbound frames as decoded JSON maps so the tests
// can correlate invoke IDs without depending on the bridge's internals.
type captureConn struct {
	sent   []map[string]any
	failed []error
}

func (c *captureConn) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *captureConn) Fail(reason error) { c.failed = append(c.failed, reason) }

func handshakeWith(t *testing.T, conn *captureConn, sessionSpec string) *bridge.Bridge {
	t.Helper()
	b := bridge.New(conn, bridge.Options{Root: "session"})
	b.OnOpen()
	b.OnMessage(fmt.Sprintf(`{"type":"handshakeReply","objects":{"session":%s}}`, sessionSpec))
	require.True(t, b.Ready())
	return b
}

const itemsSpec = `{
	"methods": ["showScene"],
	"properties": {
		"items": [
			{"id": "b2", "name": "Outro", "type": "scene", "order": 1},
			{"id": "a1", "name": "Intro (abc12345)", "type": "scene", "order": 0},
			{"id": "x3", "name": "Mic", "type": "source", "order": 2}
		],
		"currentScene": "a1",
		"isRecording": true,
		"isStreaming": false
	},
	"signals": {
		"sessionChanged": [],
		"currentSceneChanged": ["sceneId"],
		"isRecordingChanged": ["value"],
		"isStreamingChanged": ["value"]
	}
}`

func TestBootstrapFromItemsProperty(t *testing.T) {
	conn := &captureConn{}
	b := handshakeWith(t, conn, itemsSpec)

	var states []SessionState
	m := New(func(s SessionState) { states = append(states, s) })
	m.Bootstrap(b.Root())

	require.NotEmpty(t, states)
	s := m.State()
	require.Len(t, s.Scenes, 2, "non-scene items must be filtered")
	require.Equal(t, "a1", s.Scenes[0].ID)
	require.Equal(t, "Intro", s.Scenes[0].Name, "parenthetical suffix stripped")
	require.Equal(t, "b2", s.Scenes[1].ID)
	require.Equal(t, "Outro", s.Scenes[1].Name)
	require.Equal(t, "a1", s.CurrentSceneID)
	require.True(t, s.IsRecording)
	require.False(t, s.IsStreaming)
}

func TestBootstrapFallsBackToEnumerationMethod(t *testing.T) {
	conn := &captureConn{}
	b := handshakeWith(t, conn, `{
		"methods": ["getScenes", "showScene"],
		"properties": {"isRecording": false, "isStreaming": false},
		"signals": {}
	}`)

	m := New(nil)
	m.Bootstrap(b.Root())

	// Bootstrap must have invoked getScenes.
	last := conn.sent[len(conn.sent)-1]
	require.Equal(t, "invokeMethod", last["type"])
	require.Equal(t, "getScenes", last["method"])

	// Answer the enumeration.
	reply := fmt.Sprintf(`{"type":"invokeMethodReply","id":%q,"result":[
		{"id":"a1","name":"Intro","type":"scene","order":0}
	]}`, last["id"])
	b.OnMessage(reply)

	s := m.State()
	require.Len(t, s.Scenes, 1)
	require.Equal(t, "Intro", s.Scenes[0].Name)
}

func TestSessionChangedWithPayloadReplacesSet(t *testing.T) {
	conn := &captureConn{}
	b := handshakeWith(t, conn, itemsSpec)

	m := New(nil)
	m.Bootstrap(b.Root())

	b.OnMessage(`{"type":"signal","object":"session","signal":"sessionChanged","args":[[
		{"id":"c9","name":"New Scene","type":"scene","order":0}
	]]}`)

	s := m.State()
	require.Len(t, s.Scenes, 1)
	require.Equal(t, "c9", s.Scenes[0].ID)
}

func TestSessionChangedWithoutPayloadRereadsProperty(t *testing.T) {
	conn := &captureConn{}
	b := handshakeWith(t, conn, itemsSpec)

	m := New(nil)
	m.Bootstrap(b.Root())

	// The studio pushes the refreshed property first, then the bare signal.
	b.OnMessage(`{"type":"propertyUpdate","object":"session","property":"items","value":[
		{"id":"d4","name":"Replacement","type":"scene","order":0}
	]}`)
	b.OnMessage(`{"type":"signal","object":"session","signal":"sessionChanged","args":[]}`)

	s := m.State()
	require.Len(t, s.Scenes, 1)
	require.Equal(t, "d4", s.Scenes[0].ID)
}

func TestCurrentSceneChangedAcceptsUnknownID(t *testing.T) {
	conn := &captureConn{}
	b := handshakeWith(t, conn, itemsSpec)

	m := New(nil)
	m.Bootstrap(b.Root())

	b.OnMessage(`{"type":"signal","object":"session","signal":"currentSceneChanged","args":["ghost"]}`)

	s := m.State()
	require.Equal(t, "ghost", s.CurrentSceneID)
	_, ok := s.CurrentScene()
	require.False(t, ok, "stale current scene must not resolve")
}

func TestRaceOrderingsBothAccepted(t *testing.T) {
	newItems := `[{"id":"n1","name":"Night","type":"scene","order":0}]`

	// Ordering 1: current-scene signal first, scene list second.
	conn := &captureConn{}
	b := handshakeWith(t, conn, itemsSpec)
	m := New(nil)
	m.Bootstrap(b.Root())
	b.OnMessage(`{"type":"signal","object":"session","signal":"currentSceneChanged","args":["n1"]}`)
	b.OnMessage(fmt.Sprintf(`{"type":"signal","object":"session","signal":"sessionChanged","args":[%s]}`, newItems))
	if sc, ok := m.State().CurrentScene(); !ok || sc.ID != "n1" {
		t.Errorf("ordering signal-first: current = %+v, %v", sc, ok)
	}

	// Ordering 2: scene list first, current-scene signal second.
	conn = &captureConn{}
	b = handshakeWith(t, conn, itemsSpec)
	m = New(nil)
	m.Bootstrap(b.Root())
	b.OnMessage(fmt.Sprintf(`{"type":"signal","object":"session","signal":"sessionChanged","args":[%s]}`, newItems))
	b.OnMessage(`{"type":"signal","object":"session","signal":"currentSceneChanged","args":["n1"]}`)
	if sc, ok := m.State().CurrentScene(); !ok || sc.ID != "n1" {
		t.Errorf("ordering list-first: current = %+v, %v", sc, ok)
	}
}

func TestRecordingAndStreamingFlips(t *testing.T) {
	conn := &captureConn{}
	b := handshakeWith(t, conn, itemsSpec)

	var notifications int
	m := New(func(SessionState) { notifications++ })
	m.Bootstrap(b.Root())
	base := notifications

	b.OnMessage(`{"type":"signal","object":"session","signal":"isRecordingChanged","args":[false]}`)
	b.OnMessage(`{"type":"signal","object":"session","signal":"isStreamingChanged","args":[true]}`)

	s := m.State()
	require.False(t, s.IsRecording)
	require.True(t, s.IsStreaming)
	require.Equal(t, base+2, notifications, "exactly one notification per signal")
}

func TestResetClearsState(t *testing.T) {
	conn := &captureConn{}
	b := handshakeWith(t, conn, itemsSpec)

	m := New(nil)
	m.Bootstrap(b.Root())
	m.Reset()

	s := m.State()
	require.Empty(t, s.Scenes)
	require.Empty(t, s.CurrentSceneID)
}
