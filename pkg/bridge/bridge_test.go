package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn captures outbound frames and handshake failures.
type fakeConn struct {
	sent    []frame
	failed  []error
	sendErr error
}

func (c *fakeConn) Send(payload any) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	f, ok := payload.(frame)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", payload)
	}
	c.sent = append(c.sent, f)
	return nil
}

func (c *fakeConn) Fail(reason error) {
	c.failed = append(c.failed, reason)
}

const handshakeReply = `{
	"type": "handshakeReply",
	"objects": {
		"session": {
			"methods": ["showScene", "startRecording", "stopRecording"],
			"properties": {
				"isRecording": false,
				"currentScene": "a1"
			},
			"signals": {
				"currentSceneChanged": ["sceneId"],
				"isRecordingChanged": ["value"]
			}
		}
	}
}`

func newReadyBridge(t *testing.T, conn *fakeConn, opts Options) *Bridge {
	t.Helper()
	if opts.Root == "" {
		opts.Root = "session"
	}
	b := New(conn, opts)
	b.OnOpen()
	require.Len(t, conn.sent, 1)
	require.Equal(t, typeHandshake, conn.sent[0].Type)
	b.OnMessage(handshakeReply)
	require.True(t, b.Ready())
	return b
}

func TestHandshakeBuildsProxies(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})

	root := b.Root()
	require.NotNil(t, root)
	require.True(t, root.HasMethod("showScene"))
	require.False(t, root.HasMethod("toggleRecording"))
	require.Equal(t, []string{"showScene", "startRecording", "stopRecording"}, root.Methods())

	var rec bool
	require.True(t, root.PropertyInto("isRecording", &rec))
	require.False(t, rec)

	var cur string
	require.True(t, root.PropertyInto("currentScene", &cur))
	require.Equal(t, "a1", cur)
}

func TestHandshakeMissingRootFailsConnection(t *testing.T) {
	conn := &fakeConn{}
	b := New(conn, Options{Root: "session"})
	b.OnOpen()
	b.OnMessage(`{"type":"handshakeReply","objects":{"other":{"methods":[]}}}`)

	require.False(t, b.Ready())
	require.Nil(t, b.Root())
	require.Len(t, conn.failed, 1)
	require.Contains(t, conn.failed[0].Error(), "session")
}

func TestHandshakeUnparseableFailsConnection(t *testing.T) {
	conn := &fakeConn{}
	b := New(conn, Options{Root: "session"})
	b.OnOpen()
	b.OnMessage(`this is not json`)

	require.False(t, b.Ready())
	require.Len(t, conn.failed, 1)
}

func TestOnReadyCallback(t *testing.T) {
	conn := &fakeConn{}
	ready := false
	newReadyBridge(t, conn, Options{OnReady: func() { ready = true }})
	require.True(t, ready)
}

func TestInvokeCorrelatesReply(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})
	root := b.Root()

	var got json.RawMessage
	var gotErr error
	err := root.Invoke("showScene", []any{"a1"}, func(result json.RawMessage, err error) {
		got, gotErr = result, err
	})
	require.NoError(t, err)

	sent := conn.sent[len(conn.sent)-1]
	require.Equal(t, typeInvokeMethod, sent.Type)
	require.Equal(t, "session", sent.Object)
	require.Equal(t, "showScene", sent.Method)
	require.Equal(t, []any{"a1"}, sent.Args)
	require.NotEmpty(t, sent.ID)

	b.OnMessage(fmt.Sprintf(`{"type":"invokeMethodReply","id":%q,"result":"ok"}`, sent.ID))
	require.NoError(t, gotErr)
	require.JSONEq(t, `"ok"`, string(got))
}

func TestConcurrentInvokesDoNotCrossCorrelate(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})
	root := b.Root()

	results := map[string]string{}
	for _, scene := range []string{"a1", "b2"} {
		scene := scene
		require.NoError(t, root.Invoke("showScene", []any{scene}, func(result json.RawMessage, err error) {
			require.NoError(t, err)
			var s string
			require.NoError(t, json.Unmarshal(result, &s))
			results[scene] = s
		}))
	}

	first := conn.sent[1]
	second := conn.sent[2]
	require.NotEqual(t, first.ID, second.ID)

	// Answer in reverse order.
	b.OnMessage(fmt.Sprintf(`{"type":"invokeMethodReply","id":%q,"result":"reply-b2"}`, second.ID))
	b.OnMessage(fmt.Sprintf(`{"type":"invokeMethodReply","id":%q,"result":"reply-a1"}`, first.ID))

	require.Equal(t, "reply-a1", results["a1"])
	require.Equal(t, "reply-b2", results["b2"])
}

func TestStaleReplyDiscarded(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})

	// Must not panic or affect later calls.
	b.OnMessage(`{"type":"invokeMethodReply","id":"never-issued","result":1}`)
	require.True(t, b.Ready())
}

func TestInvokeUnknownMethod(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})

	err := b.Root().Invoke("doesNotExist", nil, nil)
	require.ErrorIs(t, err, ErrNoSuchMethod)
	// No frame beyond the handshake may have been sent.
	require.Len(t, conn.sent, 1)
}

func TestInvokeTimeout(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{InvokeTimeout: 20 * time.Millisecond})

	errCh := make(chan error, 1)
	require.NoError(t, b.Root().Invoke("showScene", []any{"a1"}, func(_ json.RawMessage, err error) {
		errCh <- err
	}))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrInvokeTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}

	// A reply arriving after expiry is stale and must be ignored.
	id := conn.sent[len(conn.sent)-1].ID
	b.OnMessage(fmt.Sprintf(`{"type":"invokeMethodReply","id":%q,"result":"late"}`, id))
}

func TestDisconnectFailsPendingCalls(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})

	var gotErr error
	require.NoError(t, b.Root().Invoke("showScene", []any{"a1"}, func(_ json.RawMessage, err error) {
		gotErr = err
	}))

	b.OnClose()
	require.ErrorIs(t, gotErr, ErrDisconnected)
	require.False(t, b.Ready())
	require.Nil(t, b.Root())
}

func TestSendFailureUnregistersCall(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})

	conn.sendErr = errors.New("socket gone")
	called := false
	err := b.Root().Invoke("showScene", nil, func(_ json.RawMessage, _ error) { called = true })
	require.Error(t, err)
	require.False(t, called)

	b.mu.Lock()
	pending := len(b.pending)
	b.mu.Unlock()
	require.Zero(t, pending)
}

func TestPropertyUpdateRefreshesCache(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})

	b.OnMessage(`{"type":"propertyUpdate","object":"session","property":"isRecording","value":true}`)

	var rec bool
	require.True(t, b.Root().PropertyInto("isRecording", &rec))
	require.True(t, rec)
}

func TestSignalListenersRunInOrder(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})

	var order []string
	var gotArgs []any
	root := b.Root()
	root.ConnectSignal("currentSceneChanged", func(args []any) {
		order = append(order, "first")
		gotArgs = args
	})
	root.ConnectSignal("currentSceneChanged", func(_ []any) {
		order = append(order, "second")
	})

	b.OnMessage(`{"type":"signal","object":"session","signal":"currentSceneChanged","args":["b2"]}`)

	require.Equal(t, []string{"first", "second"}, order)
	require.Equal(t, []any{"b2"}, gotArgs)
}

func TestSignalForUnknownObjectIgnored(t *testing.T) {
	conn := &fakeConn{}
	b := newReadyBridge(t, conn, Options{})

	b.OnMessage(`{"type":"signal","object":"ghost","signal":"x","args":[]}`)
	require.True(t, b.Ready())
}
