package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/godiagram/persistence"
	"github.com/lexcodex/godiagram/structure"
)

const snapshotJSON = `{
	"packages": [{"name": "p", "files": [{"name": "f", "structs": [
		{"name": "S", "fields": [{"name": "id", "type": {"literal": "int", "structs": []}}], "methods": []}
	]}]}],
	"edges": [],
	"globalFunctions": []
}`

// peer is a scripted watcher: it writes the given messages, then hands every
// command it reads to received, then closes normally once done is closed.
func peer(t *testing.T, messages []string, received chan<- Command, done <-chan struct{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		go func() {
			for {
				var cmd Command
				if err := conn.ReadJSON(&cmd); err != nil {
					return
				}
				received <- cmd
			}
		}()
		<-done
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	}))
}

func wsURL(srv *httptest.Server) string {
	return strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws"
}

func nextEvent(t *testing.T, ch *Channel) Event {
	t.Helper()
	select {
	case ev := <-ch.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestChannelDeliversEventsInOrder(t *testing.T) {
	received := make(chan Command, 4)
	done := make(chan struct{})
	srv := peer(t, []string{
		snapshotJSON,
		`not json`,
		`{"packages": [{"name": "p", "files": [{"name": "f", "structs": [null]}]}]}`,
		`{"error": "rename failed"}`,
		`{"clearLayout": true}`,
		`{"fileChanged": true, "packages": [{"name": "p", "files": [{"name": "f", "structs": []}]}]}`,
	}, received, done)
	defer srv.Close()

	journal := persistence.NewInMemoryJournal(0)
	ch := NewChannel(DefaultEndpoint(), WithDialer(&WebSocketDialer{URL: wsURL(srv)}), WithJournal(journal, "test"))
	require.NoError(t, ch.Open(context.Background()))
	require.Equal(t, StateConnected, ch.State())
	require.ErrorIs(t, ch.Open(context.Background()), ErrAlreadyOpen)

	ev := nextEvent(t, ch)
	snap, ok := ev.(SnapshotEvent)
	require.True(t, ok, "got %T", ev)
	require.False(t, snap.Snapshot.Partial)
	require.Equal(t, "S", snap.Snapshot.Model().Packages[0].Files[0].Structs[0].Name)

	ev = nextEvent(t, ch)
	require.IsType(t, ProtocolErrorEvent{}, ev)

	ev = nextEvent(t, ch)
	nullErr, ok := ev.(ProtocolErrorEvent)
	require.True(t, ok, "got %T", ev)
	require.Equal(t, "null entry", nullErr.Err.Reason)

	ev = nextEvent(t, ch)
	peerErr, ok := ev.(PeerErrorEvent)
	require.True(t, ok, "got %T", ev)
	require.Equal(t, "rename failed", peerErr.Err.Message)

	require.IsType(t, ClearEvent{}, nextEvent(t, ch))

	ev = nextEvent(t, ch)
	partial, ok := ev.(SnapshotEvent)
	require.True(t, ok, "got %T", ev)
	require.True(t, partial.Snapshot.Partial)

	require.NoError(t, ch.SendIntent(structure.EditIntent{
		Kind:  structure.IntentRenameField,
		Ref:   structure.NodeRef{Package: "p", File: "f", Struct: "S"},
		Index: 0,
		Value: "ident",
	}))
	select {
	case cmd := <-received:
		require.Equal(t, structure.IntentRenameField, cmd.Action)
		require.Equal(t, "S", cmd.Name)
		require.NotNil(t, cmd.Key)
		require.Equal(t, 0, *cmd.Key)
		require.Equal(t, "ident", *cmd.NewFieldName)
	case <-time.After(2 * time.Second):
		t.Fatalf("peer never received the command")
	}

	close(done)
	closed, ok := nextEvent(t, ch).(ClosedEvent)
	require.True(t, ok)
	require.Equal(t, StateClosed, closed.State)
	require.NoError(t, closed.Err)
	require.Equal(t, StateClosed, ch.State())
	require.ErrorIs(t, ch.Send(Command{Action: structure.IntentAddField}), ErrNotConnected)

	outbound, err := journal.Query(context.Background(), persistence.JournalQuery{Direction: persistence.DirectionOutbound})
	require.NoError(t, err)
	require.Len(t, outbound, 1)
	require.Equal(t, "p/f.S", outbound[0].Ref)

	inbound, err := journal.Query(context.Background(), persistence.JournalQuery{Kind: "error"})
	require.NoError(t, err)
	require.Len(t, inbound, 1)
	require.Equal(t, "test", inbound[0].Session)
}

func TestChannelExplicitClose(t *testing.T) {
	done := make(chan struct{})
	srv := peer(t, nil, make(chan Command, 1), done)
	defer srv.Close()
	defer close(done)

	ch := NewChannel(DefaultEndpoint(), WithDialer(&WebSocketDialer{URL: wsURL(srv)}))
	require.NoError(t, ch.Open(context.Background()))
	require.NoError(t, ch.Close())
	closed, ok := nextEvent(t, ch).(ClosedEvent)
	require.True(t, ok)
	require.Equal(t, StateClosed, closed.State)
}

func TestChannelDialFailureIsErrored(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	ch := NewChannel(DefaultEndpoint(), WithDialer(&WebSocketDialer{URL: url}))
	require.Error(t, ch.Open(context.Background()))
	require.Equal(t, StateErrored, ch.State())
	require.Error(t, ch.Err())
	require.ErrorIs(t, ch.Send(Command{}), ErrNotConnected)
}

func TestEndpointURL(t *testing.T) {
	e := DefaultEndpoint()
	require.Equal(t, "ws://localhost:5874/ws", e.URL())
	e.VersionToken = "1700000000"
	require.Equal(t, "ws://localhost:5874/ws?lastMod=1700000000", e.URL())
}

func TestDecodeClassifiesMessages(t *testing.T) {
	_, err := Decode([]byte(`{"fileChanged": true}`))
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)

	_, err = Decode([]byte(`{"unrelated": 1}`))
	require.ErrorAs(t, err, &perr)

	_, err = Decode([]byte(`{"packages": 5}`))
	require.ErrorAs(t, err, &perr)

	for _, raw := range []string{
		`{"packages": [null]}`,
		`{"packages": [{"name": "p", "files": [null]}]}`,
		`{"packages": [{"name": "p", "files": [{"name": "f", "structs": [null]}]}]}`,
		`{"fileChanged": true, "packages": [{"name": "p", "files": [{"name": "f", "structs": [null]}]}]}`,
	} {
		_, err = Decode([]byte(raw))
		require.ErrorAs(t, err, &perr, raw)
		require.Equal(t, "null entry", perr.Reason)
	}

	ev, err := Decode([]byte(`{"packages": []}`))
	require.NoError(t, err)
	require.Empty(t, ev.(SnapshotEvent).Snapshot.Model().Packages)
}

func TestCommandWireShape(t *testing.T) {
	cmd, err := CommandFor(structure.EditIntent{
		Kind:      structure.IntentRetypeMethodReturn,
		Ref:       structure.NodeRef{Package: "p", File: "f", Struct: "S"},
		Index:     1,
		TypeIndex: 0,
		Value:     "error",
	})
	require.NoError(t, err)
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	require.JSONEq(t, `{"action":"retypeMethodReturn","package":"p","file":"f","name":"S","methodIndex":1,"typeIndex":0,"newReturnType":"error"}`, string(raw))

	back, err := cmd.Intent()
	require.NoError(t, err)
	require.Equal(t, "error", back.Value)
	require.Equal(t, 1, back.Index)

	_, err = Command{Action: structure.IntentRenameStruct, Package: "p", File: "f", Name: "S"}.Intent()
	require.Error(t, err, "rename without newName")
}

func TestPartialSnapshotUpdatesOneFile(t *testing.T) {
	full, err := Decode([]byte(snapshotJSON))
	require.NoError(t, err)
	store := structure.NewStore(nil)
	require.NoError(t, store.Apply(full.(SnapshotEvent).Snapshot.Transformation()))

	partial, err := Decode([]byte(`{"fileChanged": true, "packages": [{"name": "p", "files": [{"name": "f", "structs": [{"name": "T", "fields": [], "methods": []}]}]}]}`))
	require.NoError(t, err)
	before := store.Model()
	require.NoError(t, store.Apply(partial.(SnapshotEvent).Snapshot.Transformation()))
	after := store.Model()
	require.Equal(t, "T", after.Packages[0].Files[0].Structs[0].Name)
	require.Equal(t, before.Edges, after.Edges)

	unknown, err := Decode([]byte(`{"fileChanged": true, "packages": [{"name": "new", "files": [{"name": "x", "structs": []}]}]}`))
	require.NoError(t, err)
	require.NoError(t, store.Apply(unknown.(SnapshotEvent).Snapshot.Transformation()))
	require.Equal(t, "new", store.Model().Packages[0].Name, "unknown file falls back to the whole snapshot")
}
