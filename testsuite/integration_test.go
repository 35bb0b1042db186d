package testsuite

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/godiagram/internal/diagram/runtime"
	"github.com/lexcodex/godiagram/persistence"
	"github.com/lexcodex/godiagram/server"
	"github.com/lexcodex/godiagram/session"
	"github.com/lexcodex/godiagram/structure"
)

const snapshot = `{
	"packages": [{"name": "shop", "files": [{"name": "order.go", "structs": [
		{"name": "Order", "fields": [{"name": "Buyer", "type": {"literal": "*Customer", "structs": ["Customer"]}}], "methods": []},
		{"name": "Customer", "fields": [], "methods": []}
	]}]}],
	"edges": [{
		"from": {"packageName": "shop", "fileName": "order.go", "structName": "Order"},
		"to": {"packageName": "shop", "fileName": "order.go", "structName": "Customer"},
		"fieldTypeName": "Buyer"
	}],
	"globalFunctions": []
}`

// watcher serves one websocket session: it sends the snapshot, forwards every
// command it reads, and hangs up when done is closed.
func watcher(t *testing.T, received chan<- session.Command, done <-chan struct{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(snapshot)); err != nil {
			return
		}
		go func() {
			for {
				var cmd session.Command
				if err := conn.ReadJSON(&cmd); err != nil {
					return
				}
				received <- cmd
			}
		}()
		<-done
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
}

func TestWatcherToAPIRoundTrip(t *testing.T) {
	received := make(chan session.Command, 4)
	done := make(chan struct{})
	srv := watcher(t, received, done)
	defer srv.Close()
	defer close(done)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := runtime.DefaultConfig()
	cfg.Workspace = t.TempDir()
	cfg.JournalPath = ""
	cfg.Watcher.Host = u.Hostname()
	cfg.Watcher.Port = port
	rt, err := runtime.New(cfg, runtime.Options{})
	require.NoError(t, err)
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Connect(ctx))
	go func() { _ = rt.Editor.Run(ctx, nil) }()
	require.Eventually(t, func() bool { return !rt.Editor.Model().IsPlaceholder() }, 2*time.Second, 10*time.Millisecond)

	api := httptest.NewServer((&server.APIServer{
		Editor:  rt.Editor,
		Journal: rt.Journal,
		Session: rt.Config.Session,
		Logger:  rt.Logger,
	}).Handler())
	defer api.Close()

	body := []byte(`{"action": "renameField", "package": "shop", "file": "order.go", "name": "Order", "key": 0, "newFieldName": "Owner"}`)
	resp, err := http.Post(api.URL+"/api/edit", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case cmd := <-received:
		assert.Equal(t, structure.IntentRenameField, cmd.Action)
		require.NotNil(t, cmd.NewFieldName)
		assert.Equal(t, "Owner", *cmd.NewFieldName)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never received the rename")
	}

	var model structure.Model
	getJSON(t, api.URL+"/api/model", &model)
	require.Len(t, model.Packages, 1)
	require.Equal(t, "Owner", model.Packages[0].Files[0].Structs[0].Fields[0].Name)
	require.Len(t, model.Edges, 1)

	var entries []persistence.Entry
	getJSON(t, api.URL+"/api/journal?kind=renameField", &entries)
	require.Len(t, entries, 1)
	require.Equal(t, persistence.DirectionOutbound, entries[0].Direction)

	getJSON(t, api.URL+"/api/journal?kind=snapshot", &entries)
	require.Len(t, entries, 1)
	require.Equal(t, persistence.DirectionInbound, entries[0].Direction)
}

func TestUnreachableWatcherLeavesRuntimeUsable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	srv.Close()

	cfg := runtime.DefaultConfig()
	cfg.Workspace = t.TempDir()
	cfg.JournalPath = ""
	cfg.Watcher.Host = u.Hostname()
	cfg.Watcher.Port = port
	cfg.Watcher.DialTimeout = 500 * time.Millisecond
	rt, err := runtime.New(cfg, runtime.Options{})
	require.NoError(t, err)
	defer rt.Close()

	require.Error(t, rt.Connect(context.Background()))
	require.True(t, rt.Editor.Model().IsPlaceholder())

	api := httptest.NewServer((&server.APIServer{Editor: rt.Editor, Logger: rt.Logger}).Handler())
	defer api.Close()
	var status server.StatusResponse
	getJSON(t, api.URL+"/api/status", &status)
	require.Equal(t, session.StateErrored.String(), status.State)
	require.NotEmpty(t, status.Notices)
}

func getJSON(t *testing.T, target string, out interface{}) {
	t.Helper()
	resp, err := http.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
