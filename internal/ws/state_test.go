package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-pgp/internal/config"
	diag "github.com/coreman2200/funtimes-pgp/internal/diagnostics"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
	"github.com/coreman2200/funtimes-pgp/internal/script"
)

const okScene = `{"flow":["main"],"sections":[{"id":"main","blocks":[
	{"kind":"text","text":"OK","size":16},
	{"kind":"feed","lines":10}]}]}`

const badScene = `{"flow":["main"],"sections":[{"id":"main","blocks":[{"kind":"jump","label":7}]}]}`

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func waitClients(t *testing.T, s *State, set map[*websocket.Conn]bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.clientsMu.Lock()
		defer s.clientsMu.Unlock()
		return len(set) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func call(t *testing.T, c *websocket.Conn, req string) Response {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(req)))
	var resp Response
	require.NoError(t, c.ReadJSON(&resp))
	return resp
}

func readDiag(t *testing.T, c *websocket.Conn) diag.Diagnostic {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var d diag.Diagnostic
	require.NoError(t, c.ReadJSON(&d))
	return d
}

func TestControlPrintToFile(t *testing.T) {
	s := NewState(config.Default(), "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer s.Close()

	dg := dial(t, srv, "/diag")
	waitClients(t, s, s.diagClients)
	ctl := dial(t, srv, "/control")

	resp := call(t, ctl, `{"op":"print","scene":`+okScene+`}`)
	assert.False(t, resp.OK)
	require.NotEmpty(t, resp.Diagnostics)
	assert.Equal(t, diag.CodeNotConnected, resp.Diagnostics[0].Code)
	assert.Equal(t, diag.CodeNotConnected, readDiag(t, dg).Code)

	out := filepath.Join(t.TempDir(), "job.pgp")
	resp = call(t, ctl, `{"op":"connect","backend":"file","port":"`+out+`"}`)
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "TRANSPORT.CONNECTED", readDiag(t, dg).Code)

	resp = call(t, ctl, `{"op":"print","scene":`+okScene+`}`)
	require.True(t, resp.OK, resp.Error)
	require.NotNil(t, resp.Result)
	assert.Equal(t, resp.Result.Bytes, resp.Sent)
	assert.False(t, resp.Result.Branching)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	frames, err := pgp.Decode(b)
	require.NoError(t, err)
	require.Len(t, frames, 4)
	assert.Equal(t, pgp.CmdText, frames[0].Command())
	assert.Equal(t, pgp.CmdStop, frames[3].Command())

	resp = call(t, ctl, `{"op":"feed","lines":3}`)
	require.True(t, resp.OK)
	assert.Equal(t, 7, resp.Sent)

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, true, health["connected"])
	assert.Equal(t, float64(1), health["jobs"])
	assert.Equal(t, "connected", health["indicator"])

	resp = call(t, ctl, `{"op":"disconnect"}`)
	assert.True(t, resp.OK)
	resp = call(t, ctl, `{"op":"disconnect"}`)
	assert.False(t, resp.OK)
}

func TestControlCompileReportsViolations(t *testing.T) {
	s := NewState(config.Default(), "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	ctl := dial(t, srv, "/control")

	resp := call(t, ctl, `{"op":"compile","scene":`+badScene+`}`)
	assert.False(t, resp.OK)
	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, diag.CodeLabelUndefined, resp.Diagnostics[0].Code)
	assert.Contains(t, resp.Error, "label 7")

	resp = call(t, ctl, `{"op":"compile","scene":`+okScene+`}`)
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 4, resp.Result.Frames)

	resp = call(t, ctl, `{"op":"teleport"}`)
	assert.False(t, resp.OK)
	assert.Equal(t, diag.CodeGeneric, resp.Diagnostics[0].Code)

	resp = call(t, ctl, `not json`)
	assert.False(t, resp.OK)
}

func TestControlCompileStaysInSceneDir(t *testing.T) {
	defer func(b time.Duration) { script.Budget = b }(script.Budget)
	script.Budget = 50 * time.Millisecond
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "outside_secret.lua"), []byte(`function line(ctx) end`), 0o644))
	s := NewState(config.Default(), "")
	s.Loader.Dir = filepath.Join(root, "scenes")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	ctl := dial(t, srv, "/control")

	resp := call(t, ctl, `{"op":"compile","scene":{"flow":["a"],"sections":[{"id":"a","script_file":"../outside_secret.lua"}]}}`)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "outside the scene directory")

	resp = call(t, ctl, `{"op":"compile","scene":{"flow":["a"],"sections":[{"id":"a","script":"while true do end"}]}}`)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "time budget exhausted")
}

func TestStatusStreamsDeviceFrames(t *testing.T) {
	s := NewState(config.Default(), "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	st := dial(t, srv, "/status")
	waitClients(t, s, s.clients)

	b := pgp.SyncMarker(9).Bytes()
	s.onDevice(append([]byte{0x00}, b[:3]...))
	s.onDevice(b[3:])

	var first, second struct {
		Raw    string `json:"raw"`
		Frames []struct {
			Cmd     string `json:"cmd"`
			Payload string `json:"payload"`
		} `json:"frames"`
	}
	st.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, st.ReadJSON(&first))
	assert.Empty(t, first.Frames)
	require.NoError(t, st.ReadJSON(&second))
	require.Len(t, second.Frames, 1)
	assert.Equal(t, "SYNC", second.Frames[0].Cmd)
	assert.Equal(t, "0900", second.Frames[0].Payload)
}
