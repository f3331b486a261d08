package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/promptbox/games"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		img := base64.StdEncoding.EncodeToString([]byte("\x89PNG"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]string{{"b64_json": img}, {"b64_json": img}},
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestServer(t *testing.T) (*httptest.Server, *game) {
	t.Helper()

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>promptbox</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := &Config{
		apiKey:     "test-key",
		baseURL:    fakeOpenAI(t).URL + "/v1",
		imageCount: 2,
		corsOrigin: "http://client.test",
		staticDir:  static,
	}

	g, err := newGame(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go g.hub.Run(ctx)
	t.Cleanup(cancel)

	errs := make(chan error, 64)

	srv := httptest.NewServer(newRouter(cfg, g, errs))
	t.Cleanup(srv.Close)

	return srv, g
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestImagesUnknownPlayer(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/images/nobody")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "null", body)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "http://client.test", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestImagesPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/images/alice", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://client.test")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://client.test", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "GET")
}

func TestStaticFallsBackToIndex(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		path string
		want string
	}{
		{path: "/", want: "<html>promptbox</html>"},
		{path: "/app.js", want: "console.log(1)"},
		{path: "/lobby/somewhere", want: "<html>promptbox</html>"},
		{path: "/missing.css", want: "<html>promptbox</html>"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, srv.URL+tt.path)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, body)
			assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
		})
	}
}

func TestServiceRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	_, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, "Ok\n", body)

	_, body = get(t, srv.URL+"/version")
	assert.Equal(t, "promptbox v"+releaseVersion+"\n", body)

	resp, body := get(t, srv.URL+"/qr")
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))
}

func readSettings(t *testing.T, conn *websocket.Conn) games.Settings {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var f struct {
		Event string         `json:"event"`
		Data  games.Settings `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, games.EventSettings, f.Event)

	return f.Data
}

func TestWebSocketRound(t *testing.T) {
	srv, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snap := readSettings(t, conn)
	assert.Equal(t, games.WaitingForPlayers, snap.Stage)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": games.EventUpdatePrompt,
		"data":  games.Prompt{User: "alice", Prompt: "a cat"},
	}))
	snap = readSettings(t, conn)
	assert.Equal(t, map[string]string{"alice": "a cat"}, snap.Users)

	require.NoError(t, conn.WriteJSON(map[string]any{"event": games.EventGenerateImages}))
	assert.Equal(t, games.GeneratingImages, readSettings(t, conn).Stage)
	assert.Equal(t, games.SelectingImage, readSettings(t, conn).Stage)

	_, body := get(t, srv.URL+"/images/alice")

	var images []string
	require.NoError(t, json.Unmarshal([]byte(body), &images))
	assert.Len(t, images, 2)
}
