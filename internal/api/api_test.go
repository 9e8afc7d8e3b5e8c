package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinmdickey/nowplaying/internal/media"
	"github.com/justinmdickey/nowplaying/internal/state"
)

type call struct {
	cmd media.Command
	app string
}

type fakeSource struct {
	media.None
	fail error

	mu    sync.Mutex
	calls []call
}

func (f *fakeSource) record(cmd media.Command, app string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{cmd, app})
	return f.fail
}

func (f *fakeSource) PlayPause(_ context.Context, app string) error {
	return f.record(media.CmdPlayPause, app)
}

func (f *fakeSource) Next(_ context.Context, app string) error {
	return f.record(media.CmdNext, app)
}

func (f *fakeSource) Previous(_ context.Context, app string) error {
	return f.record(media.CmdPrevious, app)
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReady(t *testing.T) {
	h := NewHandler(state.New(), &fakeSource{})
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/ready", "").Code)
}

func TestNowPlayingEmpty(t *testing.T) {
	h := NewHandler(state.New(), &fakeSource{})

	rec := serve(h, http.MethodGet, "/now-playing", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestNowPlaying(t *testing.T) {
	store := state.New()
	store.SetIfChanged(media.Snapshot{
		Title:      "Ünïcode Song",
		Artist:     "X",
		Album:      "Y",
		ArtworkRef: "https://cover",
		Duration:   "200",
		Position:   "3.50",
		Source:     "spotify",
	})
	h := NewHandler(store, &fakeSource{})

	rec := serve(h, http.MethodGet, "/now-playing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ncode Song", got["title"])
	assert.Equal(t, "https://cover", got["imageUrl"])
	assert.Equal(t, "3.50", got["position"])
	assert.Equal(t, "spotify", got["source"])
}

func TestControl(t *testing.T) {
	tests := []struct {
		path string
		body string
		want call
	}{
		{"/control/play-pause", "", call{media.CmdPlayPause, ""}},
		{"/control/next", "  Spotify\n", call{media.CmdNext, "  Spotify\n"}},
		{"/control/back", "vlc", call{media.CmdPrevious, "vlc"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			src := &fakeSource{}
			h := NewHandler(state.New(), src)

			rec := serve(h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []call{tt.want}, src.calls)
		})
	}
}

func TestControlFailure(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/control/play-pause", "Failed to toggle play/pause"},
		{"/control/next", "Failed to skip to next track"},
		{"/control/back", "Failed to skip to previous track"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			src := &fakeSource{fail: errors.New("no player")}
			h := NewHandler(state.New(), src)

			rec := serve(h, http.MethodPost, tt.path, "")
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
			assert.Equal(t, tt.want, strings.TrimSpace(rec.Body.String()))
			assert.Len(t, src.calls, 1, "forwarded once")
		})
	}
}

func TestControlHintIsBounded(t *testing.T) {
	src := &fakeSource{}
	h := NewHandler(state.New(), src)

	serve(h, http.MethodPost, "/control/next", strings.Repeat("a", 10000))
	require.Len(t, src.calls, 1)
	assert.Len(t, src.calls[0].app, maxHintBytes)
}

func TestCORS(t *testing.T) {
	h := NewHandler(state.New(), &fakeSource{})

	req := httptest.NewRequest(http.MethodOptions, "/control/next", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	req.Header.Set("Origin", "http://example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWrongMethod(t *testing.T) {
	h := NewHandler(state.New(), &fakeSource{})
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/control/next", "").Code)
}
