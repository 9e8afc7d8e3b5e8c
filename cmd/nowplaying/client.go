package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/justinmdickey/nowplaying/internal/artwork"
	"github.com/justinmdickey/nowplaying/internal/media"
)

const reconnectDelay = 2 * time.Second

// client talks to a running nowplayingd.
type client struct {
	baseURL string
	pushURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

func newClient(controlAddr, pushAddr string) *client {
	return &client{
		baseURL: "http://" + controlAddr,
		pushURL: "ws://" + pushAddr,
		http:    &http.Client{Timeout: 5 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
	}
}

// Connected to the push server
type connectedMsg struct{ conn *websocket.Conn }

// Push connection lost or never established
type disconnectedMsg struct{ err error }

// Time to dial the push server again
type reconnectMsg struct{}

// One message from the push server
type pushMsg struct {
	snap    media.Snapshot
	stopped bool
	err     error
}

// Result of a control request
type controlMsg struct{ err error }

// Processed artwork for one artwork reference
type artworkMsg struct {
	ref     string
	color   string // dominant color, when requested
	encoded string // Kitty escapes, when requested
}

func (c *client) connect() tea.Cmd {
	return func() tea.Msg {
		conn, _, err := c.dialer.Dial(c.pushURL, nil)
		if err != nil {
			return disconnectedMsg{err: fmt.Errorf("can't reach nowplayingd at %s: %w", c.pushURL, err)}
		}
		return connectedMsg{conn: conn}
	}
}

func reconnectLater() tea.Cmd {
	return tea.Tick(reconnectDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

// listen waits for the next pushed message on conn.
func listen(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return disconnectedMsg{err: err}
		}
		if media.IsStopped(data) {
			return pushMsg{stopped: true}
		}
		var snap media.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return pushMsg{err: fmt.Errorf("bad push message: %w", err)}
		}
		return pushMsg{snap: snap}
	}
}

// control posts a transport command. app may be empty.
func (c *client) control(path, app string) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.http.Post(c.baseURL+"/control/"+path, "text/plain", strings.NewReader(app))
		if err != nil {
			return controlMsg{err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			msg := strings.TrimSpace(string(body))
			if msg == "" {
				msg = resp.Status
			}
			return controlMsg{err: fmt.Errorf("%s", msg)}
		}
		return controlMsg{}
	}
}

// artworkPixels is the width artwork is scaled to before the terminal
// fits it into cells.
const artworkPixels = 300

// artwork fetches the image behind ref once and derives what the UI asked
// for from it: the dominant color, the Kitty-encoded image, or both.
func (c *client) artwork(ref string, wantColor bool, columns int) tea.Cmd {
	return func() tea.Msg {
		out := artworkMsg{ref: ref}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		raw, err := artwork.Load(ctx, c.http, ref)
		if err != nil {
			return out
		}
		img, err := artwork.Decode(raw)
		if err != nil {
			return out
		}

		if wantColor {
			if color, err := artwork.DominantColor(img); err == nil {
				out.color = color
			}
		}
		if columns > 0 {
			if thumb, err := artwork.Thumbnail(img, artworkPixels); err == nil {
				out.encoded = encodeKitty(thumb, columns)
			}
		}
		return out
	}
}
