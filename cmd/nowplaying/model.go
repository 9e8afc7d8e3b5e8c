package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/justinmdickey/nowplaying/internal/config"
	"github.com/justinmdickey/nowplaying/internal/media"
)

// stallAfter is how long without a push before a playing track is shown as
// paused. The daemon pushes every poll while the position advances.
const stallAfter = 2 * time.Second

// model is the Bubble Tea model for the TUI application
type model struct {
	client    *client
	conn      *websocket.Conn
	cfg       config.Config
	color     string
	width     int
	height    int
	lastError error
	connected bool

	snap media.Snapshot

	// For smooth position interpolation
	lastPosition     float64   // Last pushed position in seconds
	lastPositionTime time.Time // When that position arrived
	duration         int64     // Track duration in seconds
	isPlaying        bool      // Position moved between the last two pushes

	// Album artwork support
	supportsKitty  bool   // Whether terminal supports Kitty graphics
	artworkEncoded string // Kitty protocol-encoded artwork for display
	artRef         string // Artwork reference last requested

	// Text scrolling state
	scrollOffset int
	scrollPause  int
	scrollTick   int

	showHelp bool
}

func newModel(c *client, cfg config.Config, kitty bool) model {
	return model{
		client:        c,
		cfg:           cfg,
		color:         cfg.TUI.Color,
		supportsKitty: kitty,
	}
}

// UI refresh tick
type tickMsg time.Time

// Config file changed
type configReloadMsg struct{ cfg config.Config }

var configChangeChan = make(chan config.Config, 1)

// Watch for config file changes
func watchConfigCmd() tea.Cmd {
	return func() tea.Msg {
		return configReloadMsg{cfg: <-configChangeChan}
	}
}

func notifyConfigChange(cfg config.Config) {
	select {
	case configChangeChan <- cfg:
	default:
	}
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.cfg.UIRefresh(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func trackID(s media.Snapshot) string {
	return fmt.Sprintf("%s|%s", s.Title, s.Artist)
}

// playing reports whether the position is still advancing.
func (m model) playing() bool {
	return m.isPlaying && time.Since(m.lastPositionTime) < stallAfter
}

// Calculate current position with smooth interpolation
func (m model) getCurrentPosition() float64 {
	if !m.isPlaying {
		return m.lastPosition
	}

	elapsed := min(time.Since(m.lastPositionTime), stallAfter).Seconds()
	currentPos := m.lastPosition + elapsed

	if m.duration > 0 && currentPos > float64(m.duration) {
		currentPos = float64(m.duration)
	}
	return currentPos
}

// apply takes a pushed snapshot and returns a command to fetch its artwork
// when that changed.
func (m *model) apply(snap media.Snapshot, now time.Time) tea.Cmd {
	pos := parseSeconds(snap.Position)

	sameTrack := !m.snap.IsEmpty() && trackID(snap) == trackID(m.snap)
	if !sameTrack {
		m.scrollOffset = 0
		m.scrollPause = 30
		m.scrollTick = 0
		m.isPlaying = !snap.IsEmpty()
	} else {
		m.isPlaying = pos != m.lastPosition
	}

	m.snap = snap
	m.lastPosition = pos
	m.lastPositionTime = now
	m.duration = int64(parseSeconds(snap.Duration))

	return m.requestArtwork()
}

func (m model) showArtwork() bool {
	return m.supportsKitty && m.cfg.TUI.Artwork
}

func (m model) maxTextLength() int {
	if m.showArtwork() {
		return m.cfg.TUI.MaxTextLengthWithArt
	}
	return m.cfg.TUI.MaxTextLength
}

// requestArtwork fetches the current track's artwork when its reference
// changed and either the image or its color is needed.
func (m *model) requestArtwork() tea.Cmd {
	ref := m.snap.ArtworkRef
	if ref == "" {
		m.artRef = ""
		m.artworkEncoded = ""
		return nil
	}
	if ref == m.artRef {
		return nil
	}

	wantColor := m.cfg.TUI.ColorMode == "auto"
	columns := 0
	if m.showArtwork() {
		columns = m.cfg.TUI.ArtworkColumns
	}
	if !wantColor && columns == 0 {
		return nil
	}

	m.artRef = ref
	return m.client.artwork(ref, wantColor, columns)
}

func (m *model) clearTrack() {
	m.snap = media.Snapshot{}
	m.isPlaying = false
	m.artRef = ""
	m.artworkEncoded = ""
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.client.connect(),
		watchConfigCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.conn != nil {
				m.conn.Close()
			}
			return m, tea.Quit
		case "p":
			return m, m.client.control("play-pause", m.snap.Source)
		case "n":
			return m, m.client.control("next", m.snap.Source)
		case "b":
			return m, m.client.control("back", m.snap.Source)
		case "a":
			m.cfg.TUI.Artwork = !m.cfg.TUI.Artwork
			m.artRef = ""
			if !m.cfg.TUI.Artwork {
				m.artworkEncoded = ""
				return m, nil
			}
			return m, m.requestArtwork()
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case connectedMsg:
		m.conn = msg.conn
		m.connected = true
		m.lastError = nil
		return m, listen(msg.conn)

	case disconnectedMsg:
		if m.conn != nil {
			m.conn.Close()
			m.conn = nil
		}
		m.connected = false
		m.lastError = msg.err
		m.clearTrack()
		return m, reconnectLater()

	case reconnectMsg:
		return m, m.client.connect()

	case pushMsg:
		if m.conn == nil {
			return m, nil
		}
		next := listen(m.conn)
		if msg.err != nil {
			m.lastError = msg.err
			return m, next
		}
		m.lastError = nil
		if msg.stopped {
			m.clearTrack()
			return m, next
		}
		return m, tea.Batch(next, m.apply(msg.snap, time.Now()))

	case controlMsg:
		m.lastError = msg.err
		return m, nil

	case artworkMsg:
		if msg.ref != m.snap.ArtworkRef {
			return m, nil
		}
		if m.cfg.TUI.ColorMode == "auto" && msg.color != "" {
			m.color = msg.color
		}
		if m.showArtwork() {
			m.artworkEncoded = msg.encoded
		}
		return m, nil

	case configReloadMsg:
		prev := m.cfg
		m.cfg = msg.cfg
		if m.cfg.TUI.ColorMode == "manual" {
			m.color = m.cfg.TUI.Color
		}
		if !m.showArtwork() {
			m.artworkEncoded = ""
		}
		if prev.TUI.ColorMode != m.cfg.TUI.ColorMode || prev.TUI.Artwork != m.cfg.TUI.Artwork ||
			prev.TUI.ArtworkColumns != m.cfg.TUI.ArtworkColumns {
			m.artRef = ""
			return m, tea.Batch(watchConfigCmd(), m.requestArtwork())
		}
		return m, watchConfigCmd()

	case tickMsg:
		m.scrollTick++

		if m.scrollPause > 0 {
			m.scrollPause--
		} else if m.scrollTick%3 == 0 {
			m.scrollOffset++

			maxLen := m.maxTextLength()
			longestLen := len([]rune(m.snap.Title))
			if l := len([]rune(m.snap.Artist)); l > longestLen {
				longestLen = l
			}
			if l := len([]rune(m.snap.Album)); l > longestLen {
				longestLen = l
			}

			if longestLen > maxLen {
				loopPoint := longestLen + len([]rune(scrollSeparator))
				if m.scrollOffset >= loopPoint {
					m.scrollOffset = 0
					m.scrollPause = 30
				}
			}
		}
		return m, m.tickCmd()
	}

	return m, nil
}
