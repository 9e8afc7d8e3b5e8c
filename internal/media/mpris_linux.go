//go:build linux

package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPath   = "/org/mpris/MediaPlayer2"
	mprisPlayer = "org.mpris.MediaPlayer2.Player"
)

// MPRIS reads and controls players on the D-Bus session bus.
type MPRIS struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewMPRIS returns an MPRIS source. The bus connection is opened lazily and
// re-opened after it drops.
func NewMPRIS() *MPRIS {
	return &MPRIS{}
}

func (m *MPRIS) bus() (*dbus.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && m.conn.Connected() {
		return m.conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	m.conn = conn
	return conn, nil
}

// Close releases the bus connection.
func (m *MPRIS) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

func (m *MPRIS) players(ctx context.Context, conn *dbus.Conn) ([]string, error) {
	var names []string
	err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}

	players := names[:0]
	for _, n := range names {
		if strings.HasPrefix(n, mprisPrefix) {
			players = append(players, n)
		}
	}
	return players, nil
}

func property(ctx context.Context, obj dbus.BusObject, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, mprisPlayer, name).Store(&v)
	return v, err
}

func playbackStatus(ctx context.Context, conn *dbus.Conn, name string) string {
	v, err := property(ctx, conn.Object(name, mprisPath), "PlaybackStatus")
	if err != nil {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

// Query reports the first player whose status is Playing.
func (m *MPRIS) Query(ctx context.Context) (*Snapshot, error) {
	conn, err := m.bus()
	if err != nil {
		return nil, err
	}
	players, err := m.players(ctx, conn)
	if err != nil {
		return nil, err
	}

	for _, name := range players {
		if playbackStatus(ctx, conn, name) != "Playing" {
			continue
		}

		obj := conn.Object(name, mprisPath)
		mdv, err := property(ctx, obj, "Metadata")
		if err != nil {
			log.Debugw("metadata unavailable", "player", name, "err", err)
			continue
		}
		md, _ := mdv.Value().(map[string]dbus.Variant)

		var pos *int64
		if pv, err := property(ctx, obj, "Position"); err == nil {
			if us, ok := pv.Value().(int64); ok {
				pos = &us
			}
		}

		snap := snapshotFromMetadata(name, md, pos)
		return &snap, nil
	}
	return nil, nil
}

// snapshotFromMetadata converts an MPRIS metadata map. Missing or mistyped
// entries leave the field empty.
func snapshotFromMetadata(busName string, md map[string]dbus.Variant, positionUS *int64) Snapshot {
	snap := Snapshot{Source: playerName(busName)}

	if v, ok := md["xesam:title"]; ok {
		snap.Title, _ = v.Value().(string)
	}
	if v, ok := md["xesam:album"]; ok {
		snap.Album, _ = v.Value().(string)
	}
	if v, ok := md["xesam:artist"]; ok {
		switch a := v.Value().(type) {
		case []string:
			snap.Artist = strings.Join(a, ", ")
		case string:
			snap.Artist = a
		}
	}
	if v, ok := md["mpris:artUrl"]; ok {
		snap.ArtworkRef, _ = v.Value().(string)
	}
	if v, ok := md["mpris:length"]; ok {
		switch l := v.Value().(type) {
		case int64:
			snap.Duration = microsToSeconds(l)
		case uint64:
			snap.Duration = microsToSeconds(int64(l))
		case int32:
			snap.Duration = microsToSeconds(int64(l))
		}
	}
	if positionUS != nil {
		snap.Position = microsToFractional(*positionUS)
	}
	return snap
}

func (m *MPRIS) command(ctx context.Context, method, app string) error {
	conn, err := m.bus()
	if err != nil {
		return err
	}
	players, err := m.players(ctx, conn)
	if err != nil {
		return err
	}

	statuses := make(map[string]string, len(players))
	if app == "" {
		for _, name := range players {
			statuses[name] = playbackStatus(ctx, conn, name)
		}
	}

	target := pickPlayer(players, statuses, app)
	if target == "" {
		return ErrNoPlayer
	}

	call := conn.Object(target, mprisPath).CallWithContext(ctx, mprisPlayer+"."+method, 0)
	if call.Err != nil {
		return fmt.Errorf("%s on %s: %w", method, playerName(target), call.Err)
	}
	return nil
}

func (m *MPRIS) PlayPause(ctx context.Context, app string) error {
	return m.command(ctx, "PlayPause", app)
}

func (m *MPRIS) Next(ctx context.Context, app string) error {
	return m.command(ctx, "Next", app)
}

func (m *MPRIS) Previous(ctx context.Context, app string) error {
	return m.command(ctx, "Previous", app)
}
