// Package media defines the now-playing snapshot and the platform media
// sources that produce it.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/justinmdickey/nowplaying/internal/logging"
)

var log = logging.Logger("media")

// ErrNoPlayer is returned by control methods when no player can be targeted.
var ErrNoPlayer = errors.New("no active media player")

// Source reports and controls playback on the host.
//
// Query returns nil, nil when nothing is playing. Implementations must bound
// Query by ctx and never block indefinitely. An empty app hint targets the
// best candidate across every known player.
type Source interface {
	Query(ctx context.Context) (*Snapshot, error)
	PlayPause(ctx context.Context, app string) error
	Next(ctx context.Context, app string) error
	Previous(ctx context.Context, app string) error
}

// Command is a transport command understood by every backend.
type Command string

const (
	CmdPlayPause Command = "play-pause"
	CmdNext      Command = "next"
	CmdPrevious  Command = "previous"
)

// Options selects and tunes a backend.
type Options struct {
	Backend      string // auto, mpris, playerctl, osascript, none
	EmbedArtwork bool
	ArtworkSize  int
}

// Backends lists the names accepted by New.
var Backends = []string{"auto", "mpris", "playerctl", "osascript", "none"}

// ValidBackend reports whether name is a known backend name.
func ValidBackend(name string) bool {
	for _, b := range Backends {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}

// New creates the Source for the current platform.
func New(opts Options) (Source, error) {
	name := strings.ToLower(opts.Backend)
	if name == "" || name == "auto" {
		name = defaultBackend
	}

	var src Source
	switch name {
	case "none":
		src = None{}
	default:
		s, err := newPlatformSource(name)
		if err != nil {
			return nil, err
		}
		src = s
	}

	if opts.EmbedArtwork && name != "none" {
		src = &artworkEmbedder{Source: src, width: opts.ArtworkSize}
	}

	log.Infow("media source selected", "backend", name, "embedArtwork", opts.EmbedArtwork)
	return src, nil
}

// Close releases whatever src holds open, such as a bus connection.
func Close(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func unsupported(name string) error {
	return fmt.Errorf("media backend %q is not supported on this platform", name)
}

// None is a Source for platforms without a backend. Nothing is ever playing.
type None struct{}

func (None) Query(context.Context) (*Snapshot, error) { return nil, nil }
func (None) PlayPause(context.Context, string) error { return ErrNoPlayer }
func (None) Next(context.Context, string) error { return ErrNoPlayer }
func (None) Previous(context.Context, string) error { return ErrNoPlayer }
