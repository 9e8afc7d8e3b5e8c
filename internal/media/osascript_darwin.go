//go:build darwin

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// scriptedApp describes a player that can be driven through AppleScript.
type scriptedApp struct {
	name          string
	artworkExpr   string
	durationScale float64 // divisor turning the reported duration into seconds
}

// Supported players in priority order.
var scriptedApps = []scriptedApp{
	{name: "Spotify", artworkExpr: "artwork url of current track", durationScale: 1000},
	{name: "Music", artworkExpr: `""`, durationScale: 1},
}

// AppleScript implements Source for macOS using osascript.
type AppleScript struct{}

// NewAppleScript returns the macOS source.
func NewAppleScript() *AppleScript {
	return &AppleScript{}
}

func (a *AppleScript) runAppleScript(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func queryScript(app scriptedApp) string {
	sep := appleScriptSeparator
	return fmt.Sprintf(`
		if application "%[1]s" is running then
			tell application "%[1]s"
				set currentState to player state as string
				if currentState is "stopped" then return ""
				set t to name of current track
				set ar to artist of current track
				set al to album of current track
				set art to %[2]s
				set d to duration of current track
				set p to player position
				return t & "%[3]s" & ar & "%[3]s" & al & "%[3]s" & art & "%[3]s" & d & "%[3]s" & p & "%[3]s" & currentState
			end tell
		end if
		return ""`, app.name, app.artworkExpr, sep)
}

// Query reports the first supported app that is playing or paused with a
// current track.
func (a *AppleScript) Query(ctx context.Context) (*Snapshot, error) {
	for _, app := range scriptedApps {
		out, err := a.runAppleScript(ctx, queryScript(app))
		if err != nil {
			log.Debugw("applescript query failed", "app", app.name, "err", err)
			continue
		}
		snap, err := parseAppleScript(out, app.name, app.durationScale)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			return snap, nil
		}
	}
	return nil, nil
}

func commandVerb(cmd Command) string {
	switch cmd {
	case CmdNext:
		return "next track"
	case CmdPrevious:
		return "previous track"
	default:
		return "playpause"
	}
}

func (a *AppleScript) control(ctx context.Context, cmd Command, hint string) error {
	verb := commandVerb(cmd)

	targets := scriptedApps
	if hint = strings.TrimSpace(hint); hint != "" {
		targets = nil
		for _, app := range scriptedApps {
			if strings.EqualFold(app.name, hint) {
				targets = []scriptedApp{app}
			}
		}
		if targets == nil {
			return fmt.Errorf("%w: unsupported application %q", ErrNoPlayer, hint)
		}
	}

	// An empty hint tries every supported app until one accepts the command.
	var errs []error
	for _, app := range targets {
		script := fmt.Sprintf(`
			if application "%[1]s" is running then
				tell application "%[1]s" to %[2]s
				return "ok"
			end if
			return ""`, app.name, verb)
		out, err := a.runAppleScript(ctx, script)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", app.name, err))
			continue
		}
		if out == "ok" {
			return nil
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return ErrNoPlayer
}

func (a *AppleScript) PlayPause(ctx context.Context, app string) error {
	return a.control(ctx, CmdPlayPause, app)
}

func (a *AppleScript) Next(ctx context.Context, app string) error {
	return a.control(ctx, CmdNext, app)
}

func (a *AppleScript) Previous(ctx context.Context, app string) error {
	return a.control(ctx, CmdPrevious, app)
}
