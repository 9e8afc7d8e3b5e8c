//go:build linux

package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Playerctl implements Source on top of the playerctl CLI.
type Playerctl struct {
	bin string
}

// NewPlayerctl returns a playerctl source, or an error when the binary is
// not on PATH.
func NewPlayerctl() (*Playerctl, error) {
	bin, err := exec.LookPath("playerctl")
	if err != nil {
		return nil, fmt.Errorf("playerctl not found: %w", err)
	}
	return &Playerctl{bin: bin}, nil
}

func (p *Playerctl) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, p.bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	return out.String(), err
}

func (p *Playerctl) Query(ctx context.Context) (*Snapshot, error) {
	out, err := p.run(ctx, "metadata", "--format", playerctlFormat)
	if err != nil {
		// playerctl exits non-zero when no player is running.
		return nil, nil
	}
	return parsePlayerctl(out)
}

func (p *Playerctl) control(ctx context.Context, cmd Command, app string) error {
	args := []string{string(cmd)}
	if app = strings.TrimSpace(app); app != "" {
		args = append([]string{"--player=" + strings.ToLower(app)}, args...)
	}
	if _, err := p.run(ctx, args...); err != nil {
		return fmt.Errorf("playerctl %s failed: %w", cmd, err)
	}
	return nil
}

func (p *Playerctl) PlayPause(ctx context.Context, app string) error {
	return p.control(ctx, CmdPlayPause, app)
}

func (p *Playerctl) Next(ctx context.Context, app string) error {
	return p.control(ctx, CmdNext, app)
}

func (p *Playerctl) Previous(ctx context.Context, app string) error {
	return p.control(ctx, CmdPrevious, app)
}
