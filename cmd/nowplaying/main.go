// Command nowplaying is a terminal viewer and remote for nowplayingd.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/justinmdickey/nowplaying/internal/config"
	"github.com/justinmdickey/nowplaying/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := config.NewFlagSet("nowplaying")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader, err := config.Load(fs)
	if err != nil {
		return err
	}
	cfg := loader.Config()

	// The terminal belongs to the UI; logs go to a file.
	logFile := filepath.Join(os.TempDir(), "nowplaying-tui.log")
	if err := logging.SetupFile(cfg.Log.Level, logFile); err != nil {
		return err
	}

	// --no-artwork wins over the file, including after a reload.
	noArtwork, _ := fs.GetBool("no-artwork")
	withFlags := func(c config.Config) config.Config {
		if noArtwork {
			c.TUI.Artwork = false
		}
		return c
	}
	cfg = withFlags(cfg)
	loader.Watch(func(c config.Config) { notifyConfigChange(withFlags(c)) })

	m := newModel(newClient(cfg.ControlAddr(), cfg.PushAddr()), cfg, supportsKittyGraphics())
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
