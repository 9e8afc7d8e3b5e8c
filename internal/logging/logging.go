// Package logging wires the subsystem loggers used across nowplaying.
package logging

import (
	"fmt"
	"strings"

	golog "github.com/ipfs/go-log/v2"
)

// Prefix for every subsystem logger name.
const Prefix = "nowplaying/"

// Logger returns the named subsystem logger, e.g. Logger("poller").
func Logger(subsystem string) *golog.ZapEventLogger {
	return golog.Logger(Prefix + subsystem)
}

// Setup configures output format and the level shared by all loggers.
// format is one of "color", "nocolor" or "json".
func Setup(level, format string) error {
	lvl, err := golog.LevelFromString(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}

	f, err := parseFormat(format)
	if err != nil {
		return err
	}

	golog.SetupLogging(golog.Config{
		Format: f,
		Level:  lvl,
		Stderr: true,
	})
	return nil
}

// SetupFile sends plain-text logs to path instead of stderr, for
// programs that own the terminal.
func SetupFile(level, path string) error {
	lvl, err := golog.LevelFromString(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}

	golog.SetupLogging(golog.Config{
		Format: golog.PlaintextOutput,
		Level:  lvl,
		File:   path,
	})
	return nil
}

// SetLevel changes the level of every logger at runtime.
func SetLevel(level string) error {
	lvl, err := golog.LevelFromString(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	golog.SetAllLoggers(lvl)
	return nil
}

func parseFormat(format string) (golog.LogFormat, error) {
	switch strings.ToLower(format) {
	case "", "color":
		return golog.ColorizedOutput, nil
	case "nocolor", "plain":
		return golog.PlaintextOutput, nil
	case "json":
		return golog.JSONOutput, nil
	default:
		return 0, fmt.Errorf("unknown log format %q", format)
	}
}
