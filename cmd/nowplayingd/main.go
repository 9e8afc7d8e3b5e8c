// Command nowplayingd tracks what is playing on this machine and serves it
// over HTTP and WebSocket to local clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/justinmdickey/nowplaying/internal/config"
	"github.com/justinmdickey/nowplaying/internal/listener"
	"github.com/justinmdickey/nowplaying/internal/logging"
	"github.com/justinmdickey/nowplaying/internal/media"
)

var log = logging.Logger("daemon")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "nowplayingd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := config.NewFlagSet("nowplayingd")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader, err := config.Load(fs)
	if err != nil {
		return err
	}
	cfg := loader.Config()

	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	if f := loader.File(); f != "" {
		log.Infow("using config file", "file", f)
	}

	src, err := media.New(media.Options{
		Backend:      cfg.Media.Backend,
		EmbedArtwork: cfg.Media.EmbedArtwork,
		ArtworkSize:  cfg.Media.ArtworkSize,
	})
	if err != nil {
		return fmt.Errorf("media backend: %w", err)
	}

	l := listener.New(listener.FromConfig(cfg), src)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := l.Start(ctx); err != nil {
		media.Close(src)
		return err
	}

	// Only the log level applies live; everything else needs a restart.
	level := cfg.Log.Level
	loader.Watch(func(next config.Config) {
		if next.Log.Level == level {
			return
		}
		if err := logging.SetLevel(next.Log.Level); err != nil {
			log.Warnw("log level not applied", "err", err)
			return
		}
		log.Infow("log level changed", "level", next.Log.Level)
		level = next.Log.Level
	})

	<-ctx.Done()
	log.Info("shutting down")
	err = l.Stop()
	if cerr := media.Close(src); cerr != nil {
		log.Debugw("close media source", "err", cerr)
	}
	return err
}
