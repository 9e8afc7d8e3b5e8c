// Package listener owns the poller, the snapshot store and both servers,
// and exposes the lifecycle a host application embeds.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/justinmdickey/nowplaying/internal/api"
	"github.com/justinmdickey/nowplaying/internal/config"
	"github.com/justinmdickey/nowplaying/internal/logging"
	"github.com/justinmdickey/nowplaying/internal/media"
	"github.com/justinmdickey/nowplaying/internal/poller"
	"github.com/justinmdickey/nowplaying/internal/push"
	"github.com/justinmdickey/nowplaying/internal/state"
)

var log = logging.Logger("listener")

// ErrNotRunning is returned by control methods while the listener is stopped.
var ErrNotRunning = errors.New("listener not running")

// Options configures a Listener.
type Options struct {
	ControlAddr     string
	PushAddr        string
	PollInterval    time.Duration
	QueryTimeout    time.Duration
	ShutdownTimeout time.Duration
	Push            push.Options
}

// FromConfig derives listener options from the loaded configuration.
func FromConfig(cfg config.Config) Options {
	return Options{
		ControlAddr:     cfg.ControlAddr(),
		PushAddr:        cfg.PushAddr(),
		PollInterval:    cfg.PollInterval(),
		QueryTimeout:    cfg.QueryTimeout(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
		Push: push.Options{
			WriteTimeout: cfg.WriteTimeout(),
			PingInterval: cfg.PingInterval(),
			QueueSize:    cfg.Push.QueueSize,
		},
	}
}

// Listener tracks what is playing and serves it to local clients.
type Listener struct {
	opts Options
	src  media.Source

	mu      sync.Mutex
	running bool
	store   *state.Store
	reg     *push.Registry
	poller  *poller.Poller
	control *http.Server
	push    *push.Server
	group   *errgroup.Group
	addrs   [2]net.Addr
}

// New returns a stopped listener reading from src.
func New(opts Options, src media.Source) *Listener {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 3 * time.Second
	}
	return &Listener{opts: opts, src: src}
}

// Start binds both servers and starts polling. Both addresses are bound
// before Start returns; if either fails nothing is left running. Starting a
// running listener does nothing. ctx supplies values only; use Stop to end
// the listener.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	ctlLn, err := net.Listen("tcp", l.opts.ControlAddr)
	if err != nil {
		return fmt.Errorf("bind control server on %s: %w", l.opts.ControlAddr, err)
	}
	pushLn, err := net.Listen("tcp", l.opts.PushAddr)
	if err != nil {
		ctlLn.Close()
		return fmt.Errorf("bind push server on %s: %w", l.opts.PushAddr, err)
	}

	store := state.New()
	reg := push.NewRegistry(store)
	control := &http.Server{
		Handler:           api.NewHandler(store, l.src),
		ReadHeaderTimeout: 10 * time.Second,
	}
	pushSrv := push.NewServer(reg, l.opts.Push)
	p := poller.New(l.src, store, reg, l.opts.PollInterval, l.opts.QueryTimeout)

	g := new(errgroup.Group)
	g.Go(func() error {
		log.Infow("control server listening", "addr", ctlLn.Addr().String())
		if err := control.Serve(ctlLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("control server failed", "err", err)
			return fmt.Errorf("control server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := pushSrv.Serve(pushLn); err != nil {
			log.Errorw("push server failed", "err", err)
			return fmt.Errorf("push server: %w", err)
		}
		return nil
	})

	if err := p.Start(context.WithoutCancel(ctx)); err != nil {
		l.shutdown(control, pushSrv, g)
		return err
	}

	l.store, l.reg, l.poller = store, reg, p
	l.control, l.push, l.group = control, pushSrv, g
	l.addrs = [2]net.Addr{ctlLn.Addr(), pushLn.Addr()}
	l.running = true

	log.Infow("listener started", "control", ctlLn.Addr().String(), "push", pushLn.Addr().String())
	return nil
}

// Stop stops polling, shuts both servers down, closes every subscriber and
// waits for all goroutines. Stopping a stopped listener does nothing.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}

	l.poller.Stop()
	err := l.shutdown(l.control, l.push, l.group)

	l.running = false
	l.store, l.reg, l.poller = nil, nil, nil
	l.control, l.push, l.group = nil, nil, nil
	l.addrs = [2]net.Addr{}

	if err != nil {
		log.Warnw("listener stopped with errors", "err", err)
	} else {
		log.Info("listener stopped")
	}
	return err
}

func (l *Listener) shutdown(control *http.Server, pushSrv *push.Server, g *errgroup.Group) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.ShutdownTimeout)
	defer cancel()

	return multierr.Combine(
		control.Shutdown(ctx),
		pushSrv.Shutdown(ctx),
		g.Wait(),
	)
}

// IsRunning reports whether the listener is started.
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// ControlAddr returns the bound control address, or nil when stopped.
func (l *Listener) ControlAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addrs[0]
}

// PushAddr returns the bound push address, or nil when stopped.
func (l *Listener) PushAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addrs[1]
}

// CurrentMediaInfo returns the stored snapshot, empty when stopped.
func (l *Listener) CurrentMediaInfo() media.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return media.Snapshot{}
	}
	return l.store.Get()
}

func (l *Listener) source() (media.Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return nil, ErrNotRunning
	}
	return l.src, nil
}

// PlayPause toggles playback on the player matching app.
func (l *Listener) PlayPause(ctx context.Context, app string) error {
	src, err := l.source()
	if err != nil {
		return err
	}
	return src.PlayPause(ctx, app)
}

// Next skips to the next track on the player matching app.
func (l *Listener) Next(ctx context.Context, app string) error {
	src, err := l.source()
	if err != nil {
		return err
	}
	return src.Next(ctx, app)
}

// Previous skips to the previous track on the player matching app.
func (l *Listener) Previous(ctx context.Context, app string) error {
	src, err := l.source()
	if err != nil {
		return err
	}
	return src.Previous(ctx, app)
}
