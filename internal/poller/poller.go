// Package poller samples a media source on a fixed delay and publishes
// changes.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/justinmdickey/nowplaying/internal/logging"
	"github.com/justinmdickey/nowplaying/internal/media"
	"github.com/justinmdickey/nowplaying/internal/state"
)

var log = logging.Logger("poller")

// DefaultInterval is the delay between the end of one sample and the start
// of the next.
const DefaultInterval = 500 * time.Millisecond

// Broadcaster receives every stored change together with its sequence number.
type Broadcaster interface {
	Broadcast(snap media.Snapshot, seq uint64)
}

// Poller drives the sampling loop. Start and Stop may be called any number
// of times.
type Poller struct {
	src          media.Source
	store        *state.Store
	out          Broadcaster
	interval     time.Duration
	queryTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// lastErr suppresses repeated warnings for the same failure.
	lastErr string
}

// New returns a stopped poller. Non-positive durations fall back to
// DefaultInterval and the interval respectively.
func New(src media.Source, store *state.Store, out Broadcaster, interval, queryTimeout time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if queryTimeout <= 0 {
		queryTimeout = interval
	}
	return &Poller{
		src:          src,
		store:        store,
		out:          out,
		interval:     interval,
		queryTimeout: queryTimeout,
	}
}

// Start launches the loop. The first sample is taken immediately. Starting
// a running poller does nothing.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)

	log.Debugw("poller started", "interval", p.interval)
	return nil
}

// Stop ends the loop and waits for it to exit. Stopping a stopped poller
// does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil

	log.Debug("poller stopped")
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.cycle(ctx)
		timer.Reset(p.interval)
	}
}

func (p *Poller) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("poll cycle panicked", "panic", r)
		}
	}()

	snap := p.sample(ctx)
	if ctx.Err() != nil {
		return
	}

	if seq, changed := p.store.SetIfChanged(snap); changed {
		log.Debugw("now playing changed", "seq", seq, "title", snap.Title, "source", snap.Source)
		p.out.Broadcast(snap, seq)
	}
}

// sample queries the source. Errors and "nothing playing" both yield the
// empty snapshot.
func (p *Poller) sample(ctx context.Context) media.Snapshot {
	qctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	snap, err := p.src.Query(qctx)
	if err != nil {
		if msg := err.Error(); msg != p.lastErr && ctx.Err() == nil {
			log.Infow("media query failed", "err", err)
			p.lastErr = msg
		}
		return media.Snapshot{}
	}
	p.lastErr = ""

	if snap == nil {
		return media.Snapshot{}
	}
	return *snap
}
