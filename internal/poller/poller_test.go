package poller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinmdickey/nowplaying/internal/logging"
	"github.com/justinmdickey/nowplaying/internal/media"
	"github.com/justinmdickey/nowplaying/internal/state"
)

type result struct {
	snap  *media.Snapshot
	err   error
	panic bool
	block bool
}

type fakeSource struct {
	media.None
	current atomic.Pointer[result]
	queries atomic.Int32
}

func (f *fakeSource) set(r result) { f.current.Store(&r) }

func (f *fakeSource) Query(ctx context.Context) (*media.Snapshot, error) {
	f.queries.Add(1)
	r := f.current.Load()
	if r == nil {
		return nil, nil
	}
	if r.panic {
		f.set(result{snap: r.snap})
		panic("backend exploded")
	}
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.snap == nil {
		return nil, r.err
	}
	s := *r.snap
	return &s, r.err
}

type broadcast struct {
	snap media.Snapshot
	seq  uint64
}

type recorder struct {
	mu   sync.Mutex
	got  []broadcast
	seen chan struct{}
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan struct{}, 64)}
}

func (r *recorder) Broadcast(snap media.Snapshot, seq uint64) {
	r.mu.Lock()
	r.got = append(r.got, broadcast{snap, seq})
	r.mu.Unlock()
	r.seen <- struct{}{}
}

func (r *recorder) all() []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast(nil), r.got...)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast")
	}
}

var song = media.Snapshot{Title: "A", Artist: "X", Album: "Y", Position: "1.00"}

func start(t *testing.T, src media.Source, interval time.Duration) (*Poller, *state.Store, *recorder) {
	t.Helper()
	store := state.New()
	rec := newRecorder()
	p := New(src, store, rec, interval, 50*time.Millisecond)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)
	return p, store, rec
}

func TestIdenticalSnapshotsBroadcastOnce(t *testing.T) {
	src := &fakeSource{}
	src.set(result{snap: &song})
	_, store, rec := start(t, src, 5*time.Millisecond)

	rec.wait(t)
	require.Eventually(t, func() bool { return src.queries.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, song, got[0].snap)
	assert.Equal(t, uint64(1), got[0].seq)
	assert.Equal(t, song, store.Get())
}

func TestChangesAreBroadcastInOrder(t *testing.T) {
	src := &fakeSource{}
	src.set(result{snap: &song})
	_, _, rec := start(t, src, 5*time.Millisecond)
	rec.wait(t)

	next := song
	next.Position = "1.50"
	src.set(result{snap: &next})
	rec.wait(t)

	src.set(result{})
	rec.wait(t)

	got := rec.all()
	require.Len(t, got, 3)
	assert.Equal(t, next, got[1].snap)
	assert.True(t, got[2].snap.IsEmpty())
	for i, b := range got {
		assert.Equal(t, uint64(i+1), b.seq)
	}
}

func TestQueryErrorIsNothingPlaying(t *testing.T) {
	src := &fakeSource{}
	src.set(result{snap: &song})
	_, store, rec := start(t, src, 5*time.Millisecond)
	rec.wait(t)

	src.set(result{err: errors.New("bus gone")})
	rec.wait(t)
	assert.True(t, store.Get().IsEmpty())
}

func TestQueryErrorLoggedOnceAtInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poller.log")
	require.NoError(t, logging.SetupFile("info", path))
	t.Cleanup(func() { logging.Setup("info", "nocolor") })

	src := &fakeSource{}
	src.set(result{err: errors.New("bus gone")})
	p, _, _ := start(t, src, 5*time.Millisecond)
	require.Eventually(t, func() bool { return src.queries.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)
	p.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, "media query failed") {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, 1, "repeated errors are logged once")
	assert.Contains(t, lines[0], "INFO")
	assert.NotContains(t, lines[0], "WARN")
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	src := &fakeSource{}
	src.set(result{snap: &song, panic: true})
	p, store, rec := start(t, src, 5*time.Millisecond)

	rec.wait(t)
	assert.Equal(t, song, store.Get())
	assert.True(t, p.Running())
}

func TestQueryTimeout(t *testing.T) {
	src := &fakeSource{}
	src.set(result{block: true})
	_, _, rec := start(t, src, 5*time.Millisecond)

	require.Eventually(t, func() bool { return src.queries.Load() >= 2 }, 2*time.Second, 5*time.Millisecond,
		"loop keeps going past a hung query")
	src.set(result{snap: &song})
	rec.wait(t)
}

func TestStartStopIdempotent(t *testing.T) {
	src := &fakeSource{}
	p := New(src, state.New(), newRecorder(), time.Hour, time.Second)

	assert.False(t, p.Running())
	p.Stop()

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())

	require.Eventually(t, func() bool { return src.queries.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the wait")
	}
	assert.False(t, p.Running())
	p.Stop()

	assert.Equal(t, int32(1), src.queries.Load(), "one loop, one immediate sample")

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())
	p.Stop()
}

func TestParentContextEndsLoop(t *testing.T) {
	p := New(&fakeSource{}, state.New(), newRecorder(), time.Hour, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))

	cancel()
	require.Eventually(t, func() bool { return !p.Running() }, time.Second, 5*time.Millisecond)
	p.Stop()
}
