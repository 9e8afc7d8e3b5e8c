package push

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/justinmdickey/nowplaying/internal/media"
)

// Loader gives the registry the current snapshot for the initial sync.
type Loader interface {
	Load() (media.Snapshot, uint64)
}

// Registry is the set of live subscribers. Its lock is never held across
// socket I/O.
type Registry struct {
	store Loader

	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscriber
	closed bool
}

// NewRegistry returns an empty registry syncing new members from store.
func NewRegistry(store Loader) *Registry {
	return &Registry{
		store: store,
		subs:  make(map[uuid.UUID]*Subscriber),
	}
}

// Register adds sub and queues the current state as its first message.
// Both happen under the registry lock so no broadcast can slip in between.
func (r *Registry) Register(sub *Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	snap, seq := r.store.Load()
	msg, err := media.PushMessage(snap)
	if err != nil {
		return err
	}
	if err := sub.enqueue(seq, msg); err != nil {
		return err
	}

	r.subs[sub.ID] = sub
	return nil
}

// Unregister removes sub. Removing an unknown subscriber is a no-op.
func (r *Registry) Unregister(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, sub.ID)
}

// Broadcast queues the message for snap on every subscriber. It never
// blocks on a subscriber; one whose queue is full has its connection
// dropped and is removed by its own session.
func (r *Registry) Broadcast(snap media.Snapshot, seq uint64) {
	members := r.members()
	if len(members) == 0 {
		return
	}

	msg, err := media.PushMessage(snap)
	if err != nil {
		log.Errorw("encode push message", "err", err)
		return
	}

	for _, sub := range members {
		switch err := sub.enqueue(seq, msg); err {
		case nil, ErrClosed:
		case errQueueFull:
			log.Warnw("subscriber too slow, dropping", "id", sub.ID)
			sub.fail()
		}
	}
	log.Debugw("broadcast", "seq", seq, "subscribers", len(members), "stopped", snap.IsEmpty())
}

func (r *Registry) members() []*Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	out := make([]*Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

// CloseAll closes every subscriber and empties the registry. Afterwards
// Register fails with ErrClosed and Broadcast does nothing.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	members := make([]*Subscriber, 0, len(r.subs))
	for id, sub := range r.subs {
		members = append(members, sub)
		delete(r.subs, id)
	}
	r.mu.Unlock()

	var wg conc.WaitGroup
	for _, sub := range members {
		wg.Go(sub.Close)
	}
	wg.Wait()

	if len(members) > 0 {
		log.Infow("closed subscribers", "count", len(members))
	}
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
