package push

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type message struct {
	seq     uint64
	payload []byte
}

// Subscriber is one connected push client. Messages are queued by the
// registry and written by the subscriber's own pump goroutine, so a slow
// client never stalls a broadcast.
type Subscriber struct {
	ID uuid.UUID

	conn         *websocket.Conn
	writeTimeout time.Duration
	limit        int

	// sendMu is held for exactly one WriteMessage.
	sendMu sync.Mutex

	mu      sync.Mutex
	queue   []message
	synced  bool
	lastSeq uint64
	closed  bool

	wake      chan struct{}
	done      chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once
}

func newSubscriber(conn *websocket.Conn, writeTimeout time.Duration, queueSize int) *Subscriber {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Subscriber{
		ID:           uuid.New(),
		conn:         conn,
		writeTimeout: writeTimeout,
		limit:        queueSize,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		pumpDone:     make(chan struct{}),
	}
}

// enqueue appends a message for the pump. Messages at or below the last
// enqueued sequence are dropped, which keeps delivery ordered and makes the
// initial sync and a racing broadcast of the same state collapse into one.
func (s *Subscriber) enqueue(seq uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.synced && seq <= s.lastSeq {
		return nil
	}
	if len(s.queue) >= s.limit {
		return errQueueFull
	}

	s.queue = append(s.queue, message{seq: seq, payload: payload})
	s.synced = true
	s.lastSeq = seq

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Subscriber) drain() ([]message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	msgs := s.queue
	s.queue = nil
	return msgs, true
}

// pump writes queued messages in order and pings the peer every
// pingInterval. It exits when the subscriber is closed or a write fails.
func (s *Subscriber) pump(pingInterval time.Duration) {
	defer close(s.pumpDone)

	var ping <-chan time.Time
	if pingInterval > 0 {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-s.done:
			return

		case <-ping:
			deadline := time.Now().Add(s.writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.writeFailed(err)
				return
			}

		case <-s.wake:
			msgs, ok := s.drain()
			if !ok {
				return
			}
			for _, m := range msgs {
				if err := s.write(m.payload); err != nil {
					s.writeFailed(err)
					return
				}
			}
		}
	}
}

func (s *Subscriber) write(payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Subscriber) writeFailed(err error) {
	if IsBenign(err) {
		log.Debugw("subscriber write ended", "id", s.ID, "err", err)
	} else {
		log.Errorw("subscriber write failed", "id", s.ID, "err", err)
	}
	s.fail()
}

func (s *Subscriber) markClosed() bool {
	first := false
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
		first = true
	})
	return first
}

// fail drops the connection without a close handshake. The session read
// loop notices and unregisters the subscriber.
func (s *Subscriber) fail() {
	if s.markClosed() {
		s.conn.Close()
	}
}

// Close sends a going-away close frame and closes the connection. It is
// safe to call more than once and from any goroutine.
func (s *Subscriber) Close() {
	if !s.markClosed() {
		return
	}
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !IsBenign(err) {
		log.Debugw("close frame not sent", "id", s.ID, "err", err)
	}
	s.conn.Close()
}

// Closed reports whether Close or a failed write ended the subscriber.
func (s *Subscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
