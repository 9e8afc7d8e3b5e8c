// Package push streams now-playing changes to WebSocket subscribers.
package push

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/justinmdickey/nowplaying/internal/logging"
)

var log = logging.Logger("push")

// ServerHeader is sent with every upgrade response.
const ServerHeader = "Local Media Listener WebSocket Server"

// Options tunes subscriber sessions.
type Options struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	QueueSize    int
}

// DefaultOptions matches the daemon's configuration defaults.
var DefaultOptions = Options{
	WriteTimeout: 5 * time.Second,
	PingInterval: 30 * time.Second,
	QueueSize:    16,
}

// Server accepts WebSocket subscribers and hands them to a Registry.
type Server struct {
	reg      *Registry
	opts     Options
	upgrader websocket.Upgrader
	srv      *http.Server

	// sessions tracks hijacked connections, which http.Server.Shutdown
	// does not wait for.
	sessions sync.WaitGroup
}

// NewServer returns a push server feeding reg.
func NewServer(reg *Registry, opts Options) *Server {
	s := &Server{
		reg:  reg,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16384,
			// Local clients come from browsers, webviews and file:// pages.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	log.Infow("push server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting, closes every subscriber and waits for their
// sessions to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.reg.CloseAll()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
}

// ServeHTTP upgrades the request and runs the subscriber session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.sessions.Add(1)
	defer s.sessions.Done()

	header := http.Header{"Server": []string{ServerHeader}}
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Debugw("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sub := newSubscriber(conn, s.opts.WriteTimeout, s.opts.QueueSize)
	if err := s.reg.Register(sub); err != nil {
		log.Debugw("subscriber refused", "remote", r.RemoteAddr, "err", err)
		sub.Close()
		return
	}
	log.Debugw("subscriber connected", "id", sub.ID, "remote", r.RemoteAddr)

	go sub.pump(s.opts.PingInterval)

	err = s.readLoop(sub)
	if IsBenign(err) || sub.Closed() {
		log.Debugw("subscriber disconnected", "id", sub.ID, "err", err)
	} else {
		log.Errorw("subscriber read failed", "id", sub.ID, "err", err)
	}

	s.reg.Unregister(sub)
	sub.Close()
	<-sub.pumpDone
}

// readLoop discards inbound frames until the connection fails.
func (s *Server) readLoop(sub *Subscriber) error {
	conn := sub.conn

	if s.opts.PingInterval > 0 {
		wait := s.opts.PingInterval + s.opts.WriteTimeout + time.Second
		extend := func() error { return conn.SetReadDeadline(time.Now().Add(wait)) }
		if err := extend(); err != nil {
			return err
		}
		conn.SetPongHandler(func(string) error { return extend() })
	}

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return err
		}
	}
}
