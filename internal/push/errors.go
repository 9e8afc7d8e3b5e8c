package push

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Register once the registry has been closed.
var ErrClosed = errors.New("push: registry closed")

var errQueueFull = errors.New("push: subscriber queue full")

// IsBenign reports whether err is an ordinary way for a subscriber
// connection to end: a normal or going-away close, EOF, a peer reset, a
// timeout, or use of an already closed connection.
func IsBenign(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, websocket.ErrCloseSent),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
