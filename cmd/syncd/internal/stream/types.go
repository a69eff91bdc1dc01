package stream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn abstracts the live push connection
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer abstracts connection establishment
type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

// Timer abstracts a pending reconnect timer
type Timer interface {
	Stop() bool
}

// Scheduler abstracts timer creation for deterministic backoff testing
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// RealDialer adapts gorilla's websocket dialer to our interface
type RealDialer struct{}

func (RealDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}

type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
