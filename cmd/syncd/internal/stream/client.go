package stream

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/pricestore"
	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

const (
	InitialBackoff = 1000 * time.Millisecond
	MaxBackoff     = 30000 * time.Millisecond
)

// Client owns the persistent push connection feeding the price store.
// Lifecycle: disconnected -> connecting -> connected -> error -> (backoff)
// -> connecting; Close() goes to disconnected from any state and stays
// there until Connect() is called again. Connection failures are never
// fatal to the process — they only affect freshness of store data.
type Client struct {
	logger *zap.Logger
	store  *pricestore.Store
	url    string
	dialer Dialer
	sched  Scheduler

	mu        sync.Mutex
	state     models.ConnState
	conn      Conn
	backoff   time.Duration
	reconnect Timer
	armed     bool // at most one pending reconnect timer
	closed    bool
}

// NewClient builds the client and immediately attempts to connect. An
// empty URL means the platform has no push capability; the client then
// stays disconnected without erroring and the loaders carry the load.
func NewClient(logger *zap.Logger, store *pricestore.Store, url string, dialer Dialer, sched Scheduler) *Client {
	if dialer == nil {
		dialer = RealDialer{}
	}
	if sched == nil {
		sched = RealScheduler{}
	}
	c := &Client{
		logger:  logger,
		store:   store,
		url:     url,
		dialer:  dialer,
		sched:   sched,
		state:   models.ConnDisconnected,
		backoff: InitialBackoff,
	}
	c.Connect()
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() models.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts a connection attempt unless one is already live or in
// flight. It also re-arms a client that was previously closed.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.url == "" {
		c.mu.Unlock()
		return
	}
	if c.state == models.ConnConnecting || c.state == models.ConnConnected {
		c.mu.Unlock()
		return
	}
	c.closed = false
	c.backoff = InitialBackoff
	c.state = models.ConnConnecting
	c.mu.Unlock()

	c.store.SetConnectionStatus(models.ConnConnecting)
	go c.dial()
}

// Close tears the client down: cancels any pending reconnect, closes the
// live connection, and pins the state to disconnected.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
		c.armed = false
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = models.ConnDisconnected
	c.mu.Unlock()

	c.store.SetConnectionStatus(models.ConnDisconnected)
	c.logger.Info("Stream closed")
}

func (c *Client) dial() {
	conn, err := c.dialer.DialContext(context.Background(), c.url)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("Stream dial failed", zap.Error(err))
		c.fail(nil)
		return
	}

	c.conn = conn
	c.backoff = InitialBackoff // any successful open resets the backoff
	c.state = models.ConnConnected
	c.mu.Unlock()

	c.store.SetConnectionStatus(models.ConnConnected)
	c.logger.Info("Stream connected", zap.String("url", c.url))
	go c.readLoop(conn)
}

func (c *Client) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn("Stream read error", zap.Error(err))
			}
			c.fail(conn)
			return
		}
		for _, update := range parseMessage(data) {
			c.store.Set(update)
		}
	}
}

// fail records a connection failure and arms a single reconnect timer with
// the current backoff; the backoff doubles (capped) for the next failure.
// conn is the connection the caller was using, nil for a failed dial; a
// stale connection that lost a race with a newer one is ignored.
func (c *Client) fail(conn Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if conn != nil && conn != c.conn {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = models.ConnError

	var delay time.Duration
	scheduled := false
	if !c.armed {
		c.armed = true
		scheduled = true
		delay = c.backoff
		c.backoff *= 2
		if c.backoff > MaxBackoff {
			c.backoff = MaxBackoff
		}
		c.reconnect = c.sched.AfterFunc(delay, c.retry)
	}
	c.mu.Unlock()

	c.store.SetConnectionStatus(models.ConnError)
	if scheduled {
		c.logger.Info("Stream reconnect scheduled", zap.Duration("delay", delay))
	}
}

func (c *Client) retry() {
	c.mu.Lock()
	c.armed = false
	c.reconnect = nil
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = models.ConnConnecting
	c.mu.Unlock()

	c.store.SetConnectionStatus(models.ConnConnecting)
	go c.dial()
}
