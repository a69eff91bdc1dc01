package testutils

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/stream"
	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

// MockClock is a manually advanced clock shared by store and loaders
type MockClock struct {
	Mu  sync.Mutex
	now time.Time
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return c.now
}

// Sleep advances the clock instead of blocking
func (c *MockClock) Sleep(d time.Duration) { c.Advance(d) }

func (c *MockClock) Advance(d time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.now = c.now.Add(d)
}

// MockAPI simulates the upstream REST endpoints
type MockAPI struct {
	Mu         sync.Mutex
	DetailFn   func(ctx context.Context, symbol string) (models.Detail, error)
	CandlesFn  func(ctx context.Context, symbol, interval string) ([]models.Candle, error)
	SnapshotFn func(ctx context.Context, symbols []string) ([]models.QuoteUpdate, error)

	DetailCalls   int
	CandleCalls   int
	SnapshotCalls int
}

func (m *MockAPI) Detail(ctx context.Context, symbol string) (models.Detail, error) {
	m.Mu.Lock()
	m.DetailCalls++
	fn := m.DetailFn
	m.Mu.Unlock()
	if fn == nil {
		return models.Detail{Symbol: symbol, LastPrice: "100.00", PercentChange: "1.00"}, nil
	}
	return fn(ctx, symbol)
}

func (m *MockAPI) Candles(ctx context.Context, symbol, interval string) ([]models.Candle, error) {
	m.Mu.Lock()
	m.CandleCalls++
	fn := m.CandlesFn
	m.Mu.Unlock()
	if fn == nil {
		return []models.Candle{{Time: 1, Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000}}, nil
	}
	return fn(ctx, symbol, interval)
}

func (m *MockAPI) Snapshot(ctx context.Context, symbols []string) ([]models.QuoteUpdate, error) {
	m.Mu.Lock()
	m.SnapshotCalls++
	fn := m.SnapshotFn
	m.Mu.Unlock()
	if fn == nil {
		out := make([]models.QuoteUpdate, 0, len(symbols))
		for _, s := range symbols {
			out = append(out, models.QuoteUpdate{Symbol: s, LastPrice: "100.00", PercentChange: "1.00"})
		}
		return out, nil
	}
	return fn(ctx, symbols)
}

func (m *MockAPI) Snapshots() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.SnapshotCalls
}

// MockConn simulates a live push connection fed by the test
type MockConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func NewMockConn() *MockConn {
	return &MockConn{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

// Push queues a frame for the reader
func (c *MockConn) Push(frame string) { c.frames <- []byte(frame) }

// Drop terminates the connection; the reader sees EOF
func (c *MockConn) Drop() { c.Close() }

func (c *MockConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return 1, f, nil
	case <-c.done:
		return 0, nil, io.EOF
	}
}

func (c *MockConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// MockDialer scripts connection establishment
type MockDialer struct {
	Mu     sync.Mutex
	DialFn func(ctx context.Context, url string) (stream.Conn, error)
	Calls  int
}

func (d *MockDialer) DialContext(ctx context.Context, url string) (stream.Conn, error) {
	d.Mu.Lock()
	d.Calls++
	fn := d.DialFn
	d.Mu.Unlock()
	if fn == nil {
		return NewMockConn(), nil
	}
	return fn(ctx, url)
}

func (d *MockDialer) DialCalls() int {
	d.Mu.Lock()
	defer d.Mu.Unlock()
	return d.Calls
}

// MockScheduler captures reconnect timers instead of waiting them out
type MockScheduler struct {
	Mu     sync.Mutex
	Delays []time.Duration
	fns    []func()
}

type mockTimer struct{ stopped bool }

func (t *mockTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

func (s *MockScheduler) AfterFunc(d time.Duration, fn func()) stream.Timer {
	s.Mu.Lock()
	s.Delays = append(s.Delays, d)
	s.fns = append(s.fns, fn)
	s.Mu.Unlock()
	return &mockTimer{}
}

// FireLast runs the most recently armed timer synchronously
func (s *MockScheduler) FireLast() {
	s.Mu.Lock()
	if len(s.fns) == 0 {
		s.Mu.Unlock()
		return
	}
	fn := s.fns[len(s.fns)-1]
	s.Mu.Unlock()
	fn()
}

// Scheduled returns a copy of the delays armed so far
func (s *MockScheduler) Scheduled() []time.Duration {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	out := make([]time.Duration, len(s.Delays))
	copy(out, s.Delays)
	return out
}
