package pricestore

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

const (
	// StaleAfter flags an entry as unreliable for display.
	StaleAfter = 60 * time.Second
	// FreshEnough is the tighter bound under which a blocking fetch can be
	// skipped entirely.
	FreshEnough = 15 * time.Second
)

// Store is the single source of truth for per-symbol prices. Every
// producer (stream, detail fetch, bulk snapshot) writes through Set, every
// consumer reads through Get/IsStale and re-reads on notification.
// Entries are value copies; callers never see shared mutable state.
type Store struct {
	logger *zap.Logger
	clock  Clock

	mu        sync.RWMutex
	entries   map[string]models.PriceEntry
	listeners map[int]func()
	nextID    int
	connState models.ConnState
}

func NewStore(logger *zap.Logger, clock Clock) *Store {
	if clock == nil {
		clock = RealClock{}
	}
	return &Store{
		logger:    logger,
		clock:     clock,
		entries:   make(map[string]models.PriceEntry),
		listeners: make(map[int]func()),
		connState: models.ConnDisconnected,
	}
}

// Key normalizes a symbol to its canonical uppercase identity.
func Key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Get returns the entry for a symbol, case-insensitively.
func (s *Store) Get(symbol string) (models.PriceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[Key(symbol)]
	return e, ok
}

// FreshEntry returns the entry only if it was written within maxAge.
func (s *Store) FreshEntry(symbol string, maxAge time.Duration) (models.PriceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[Key(symbol)]
	if !ok || s.clock.Now().Sub(e.UpdatedAt) > maxAge {
		return models.PriceEntry{}, false
	}
	return e, true
}

// IsStale reports whether the entry is missing or older than StaleAfter.
func (s *Store) IsStale(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[Key(symbol)]
	if !ok {
		return true
	}
	return s.clock.Now().Sub(e.UpdatedAt) > StaleAfter
}

// Set merges the update into the existing entry, stamps it, stores it, and
// synchronously notifies every subscriber. Subscribers fire once per Set
// whether or not the values changed; consumers are idempotent on re-read.
func (s *Store) Set(update models.QuoteUpdate) {
	key := Key(update.Symbol)
	if key == "" {
		return
	}
	update.Symbol = key

	s.mu.Lock()
	var existing *models.PriceEntry
	if e, ok := s.entries[key]; ok {
		existing = &e
	}
	merged := Merge(existing, update)
	merged.UpdatedAt = s.clock.Now()
	// UpdatedAt only advances, even if a caller-supplied clock misbehaves.
	if existing != nil && merged.UpdatedAt.Before(existing.UpdatedAt) {
		merged.UpdatedAt = existing.UpdatedAt
	}
	s.entries[key] = merged
	s.mu.Unlock()

	s.logger.Debug("Store updated",
		zap.String("symbol", key),
		zap.String("price", merged.LastPrice),
		zap.String("change", merged.PercentChange))

	s.notify()
}

// Subscribe registers a no-payload listener fired on every write. The
// returned disposer deregisters it; calling the disposer twice is safe.
func (s *Store) Subscribe(listener func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// ConnectionStatus reflects the streaming client's lifecycle. A broken
// stream never clears prices; it only affects this flag and freshness.
func (s *Store) ConnectionStatus() models.ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState
}

// SetConnectionStatus is called by the streaming client on state
// transitions. Subscribers are notified so a status banner can re-read.
func (s *Store) SetConnectionStatus(state models.ConnState) {
	s.mu.Lock()
	changed := s.connState != state
	s.connState = state
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// notify dispatches synchronously, outside the entries lock so listeners
// can call Get without deadlocking.
func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]func(), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l()
	}
}
