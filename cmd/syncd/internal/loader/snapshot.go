package loader

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/pricestore"
)

const (
	// SnapshotThrottle is the minimum gap between silent bulk refreshes,
	// to respect upstream rate limits.
	SnapshotThrottle = 120 * time.Second
	// emptyRetryDelay spaces the single retry after a first load that
	// came back with zero items.
	emptyRetryDelay = 2 * time.Second
)

// SnapshotLoader periodically pulls the bulk quote list for a fixed
// symbol set and writes every item into the price store, so an already
// open detail view picks up the same values without its own round-trip.
type SnapshotLoader struct {
	logger  *zap.Logger
	api     QuoteAPI
	store   *pricestore.Store
	clock   Clock
	symbols []string

	mu          sync.Mutex
	lastSuccess time.Time
}

func NewSnapshotLoader(logger *zap.Logger, api QuoteAPI, store *pricestore.Store, clock Clock, symbols []string) *SnapshotLoader {
	if clock == nil {
		clock = RealClock{}
	}
	return &SnapshotLoader{
		logger:  logger,
		api:     api,
		store:   store,
		clock:   clock,
		symbols: symbols,
	}
}

// Refresh fetches the bulk list. A silent refresh is skipped entirely when
// the last successful fetch is younger than SnapshotThrottle. A first load
// returning zero items gets exactly one retry after a short delay, not a
// retry loop. Transient errors are returned as-is; the next poll is the
// implicit retry.
func (l *SnapshotLoader) Refresh(ctx context.Context, silent bool) error {
	l.mu.Lock()
	firstLoad := l.lastSuccess.IsZero()
	if silent && !firstLoad && l.clock.Now().Sub(l.lastSuccess) < SnapshotThrottle {
		l.mu.Unlock()
		l.logger.Debug("Snapshot refresh throttled")
		return nil
	}
	l.mu.Unlock()

	quotes, err := l.api.Snapshot(ctx, l.symbols)
	if err != nil {
		l.logger.Warn("Snapshot fetch failed", zap.Error(err))
		return err
	}

	if len(quotes) == 0 && firstLoad {
		l.clock.Sleep(emptyRetryDelay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		quotes, err = l.api.Snapshot(ctx, l.symbols)
		if err != nil {
			l.logger.Warn("Snapshot retry failed", zap.Error(err))
			return err
		}
	}

	for _, q := range quotes {
		l.store.Set(q)
	}

	l.mu.Lock()
	l.lastSuccess = l.clock.Now()
	l.mu.Unlock()

	l.logger.Debug("Snapshot applied", zap.Int("items", len(quotes)))
	return nil
}
