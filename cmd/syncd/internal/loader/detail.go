package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/marketapi"
	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/pricestore"
	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

const (
	// DetailCacheTTL bounds how long a cached detail payload is served
	// without hitting the network again.
	DetailCacheTTL = 60 * time.Second
	// HistoricalInterval is the candle resolution the detail view renders.
	HistoricalInterval = "1d"
)

// DetailState is the loader's output as consumed by a detail view.
type DetailState struct {
	Symbol           string
	Detail           *models.Detail
	Historical       []models.Candle
	LoadingDetail    bool
	Err              error
	RateLimited      bool
	ChartUnavailable bool
	SymbolForAI      string
}

type cacheEntry struct {
	detail     models.Detail
	historical []models.Candle
	updatedAt  time.Time
}

// DetailLoader produces {detail, historical} for one symbol at a time with
// at most one network round-trip in flight. Every Reload supersedes the
// previous one: the old request is aborted and its response, should it
// still arrive, is discarded by token comparison — symbol equality is not
// enough, since the same symbol can be requested twice in quick
// succession.
type DetailLoader struct {
	logger *zap.Logger
	api    QuoteAPI
	store  *pricestore.Store
	clock  Clock

	mu       sync.Mutex
	cache    map[string]cacheEntry
	active   string // token of the Reload allowed to publish
	cancel   context.CancelFunc
	state    DetailState
	onChange func()
}

func NewDetailLoader(logger *zap.Logger, api QuoteAPI, store *pricestore.Store, clock Clock) *DetailLoader {
	if clock == nil {
		clock = RealClock{}
	}
	return &DetailLoader{
		logger: logger,
		api:    api,
		store:  store,
		clock:  clock,
		cache:  make(map[string]cacheEntry),
	}
}

// SetOnChange registers a callback fired after every state transition.
func (l *DetailLoader) SetOnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// State returns a copy of the current loader output.
func (l *DetailLoader) State() DetailState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Reload switches the loader to a symbol. It aborts any in-flight request,
// immediately publishes the best state available without blocking —
// fresh private cache, then a fresh store entry synthesized into a
// price-only detail, then a loading spinner — and refreshes from the
// network in the background under a new abort token.
func (l *DetailLoader) Reload(ctx context.Context, symbol string) {
	sym := pricestore.Key(symbol)
	if sym == "" {
		return
	}

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	token := uuid.NewString()
	l.active = token
	fetchCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	if entry, ok := l.cache[sym]; ok && l.clock.Now().Sub(entry.updatedAt) <= DetailCacheTTL {
		detail := entry.detail
		l.state = DetailState{
			Symbol:      sym,
			Detail:      &detail,
			Historical:  entry.historical,
			SymbolForAI: sym,
		}
	} else if stored, ok := l.store.FreshEntry(sym, pricestore.FreshEnough); ok {
		// Partial detail so a price renders before the full payload lands.
		detail := models.Detail{
			Symbol:        sym,
			LastPrice:     stored.LastPrice,
			PercentChange: stored.PercentChange,
			LastClose:     stored.LastClose,
		}
		l.state = DetailState{Symbol: sym, Detail: &detail, SymbolForAI: sym}
	} else {
		next := DetailState{Symbol: sym, LoadingDetail: true, SymbolForAI: sym}
		// Revalidating the symbol already on screen keeps the old data
		// visible under the spinner instead of blanking the view.
		if prev := l.state; prev.Symbol == sym {
			next.Detail = prev.Detail
			next.Historical = prev.Historical
			next.ChartUnavailable = prev.ChartUnavailable
		}
		l.state = next
	}
	l.mu.Unlock()
	l.notify()

	go l.fetch(fetchCtx, token, sym)
}

func (l *DetailLoader) fetch(ctx context.Context, token, sym string) {
	detail, err := l.api.Detail(ctx, sym)
	if err != nil {
		l.fetchFailed(ctx, token, sym, err)
		return
	}

	candles, histErr := l.api.Candles(ctx, sym, HistoricalInterval)
	if histErr != nil && (errors.Is(histErr, context.Canceled) || ctx.Err() != nil) {
		return // superseded mid-flight
	}
	// Historical failure is independent: the quote/profile still renders,
	// the chart is just flagged unavailable.
	chartUnavailable := histErr != nil || len(candles) == 0
	if histErr != nil {
		l.logger.Warn("Historical fetch failed", zap.String("symbol", sym), zap.Error(histErr))
		candles = nil
	}

	l.mu.Lock()
	if l.active != token {
		l.mu.Unlock()
		return // a newer Reload owns the state now; drop everything
	}
	l.cache[sym] = cacheEntry{detail: detail, historical: candles, updatedAt: l.clock.Now()}
	l.state = DetailState{
		Symbol:           sym,
		Detail:           &detail,
		Historical:       candles,
		ChartUnavailable: chartUnavailable,
		SymbolForAI:      sym,
	}
	l.mu.Unlock()

	// Write-back so every other consumer sees the same numbers.
	l.store.Set(detail.Update())
	l.notify()
}

func (l *DetailLoader) fetchFailed(ctx context.Context, token, sym string, err error) {
	// Cancellation is not an error: a newer request superseded this one.
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return
	}

	l.mu.Lock()
	if l.active != token {
		l.mu.Unlock()
		return
	}
	// Previously displayed data stays on screen; only the flags change.
	l.state.LoadingDetail = false
	l.state.Err = err
	l.state.RateLimited = errors.Is(err, marketapi.ErrRateLimited)
	l.mu.Unlock()

	if errors.Is(err, marketapi.ErrRateLimited) {
		l.logger.Warn("Detail fetch rate limited", zap.String("symbol", sym))
	} else {
		l.logger.Warn("Detail fetch failed", zap.String("symbol", sym), zap.Error(err))
	}
	l.notify()
}

func (l *DetailLoader) notify() {
	l.mu.Lock()
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}
