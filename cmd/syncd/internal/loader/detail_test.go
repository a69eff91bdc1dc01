package loader_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/loader"
	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/marketapi"
	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/pricestore"
	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/testutils"
	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

func setup() (*loader.DetailLoader, *pricestore.Store, *testutils.MockAPI, *testutils.MockClock) {
	clock := testutils.NewMockClock(time.Unix(1700000000, 0))
	store := pricestore.NewStore(zap.NewNop(), clock)
	api := &testutils.MockAPI{}
	dl := loader.NewDetailLoader(zap.NewNop(), api, store, clock)
	return dl, store, api, clock
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestDetailLoader_LoadsAndWritesBack(t *testing.T) {
	dl, store, api, _ := setup()

	gate := make(chan struct{})
	api.DetailFn = func(ctx context.Context, symbol string) (models.Detail, error) {
		<-gate
		return models.Detail{Symbol: symbol, LastPrice: "100.00", PercentChange: "1.00"}, nil
	}

	dl.Reload(context.Background(), "aapl")

	if got := dl.State(); !got.LoadingDetail {
		t.Error("cold load should start in the loading state")
	}

	close(gate)
	waitFor(t, func() bool { return dl.State().Detail != nil }, "detail never loaded")

	state := dl.State()
	if state.Symbol != "AAPL" || state.SymbolForAI != "AAPL" {
		t.Errorf("symbol not normalized: %+v", state)
	}
	if state.ChartUnavailable {
		t.Error("chart should be available with candles present")
	}
	if e, ok := store.Get("AAPL"); !ok || e.LastPrice != "100.00" {
		t.Error("successful load must write back into the store")
	}
}

func TestDetailLoader_CancellationRace(t *testing.T) {
	dl, store, api, _ := setup()

	gate := make(chan struct{})
	api.DetailFn = func(ctx context.Context, symbol string) (models.Detail, error) {
		if symbol == "AAPL" {
			<-gate // stale response arrives long after supersession
		}
		return models.Detail{Symbol: symbol, LastPrice: "111.00", PercentChange: "1.00"}, nil
	}

	dl.Reload(context.Background(), "AAPL")
	dl.Reload(context.Background(), "TSLA")

	waitFor(t, func() bool {
		s := dl.State()
		return s.Symbol == "TSLA" && s.Detail != nil
	}, "TSLA never loaded")

	close(gate)
	time.Sleep(50 * time.Millisecond)

	if s := dl.State(); s.Symbol != "TSLA" {
		t.Errorf("stale AAPL response clobbered state: %+v", s)
	}
	if _, ok := store.Get("AAPL"); ok {
		t.Error("stale response must not reach the store")
	}
}

func TestDetailLoader_FreshCacheSkipsSpinner(t *testing.T) {
	dl, _, api, _ := setup()

	dl.Reload(context.Background(), "AAPL")
	waitFor(t, func() bool { return dl.State().Detail != nil }, "first load never finished")

	// Second reload within the cache TTL: served immediately, refresh in
	// the background.
	gate := make(chan struct{})
	api.Mu.Lock()
	api.DetailFn = func(ctx context.Context, symbol string) (models.Detail, error) {
		<-gate
		return models.Detail{Symbol: symbol, LastPrice: "102.00", PercentChange: "2.00"}, nil
	}
	api.Mu.Unlock()

	dl.Reload(context.Background(), "AAPL")

	state := dl.State()
	if state.LoadingDetail {
		t.Error("fresh cache hit must not show the blocking spinner")
	}
	if state.Detail == nil || state.Detail.LastPrice != "100.00" {
		t.Errorf("cached detail should be served, got %+v", state.Detail)
	}

	close(gate)
	waitFor(t, func() bool {
		s := dl.State()
		return s.Detail != nil && s.Detail.LastPrice == "102.00"
	}, "background refresh never landed")
}

func TestDetailLoader_StoreSynthesisTier(t *testing.T) {
	dl, store, api, _ := setup()

	store.Set(models.QuoteUpdate{Symbol: "NVDA", LastPrice: "800.00", PercentChange: "3.30"})

	gate := make(chan struct{})
	defer close(gate)
	api.DetailFn = func(ctx context.Context, symbol string) (models.Detail, error) {
		<-gate
		return models.Detail{}, errors.New("never reached in this test")
	}

	dl.Reload(context.Background(), "NVDA")

	state := dl.State()
	if state.LoadingDetail {
		t.Error("fresh store entry should suppress the spinner")
	}
	if state.Detail == nil || state.Detail.LastPrice != "800.00" || state.Detail.PercentChange != "3.30" {
		t.Errorf("synthesized detail = %+v, want store price/change", state.Detail)
	}
}

func TestDetailLoader_StaleStoreEntryShowsSpinner(t *testing.T) {
	dl, store, api, clock := setup()

	store.Set(models.QuoteUpdate{Symbol: "NVDA", LastPrice: "800.00", PercentChange: "3.30"})
	clock.Advance(16 * time.Second) // past the fresh-enough bound

	gate := make(chan struct{})
	defer close(gate)
	api.DetailFn = func(ctx context.Context, symbol string) (models.Detail, error) {
		<-gate
		return models.Detail{Symbol: symbol, LastPrice: "801.00", PercentChange: "3.40"}, nil
	}

	dl.Reload(context.Background(), "NVDA")

	if !dl.State().LoadingDetail {
		t.Error("a 16s-old store entry is not fresh enough to skip the spinner")
	}
}

func TestDetailLoader_RateLimitPreservesData(t *testing.T) {
	dl, _, api, _ := setup()

	dl.Reload(context.Background(), "AAPL")
	waitFor(t, func() bool { return dl.State().Detail != nil }, "first load never finished")

	api.Mu.Lock()
	api.DetailFn = func(ctx context.Context, symbol string) (models.Detail, error) {
		return models.Detail{}, marketapi.ErrRateLimited
	}
	api.Mu.Unlock()

	dl.Reload(context.Background(), "AAPL")
	waitFor(t, func() bool { return dl.State().RateLimited }, "rate limit never surfaced")

	state := dl.State()
	if state.Detail == nil {
		t.Error("rate limit must not clear previously displayed detail")
	}
	if !errors.Is(state.Err, marketapi.ErrRateLimited) {
		t.Errorf("Err = %v, want ErrRateLimited", state.Err)
	}
}

func TestDetailLoader_ChartUnavailableIsIndependent(t *testing.T) {
	dl, _, api, _ := setup()

	api.CandlesFn = func(ctx context.Context, symbol, interval string) ([]models.Candle, error) {
		return nil, errors.New("series backend down")
	}

	dl.Reload(context.Background(), "AAPL")
	waitFor(t, func() bool { return dl.State().Detail != nil }, "detail never loaded")

	state := dl.State()
	if !state.ChartUnavailable {
		t.Error("failed series should flag the chart unavailable")
	}
	if state.Err != nil {
		t.Errorf("series failure must not fail the whole load: %v", state.Err)
	}
}

func TestDetailLoader_EmptySeriesFlagsChart(t *testing.T) {
	dl, _, api, _ := setup()

	api.CandlesFn = func(ctx context.Context, symbol, interval string) ([]models.Candle, error) {
		return nil, nil
	}

	dl.Reload(context.Background(), "AAPL")
	waitFor(t, func() bool { return dl.State().Detail != nil }, "detail never loaded")

	if !dl.State().ChartUnavailable {
		t.Error("empty series should flag the chart unavailable")
	}
}

func TestDetailLoader_GenericFailurePreservesData(t *testing.T) {
	dl, _, api, clock := setup()

	dl.Reload(context.Background(), "AAPL")
	waitFor(t, func() bool { return dl.State().Detail != nil }, "first load never finished")

	clock.Advance(loader.DetailCacheTTL + time.Second) // force the network path

	api.Mu.Lock()
	api.DetailFn = func(ctx context.Context, symbol string) (models.Detail, error) {
		return models.Detail{}, errors.New("upstream 500")
	}
	api.Mu.Unlock()

	dl.Reload(context.Background(), "AAPL")
	waitFor(t, func() bool { return dl.State().Err != nil }, "error never surfaced")

	state := dl.State()
	if state.RateLimited {
		t.Error("generic failure must not be reported as rate limiting")
	}
	if state.LoadingDetail {
		t.Error("spinner must stop on failure")
	}
	if state.Detail == nil {
		t.Error("failure must not clear the data already on screen")
	}
}
