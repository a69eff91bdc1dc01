package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/loader"
	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/marketapi"
	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/pricestore"
	"github.com/SouqView/souqview-mobile-sub000/cmd/syncd/internal/stream"
	"github.com/SouqView/souqview-mobile-sub000/pkg/config"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. Initialize Zap Logger
	logger, err := config.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	// 3. Price store: the single source of truth every producer writes
	// into and every consumer reads from
	store := pricestore.NewStore(logger, nil)

	unsubscribe := store.Subscribe(func() {
		logger.Debug("Store notification", zap.String("conn", string(store.ConnectionStatus())))
	})

	// 4. REST client + bulk watchlist loader
	api := marketapi.NewClient(logger, cfg.API.BaseURL, cfg.API.Timeout, cfg.API.AdvisoryTimeout)
	snapshots := loader.NewSnapshotLoader(logger, api, store, nil, cfg.Watchlist.Symbols)

	ctx, cancel := context.WithCancel(context.Background())

	// 5. Initial load, then silent polling (the loader's own throttle
	// stays authoritative no matter how eager the interval is)
	if err := snapshots.Refresh(ctx, false); err != nil {
		logger.Warn("Initial snapshot failed", zap.Error(err))
	}

	interval := cfg.Watchlist.PollInterval
	if interval <= 0 {
		interval = 120 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := snapshots.Refresh(ctx, true); err != nil {
					logger.Warn("Snapshot poll failed", zap.Error(err))
				}
			}
		}
	}()

	// 6. Streaming client: connects on construction, reconnects on its own
	streamClient := stream.NewClient(logger, store, cfg.Stream.URL, nil, nil)

	logger.Info("Sync daemon started",
		zap.Strings("watchlist", cfg.Watchlist.Symbols),
		zap.String("stream_url", cfg.Stream.URL))

	// 7. Wait for Shutdown Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	// 8. Ordered teardown: stop producers first, then the poll loop
	streamClient.Close()
	ticker.Stop()
	cancel()
	unsubscribe()

	logger.Info("Sync daemon exited cleanly")
}
