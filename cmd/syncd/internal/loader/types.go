package loader

import (
	"context"
	"time"

	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

// QuoteAPI abstracts the upstream REST endpoints
type QuoteAPI interface {
	Detail(ctx context.Context, symbol string) (models.Detail, error)
	Candles(ctx context.Context, symbol, interval string) ([]models.Candle, error)
	Snapshot(ctx context.Context, symbols []string) ([]models.QuoteUpdate, error)
}

// for deterministic testing
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }
