package pricestore

import (
	"testing"
	"time"

	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestMerge_NonZeroChangePassesThrough(t *testing.T) {
	existing := &models.PriceEntry{Symbol: "AAPL", LastPrice: "100.00", PercentChange: "2.50"}
	in := models.QuoteUpdate{Symbol: "AAPL", LastPrice: "101.00", PercentChange: "1.00"}

	got := Merge(existing, in)

	if got.LastPrice != "101.00" || got.PercentChange != "1.00" {
		t.Errorf("got %q/%q, want incoming values unchanged", got.LastPrice, got.PercentChange)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	e := models.PriceEntry{
		Symbol:        "AAPL",
		LastPrice:     "187.33",
		PercentChange: "-1.24",
		LastClose:     floatPtr(189.68),
		UpdatedAt:     time.Now(),
	}

	got := Merge(&e, models.QuoteUpdate{
		Symbol:        e.Symbol,
		LastPrice:     e.LastPrice,
		PercentChange: e.PercentChange,
		LastClose:     e.LastClose,
	})

	if got.LastPrice != e.LastPrice || got.PercentChange != e.PercentChange {
		t.Errorf("merge(e, e) = %q/%q, want %q/%q", got.LastPrice, got.PercentChange, e.LastPrice, e.PercentChange)
	}
}

func TestMerge_ZeroOverwriteProtection(t *testing.T) {
	existing := &models.PriceEntry{Symbol: "AAPL", LastPrice: "100.00", PercentChange: "2.50"}
	in := models.QuoteUpdate{Symbol: "AAPL", LastPrice: "101.00", PercentChange: "0.00"}

	got := Merge(existing, in)

	if got.PercentChange != "2.50" {
		t.Errorf("PercentChange = %q, want existing 2.50 kept", got.PercentChange)
	}
	if got.LastPrice != "101.00" {
		t.Errorf("LastPrice = %q, want new price 101.00 taken", got.LastPrice)
	}
}

func TestMerge_RecomputeFromIncomingClose(t *testing.T) {
	existing := &models.PriceEntry{Symbol: "AAPL", LastPrice: "100.00", PercentChange: "0.00"}
	in := models.QuoteUpdate{
		Symbol:        "AAPL",
		LastPrice:     "110.00",
		PercentChange: "0.00",
		LastClose:     floatPtr(100),
	}

	got := Merge(existing, in)

	if got.PercentChange != "10.00" {
		t.Errorf("PercentChange = %q, want 10.00 recomputed from previous close", got.PercentChange)
	}
}

func TestMerge_RecomputeFromExistingClose(t *testing.T) {
	// Incoming has no close of its own; the existing entry remembers one.
	existing := &models.PriceEntry{
		Symbol:        "TSLA",
		LastPrice:     "200.00",
		PercentChange: "0.00",
		LastClose:     floatPtr(250),
	}
	in := models.QuoteUpdate{Symbol: "TSLA", LastPrice: "225.00", PercentChange: "0.00"}

	got := Merge(existing, in)

	if got.PercentChange != "-10.00" {
		t.Errorf("PercentChange = %q, want -10.00", got.PercentChange)
	}
	if got.LastClose == nil || *got.LastClose != 250 {
		t.Errorf("LastClose should be carried over from existing entry")
	}
}

func TestMerge_ZeroCloseIsNotUsable(t *testing.T) {
	in := models.QuoteUpdate{
		Symbol:        "GOOG",
		LastPrice:     "140.00",
		PercentChange: "0.00",
		LastClose:     floatPtr(0),
	}

	got := Merge(nil, in)

	if got.PercentChange != "0.00" {
		t.Errorf("PercentChange = %q, want zero accepted when close is 0", got.PercentChange)
	}
}

func TestMerge_UnknownPriceSkipsRecompute(t *testing.T) {
	existing := &models.PriceEntry{Symbol: "AMZN", LastPrice: "100.00", PercentChange: "3.10"}
	in := models.QuoteUpdate{
		Symbol:        "AMZN",
		LastPrice:     models.PriceUnknown,
		PercentChange: "0.00",
		LastClose:     floatPtr(100),
	}

	got := Merge(existing, in)

	// Price is not numeric, so rule 2 cannot apply; rule 3 keeps the real change.
	if got.PercentChange != "3.10" {
		t.Errorf("PercentChange = %q, want existing 3.10 kept", got.PercentChange)
	}
}

func TestMerge_NoInformationAcceptsZero(t *testing.T) {
	in := models.QuoteUpdate{Symbol: "NEW", LastPrice: "50.00", PercentChange: "0.00"}

	got := Merge(nil, in)

	if got.PercentChange != "0.00" {
		t.Errorf("PercentChange = %q, want 0.00 accepted with no better information", got.PercentChange)
	}
}
