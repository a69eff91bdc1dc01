package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceUnknown is rendered when the upstream never reported a usable price.
const PriceUnknown = "N/A"

// ZeroPercent is the degenerate change value some producers emit when they
// had no previous close to compute against. The merge engine treats it as
// "no information", not as a real 0% move.
const ZeroPercent = "0.00"

// PriceEntry is the canonical per-symbol record held by the price store.
// Price and change are pre-rendered strings so every consumer displays the
// exact same digits regardless of which producer wrote last.
type PriceEntry struct {
	Symbol        string    `json:"symbol"`
	LastPrice     string    `json:"last_price"`
	PercentChange string    `json:"percent_change"`
	LastClose     *float64  `json:"last_close,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// QuoteUpdate is a partial per-symbol update from any producer (stream
// frame, detail fetch, bulk snapshot). Values arrive already rendered.
type QuoteUpdate struct {
	Symbol        string   `json:"symbol"`
	LastPrice     string   `json:"last_price"`
	PercentChange string   `json:"percent_change"`
	LastClose     *float64 `json:"last_close,omitempty"`
}

// Detail is the quote+profile composite served by the detail endpoint,
// reduced to the canonical shape after field-alias normalization.
type Detail struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name,omitempty"`
	LastPrice     string   `json:"last_price"`
	PercentChange string   `json:"percent_change"`
	LastClose     *float64 `json:"last_close,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Exchange      string   `json:"exchange,omitempty"`
}

// Update extracts the price fields that flow back into the price store.
func (d Detail) Update() QuoteUpdate {
	return QuoteUpdate{
		Symbol:        d.Symbol,
		LastPrice:     d.LastPrice,
		PercentChange: d.PercentChange,
		LastClose:     d.LastClose,
	}
}

// Candle is one OHLC bar from the historical endpoint.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// ConnState reflects the streaming client's lifecycle so the UI can show a
// "connecting" banner without the store dropping known prices.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnError        ConnState = "error"
)

var one = decimal.NewFromInt(1)

// FormatPrice renders a price with 2 decimals at or above 1, 4 below, so
// sub-dollar symbols keep their significant digits. Non-positive inputs
// mean the producer had nothing; those render as PriceUnknown.
func FormatPrice(v float64) string {
	if v <= 0 {
		return PriceUnknown
	}
	d := decimal.NewFromFloat(v)
	if d.GreaterThanOrEqual(one) {
		return d.StringFixed(2)
	}
	return d.StringFixed(4)
}

// FormatPercent renders a percent change with fixed 2 decimals.
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
