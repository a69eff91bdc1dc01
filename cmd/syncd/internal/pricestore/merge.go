package pricestore

import (
	"github.com/shopspring/decimal"

	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// Merge combines the existing entry for a symbol with an incoming partial
// update and returns the entry to store (timestamp is assigned by the
// store). Multiple producers report the same symbol at different
// fidelities, and a producer that had no previous close emits a 0.00
// change it never actually computed; applying that verbatim would flicker
// a real change back to zero on screen. Rules, first match wins:
//
//  1. A non-zero incoming change is trusted as-is.
//  2. With a usable previous close (incoming's, else existing's), the
//     change is recomputed from the incoming price.
//  3. A known non-zero existing change survives the zero overwrite; the
//     incoming price is still taken.
//  4. Otherwise the zero goes through — there is nothing better.
//
// Pure function: no I/O, no state, safe to call from anywhere.
func Merge(existing *models.PriceEntry, in models.QuoteUpdate) models.PriceEntry {
	out := models.PriceEntry{
		Symbol:        in.Symbol,
		LastPrice:     in.LastPrice,
		PercentChange: in.PercentChange,
		LastClose:     in.LastClose,
	}
	if out.LastClose == nil && existing != nil {
		out.LastClose = existing.LastClose
	}

	// Rule 1
	if in.PercentChange != models.ZeroPercent {
		return out
	}

	// Rule 2: recompute from the best available previous close.
	if out.LastClose != nil && *out.LastClose != 0 {
		if price, err := decimal.NewFromString(in.LastPrice); err == nil {
			prev := decimal.NewFromFloat(*out.LastClose)
			pct := price.Sub(prev).Div(prev).Mul(hundred)
			out.PercentChange = pct.StringFixed(2)
			return out
		}
	}

	// Rule 3: keep the known real change, take the new price.
	if existing != nil && existing.PercentChange != "" && existing.PercentChange != models.ZeroPercent {
		out.PercentChange = existing.PercentChange
		return out
	}

	// Rule 4
	return out
}
