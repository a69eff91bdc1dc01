package marketapi

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

// The detail endpoint is loosely typed and reports the same concept under
// several names depending on the upstream's mood. Everything funnels
// through normalizeDetail so the rest of the core only ever sees the
// canonical shape. Alias priority per field (first present wins):
//
//	price:          close, price, current_price, last, c
//	percent change: percent_change, change_percent, change_pct, dp
//	previous close: previous_close, prev_close, pc
//	symbol:         symbol, ticker, s
//	name:           name, company_name, short_name
//	currency:       currency
//	exchange:       exchange, mic
func normalizeDetail(symbol string, raw []byte) (models.Detail, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.Detail{}, fmt.Errorf("decode payload: %w", err)
	}

	if s, ok := pickString(fields, "symbol", "ticker", "s"); ok {
		symbol = s
	}

	detail := models.Detail{
		Symbol:        symbol,
		LastPrice:     models.PriceUnknown,
		PercentChange: models.ZeroPercent,
	}

	if v, ok := pickFloat(fields, "close", "price", "current_price", "last", "c"); ok {
		detail.LastPrice = models.FormatPrice(v)
	}
	if v, ok := pickFloat(fields, "percent_change", "change_percent", "change_pct", "dp"); ok {
		detail.PercentChange = models.FormatPercent(v)
	}
	if v, ok := pickFloat(fields, "previous_close", "prev_close", "pc"); ok {
		detail.LastClose = &v
	}
	if v, ok := pickString(fields, "name", "company_name", "short_name"); ok {
		detail.Name = v
	}
	if v, ok := pickString(fields, "currency"); ok {
		detail.Currency = v
	}
	if v, ok := pickString(fields, "exchange", "mic"); ok {
		detail.Exchange = v
	}

	return detail, nil
}

// pickFloat returns the first alias present that parses as a number.
// Upstream serializes numbers both bare and as quoted strings.
func pickFloat(fields map[string]json.RawMessage, aliases ...string) (float64, bool) {
	for _, key := range aliases {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func pickString(fields map[string]json.RawMessage, aliases ...string) (string, bool) {
	for _, key := range aliases {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s, true
		}
	}
	return "", false
}
