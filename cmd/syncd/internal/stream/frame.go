package stream

import (
	"bytes"
	"encoding/json"

	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

// wireQuote is one quote element inside a push frame.
type wireQuote struct {
	Symbol        string   `json:"symbol"`
	LastPrice     float64  `json:"lastPrice"`
	PercentChange float64  `json:"percentChange"`
	LastClose     *float64 `json:"lastClose,omitempty"`
}

func (q wireQuote) update() models.QuoteUpdate {
	return models.QuoteUpdate{
		Symbol:        q.Symbol,
		LastPrice:     models.FormatPrice(q.LastPrice),
		PercentChange: models.FormatPercent(q.PercentChange),
		LastClose:     q.LastClose,
	}
}

// parseFrame decodes one newline-delimited JSON frame into zero or more
// quote updates. Frames are either a batch `{"quotes":[...]}` (the common
// case) or a bare legacy quote object. A frame carrying an `error` field
// is a no-op, not a connection error.
func parseFrame(data []byte) []models.QuoteUpdate {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	var frame struct {
		Quotes []wireQuote     `json:"quotes"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil
	}
	if len(frame.Error) > 0 && !bytes.Equal(frame.Error, []byte("null")) {
		return nil
	}

	quotes := frame.Quotes
	if len(quotes) == 0 {
		// Legacy single-quote frame.
		var single wireQuote
		if err := json.Unmarshal(data, &single); err != nil || single.Symbol == "" {
			return nil
		}
		quotes = []wireQuote{single}
	}

	out := make([]models.QuoteUpdate, 0, len(quotes))
	for _, q := range quotes {
		if q.Symbol == "" {
			continue
		}
		out = append(out, q.update())
	}
	return out
}

// parseMessage splits a websocket message into its newline-delimited
// frames and parses each one.
func parseMessage(data []byte) []models.QuoteUpdate {
	var out []models.QuoteUpdate
	for _, line := range bytes.Split(data, []byte("\n")) {
		out = append(out, parseFrame(line)...)
	}
	return out
}
