package marketapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SouqView/souqview-mobile-sub000/pkg/models"
)

// ErrRateLimited marks an upstream rate-limit rejection. Callers keep
// whatever they are already displaying and surface the condition as state.
var ErrRateLimited = errors.New("rate limited by upstream")

// Client talks to the quote/detail, historical, and list snapshot
// endpoints. Quote-class calls use a short timeout; advisory-class calls
// share the cancellation plumbing but get a much longer one.
type Client struct {
	logger   *zap.Logger
	baseURL  string
	http     *http.Client
	advisory *http.Client
}

func NewClient(logger *zap.Logger, baseURL string, timeout, advisoryTimeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if advisoryTimeout <= 0 {
		advisoryTimeout = 60 * time.Second
	}
	return &Client{
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		advisory: &http.Client{Timeout: advisoryTimeout},
	}
}

// Detail fetches the quote+profile composite for one symbol.
func (c *Client) Detail(ctx context.Context, symbol string) (models.Detail, error) {
	body, err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}})
	if err != nil {
		return models.Detail{}, err
	}
	detail, err := normalizeDetail(symbol, body)
	if err != nil {
		return models.Detail{}, fmt.Errorf("quote endpoint: %w", err)
	}
	return detail, nil
}

// Candles fetches the historical series for a symbol and interval. An
// empty series is not an error; the caller decides how to render it.
func (c *Client) Candles(ctx context.Context, symbol, interval string) ([]models.Candle, error) {
	body, err := c.get(ctx, "/history", url.Values{"symbol": {symbol}, "interval": {interval}})
	if err != nil {
		return nil, err
	}
	var candles []models.Candle
	if err := json.Unmarshal(body, &candles); err != nil {
		return nil, fmt.Errorf("history endpoint: %w", err)
	}
	return candles, nil
}

// Snapshot fetches the bulk quote list for a comma-joined symbol set.
func (c *Client) Snapshot(ctx context.Context, symbols []string) ([]models.QuoteUpdate, error) {
	body, err := c.get(ctx, "/quotes", url.Values{"symbols": {strings.Join(symbols, ",")}})
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("quotes endpoint: %w", err)
	}
	out := make([]models.QuoteUpdate, 0, len(items))
	for _, item := range items {
		detail, err := normalizeDetail("", item)
		if err != nil || detail.Symbol == "" {
			continue
		}
		out = append(out, detail.Update())
	}
	return out, nil
}

// Advisory fetches AI-generated text for a symbol. The advisory service
// is a slow collaborator; the call runs on the long-timeout client but is
// cancelled through the same context plumbing as everything else.
func (c *Client) Advisory(ctx context.Context, symbol string) (string, error) {
	body, err := c.do(ctx, c.advisory, "/advisory", url.Values{"symbol": {symbol}})
	if err != nil {
		return "", err
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("advisory endpoint: %w", err)
	}
	return payload.Text, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, c.http, path, query)
}

func (c *Client) do(ctx context.Context, hc *http.Client, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}
