package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

// feedsim is a local stand-in for the market-data upstream: it serves the
// push stream plus the quote/history/quotes/advisory REST endpoints with
// random-walk prices, so the sync daemon can be developed and demoed
// without upstream credentials.

var (
	tickers = []string{"AAPL", "GOOG", "TSLA", "AMZN"}
	logger  *zap.Logger
)

type market struct {
	mu     sync.Mutex
	prices map[string]float64
	closes map[string]float64
	rand   *rand.Rand
}

func newMarket() *market {
	m := &market{
		prices: map[string]float64{"AAPL": 150.0, "GOOG": 2800.0, "TSLA": 700.0, "AMZN": 3400.0},
		closes: make(map[string]float64),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for sym, p := range m.prices {
		m.closes[sym] = p
	}
	return m
}

// tick walks one symbol and returns its current quote fields
func (m *market) tick() (symbol string, price, changePct, prevClose float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol = tickers[m.rand.Intn(len(tickers))]
	fluctuation := (m.rand.Float64() * 10) - 5
	m.prices[symbol] += fluctuation
	if m.prices[symbol] < 1 {
		m.prices[symbol] = 1
	}

	price = m.prices[symbol]
	prevClose = m.closes[symbol]
	changePct = (price - prevClose) / prevClose * 100
	return
}

func (m *market) quote(symbol string) (price, changePct, prevClose float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok = m.prices[symbol]
	if !ok {
		return 0, 0, 0, false
	}
	prevClose = m.closes[symbol]
	changePct = (price - prevClose) / prevClose * 100
	return
}

func main() {
	// 1. Initialize Zap Logger
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	addr := os.Getenv("FEEDSIM_ADDR")
	if addr == "" {
		addr = ":8090"
	}

	m := newMarket()
	mux := http.NewServeMux()

	// 2. Push stream: batch frames on a fixed cadence, with the occasional
	// legacy single-quote and error frame so clients stay honest
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		logger.Info("Stream client connected", zap.String("remote", conn.RemoteAddr().String()))

		go func() {
			defer conn.Close()
			n := 0
			for {
				n++
				var frame []byte
				switch {
				case n%25 == 0:
					frame = []byte(`{"error":"simulated upstream hiccup"}`)
				case n%10 == 0:
					sym, price, pct, _ := m.tick()
					frame, _ = json.Marshal(map[string]any{
						"symbol": sym, "lastPrice": price, "percentChange": pct,
					})
				default:
					count := 1 + n%3
					quotes := make([]map[string]any, 0, count)
					for i := 0; i < count; i++ {
						sym, price, pct, prev := m.tick()
						quotes = append(quotes, map[string]any{
							"symbol": sym, "lastPrice": price, "percentChange": pct, "lastClose": prev,
						})
					}
					frame, _ = json.Marshal(map[string]any{"quotes": quotes})
				}

				if err := wsutil.WriteServerText(conn, frame); err != nil {
					logger.Info("Stream client gone", zap.Error(err))
					return
				}
				time.Sleep(500 * time.Millisecond)
			}
		}()
	})

	// 3. REST endpoints, loosely typed on purpose: aliased field names
	// mirror the real upstream's habits
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		sym := strings.ToUpper(r.URL.Query().Get("symbol"))
		price, pct, prev, ok := m.quote(sym)
		if !ok {
			http.Error(w, "unknown symbol", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ticker":         sym,
			"close":          fmt.Sprintf("%.4f", price),
			"percent_change": pct,
			"previous_close": prev,
			"company_name":   sym + " Inc.",
			"currency":       "USD",
			"exchange":       "SIM",
		})
	})

	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		sym := strings.ToUpper(r.URL.Query().Get("symbol"))
		price, _, _, ok := m.quote(sym)
		if !ok {
			http.Error(w, "unknown symbol", http.StatusNotFound)
			return
		}
		candles := make([]map[string]any, 0, 30)
		now := time.Now()
		for i := 29; i >= 0; i-- {
			day := now.AddDate(0, 0, -i)
			candles = append(candles, map[string]any{
				"time":   day.Unix(),
				"open":   price * 0.99,
				"high":   price * 1.01,
				"low":    price * 0.98,
				"close":  price,
				"volume": 1000000,
			})
		}
		json.NewEncoder(w).Encode(candles)
	})

	mux.HandleFunc("/quotes", func(w http.ResponseWriter, r *http.Request) {
		out := make([]map[string]any, 0)
		for _, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
			sym = strings.ToUpper(strings.TrimSpace(sym))
			price, pct, prev, ok := m.quote(sym)
			if !ok {
				continue
			}
			out = append(out, map[string]any{
				"symbol": sym, "price": price, "dp": pct, "pc": prev,
			})
		}
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("/advisory", func(w http.ResponseWriter, r *http.Request) {
		sym := strings.ToUpper(r.URL.Query().Get("symbol"))
		time.Sleep(2 * time.Second) // advisory calls are slow by nature
		json.NewEncoder(w).Encode(map[string]string{
			"text": "Simulated advisory for " + sym + ": not investment advice.",
		})
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("Feed simulator started", zap.String("addr", addr), zap.Strings("tickers", tickers))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	// 4. Wait for Shutdown Signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	srv.Shutdown(context.Background())
	logger.Info("Feed simulator exited cleanly")
}
