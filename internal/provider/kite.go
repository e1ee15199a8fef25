package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/trogers1052/trade-journal/internal/models"
)

// KiteAPI is the subset of the Kite Connect client used for market data.
type KiteAPI interface {
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
	GetLTP(instruments ...string) (kiteconnect.QuoteLTP, error)
}

// Kite serves daily candles and LTP from a Zerodha Kite Connect session.
type Kite struct {
	api      KiteAPI
	exchange string

	mu     sync.Mutex
	tokens map[string]int
}

// NewKiteClient builds an authenticated Kite Connect client.
func NewKiteClient(apiKey, accessToken string) *kiteconnect.Client {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return kc
}

func NewKite(api KiteAPI, exchange string) *Kite {
	if exchange == "" {
		exchange = "NSE"
	}
	return &Kite{api: api, exchange: exchange}
}

func (k *Kite) tradingSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.Index(s, "."); i > 0 {
		s = s[:i]
	}
	return s
}

func (k *Kite) instrumentToken(symbol string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.tokens == nil {
		instruments, err := k.api.GetInstrumentsByExchange(k.exchange)
		if err != nil {
			return 0, fmt.Errorf("failed to load %s instruments: %w: %v", k.exchange, models.ErrDataUnavailable, err)
		}
		tokens := make(map[string]int, len(instruments))
		for _, inst := range instruments {
			tokens[inst.Tradingsymbol] = inst.InstrumentToken
		}
		k.tokens = tokens
	}

	token, ok := k.tokens[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown instrument %s:%s: %w", k.exchange, symbol, models.ErrDataUnavailable)
	}
	return token, nil
}

func (k *Kite) DailySeries(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}
	if end.IsZero() {
		end = time.Now()
	}

	token, err := k.instrumentToken(k.tradingSymbol(symbol))
	if err != nil {
		return nil, err
	}

	candles, err := k.api.GetHistoricalData(token, "day", start, end, false, false)
	if err != nil {
		return nil, fmt.Errorf("historical data for %s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}

	bars := make([]models.Bar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, models.Bar{
			Date:   c.Date.Time,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: float64(c.Volume),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no candles for %s: %w", symbol, models.ErrDataUnavailable)
	}
	return bars, nil
}

func (k *Kite) LiveQuote(ctx context.Context, symbol string) (models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return models.Quote{}, fmt.Errorf("%s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}

	key := k.exchange + ":" + k.tradingSymbol(symbol)
	ltp, err := k.api.GetLTP(key)
	if err != nil {
		return models.Quote{}, fmt.Errorf("ltp for %s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}
	q, ok := ltp[key]
	if !ok || q.LastPrice <= 0 {
		return models.Quote{}, fmt.Errorf("no ltp for %s: %w", key, models.ErrDataUnavailable)
	}
	return models.Quote{Symbol: symbol, Price: q.LastPrice, AsOf: time.Now()}, nil
}
