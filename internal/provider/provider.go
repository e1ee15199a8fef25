// Package provider supplies daily OHLCV series and live quotes to the analytics code.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trogers1052/trade-journal/internal/models"
)

// PriceSeriesProvider is the narrow market-data contract consumed by analysis,
// behavior, simulator and alerts. Failures wrap models.ErrDataUnavailable.
type PriceSeriesProvider interface {
	DailySeries(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
	LiveQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// Static serves fixed bars from memory. Used for tests and offline runs.
type Static struct {
	mu     sync.RWMutex
	series map[string][]models.Bar
	errs   map[string]error
	calls  map[string]int
}

func NewStatic() *Static {
	return &Static{
		series: make(map[string][]models.Bar),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Set stores bars for symbol, sorted by date.
func (s *Static) Set(symbol string, bars []models.Bar) {
	sorted := make([]models.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[strings.ToUpper(symbol)] = sorted
}

// Fail makes every call for symbol return err.
func (s *Static) Fail(symbol string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[strings.ToUpper(symbol)] = err
}

// Calls reports how many requests were made for symbol.
func (s *Static) Calls(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[strings.ToUpper(symbol)]
}

func (s *Static) lookup(symbol string) ([]models.Bar, error) {
	key := strings.ToUpper(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++

	if err := s.errs[key]; err != nil {
		return nil, fmt.Errorf("%s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}
	bars, ok := s.series[key]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s: %w", symbol, models.ErrDataUnavailable)
	}
	return bars, nil
}

func (s *Static) DailySeries(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}
	bars, err := s.lookup(symbol)
	if err != nil {
		return nil, err
	}
	return FilterRange(bars, start, end), nil
}

func (s *Static) LiveQuote(ctx context.Context, symbol string) (models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return models.Quote{}, fmt.Errorf("%s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}
	bars, err := s.lookup(symbol)
	if err != nil {
		return models.Quote{}, err
	}
	if len(bars) == 0 {
		return models.Quote{}, fmt.Errorf("no bars for %s: %w", symbol, models.ErrDataUnavailable)
	}
	last := bars[len(bars)-1]
	return models.Quote{Symbol: symbol, Price: last.Close, AsOf: last.Date}, nil
}

// FilterRange returns the bars dated within [start, end]. A zero bound is open.
func FilterRange(bars []models.Bar, start, end time.Time) []models.Bar {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Date.Before(start) {
			continue
		}
		if !end.IsZero() && b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
