package provider

import (
	"context"
	"strings"
	"time"

	"github.com/trogers1052/trade-journal/internal/models"
)

// Normalizing appends an exchange suffix (".NS" for NSE) to bare symbols
// before delegating.
type Normalizing struct {
	next   PriceSeriesProvider
	suffix string
}

func NewNormalizing(next PriceSeriesProvider, suffix string) *Normalizing {
	return &Normalizing{next: next, suffix: suffix}
}

// Normalize upper-cases symbol and appends the suffix unless it already carries
// one. Index symbols (^NSEI) are passed through.
func (n *Normalizing) Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if n.suffix == "" || s == "" || strings.HasPrefix(s, "^") || strings.Contains(s, ".") {
		return s
	}
	return s + n.suffix
}

func (n *Normalizing) DailySeries(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	return n.next.DailySeries(ctx, n.Normalize(symbol), start, end)
}

func (n *Normalizing) LiveQuote(ctx context.Context, symbol string) (models.Quote, error) {
	q, err := n.next.LiveQuote(ctx, n.Normalize(symbol))
	if err != nil {
		return q, err
	}
	q.Symbol = symbol
	return q, nil
}
