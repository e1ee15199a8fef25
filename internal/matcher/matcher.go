// Package matcher turns chronologically ordered broker executions into FIFO
// round-trip trades and applies them to a user's ledger.
package matcher

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/trade-journal/internal/models"
)

// Summary counts what happened to each execution of a batch.
//
// Every execution lands in exactly one of Applied, Deferred or one of the
// skip buckets (Duplicates, Invalid, NonEquity, Unmatched). Skipped is the
// sum of the skip buckets. PartiallySkipped counts applied sells whose excess
// quantity was dropped.
type Summary struct {
	Total            int             `json:"total"`
	Applied          int             `json:"applied"`
	Skipped          int             `json:"skipped"`
	Duplicates       int             `json:"duplicates"`
	Invalid          int             `json:"invalid"`
	NonEquity        int             `json:"non_equity"`
	Unmatched        int             `json:"unmatched"`
	Deferred         int             `json:"deferred"`
	PartiallySkipped int             `json:"partially_skipped"`
	DroppedQuantity  decimal.Decimal `json:"dropped_quantity"`
	DeferredCloses   int             `json:"deferred_closes"`
}

func (s *Summary) skip(bucket *int) {
	*bucket++
	s.Skipped++
}

// Result is the output of one Match call.
type Result struct {
	Mutations []models.LedgerMutation `json:"mutations"`
	Summary   Summary                 `json:"summary"`
	// Deferred lists the indexes of sells that consumed same-batch lots.
	Deferred []int `json:"deferred,omitempty"`
}

// lot is an arena slot. Lots created by the current batch are not persisted
// yet and are never closed by a mutation in the same batch.
type lot struct {
	trade     *models.Trade
	persisted bool
}

// arena holds the open-lot queues of one user, oldest first per symbol.
// It is owned by a single Match call.
type arena struct {
	queues map[string][]*lot
}

func newArena(ledger []*models.Trade) *arena {
	a := &arena{queues: make(map[string][]*lot)}

	open := make([]*models.Trade, 0, len(ledger))
	for _, t := range ledger {
		if t != nil && !t.IsClosed() && t.Quantity.IsPositive() {
			open = append(open, t)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].BuyDate.Equal(open[j].BuyDate) {
			return open[i].BuyDate.Before(open[j].BuyDate)
		}
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})

	for _, t := range open {
		cp := *t
		sym := normalizeSymbol(t.Symbol)
		a.queues[sym] = append(a.queues[sym], &lot{trade: &cp, persisted: true})
	}
	return a
}

func (a *arena) push(symbol string, l *lot) {
	a.queues[symbol] = append(a.queues[symbol], l)
}

func (a *arena) front(symbol string) *lot {
	q := a.queues[symbol]
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (a *arena) pop(symbol string) {
	q := a.queues[symbol]
	if len(q) > 0 {
		q[0] = nil
		a.queues[symbol] = q[1:]
	}
}

// OpenQuantity is the total open quantity queued for symbol.
func (a *arena) OpenQuantity(symbol string) decimal.Decimal {
	total := decimal.Zero
	for _, l := range a.queues[symbol] {
		total = total.Add(l.trade.Quantity)
	}
	return total
}

// Matcher performs FIFO lot matching.
type Matcher struct {
	newID func() string
	now   func() time.Time
}

func New() *Matcher {
	return &Matcher{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Match applies executions to the user's existing ledger and returns the
// mutations to persist. Executions must be sorted by ExecutedAt; otherwise
// ErrOrderingViolation is returned and nothing is produced.
func (m *Matcher) Match(userID string, ledger []*models.Trade, executions []models.Execution) (*Result, error) {
	if err := checkOrder(executions); err != nil {
		return nil, err
	}

	a := newArena(ledger)
	buys := buyKeys(ledger)
	sells := sellKeys(ledger)
	res := &Result{Summary: Summary{DroppedQuantity: decimal.Zero}}
	sum := &res.Summary

	for i := range executions {
		ex := executions[i]
		sum.Total++

		if err := ex.Validate(); err != nil {
			sum.skip(&sum.Invalid)
			continue
		}
		if !ex.IsEquity() {
			sum.skip(&sum.NonEquity)
			continue
		}

		symbol := normalizeSymbol(ex.Symbol)
		switch ex.NormalizedSide() {
		case models.TradeTypeBuy:
			key := tradeKey(symbol, ex.Price, ex.Quantity, ex.ExecutedAt)
			if buys[key] {
				sum.skip(&sum.Duplicates)
				continue
			}
			buys[key] = true

			t := &models.Trade{
				ID:              m.newID(),
				UserID:          userID,
				Symbol:          symbol,
				BuyDate:         ex.ExecutedAt,
				BuyPrice:        ex.Price,
				Quantity:        ex.Quantity,
				ExternalTradeID: ex.ExternalTradeID,
				CreatedAt:       m.now(),
			}
			a.push(symbol, &lot{trade: t})
			res.Mutations = append(res.Mutations, models.LedgerMutation{Kind: models.MutationCreate, Trade: *t})
			sum.Applied++

		case models.TradeTypeSell:
			if m.sell(a, sells, userID, symbol, ex, res) {
				res.Deferred = append(res.Deferred, i)
			}
		}
	}

	return res, nil
}

// sell consumes open lots FIFO and reports whether any same-batch lot was reached.
func (m *Matcher) sell(a *arena, sells map[string]decimal.Decimal, userID, symbol string, ex models.Execution, res *Result) bool {
	sum := &res.Summary
	remaining := ex.Quantity

	key := sellKey(symbol, ex.Price, ex.ExecutedAt)
	if recorded, ok := sells[key]; ok && recorded.IsPositive() {
		covered := decimal.Min(recorded, remaining)
		sells[key] = recorded.Sub(covered)
		remaining = remaining.Sub(covered)
		if remaining.IsZero() {
			sum.skip(&sum.Duplicates)
			return false
		}
	}

	mutated := false
	deferred := false

	for remaining.IsPositive() {
		l := a.front(symbol)
		if l == nil || l.trade.BuyDate.After(ex.ExecutedAt) {
			break
		}

		if !l.persisted {
			take := decimal.Min(l.trade.Quantity, remaining)
			l.trade.Quantity = l.trade.Quantity.Sub(take)
			remaining = remaining.Sub(take)
			if !l.trade.Quantity.IsPositive() {
				a.pop(symbol)
			}
			sum.DeferredCloses++
			deferred = true
			continue
		}

		if l.trade.Quantity.LessThanOrEqual(remaining) {
			l.trade.Close(ex.ExecutedAt, ex.Price)
			l.trade.UpdatedAt = m.now()
			remaining = remaining.Sub(l.trade.Quantity)
			res.Mutations = append(res.Mutations, models.LedgerMutation{Kind: models.MutationClose, Trade: *l.trade})
			a.pop(symbol)
			mutated = true
			continue
		}

		closed := &models.Trade{
			ID:              m.newID(),
			UserID:          userID,
			Symbol:          symbol,
			BuyDate:         l.trade.BuyDate,
			BuyPrice:        l.trade.BuyPrice,
			Quantity:        remaining,
			ExternalTradeID: l.trade.ExternalTradeID,
			CreatedAt:       m.now(),
		}
		closed.Close(ex.ExecutedAt, ex.Price)

		l.trade.Quantity = l.trade.Quantity.Sub(remaining)
		l.trade.UpdatedAt = m.now()
		res.Mutations = append(res.Mutations,
			models.LedgerMutation{Kind: models.MutationReduce, Trade: *l.trade},
			models.LedgerMutation{Kind: models.MutationCreate, Trade: *closed},
		)
		remaining = decimal.Zero
		mutated = true
	}

	switch {
	case mutated:
		sum.Applied++
		if remaining.IsPositive() {
			sum.PartiallySkipped++
		}
	case deferred:
		sum.Deferred++
		if remaining.IsPositive() {
			sum.PartiallySkipped++
		}
	default:
		sum.skip(&sum.Unmatched)
	}
	if remaining.IsPositive() {
		sum.DroppedQuantity = sum.DroppedQuantity.Add(remaining)
	}
	return deferred
}

func checkOrder(executions []models.Execution) error {
	var last time.Time
	for i, ex := range executions {
		if ex.ExecutedAt.IsZero() {
			continue
		}
		if !last.IsZero() && ex.ExecutedAt.Before(last) {
			return fmt.Errorf("execution %d at %s precedes %s: %w",
				i, ex.ExecutedAt.Format(time.RFC3339), last.Format(time.RFC3339), models.ErrOrderingViolation)
		}
		last = ex.ExecutedAt
	}
	return nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func stamp(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}

func tradeKey(symbol string, price, quantity decimal.Decimal, at time.Time) string {
	return symbol + "|" + price.String() + "|" + quantity.String() + "|" + stamp(at)
}

func sellKey(symbol string, price decimal.Decimal, at time.Time) string {
	return symbol + "|" + price.String() + "|" + stamp(at)
}

// buyKeys indexes the ledger's opening executions. Records split from one buy
// share symbol, buy date, buy price and external id, so their quantities are
// summed back into the original fill as well as indexed individually.
func buyKeys(ledger []*models.Trade) map[string]bool {
	keys := make(map[string]bool, len(ledger))
	groups := make(map[string]decimal.Decimal)
	groupTrade := make(map[string]*models.Trade)

	for _, t := range ledger {
		if t == nil {
			continue
		}
		sym := normalizeSymbol(t.Symbol)
		keys[tradeKey(sym, t.BuyPrice, t.Quantity, t.BuyDate)] = true

		g := sym + "|" + t.BuyPrice.String() + "|" + stamp(t.BuyDate) + "|" + t.ExternalTradeID
		groups[g] = groups[g].Add(t.Quantity)
		groupTrade[g] = t
	}
	for g, qty := range groups {
		t := groupTrade[g]
		keys[tradeKey(normalizeSymbol(t.Symbol), t.BuyPrice, qty, t.BuyDate)] = true
	}
	return keys
}

// sellKeys sums closed quantity per (symbol, sell price, sell date) so a sell
// already reflected in the ledger is recognized on re-import.
func sellKeys(ledger []*models.Trade) map[string]decimal.Decimal {
	keys := make(map[string]decimal.Decimal)
	for _, t := range ledger {
		if t == nil || !t.IsClosed() {
			continue
		}
		k := sellKey(normalizeSymbol(t.Symbol), *t.SellPrice, *t.SellDate)
		keys[k] = keys[k].Add(t.Quantity)
	}
	return keys
}
