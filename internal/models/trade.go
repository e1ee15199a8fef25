package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trade side constants
const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

// Execution is a single broker fill handed to the matcher by an import or sync layer.
type Execution struct {
	ID              int             `json:"id,omitempty"`
	UserID          string          `json:"user_id"`
	Symbol          string          `json:"symbol"`
	Side            string          `json:"side"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	ExecutedAt      time.Time       `json:"executed_at"`
	ExternalTradeID string          `json:"external_trade_id,omitempty"`
	Segment         string          `json:"segment,omitempty"`
	Source          string          `json:"source,omitempty"`
}

// NormalizedSide maps broker side spellings (B, buy, S, sell) onto BUY/SELL.
func (e *Execution) NormalizedSide() string {
	switch strings.ToUpper(strings.TrimSpace(e.Side)) {
	case TradeTypeBuy, "B":
		return TradeTypeBuy
	case TradeTypeSell, "S":
		return TradeTypeSell
	}
	return ""
}

// Validate reports ErrInvalidExecution for rows the matcher cannot use.
func (e *Execution) Validate() error {
	switch {
	case strings.TrimSpace(e.Symbol) == "":
		return fmt.Errorf("%w: missing symbol", ErrInvalidExecution)
	case e.NormalizedSide() == "":
		return fmt.Errorf("%w: invalid side %q", ErrInvalidExecution, e.Side)
	case !e.Quantity.IsPositive():
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidExecution, e.Quantity)
	case !e.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidExecution, e.Price)
	case e.ExecutedAt.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidExecution)
	}
	return nil
}

// IsEquity reports whether the segment tag describes a cash equity fill.
// An empty tag is treated as equity.
func (e *Execution) IsEquity() bool {
	seg := strings.ToUpper(strings.TrimSpace(e.Segment))
	if seg == "" {
		return true
	}
	return strings.Contains(seg, "EQ") || strings.Contains(seg, "NSE") || strings.Contains(seg, "BSE")
}

// Trade is one ledger entry: an open lot, or a closed round trip.
// A trade is closed iff SellDate, SellPrice, ProfitLoss and HoldingPeriodDays are all set.
type Trade struct {
	ID                string           `json:"id"`
	UserID            string           `json:"user_id"`
	Symbol            string           `json:"symbol"`
	BuyDate           time.Time        `json:"buy_date"`
	BuyPrice          decimal.Decimal  `json:"buy_price"`
	Quantity          decimal.Decimal  `json:"quantity"`
	SellDate          *time.Time       `json:"sell_date,omitempty"`
	SellPrice         *decimal.Decimal `json:"sell_price,omitempty"`
	ProfitLoss        *decimal.Decimal `json:"profit_loss,omitempty"`
	HoldingPeriodDays *int             `json:"holding_period_days,omitempty"`
	ExternalTradeID   string           `json:"external_trade_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// IsClosed reports whether every sell-side field is populated.
func (t *Trade) IsClosed() bool {
	return t.SellDate != nil && t.SellPrice != nil && t.ProfitLoss != nil && t.HoldingPeriodDays != nil
}

// Close sets all sell-side fields for the trade's current quantity.
func (t *Trade) Close(sellDate time.Time, sellPrice decimal.Decimal) {
	date := sellDate
	price := sellPrice
	pnl := sellPrice.Sub(t.BuyPrice).Mul(t.Quantity)
	days := HoldingDays(t.BuyDate, sellDate)

	t.SellDate = &date
	t.SellPrice = &price
	t.ProfitLoss = &pnl
	t.HoldingPeriodDays = &days
}

// ReturnPercent is the realized percentage return of a closed trade.
func (t *Trade) ReturnPercent() float64 {
	if !t.IsClosed() || t.BuyPrice.IsZero() {
		return 0
	}
	return t.SellPrice.Sub(t.BuyPrice).Div(t.BuyPrice).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// HoldingDays returns the whole days between buy and sell, never negative.
func HoldingDays(buy, sell time.Time) int {
	d := int(sell.Sub(buy) / (24 * time.Hour))
	if d < 0 {
		return 0
	}
	return d
}

// ClosedTrades filters the open lots out of a ledger.
func ClosedTrades(trades []*Trade) []*Trade {
	closed := make([]*Trade, 0, len(trades))
	for _, t := range trades {
		if t != nil && t.IsClosed() {
			closed = append(closed, t)
		}
	}
	return closed
}

// Ledger mutation kinds. A partial sell is a REDUCE of the open lot plus a CREATE
// of the closed portion.
const (
	MutationCreate = "CREATE"
	MutationClose  = "CLOSE"
	MutationReduce = "REDUCE"
)

// LedgerMutation is one change the matcher asks the ledger store to apply.
// Trade is a snapshot of the record after the change.
type LedgerMutation struct {
	Kind  string `json:"kind"`
	Trade Trade  `json:"trade"`
}
