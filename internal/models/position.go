package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding represents a current broker holding for a user
type Holding struct {
	ID           int             `json:"id"`
	UserID       string          `json:"user_id"`
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	UnrealizedPL decimal.Decimal `json:"unrealized_pl"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MarketValue is quantity times the last known price.
func (h *Holding) MarketValue() decimal.Decimal {
	return h.Quantity.Mul(h.CurrentPrice)
}
