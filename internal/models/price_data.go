package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one daily OHLCV candle as returned by a price provider.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Quote is a live price for a symbol.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// PriceDataDaily represents archived daily OHLCV price data for a stock
type PriceDataDaily struct {
	ID        int             `json:"id"`
	Symbol    string          `json:"symbol"`
	Date      time.Time       `json:"date"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToBar converts an archived row into the float form used by indicators.
func (p *PriceDataDaily) ToBar() Bar {
	return Bar{
		Date:   p.Date,
		Open:   p.Open.InexactFloat64(),
		High:   p.High.InexactFloat64(),
		Low:    p.Low.InexactFloat64(),
		Close:  p.Close.InexactFloat64(),
		Volume: float64(p.Volume),
	}
}

// PriceDataFromBar builds an archive row for symbol.
func PriceDataFromBar(symbol string, b Bar) *PriceDataDaily {
	return &PriceDataDaily{
		Symbol: symbol,
		Date:   b.Date,
		Open:   decimal.NewFromFloat(b.Open),
		High:   decimal.NewFromFloat(b.High),
		Low:    decimal.NewFromFloat(b.Low),
		Close:  decimal.NewFromFloat(b.Close),
		Volume: int64(b.Volume),
	}
}

// Closes extracts closing prices in series order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
