package simulator

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/trade-journal/internal/models"
)

var base = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func closed(symbol string, buyPrice, sellPrice float64, holdDays int) *models.Trade {
	t := &models.Trade{
		Symbol:   symbol,
		BuyDate:  base,
		BuyPrice: decimal.NewFromFloat(buyPrice),
		Quantity: decimal.NewFromInt(10),
	}
	t.Close(base.AddDate(0, 0, holdDays), decimal.NewFromFloat(sellPrice))
	return t
}

func ledger() []*models.Trade {
	return []*models.Trade{
		closed("INFY", 100, 130, 10), // +30
		closed("TCS", 100, 80, 10),   // -20
		closed("ITC", 100, 97, 10),   // -3
		closed("SBIN", 100, 105, 10), // +5
		{Symbol: "OPEN", BuyDate: base, BuyPrice: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1)},
	}
}

func TestStopLoss(t *testing.T) {
	res := StopLoss(ledger(), 5)

	assert.Equal(t, 4, res.TotalTrades)
	assert.InDelta(t, 12.0, res.OriginalPL, 1e-9)
	assert.InDelta(t, 27.0, res.SimulatedPL, 1e-9)
	assert.InDelta(t, 15.0, res.Difference, 1e-9)
	assert.InDelta(t, 125.0, res.DifferencePercent, 1e-9)
	assert.Equal(t, 1, res.TradesAffected)

	require.Len(t, res.Details, 4)
	assert.Equal(t, "Profitable trade", res.Details[0].Reason)
	assert.Equal(t, "Stop loss would have limited loss to -5%", res.Details[1].Reason)
	assert.InDelta(t, -5.0, res.Details[1].SimulatedPercent, 1e-9)
	assert.Equal(t, "Loss within stop limit", res.Details[2].Reason)
}

func TestStopLossConservation(t *testing.T) {
	for _, stop := range []float64{math.Inf(1), 1e9} {
		res := StopLoss(ledger(), stop)
		assert.Equal(t, res.OriginalPL, res.SimulatedPL)
		assert.Equal(t, 0.0, res.Difference)
		assert.Equal(t, 0, res.TradesAffected)
	}
}

func TestTargetProfit(t *testing.T) {
	res := TargetProfit(ledger(), 10)

	assert.InDelta(t, -8.0, res.SimulatedPL, 1e-9)
	assert.InDelta(t, -20.0, res.Difference, 1e-9)
	assert.Equal(t, 1, res.TradesAffected)
	assert.Equal(t, "Would have exited at +10% target", res.Details[0].Reason)
	assert.Equal(t, "Loss trade", res.Details[1].Reason)
	assert.Equal(t, "Did not reach target", res.Details[3].Reason)
}

func TestStopLossWithTarget(t *testing.T) {
	res := StopLossWithTarget(ledger(), 5, 10)

	assert.InDelta(t, 10-5-3+5, res.SimulatedPL, 1e-9)
	assert.Equal(t, 2, res.TradesAffected)
	assert.Equal(t, "Target exit at +10%", res.Details[0].Reason)
	assert.Equal(t, "Stop loss at -5%", res.Details[1].Reason)
	assert.Equal(t, "No change", res.Details[2].Reason)
}

func TestSimulateEdgeCases(t *testing.T) {
	t.Run("no rules leaves everything unchanged", func(t *testing.T) {
		res := Simulate(ledger(), Rules{})
		assert.Equal(t, 0.0, res.Difference)
	})

	t.Run("empty ledger", func(t *testing.T) {
		res := StopLoss(nil, 5)
		assert.Equal(t, 0, res.TotalTrades)
		assert.Equal(t, 0.0, res.DifferencePercent)
		assert.NotNil(t, res.Details)
	})

	t.Run("details are capped", func(t *testing.T) {
		var trades []*models.Trade
		for i := 0; i < 45; i++ {
			trades = append(trades, closed("INFY", 100, 90, 3))
		}
		res := StopLoss(trades, 5)
		assert.Equal(t, 45, res.TotalTrades)
		assert.Equal(t, 45, res.TradesAffected)
		assert.Len(t, res.Details, MaxDetails)
	})

	t.Run("zero original pl gives zero relative difference", func(t *testing.T) {
		res := StopLoss([]*models.Trade{closed("A", 100, 110, 1), closed("B", 100, 90, 1)}, 5)
		assert.InDelta(t, 0.0, res.OriginalPL, 1e-9)
		assert.Equal(t, 0.0, res.DifferencePercent)
		assert.InDelta(t, 5.0, res.Difference, 1e-9)
	})
}
