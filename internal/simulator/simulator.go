// Package simulator replays closed trades under alternate exit rules.
package simulator

import (
	"fmt"
	"math"
	"time"

	"github.com/trogers1052/trade-journal/internal/models"
)

// MaxDetails caps the per-trade breakdown returned to callers.
const MaxDetails = 20

const epsilon = 1e-9

// Rules are the counterfactual exit parameters in percent. A non-positive
// value disables the rule.
type Rules struct {
	StopLossPercent float64 `json:"stop_loss_percent"`
	TargetPercent   float64 `json:"target_percent"`
}

func (r Rules) hasStop() bool   { return r.StopLossPercent > 0 }
func (r Rules) hasTarget() bool { return r.TargetPercent > 0 }

// Detail is one trade's original and simulated outcome.
type Detail struct {
	Symbol           string     `json:"symbol"`
	BuyDate          time.Time  `json:"buy_date"`
	SellDate         time.Time  `json:"sell_date"`
	OriginalPercent  float64    `json:"original_percent"`
	SimulatedPercent float64    `json:"simulated_percent"`
	ExitDate         *time.Time `json:"exit_date,omitempty"`
	Reason           string     `json:"reason"`
}

// Result aggregates a simulation run. P&L figures are summed trade percentages.
type Result struct {
	OriginalPL        float64  `json:"original_pl"`
	SimulatedPL       float64  `json:"simulated_pl"`
	Difference        float64  `json:"difference"`
	DifferencePercent float64  `json:"difference_percent"`
	TradesAffected    int      `json:"trades_affected"`
	TotalTrades       int      `json:"total_trades"`
	Fallbacks         int      `json:"fallbacks"`
	Details           []Detail `json:"details"`
}

type outcome struct {
	percent  float64
	reason   string
	exitDate *time.Time
	fallback bool
}

func aggregate(trades []*models.Trade, eval func(i int, t *models.Trade) outcome) Result {
	res := Result{Details: []Detail{}}
	for i, t := range trades {
		orig := t.ReturnPercent()
		out := eval(i, t)

		res.TotalTrades++
		res.OriginalPL += orig
		res.SimulatedPL += out.percent
		if math.Abs(out.percent-orig) > epsilon {
			res.TradesAffected++
		}
		if out.fallback {
			res.Fallbacks++
		}
		if len(res.Details) < MaxDetails {
			res.Details = append(res.Details, Detail{
				Symbol:           t.Symbol,
				BuyDate:          t.BuyDate,
				SellDate:         *t.SellDate,
				OriginalPercent:  orig,
				SimulatedPercent: out.percent,
				ExitDate:         out.exitDate,
				Reason:           out.reason,
			})
		}
	}

	res.Difference = res.SimulatedPL - res.OriginalPL
	if res.OriginalPL != 0 {
		res.DifferencePercent = res.Difference / math.Abs(res.OriginalPL) * 100
	}
	return res
}

// Simulate runs the ledger-only mode: each trade's realized percentage is
// capped at the stop and target thresholds. Open trades are ignored.
func Simulate(trades []*models.Trade, rules Rules) Result {
	closed := models.ClosedTrades(trades)
	return aggregate(closed, func(_ int, t *models.Trade) outcome {
		return ledgerOutcome(t.ReturnPercent(), rules)
	})
}

func ledgerOutcome(pct float64, rules Rules) outcome {
	switch {
	case rules.hasStop() && rules.hasTarget():
		switch {
		case pct < -rules.StopLossPercent:
			return outcome{percent: -rules.StopLossPercent, reason: fmt.Sprintf("Stop loss at -%v%%", rules.StopLossPercent)}
		case pct > rules.TargetPercent:
			return outcome{percent: rules.TargetPercent, reason: fmt.Sprintf("Target exit at +%v%%", rules.TargetPercent)}
		}
		return outcome{percent: pct, reason: "No change"}

	case rules.hasStop():
		if pct < -rules.StopLossPercent {
			return outcome{percent: -rules.StopLossPercent, reason: fmt.Sprintf("Stop loss would have limited loss to -%v%%", rules.StopLossPercent)}
		}
		if pct >= 0 {
			return outcome{percent: pct, reason: "Profitable trade"}
		}
		return outcome{percent: pct, reason: "Loss within stop limit"}

	case rules.hasTarget():
		if pct > rules.TargetPercent {
			return outcome{percent: rules.TargetPercent, reason: fmt.Sprintf("Would have exited at +%v%% target", rules.TargetPercent)}
		}
		if pct >= 0 {
			return outcome{percent: pct, reason: "Did not reach target"}
		}
		return outcome{percent: pct, reason: "Loss trade"}
	}
	return outcome{percent: pct, reason: "No change"}
}

// StopLoss caps every loss at stopLossPercent.
func StopLoss(trades []*models.Trade, stopLossPercent float64) Result {
	return Simulate(trades, Rules{StopLossPercent: stopLossPercent})
}

// TargetProfit caps every gain at targetPercent.
func TargetProfit(trades []*models.Trade, targetPercent float64) Result {
	return Simulate(trades, Rules{TargetPercent: targetPercent})
}

// StopLossWithTarget applies both caps.
func StopLossWithTarget(trades []*models.Trade, stopLossPercent, targetPercent float64) Result {
	return Simulate(trades, Rules{StopLossPercent: stopLossPercent, TargetPercent: targetPercent})
}
