// Package indicators computes the moving averages, RSI and volume series shared
// by stage classification, flag evaluation and alert checks.
package indicators

import (
	"fmt"

	"github.com/trogers1052/trade-journal/internal/models"
)

// Standard periods
const (
	ShortMAPeriod    = 50
	LongMAPeriod     = 200
	RSIPeriod        = 14
	FastVolumePeriod = 10
	SlowVolumePeriod = 20
	HighLookback     = 250
)

// SMA returns the simple moving average series. The result has
// len(values)-period+1 entries, the first covering values[0:period].
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// RSI returns Wilder's relative strength index series with len(values)-period entries.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	out := make([]float64, 0, len(values)-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		var g, l float64
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Highest returns the maximum of the trailing lookback values.
func Highest(values []float64, lookback int) float64 {
	start := 0
	if lookback > 0 && len(values) > lookback {
		start = len(values) - lookback
	}
	var max float64
	for i, v := range values[start:] {
		if i == 0 || v > max {
			max = v
		}
	}
	return max
}

// Set holds every indicator series derived from one bar series.
type Set struct {
	Closes  []float64
	Highs   []float64
	Lows    []float64
	Volumes []float64

	SMA50     []float64
	SMA200    []float64
	RSI14     []float64
	VolSMA10  []float64
	VolSMA20  []float64
	High250   float64
	LastClose float64
}

// Compute derives all indicator series from bars in a single pass per series.
func Compute(bars []models.Bar) *Set {
	s := &Set{
		Closes:  make([]float64, len(bars)),
		Highs:   make([]float64, len(bars)),
		Lows:    make([]float64, len(bars)),
		Volumes: make([]float64, len(bars)),
	}
	for i, b := range bars {
		s.Closes[i] = b.Close
		s.Highs[i] = b.High
		s.Lows[i] = b.Low
		s.Volumes[i] = b.Volume
	}

	s.SMA50 = SMA(s.Closes, ShortMAPeriod)
	s.SMA200 = SMA(s.Closes, LongMAPeriod)
	s.RSI14 = RSI(s.Closes, RSIPeriod)
	s.VolSMA10 = SMA(s.Volumes, FastVolumePeriod)
	s.VolSMA20 = SMA(s.Volumes, SlowVolumePeriod)
	if len(bars) > 0 {
		s.High250 = Highest(s.Highs, HighLookback)
		s.LastClose = s.Closes[len(s.Closes)-1]
	}
	return s
}

// Len is the number of bars the set was built from.
func (s *Set) Len() int { return len(s.Closes) }

// Last returns the last element of series, or false when empty.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// Back returns series[len-n], the value n-1 steps before the last, or false when too short.
func Back(series []float64, n int) (float64, bool) {
	if n <= 0 || len(series) < n {
		return 0, false
	}
	return series[len(series)-n], true
}

// LatestRSI returns the last 14-period RSI value.
func (s *Set) LatestRSI() (float64, error) {
	v, ok := Last(s.RSI14)
	if !ok {
		return 0, fmt.Errorf("rsi needs more than %d closes, have %d: %w", RSIPeriod, s.Len(), models.ErrInsufficientData)
	}
	return v, nil
}
