package analysis

import (
	"fmt"

	"github.com/trogers1052/trade-journal/internal/indicators"
	"github.com/trogers1052/trade-journal/internal/models"
)

// MinFlagBars is the minimum series length for flag evaluation.
const MinFlagBars = 50

// Bullish flag labels
const (
	FlagNearHigh       = "Near 52-Week High (<20%)"
	FlagVolumeSurge    = "Volume Surge (Avg Vol increasing)"
	FlagStage2         = "Stage 2 Confirmed (Price > Rising 200MA)"
	FlagBullishTrend   = "Bullish Trend (50MA > 200MA)"
	FlagStrongMomentum = "Strong Momentum (RSI 50-70)"
)

// Bearish flag labels
const (
	FlagBearishTrend  = "Bearish Trend (50MA < 200MA)"
	FlagOverbought    = "Overbought (RSI > 75)"
	FlagBelow200      = "Below 200 DMA"
	FlagLowVolumeRise = "Price Rising on Low Volume (Weakness)"
	FlagStage4        = "Stage 4 Confirmed (Price < Falling 200MA)"
)

const (
	nearHighPercent     = 20.0
	volumeSurgeRatio    = 1.3
	trendLookback       = 20
	volumeShrinkBars    = 5
	volumeShrinkPercent = -0.05
	momentumLow         = 50.0
	momentumHigh        = 70.0
	overboughtRSI       = 75.0
)

// EvaluateFlags tallies bullish and bearish flags for bars.
func EvaluateFlags(symbol string, bars []models.Bar) models.FlagResult {
	return EvaluateFlagsSet(symbol, indicators.Compute(bars))
}

// EvaluateFlagsSet evaluates flags from a precomputed indicator set. Flags that
// need more history than the set has are omitted.
func EvaluateFlagsSet(symbol string, set *indicators.Set) models.FlagResult {
	if set.Len() < MinFlagBars {
		return models.FlagsUnavailable(symbol, fmt.Errorf("flags for %s need %d bars, have %d: %w",
			symbol, MinFlagBars, set.Len(), models.ErrInsufficientData))
	}

	price := set.LastClose
	bullish := []string{}
	bearish := []string{}

	if set.High250 > 0 && (set.High250-price)/set.High250*100 <= nearHighPercent {
		bullish = append(bullish, FlagNearHigh)
	}

	vol10, ok10 := indicators.Last(set.VolSMA10)
	vol20, ok20 := indicators.Last(set.VolSMA20)
	if ok10 && ok20 && vol20 > 0 && vol10 >= vol20*volumeSurgeRatio {
		bullish = append(bullish, FlagVolumeSurge)
	}

	ma50, ok50 := indicators.Last(set.SMA50)
	ma200, ok200 := indicators.Last(set.SMA200)
	prevMA200, okPrev := indicators.Back(set.SMA200, trendLookback)

	if ok200 && okPrev && price > ma200 && ma200 > prevMA200 {
		bullish = append(bullish, FlagStage2)
	}
	if ok50 && ok200 && ma50 > ma200 {
		bullish = append(bullish, FlagBullishTrend)
	}

	rsi, okRSI := indicators.Last(set.RSI14)
	if okRSI && rsi > momentumLow && rsi <= momentumHigh {
		bullish = append(bullish, FlagStrongMomentum)
	}

	if ok50 && ok200 && ma50 < ma200 {
		bearish = append(bearish, FlagBearishTrend)
	}
	if okRSI && rsi > overboughtRSI {
		bearish = append(bearish, FlagOverbought)
	}
	if ok200 && price < ma200 {
		bearish = append(bearish, FlagBelow200)
	}

	pastClose, okPast := indicators.Back(set.Closes, trendLookback)
	pastVol, okPastVol := indicators.Back(set.VolSMA20, volumeShrinkBars)
	if okPast && ok20 && okPastVol && pastVol > 0 && price > pastClose &&
		(vol20-pastVol)/pastVol <= volumeShrinkPercent {
		bearish = append(bearish, FlagLowVolumeRise)
	}

	if ok200 && okPrev && price < ma200 && ma200 < prevMA200 {
		bearish = append(bearish, FlagStage4)
	}

	return models.FlagResult{
		Symbol:  symbol,
		Bullish: bullish,
		Bearish: bearish,
		Summary: Summarize(len(bullish), len(bearish)),
	}
}

// Summarize derives the overall verdict from flag counts.
func Summarize(bullish, bearish int) string {
	switch {
	case bullish > bearish+1:
		return models.SummaryBullish
	case bearish > bullish+1:
		return models.SummaryBearish
	case bullish > 0 && bearish > 0:
		return models.SummaryMixed
	}
	return models.SummaryNeutral
}
