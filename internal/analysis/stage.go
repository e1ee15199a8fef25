package analysis

import (
	"fmt"

	"github.com/trogers1052/trade-journal/internal/indicators"
	"github.com/trogers1052/trade-journal/internal/models"
)

// MinStageBars is the 200-period average plus the 5-point slope window.
const MinStageBars = indicators.LongMAPeriod + 5

// SlopeThreshold is the relative MA200 change separating RISING/FALLING from FLAT.
const SlopeThreshold = 0.001

// ClassifyStage computes the Weinstein stage for bars.
func ClassifyStage(symbol string, bars []models.Bar) (models.StageResult, error) {
	return ClassifyStageSet(symbol, indicators.Compute(bars))
}

// ClassifyStageSet classifies from a precomputed indicator set.
func ClassifyStageSet(symbol string, set *indicators.Set) (models.StageResult, error) {
	if set.Len() < MinStageBars {
		return models.UnknownStage(symbol), fmt.Errorf("stage for %s needs %d closes, have %d: %w",
			symbol, MinStageBars, set.Len(), models.ErrInsufficientData)
	}

	ma, _ := indicators.Last(set.SMA200)
	prevMA, _ := indicators.Back(set.SMA200, 5)
	price := set.LastClose

	slope := classifySlope(ma, prevMA)

	var stage int
	switch {
	case price > ma && slope == models.SlopeRising:
		stage = models.StageAdvancing
	case price < ma && slope == models.SlopeFalling:
		stage = models.StageDeclining
	case slope == models.SlopeFlat:
		stage = models.StageBasing
	default:
		stage = models.StageTopping
	}

	return models.StageResult{
		Symbol:       symbol,
		Stage:        stage,
		MA200:        ma,
		CurrentPrice: price,
		Slope:        slope,
		Insight:      models.StageInsight(stage),
	}, nil
}

func classifySlope(current, previous float64) string {
	if previous == 0 {
		return models.SlopeFlat
	}
	change := (current - previous) / previous
	switch {
	case change > SlopeThreshold:
		return models.SlopeRising
	case change < -SlopeThreshold:
		return models.SlopeFalling
	}
	return models.SlopeFlat
}

// StageOrUnknown returns the neutral default instead of an error.
func StageOrUnknown(symbol string, set *indicators.Set) models.StageResult {
	res, err := ClassifyStageSet(symbol, set)
	if err != nil {
		return models.UnknownStage(symbol)
	}
	return res
}
