package models

import "time"

// Stage values. StageUnknown is the neutral default when a series is too short.
const (
	StageUnknown   = 0
	StageBasing    = 1
	StageAdvancing = 2
	StageTopping   = 3
	StageDeclining = 4
)

// Slope classifications for the 200-period moving average
const (
	SlopeRising  = "RISING"
	SlopeFalling = "FALLING"
	SlopeFlat    = "FLAT"
)

// Flag summaries
const (
	SummaryBullish = "Bullish"
	SummaryBearish = "Bearish"
	SummaryMixed   = "Mixed"
	SummaryNeutral = "Neutral"
)

// FlagDataError is the single bearish flag emitted when flags cannot be computed.
const FlagDataError = "Data Error - Could not calculate"

var stageInsights = map[int]string{
	StageBasing:    "Basing Phase. Price consolidating near moving average.",
	StageAdvancing: "Advancing Phase. Price above rising 200-day MA.",
	StageTopping:   "Topping Phase. Increased volatility detected. Review your rules.",
	StageDeclining: "Declining Phase. Price below falling 200-day MA. Review your position.",
}

// StageInsight returns the human-readable description of a stage.
func StageInsight(stage int) string {
	if s, ok := stageInsights[stage]; ok {
		return s
	}
	return "Insufficient data or error."
}

// StageResult is a Weinstein stage classification for one symbol
type StageResult struct {
	Symbol       string  `json:"symbol"`
	Stage        int     `json:"stage"`
	MA200        float64 `json:"ma200"`
	CurrentPrice float64 `json:"current_price"`
	Slope        string  `json:"slope"`
	Insight      string  `json:"insight"`
}

// UnknownStage is the neutral placeholder used when classification fails.
func UnknownStage(symbol string) StageResult {
	return StageResult{
		Symbol:  symbol,
		Stage:   StageUnknown,
		Slope:   SlopeFlat,
		Insight: StageInsight(StageUnknown),
	}
}

// FlagResult holds the bullish and bearish flags raised for a symbol
type FlagResult struct {
	Symbol  string   `json:"symbol"`
	Bullish []string `json:"green_flags"`
	Bearish []string `json:"red_flags"`
	Summary string   `json:"summary"`
	Error   string   `json:"error,omitempty"`
}

// FlagsUnavailable is the failure placeholder: no bullish flags and a data-error flag.
func FlagsUnavailable(symbol string, err error) FlagResult {
	res := FlagResult{
		Symbol:  symbol,
		Bullish: []string{},
		Bearish: []string{FlagDataError},
		Summary: SummaryNeutral,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// SignalSnapshot is the combined per-symbol analysis at a point in time
type SignalSnapshot struct {
	Symbol     string      `json:"symbol"`
	Stage      StageResult `json:"stage"`
	Flags      FlagResult  `json:"flags"`
	RSI14      *float64    `json:"rsi_14,omitempty"`
	LastClose  *float64    `json:"last_close,omitempty"`
	Bars       int         `json:"bars"`
	CapturedAt time.Time   `json:"captured_at"`
}
