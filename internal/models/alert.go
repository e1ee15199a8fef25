package models

import (
	"fmt"
	"strings"
	"time"
)

// Indicator constants
const (
	IndicatorPrice = "PRICE"
	IndicatorRSI   = "RSI"
)

// Comparison constants
const (
	ComparisonGT = "GT"
	ComparisonLT = "LT"
)

// Priority constants
const (
	PriorityHigh = "HIGH"
)

// Condition is the tagged rule variant evaluated against one indicator value.
type Condition interface {
	Indicator() string
	Holds(value float64) bool
	Describe(value float64) string
}

// PriceRule compares the latest price (last close, or live quote when enabled) against a threshold.
type PriceRule struct {
	Comparison string  `json:"comparison"`
	Threshold  float64 `json:"threshold"`
}

func (r PriceRule) Indicator() string { return IndicatorPrice }

func (r PriceRule) Holds(value float64) bool { return compare(r.Comparison, value, r.Threshold) }

func (r PriceRule) Describe(value float64) string {
	return fmt.Sprintf("Price is %.2f", value)
}

// RSIRule compares the 14-period RSI against a threshold.
type RSIRule struct {
	Comparison string  `json:"comparison"`
	Threshold  float64 `json:"threshold"`
}

func (r RSIRule) Indicator() string { return IndicatorRSI }

func (r RSIRule) Holds(value float64) bool { return compare(r.Comparison, value, r.Threshold) }

func (r RSIRule) Describe(value float64) string {
	return fmt.Sprintf("RSI is %.1f", value)
}

func compare(comparison string, value, threshold float64) bool {
	switch comparison {
	case ComparisonGT:
		return value > threshold
	case ComparisonLT:
		return value < threshold
	}
	return false
}

// ParseCondition validates loosely typed rule columns into a Condition.
func ParseCondition(indicator, comparison string, threshold float64) (Condition, error) {
	comparison = strings.ToUpper(strings.TrimSpace(comparison))
	if comparison != ComparisonGT && comparison != ComparisonLT {
		return nil, fmt.Errorf("unsupported comparison %q", comparison)
	}

	switch strings.ToUpper(strings.TrimSpace(indicator)) {
	case IndicatorPrice:
		if threshold <= 0 {
			return nil, fmt.Errorf("price threshold must be positive, got %v", threshold)
		}
		return PriceRule{Comparison: comparison, Threshold: threshold}, nil
	case IndicatorRSI:
		if threshold < 0 || threshold > 100 {
			return nil, fmt.Errorf("rsi threshold must be within [0, 100], got %v", threshold)
		}
		return RSIRule{Comparison: comparison, Threshold: threshold}, nil
	}
	return nil, fmt.Errorf("unsupported indicator %q", indicator)
}

// AlertRule represents a configurable alert condition owned by a user
type AlertRule struct {
	ID        int       `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Condition Condition `json:"condition"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert represents a triggered alert record
type Alert struct {
	ID          int       `json:"id"`
	UserID      string    `json:"user_id"`
	RuleID      int       `json:"rule_id"`
	Symbol      string    `json:"symbol"`
	Message     string    `json:"message"`
	Priority    string    `json:"priority"`
	Value       float64   `json:"value"`
	TriggeredAt time.Time `json:"triggered_at"`
}
