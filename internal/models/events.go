package models

import "time"

// Event types carried on the message bus
const (
	EventExecutionReported = "EXECUTION_REPORTED"
	EventHoldingsSnapshot  = "HOLDINGS_SNAPSHOT"
	EventAlertTriggered    = "ALERT_TRIGGERED"
)

// ExecutionEvent is a broker fill published by an upstream collector.
// Numeric fields arrive as strings to preserve decimal precision.
type ExecutionEvent struct {
	EventType string             `json:"event_type"`
	Source    string             `json:"source"`
	Timestamp string             `json:"timestamp"`
	Data      ExecutionEventData `json:"data"`
}

type ExecutionEventData struct {
	UserID     string  `json:"user_id"`
	TradeID    string  `json:"trade_id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   string  `json:"quantity"`
	Price      string  `json:"price"`
	Segment    string  `json:"segment,omitempty"`
	ExecutedAt *string `json:"executed_at"`
}

// HoldingsEvent is a full holdings snapshot for one user.
type HoldingsEvent struct {
	EventType string            `json:"event_type"`
	Source    string            `json:"source"`
	Timestamp string            `json:"timestamp"`
	Data      HoldingsEventData `json:"data"`
}

type HoldingsEventData struct {
	UserID   string        `json:"user_id"`
	Holdings []HoldingData `json:"holdings"`
}

type HoldingData struct {
	Symbol       string `json:"symbol"`
	Quantity     string `json:"quantity"`
	AveragePrice string `json:"average_price"`
	LastPrice    string `json:"last_price"`
}

// AlertEvent is published when an alert rule triggers
type AlertEvent struct {
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
