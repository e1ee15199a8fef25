package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trogers1052/trade-journal/internal/models"
)

// SaveSignalSnapshot stores one analysis snapshot
func (db *DB) SaveSignalSnapshot(s *models.SignalSnapshot) error {
	green, err := json.Marshal(nonNil(s.Flags.Bullish))
	if err != nil {
		return fmt.Errorf("failed to encode green flags: %w", err)
	}
	red, err := json.Marshal(nonNil(s.Flags.Bearish))
	if err != nil {
		return fmt.Errorf("failed to encode red flags: %w", err)
	}

	query := `
		INSERT INTO signal_snapshots (
			symbol, stage, slope, ma200, last_close, rsi_14, summary,
			green_flags, red_flags, bars, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = db.conn.Exec(query,
		strings.ToUpper(s.Symbol), s.Stage.Stage, s.Stage.Slope, s.Stage.MA200, s.LastClose, s.RSI14,
		s.Flags.Summary, string(green), string(red), s.Bars, s.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save signal snapshot for %s: %w", s.Symbol, err)
	}
	return nil
}

// GetLatestSignalSnapshot retrieves the newest stored snapshot for a symbol
func (db *DB) GetLatestSignalSnapshot(symbol string) (*models.SignalSnapshot, error) {
	query := `
		SELECT symbol, stage, slope, ma200, last_close, rsi_14, summary,
		       green_flags, red_flags, bars, captured_at
		FROM signal_snapshots
		WHERE symbol = $1
		ORDER BY captured_at DESC
		LIMIT 1
	`
	var s models.SignalSnapshot
	var ma200, lastClose, rsi sql.NullFloat64
	var green, red []byte

	err := db.conn.QueryRow(query, strings.ToUpper(symbol)).Scan(
		&s.Symbol, &s.Stage.Stage, &s.Stage.Slope, &ma200, &lastClose, &rsi, &s.Flags.Summary,
		&green, &red, &s.Bars, &s.CapturedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no signal snapshot for %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal snapshot: %w", err)
	}

	s.Stage.Symbol = s.Symbol
	s.Stage.Insight = models.StageInsight(s.Stage.Stage)
	s.Flags.Symbol = s.Symbol
	if ma200.Valid {
		s.Stage.MA200 = ma200.Float64
	}
	if lastClose.Valid {
		v := lastClose.Float64
		s.LastClose = &v
		s.Stage.CurrentPrice = v
	}
	if rsi.Valid {
		v := rsi.Float64
		s.RSI14 = &v
	}
	if err := json.Unmarshal(green, &s.Flags.Bullish); err != nil {
		return nil, fmt.Errorf("failed to decode green flags: %w", err)
	}
	if err := json.Unmarshal(red, &s.Flags.Bearish); err != nil {
		return nil, fmt.Errorf("failed to decode red flags: %w", err)
	}
	return &s, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
