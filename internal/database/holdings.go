package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/trogers1052/trade-journal/internal/models"
)

// ReplaceHoldings swaps a user's holdings snapshot in one transaction
func (db *DB) ReplaceHoldings(userID string, holdings []*models.Holding) error {
	return db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM holdings WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to clear holdings: %w", err)
		}
		if len(holdings) == 0 {
			return nil
		}

		stmt, err := tx.Prepare(`
			INSERT INTO holdings (user_id, symbol, quantity, average_price, current_price, unrealized_pl, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now()
		for _, h := range holdings {
			_, err := stmt.Exec(userID, strings.ToUpper(h.Symbol), h.Quantity, h.AveragePrice, h.CurrentPrice, h.UnrealizedPL, now)
			if err != nil {
				return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
			}
		}
		return nil
	})
}

// GetHoldings retrieves a user's holdings ordered by symbol
func (db *DB) GetHoldings(userID string) ([]*models.Holding, error) {
	query := `
		SELECT id, user_id, symbol, quantity, average_price, current_price, unrealized_pl, updated_at
		FROM holdings
		WHERE user_id = $1
		ORDER BY symbol
	`
	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		var h models.Holding
		err := rows.Scan(&h.ID, &h.UserID, &h.Symbol, &h.Quantity, &h.AveragePrice, &h.CurrentPrice, &h.UnrealizedPL, &h.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}
	return holdings, nil
}
