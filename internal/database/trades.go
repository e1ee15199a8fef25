package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/trade-journal/internal/models"
)

const tradeColumns = `id, user_id, symbol, buy_date, buy_price, quantity,
	sell_date, sell_price, profit_loss, holding_period_days,
	external_trade_id, created_at, updated_at`

// GetLedger retrieves every trade of a user, oldest lot first
func (db *DB) GetLedger(userID string) ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE user_id = $1
		ORDER BY buy_date ASC, created_at ASC`
	return scanTrades(db.conn.Query(query, userID))
}

// GetOpenLots retrieves the user's open lots, oldest first
func (db *DB) GetOpenLots(userID string) ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE user_id = $1 AND sell_date IS NULL
		ORDER BY symbol, buy_date ASC, created_at ASC`
	return scanTrades(db.conn.Query(query, userID))
}

// GetClosedTrades retrieves trades closed within [from, to]. A zero bound is open-ended.
func (db *DB) GetClosedTrades(userID string, from, to time.Time) ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE user_id = $1 AND sell_date IS NOT NULL
		  AND ($2::timestamptz IS NULL OR sell_date >= $2)
		  AND ($3::timestamptz IS NULL OR sell_date <= $3)
		ORDER BY sell_date DESC`
	return scanTrades(db.conn.Query(query, userID, nullTime(from), nullTime(to)))
}

// ApplyLedgerBatch applies matcher mutations in one transaction
func (db *DB) ApplyLedgerBatch(userID string, mutations []models.LedgerMutation) error {
	if len(mutations) == 0 {
		return nil
	}

	return db.WithTx(func(tx *sql.Tx) error {
		insert, err := tx.Prepare(`
			INSERT INTO trades (
				id, user_id, symbol, buy_date, buy_price, quantity,
				sell_date, sell_price, profit_loss, holding_period_days,
				external_trade_id, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer insert.Close()

		update, err := tx.Prepare(`
			UPDATE trades SET
				quantity = $3, sell_date = $4, sell_price = $5, profit_loss = $6,
				holding_period_days = $7, updated_at = $8
			WHERE id = $1 AND user_id = $2
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare update: %w", err)
		}
		defer update.Close()

		now := time.Now()
		for _, m := range mutations {
			t := m.Trade
			updatedAt := t.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = now
			}

			switch m.Kind {
			case models.MutationCreate:
				createdAt := t.CreatedAt
				if createdAt.IsZero() {
					createdAt = now
				}
				_, err := insert.Exec(
					t.ID, userID, t.Symbol, t.BuyDate, t.BuyPrice, t.Quantity,
					t.SellDate, t.SellPrice, t.ProfitLoss, t.HoldingPeriodDays,
					t.ExternalTradeID, createdAt, updatedAt,
				)
				if err != nil {
					return fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
				}

			case models.MutationClose, models.MutationReduce:
				result, err := update.Exec(
					t.ID, userID, t.Quantity, t.SellDate, t.SellPrice, t.ProfitLoss,
					t.HoldingPeriodDays, updatedAt,
				)
				if err != nil {
					return fmt.Errorf("failed to update trade %s: %w", t.ID, err)
				}
				rowsAffected, _ := result.RowsAffected()
				if rowsAffected == 0 {
					return fmt.Errorf("trade not found: %s", t.ID)
				}

			default:
				return fmt.Errorf("unknown ledger mutation %q", m.Kind)
			}
		}
		return nil
	})
}

// ResetLedger removes all trades of a user
func (db *DB) ResetLedger(userID string) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM trades WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset ledger for %s: %w", userID, err)
	}
	return result.RowsAffected()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func scanTrades(rows *sql.Rows, err error) ([]*models.Trade, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		var t models.Trade
		var sellDate sql.NullTime
		var sellPrice, profitLoss decimal.NullDecimal
		var holdingDays sql.NullInt64

		err := rows.Scan(
			&t.ID, &t.UserID, &t.Symbol, &t.BuyDate, &t.BuyPrice, &t.Quantity,
			&sellDate, &sellPrice, &profitLoss, &holdingDays,
			&t.ExternalTradeID, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		if sellDate.Valid {
			t.SellDate = &sellDate.Time
		}
		if sellPrice.Valid {
			t.SellPrice = &sellPrice.Decimal
		}
		if profitLoss.Valid {
			t.ProfitLoss = &profitLoss.Decimal
		}
		if holdingDays.Valid {
			d := int(holdingDays.Int64)
			t.HoldingPeriodDays = &d
		}

		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}

	return trades, nil
}
