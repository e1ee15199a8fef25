package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/trogers1052/trade-journal/internal/models"
)

const priceColumns = `id, symbol, date, open, high, low, close, volume, created_at`

// CreatePriceDataBatch upserts daily bars in one transaction
func (db *DB) CreatePriceDataBatch(prices []*models.PriceDataDaily) error {
	if len(prices) == 0 {
		return nil
	}

	return db.WithTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO price_data_daily (symbol, date, open, high, low, close, volume, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, date) DO UPDATE SET
				open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				volume = EXCLUDED.volume
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now()
		for _, p := range prices {
			_, err := stmt.Exec(strings.ToUpper(p.Symbol), p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, now)
			if err != nil {
				return fmt.Errorf("failed to insert price data for %s: %w", p.Symbol, err)
			}
		}
		return nil
	})
}

// GetPriceDataRange retrieves price data for a symbol within a date range
func (db *DB) GetPriceDataRange(symbol string, startDate, endDate time.Time) ([]*models.PriceDataDaily, error) {
	query := `SELECT ` + priceColumns + `
		FROM price_data_daily
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC`
	return scanPriceData(db.conn.Query(query, strings.ToUpper(symbol), startDate, endDate))
}

// GetLatestPriceData retrieves the most recent price data for a symbol
func (db *DB) GetLatestPriceData(symbol string) (*models.PriceDataDaily, error) {
	query := `SELECT ` + priceColumns + `
		FROM price_data_daily
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT 1`
	prices, err := scanPriceData(db.conn.Query(query, strings.ToUpper(symbol)))
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no price data found for %s", symbol)
	}
	return prices[0], nil
}

// DeletePriceDataOlderThan removes price data older than a specified date
func (db *DB) DeletePriceDataOlderThan(date time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM price_data_daily WHERE date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price data: %w", err)
	}
	return result.RowsAffected()
}

func scanPriceData(rows *sql.Rows, err error) ([]*models.PriceDataDaily, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to get price data: %w", err)
	}
	defer rows.Close()

	var prices []*models.PriceDataDaily
	for rows.Next() {
		var p models.PriceDataDaily
		err := rows.Scan(&p.ID, &p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price data: %w", err)
		}
		prices = append(prices, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price data: %w", err)
	}
	return prices, nil
}
