package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/trogers1052/trade-journal/internal/models"
)

// CreatePendingExecution inserts a raw execution awaiting import
func (db *DB) CreatePendingExecution(e *models.Execution) error {
	query := `
		INSERT INTO pending_executions (
			user_id, symbol, side, quantity, price, executed_at,
			external_trade_id, segment, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := db.conn.QueryRow(query,
		e.UserID, strings.ToUpper(e.Symbol), e.Side, e.Quantity, e.Price, e.ExecutedAt,
		e.ExternalTradeID, e.Segment, e.Source, time.Now(),
	).Scan(&e.ID)

	if err != nil {
		return fmt.Errorf("failed to create pending execution: %w", err)
	}
	return nil
}

// PendingExecutionExists checks if an execution with the given external id and source was already stored
func (db *DB) PendingExecutionExists(externalID, source string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	query := `SELECT EXISTS(SELECT 1 FROM pending_executions WHERE external_trade_id = $1 AND source = $2)`
	var exists bool
	if err := db.conn.QueryRow(query, externalID, source).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending execution existence: %w", err)
	}
	return exists, nil
}

// GetPendingExecutions retrieves unprocessed executions for a user in execution order
func (db *DB) GetPendingExecutions(userID string) ([]*models.Execution, error) {
	query := `
		SELECT id, user_id, symbol, side, quantity, price, executed_at,
		       external_trade_id, segment, source
		FROM pending_executions
		WHERE user_id = $1 AND processed_at IS NULL
		ORDER BY executed_at ASC, id ASC
	`
	return scanExecutions(db.conn.Query(query, userID))
}

// MarkExecutionsProcessed stamps executions as consumed by an import
func (db *DB) MarkExecutionsProcessed(ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE pending_executions SET processed_at = $2 WHERE id = ANY($1)`
	if _, err := db.conn.Exec(query, pq.Array(ids), time.Now()); err != nil {
		return fmt.Errorf("failed to mark executions processed: %w", err)
	}
	return nil
}

func scanExecutions(rows *sql.Rows, err error) ([]*models.Execution, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query pending executions: %w", err)
	}
	defer rows.Close()

	var execs []*models.Execution
	for rows.Next() {
		var e models.Execution
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Symbol, &e.Side, &e.Quantity, &e.Price, &e.ExecutedAt,
			&e.ExternalTradeID, &e.Segment, &e.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending execution: %w", err)
		}
		execs = append(execs, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending executions: %w", err)
	}
	return execs, nil
}
