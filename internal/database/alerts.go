package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/trogers1052/trade-journal/internal/models"
)

// CreateAlertRule inserts a new alert rule
func (db *DB) CreateAlertRule(a *models.AlertRule) error {
	indicator, comparison, threshold, err := conditionColumns(a.Condition)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alert_rules (
			user_id, name, symbol, indicator, comparison, threshold, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	now := time.Now()
	err = db.conn.QueryRow(query,
		a.UserID, a.Name, strings.ToUpper(a.Symbol), indicator, comparison, threshold, a.Active, now,
	).Scan(&a.ID)

	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	a.CreatedAt = now
	return nil
}

// GetActiveAlertRules retrieves all active alert rules. A rule whose stored
// condition no longer parses is returned with a nil Condition.
func (db *DB) GetActiveAlertRules() ([]*models.AlertRule, error) {
	query := `
		SELECT id, user_id, name, symbol, indicator, comparison, threshold, active, created_at
		FROM alert_rules
		WHERE active = true
		ORDER BY symbol, id
	`
	return scanAlertRules(db.conn.Query(query))
}

// GetAlertRulesByUser retrieves every rule owned by a user
func (db *DB) GetAlertRulesByUser(userID string) ([]*models.AlertRule, error) {
	query := `
		SELECT id, user_id, name, symbol, indicator, comparison, threshold, active, created_at
		FROM alert_rules
		WHERE user_id = $1
		ORDER BY id
	`
	return scanAlertRules(db.conn.Query(query, userID))
}

// SetAlertRuleActive enables or disables a rule
func (db *DB) SetAlertRuleActive(id int, active bool) error {
	result, err := db.conn.Exec(`UPDATE alert_rules SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("alert rule not found: %d", id)
	}
	return nil
}

// DeleteAlertRule removes an alert rule by ID
func (db *DB) DeleteAlertRule(id int) error {
	result, err := db.conn.Exec(`DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert rule: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("alert rule not found: %d", id)
	}
	return nil
}

func scanAlertRules(rows *sql.Rows, err error) ([]*models.AlertRule, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		var a models.AlertRule
		var indicator, comparison string
		var threshold float64

		err := rows.Scan(
			&a.ID, &a.UserID, &a.Name, &a.Symbol, &indicator, &comparison, &threshold, &a.Active, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}

		if cond, err := models.ParseCondition(indicator, comparison, threshold); err == nil {
			a.Condition = cond
		}
		rules = append(rules, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rules: %w", err)
	}

	return rules, nil
}

func conditionColumns(c models.Condition) (string, string, float64, error) {
	switch r := c.(type) {
	case models.PriceRule:
		return models.IndicatorPrice, r.Comparison, r.Threshold, nil
	case models.RSIRule:
		return models.IndicatorRSI, r.Comparison, r.Threshold, nil
	}
	return "", "", 0, fmt.Errorf("unsupported alert condition %T", c)
}

// --- Alerts ---

// CreateAlert records a triggered alert
func (db *DB) CreateAlert(a *models.Alert) error {
	query := `
		INSERT INTO alerts (user_id, rule_id, symbol, message, priority, value, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var ruleID interface{}
	if a.RuleID > 0 {
		ruleID = a.RuleID
	}
	triggeredAt := a.TriggeredAt
	if triggeredAt.IsZero() {
		triggeredAt = time.Now()
	}

	err := db.conn.QueryRow(query,
		a.UserID, ruleID, a.Symbol, a.Message, a.Priority, a.Value, triggeredAt,
	).Scan(&a.ID)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	a.TriggeredAt = triggeredAt
	return nil
}

// GetAlertsByUser retrieves a user's most recent alerts
func (db *DB) GetAlertsByUser(userID string, limit int) ([]*models.Alert, error) {
	query := `
		SELECT id, user_id, rule_id, symbol, message, priority, value, triggered_at
		FROM alerts
		WHERE user_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`
	rows, err := db.conn.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		var ruleID sql.NullInt64

		err := rows.Scan(&a.ID, &a.UserID, &ruleID, &a.Symbol, &a.Message, &a.Priority, &a.Value, &a.TriggeredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if ruleID.Valid {
			a.RuleID = int(ruleID.Int64)
		}
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}
