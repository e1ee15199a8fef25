package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("all tables exist", func(t *testing.T) {
		expectedTables := []string{
			"trades",
			"pending_executions",
			"holdings",
			"alert_rules",
			"alerts",
			"price_data_daily",
			"signal_snapshots",
		}

		for _, tableName := range expectedTables {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public'
					AND table_name = $1
				)
			`, tableName).Scan(&exists)

			require.NoError(t, err, "failed to check table existence for %s", tableName)
			assert.True(t, exists, "table %s should exist", tableName)
		}
	})

	t.Run("trades table has correct columns", func(t *testing.T) {
		expectedColumns := map[string]string{
			"id":                  "uuid",
			"user_id":             "character varying",
			"symbol":              "character varying",
			"buy_date":            "timestamp with time zone",
			"buy_price":           "numeric",
			"quantity":            "numeric",
			"sell_date":           "timestamp with time zone",
			"sell_price":          "numeric",
			"profit_loss":         "numeric",
			"holding_period_days": "integer",
			"external_trade_id":   "character varying",
		}

		for colName, expectedType := range expectedColumns {
			var actualType string
			err := testDB.GetRawConn().QueryRow(`
				SELECT data_type
				FROM information_schema.columns
				WHERE table_name = 'trades' AND column_name = $1
			`, colName).Scan(&actualType)

			require.NoError(t, err, "column %s should exist in trades table", colName)
			assert.Equal(t, expectedType, actualType, "column %s should have type %s", colName, expectedType)
		}
	})

	t.Run("price_data_daily table has correct columns", func(t *testing.T) {
		expectedColumns := []string{
			"id", "symbol", "date", "open", "high", "low", "close", "volume", "created_at",
		}

		for _, colName := range expectedColumns {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.columns
					WHERE table_name = 'price_data_daily' AND column_name = $1
				)
			`, colName).Scan(&exists)

			require.NoError(t, err)
			assert.True(t, exists, "column %s should exist in price_data_daily table", colName)
		}
	})

	t.Run("partially closed trade is rejected", func(t *testing.T) {
		_, err := testDB.GetRawConn().Exec(`
			INSERT INTO trades (id, user_id, symbol, buy_date, buy_price, quantity, sell_date)
			VALUES ('6f1c2a8e-7d7e-4b8a-9a55-0d4a3f1f2b10', 'u1', 'AAPL', NOW(), 10, 1, NOW())
		`)
		assert.Error(t, err)
	})

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, testDB.RunMigrations())
	})
}
