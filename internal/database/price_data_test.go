package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/trade-journal/internal/models"
)

func TestPriceDataRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	bar := func(d int, close float64) *models.PriceDataDaily {
		return &models.PriceDataDaily{
			Symbol: "AAPL",
			Date:   day(d),
			Open:   decimal.NewFromFloat(close - 1),
			High:   decimal.NewFromFloat(close + 1),
			Low:    decimal.NewFromFloat(close - 2),
			Close:  decimal.NewFromFloat(close),
			Volume: 55000000,
		}
	}

	t.Run("CreatePriceDataBatch inserts and GetPriceDataRange reads in date order", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreatePriceDataBatch([]*models.PriceDataDaily{bar(17, 179), bar(15, 177), bar(16, 178)}))

		prices, err := testDB.GetPriceDataRange("aapl", day(15), day(16))
		require.NoError(t, err)
		require.Len(t, prices, 2)
		assert.True(t, decimal.NewFromFloat(177).Equal(prices[0].Close))
		assert.True(t, decimal.NewFromFloat(178).Equal(prices[1].Close))
	})

	t.Run("CreatePriceDataBatch upserts on conflict", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreatePriceDataBatch([]*models.PriceDataDaily{bar(15, 177)}))
		updated := bar(15, 181)
		updated.Volume = 60000000
		require.NoError(t, testDB.CreatePriceDataBatch([]*models.PriceDataDaily{updated}))

		latest, err := testDB.GetLatestPriceData("AAPL")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromFloat(181).Equal(latest.Close))
		assert.Equal(t, int64(60000000), latest.Volume)
	})

	t.Run("GetLatestPriceData errors when empty", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetLatestPriceData("NONE")
		assert.Error(t, err)
	})

	t.Run("DeletePriceDataOlderThan", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreatePriceDataBatch([]*models.PriceDataDaily{bar(1, 100), bar(2, 101), bar(20, 110)}))
		n, err := testDB.DeletePriceDataOlderThan(day(10))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestSignalSnapshotRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	testDB.TruncateAll(t)

	rsi := 62.5
	last := 180.25
	snap := &models.SignalSnapshot{
		Symbol: "AAPL",
		Stage: models.StageResult{
			Symbol: "AAPL", Stage: models.StageAdvancing, MA200: 160.5, CurrentPrice: last,
			Slope: models.SlopeRising, Insight: models.StageInsight(models.StageAdvancing),
		},
		Flags: models.FlagResult{
			Symbol:  "AAPL",
			Bullish: []string{"Golden Cross Active (50MA > 200MA)"},
			Summary: models.SummaryBullish,
		},
		RSI14:      &rsi,
		LastClose:  &last,
		Bars:       260,
		CapturedAt: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC),
	}
	require.NoError(t, testDB.SaveSignalSnapshot(snap))

	got, err := testDB.GetLatestSignalSnapshot("aapl")
	require.NoError(t, err)
	assert.Equal(t, models.StageAdvancing, got.Stage.Stage)
	assert.Equal(t, snap.Stage.Insight, got.Stage.Insight)
	assert.Equal(t, snap.Flags.Bullish, got.Flags.Bullish)
	assert.Empty(t, got.Flags.Bearish)
	require.NotNil(t, got.RSI14)
	assert.InDelta(t, rsi, *got.RSI14, 1e-9)
	assert.Equal(t, 260, got.Bars)
}
