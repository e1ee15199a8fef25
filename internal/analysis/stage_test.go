package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/trade-journal/internal/indicators"
	"github.com/trogers1052/trade-journal/internal/models"
)

func TestClassifyStage(t *testing.T) {
	t.Run("price above rising MA is stage 2", func(t *testing.T) {
		res, err := ClassifyStage("INFY", barsFromCloses(linear(260, 100, 1), 1000))
		require.NoError(t, err)
		assert.Equal(t, models.StageAdvancing, res.Stage)
		assert.Equal(t, models.SlopeRising, res.Slope)
		assert.Greater(t, res.CurrentPrice, res.MA200)
		assert.Equal(t, "Advancing Phase. Price above rising 200-day MA.", res.Insight)
	})

	t.Run("price below falling MA is stage 4", func(t *testing.T) {
		res, err := ClassifyStage("INFY", barsFromCloses(linear(260, 400, -1), 1000))
		require.NoError(t, err)
		assert.Equal(t, models.StageDeclining, res.Stage)
		assert.Equal(t, models.SlopeFalling, res.Slope)
	})

	t.Run("flat MA is stage 1 with price above", func(t *testing.T) {
		closes := constant(260, 100)
		closes[len(closes)-1] = 100.1
		res, err := ClassifyStage("INFY", barsFromCloses(closes, 1000))
		require.NoError(t, err)
		assert.Greater(t, res.CurrentPrice, res.MA200)
		assert.Equal(t, models.SlopeFlat, res.Slope)
		assert.Equal(t, models.StageBasing, res.Stage)
	})

	t.Run("flat MA is stage 1 with price below", func(t *testing.T) {
		closes := constant(260, 100)
		closes[len(closes)-1] = 99.9
		res, err := ClassifyStage("INFY", barsFromCloses(closes, 1000))
		require.NoError(t, err)
		assert.Less(t, res.CurrentPrice, res.MA200)
		assert.Equal(t, models.StageBasing, res.Stage)
	})

	t.Run("price below rising MA is stage 3", func(t *testing.T) {
		closes := linear(260, 100, 1)
		closes[len(closes)-1] = 200
		res, err := ClassifyStage("INFY", barsFromCloses(closes, 1000))
		require.NoError(t, err)
		assert.Equal(t, models.SlopeRising, res.Slope)
		assert.Less(t, res.CurrentPrice, res.MA200)
		assert.Equal(t, models.StageTopping, res.Stage)
	})

	t.Run("exactly 205 closes is enough", func(t *testing.T) {
		_, err := ClassifyStage("INFY", barsFromCloses(linear(205, 100, 1), 1000))
		require.NoError(t, err)
	})

	t.Run("204 closes is insufficient", func(t *testing.T) {
		res, err := ClassifyStage("INFY", barsFromCloses(linear(204, 100, 1), 1000))
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrInsufficientData)
		assert.Equal(t, models.StageUnknown, res.Stage)
		assert.Equal(t, "Insufficient data or error.", res.Insight)
	})
}

func TestStageOrUnknown(t *testing.T) {
	res := StageOrUnknown("TCS", indicators.Compute(barsFromCloses(linear(30, 100, 1), 1000)))
	assert.Equal(t, models.UnknownStage("TCS"), res)
}

func TestClassifySlope(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     string
	}{
		{"above threshold", 100.2, 100, models.SlopeRising},
		{"below negative threshold", 99.8, 100, models.SlopeFalling},
		{"inside band", 100.05, 100, models.SlopeFlat},
		{"zero previous", 10, 0, models.SlopeFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySlope(tt.current, tt.previous))
		})
	}
}
