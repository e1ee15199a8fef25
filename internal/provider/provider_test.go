package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/models"
)

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func sampleBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = models.Bar{Date: day(i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}
	return bars
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic()
	s.Set("infy", sampleBars(10))

	t.Run("filters by range", func(t *testing.T) {
		bars, err := s.DailySeries(ctx, "INFY", day(2), day(4))
		require.NoError(t, err)
		require.Len(t, bars, 3)
		assert.Equal(t, day(2), bars[0].Date)
	})

	t.Run("quote is last close", func(t *testing.T) {
		q, err := s.LiveQuote(ctx, "INFY")
		require.NoError(t, err)
		assert.Equal(t, 109.0, q.Price)
	})

	t.Run("unknown symbol is unavailable", func(t *testing.T) {
		_, err := s.DailySeries(ctx, "NOPE", time.Time{}, time.Time{})
		assert.ErrorIs(t, err, models.ErrDataUnavailable)
	})

	t.Run("injected failure", func(t *testing.T) {
		s.Fail("TCS", errors.New("boom"))
		_, err := s.LiveQuote(ctx, "TCS")
		assert.ErrorIs(t, err, models.ErrDataUnavailable)
	})

	t.Run("counts calls", func(t *testing.T) {
		before := s.Calls("INFY")
		_, _ = s.LiveQuote(ctx, "INFY")
		assert.Equal(t, before+1, s.Calls("INFY"))
	})
}

func TestNormalizing(t *testing.T) {
	ctx := context.Background()
	s := NewStatic()
	s.Set("RELIANCE.NS", sampleBars(3))
	n := NewNormalizing(s, ".NS")

	assert.Equal(t, "RELIANCE.NS", n.Normalize(" reliance "))
	assert.Equal(t, "^NSEI", n.Normalize("^NSEI"))
	assert.Equal(t, "TCS.BO", n.Normalize("TCS.BO"))

	bars, err := n.DailySeries(ctx, "RELIANCE", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	q, err := n.LiveQuote(ctx, "RELIANCE")
	require.NoError(t, err)
	assert.Equal(t, "RELIANCE", q.Symbol)
}

type fakeArchive struct {
	rows    []*models.PriceDataDaily
	saved   []*models.PriceDataDaily
	saveErr error
}

func (f *fakeArchive) GetPriceDataRange(symbol string, start, end time.Time) ([]*models.PriceDataDaily, error) {
	return f.rows, nil
}

func (f *fakeArchive) CreatePriceDataBatch(prices []*models.PriceDataDaily) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, prices...)
	return nil
}

func TestArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("writes through on success", func(t *testing.T) {
		s := NewStatic()
		s.Set("INFY", sampleBars(5))
		store := &fakeArchive{}
		a := NewArchive(s, store, zap.NewNop())

		bars, err := a.DailySeries(ctx, "INFY", time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Len(t, bars, 5)
		require.Len(t, store.saved, 5)
		assert.Equal(t, "INFY", store.saved[0].Symbol)
	})

	t.Run("archive write failure does not fail the read", func(t *testing.T) {
		s := NewStatic()
		s.Set("INFY", sampleBars(5))
		a := NewArchive(s, &fakeArchive{saveErr: errors.New("disk full")}, zap.NewNop())

		bars, err := a.DailySeries(ctx, "INFY", time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Len(t, bars, 5)
	})

	t.Run("falls back to archived rows", func(t *testing.T) {
		s := NewStatic()
		s.Fail("INFY", errors.New("rate limited"))
		store := &fakeArchive{}
		for _, b := range sampleBars(4) {
			store.rows = append(store.rows, models.PriceDataFromBar("INFY", b))
		}
		a := NewArchive(s, store, zap.NewNop())

		bars, err := a.DailySeries(ctx, "INFY", day(0), day(10))
		require.NoError(t, err)
		require.Len(t, bars, 4)
		assert.InDelta(t, 103.0, bars[3].Close, 1e-9)

		q, err := a.LiveQuote(ctx, "INFY")
		require.NoError(t, err)
		assert.InDelta(t, 103.0, q.Price, 1e-9)
	})

	t.Run("empty archive returns upstream error", func(t *testing.T) {
		s := NewStatic()
		a := NewArchive(s, &fakeArchive{}, zap.NewNop())
		_, err := a.DailySeries(ctx, "NOPE", time.Time{}, time.Time{})
		assert.ErrorIs(t, err, models.ErrDataUnavailable)
	})
}
