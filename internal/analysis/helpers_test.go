package analysis

import (
	"time"

	"github.com/trogers1052/trade-journal/internal/models"
)

var seriesStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func barsFromCloses(closes []float64, volume float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Date:   seriesStart.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: volume,
		}
	}
	return bars
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func constant(n int, v float64) []float64 {
	return linear(n, v, 0)
}
