package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/models"
)

// ArchiveStore persists daily bars. Implemented by database.DB.
type ArchiveStore interface {
	GetPriceDataRange(symbol string, startDate, endDate time.Time) ([]*models.PriceDataDaily, error)
	CreatePriceDataBatch(prices []*models.PriceDataDaily) error
}

// Archive writes every fetched series through to the price_data_daily table and
// serves archived bars when the upstream provider fails.
type Archive struct {
	next   PriceSeriesProvider
	store  ArchiveStore
	logger *zap.Logger
}

func NewArchive(next PriceSeriesProvider, store ArchiveStore, logger *zap.Logger) *Archive {
	return &Archive{next: next, store: store, logger: logger.Named("archive")}
}

func (a *Archive) DailySeries(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	bars, err := a.next.DailySeries(ctx, symbol, start, end)
	if err == nil {
		rows := make([]*models.PriceDataDaily, len(bars))
		for i, b := range bars {
			rows[i] = models.PriceDataFromBar(symbol, b)
		}
		if storeErr := a.store.CreatePriceDataBatch(rows); storeErr != nil {
			a.logger.Warn("failed to archive bars", zap.String("symbol", symbol), zap.Error(storeErr))
		}
		return bars, nil
	}

	if !errors.Is(err, models.ErrDataUnavailable) {
		return nil, err
	}

	rows, archErr := a.store.GetPriceDataRange(symbol, start, end)
	if archErr != nil || len(rows) == 0 {
		return nil, err
	}

	a.logger.Info("serving archived bars", zap.String("symbol", symbol), zap.Int("bars", len(rows)), zap.Error(err))
	out := make([]models.Bar, len(rows))
	for i, r := range rows {
		out[i] = r.ToBar()
	}
	return out, nil
}

func (a *Archive) LiveQuote(ctx context.Context, symbol string) (models.Quote, error) {
	q, err := a.next.LiveQuote(ctx, symbol)
	if err == nil {
		return q, nil
	}

	rows, archErr := a.store.GetPriceDataRange(symbol, time.Now().AddDate(0, 0, -10), time.Now())
	if archErr != nil || len(rows) == 0 {
		return q, err
	}
	last := rows[len(rows)-1]
	return models.Quote{Symbol: symbol, Price: last.Close.InexactFloat64(), AsOf: last.Date}, nil
}
