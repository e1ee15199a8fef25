package simulator

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/provider"
	"github.com/trogers1052/trade-journal/internal/telemetry"
)

// PathSimulator replays the daily price path between buy and sell.
type PathSimulator struct {
	provider    provider.PriceSeriesProvider
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
}

func NewPathSimulator(p provider.PriceSeriesProvider, timeout time.Duration, concurrency int, logger *zap.Logger) *PathSimulator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &PathSimulator{
		provider:    p,
		timeout:     timeout,
		concurrency: concurrency,
		logger:      logger.Named("simulator"),
	}
}

// StopLossPath exits each trade on the first day its low reaches
// buy*(1-stop/100). Trades without a price path use the ledger estimate.
func (s *PathSimulator) StopLossPath(ctx context.Context, trades []*models.Trade, stopLossPercent float64) Result {
	ctx, span := telemetry.StartSpan(ctx, "simulator.stop_loss_path", attribute.Float64("stop_loss_percent", stopLossPercent))
	defer span.End()

	return s.replay(ctx, trades, stopLossPercent, func(t *models.Trade, bars []models.Bar) outcome {
		buyPrice := t.BuyPrice.InexactFloat64()
		level := buyPrice * (1 - stopLossPercent/100)
		for _, b := range bars {
			if b.Low <= level {
				fill := exitFill(b, level)
				date := b.Date
				return outcome{
					percent:  (fill - buyPrice) / buyPrice * 100,
					reason:   fmt.Sprintf("Stop hit on %s at %.2f", date.Format("2006-01-02"), fill),
					exitDate: &date,
				}
			}
		}
		return outcome{percent: t.ReturnPercent(), reason: "Stop not triggered"}
	})
}

// TrailingStopPath keeps a running peak from the buy price; the stop sits
// trailPercent below the peak and is checked before each day's new high.
func (s *PathSimulator) TrailingStopPath(ctx context.Context, trades []*models.Trade, trailPercent float64) Result {
	ctx, span := telemetry.StartSpan(ctx, "simulator.trailing_stop_path", attribute.Float64("trail_percent", trailPercent))
	defer span.End()

	return s.replay(ctx, trades, trailPercent, func(t *models.Trade, bars []models.Bar) outcome {
		buyPrice := t.BuyPrice.InexactFloat64()
		peak := buyPrice
		for _, b := range bars {
			level := peak * (1 - trailPercent/100)
			if b.Low <= level {
				fill := exitFill(b, level)
				date := b.Date
				return outcome{
					percent:  (fill - buyPrice) / buyPrice * 100,
					reason:   fmt.Sprintf("Trailing stop (-%v%% from peak %.0f)", trailPercent, peak),
					exitDate: &date,
				}
			}
			peak = math.Max(peak, b.High)
		}
		return outcome{percent: t.ReturnPercent(), reason: "Trailing stop not triggered"}
	})
}

// exitFill is the stop level, or the open when the day gapped below it.
func exitFill(b models.Bar, level float64) float64 {
	if b.Open > 0 && b.Open < level {
		return b.Open
	}
	return level
}

func (s *PathSimulator) replay(ctx context.Context, trades []*models.Trade, stopPercent float64, walk func(*models.Trade, []models.Bar) outcome) Result {
	closed := models.ClosedTrades(trades)
	fallbackRules := Rules{StopLossPercent: stopPercent}

	// A non-positive stop disables the rule, as in the ledger modes.
	if !fallbackRules.hasStop() {
		return aggregate(closed, func(_ int, t *models.Trade) outcome {
			return outcome{percent: t.ReturnPercent(), reason: "No stop configured"}
		})
	}

	outcomes := make([]outcome, len(closed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, t := range closed {
		i, t := i, t
		g.Go(func() error {
			bars, err := s.path(gctx, t)
			if err != nil {
				s.logger.Warn("price path unavailable, using ledger estimate",
					zap.String("symbol", t.Symbol), zap.Error(err))
				out := ledgerOutcome(t.ReturnPercent(), fallbackRules)
				out.reason = "Data unavailable, ledger estimate: " + out.reason
				out.fallback = true
				outcomes[i] = out
				return nil
			}
			outcomes[i] = walk(t, bars)
			return nil
		})
	}
	_ = g.Wait()

	return aggregate(closed, func(i int, _ *models.Trade) outcome { return outcomes[i] })
}

func (s *PathSimulator) path(ctx context.Context, t *models.Trade) ([]models.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	bars, err := s.provider.DailySeries(ctx, t.Symbol, t.BuyDate, *t.SellDate)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s between %s and %s: %w",
			t.Symbol, t.BuyDate.Format("2006-01-02"), t.SellDate.Format("2006-01-02"), models.ErrDataUnavailable)
	}
	return bars, nil
}
