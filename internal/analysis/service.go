// Package analysis classifies market stage and evaluates bullish/bearish flags
// from daily price series.
package analysis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/trade-journal/internal/indicators"
	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/provider"
	"github.com/trogers1052/trade-journal/internal/telemetry"
)

// SnapshotRecorder persists computed snapshots. Implemented by database.DB.
type SnapshotRecorder interface {
	SaveSignalSnapshot(s *models.SignalSnapshot) error
}

// Config controls series fetching.
type Config struct {
	LookbackDays int
	FetchTimeout time.Duration
	Concurrency  int
}

// Service fetches series and runs stage and flag analysis on a shared indicator set.
type Service struct {
	provider provider.PriceSeriesProvider
	recorder SnapshotRecorder
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(p provider.PriceSeriesProvider, cfg Config, logger *zap.Logger) *Service {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 400
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Service{
		provider: p,
		cfg:      cfg,
		logger:   logger.Named("analysis"),
		now:      time.Now,
	}
}

// SetRecorder enables snapshot persistence.
func (s *Service) SetRecorder(r SnapshotRecorder) {
	s.recorder = r
}

// Indicators fetches the lookback window for symbol and computes its indicator set.
func (s *Service) Indicators(ctx context.Context, symbol string) (*indicators.Set, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	end := s.now()
	start := end.AddDate(0, 0, -s.cfg.LookbackDays)
	bars, err := s.provider.DailySeries(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series for %s: %w", symbol, err)
	}
	return indicators.Compute(bars), nil
}

// Stage returns the stage for symbol, or the neutral default on any failure.
func (s *Service) Stage(ctx context.Context, symbol string) models.StageResult {
	set, err := s.Indicators(ctx, symbol)
	if err != nil {
		s.logger.Warn("stage unavailable", zap.String("symbol", symbol), zap.Error(err))
		return models.UnknownStage(symbol)
	}
	return StageOrUnknown(symbol, set)
}

// Flags returns flags for symbol, or the data-error placeholder on failure.
func (s *Service) Flags(ctx context.Context, symbol string) models.FlagResult {
	set, err := s.Indicators(ctx, symbol)
	if err != nil {
		s.logger.Warn("flags unavailable", zap.String("symbol", symbol), zap.Error(err))
		return models.FlagsUnavailable(symbol, err)
	}
	return EvaluateFlagsSet(symbol, set)
}

// Snapshot runs stage and flags for symbol from one fetch. It never fails;
// problems are reported through the placeholder results.
func (s *Service) Snapshot(ctx context.Context, symbol string) models.SignalSnapshot {
	ctx, span := telemetry.StartSpan(ctx, "analysis.snapshot", attribute.String("symbol", symbol))
	defer span.End()

	snap := models.SignalSnapshot{Symbol: symbol, CapturedAt: s.now()}

	set, err := s.Indicators(ctx, symbol)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("snapshot degraded", zap.String("symbol", symbol), zap.Error(err))
		snap.Stage = models.UnknownStage(symbol)
		snap.Flags = models.FlagsUnavailable(symbol, err)
		return snap
	}

	snap.Bars = set.Len()
	snap.Stage = StageOrUnknown(symbol, set)
	snap.Flags = EvaluateFlagsSet(symbol, set)
	if rsi, err := set.LatestRSI(); err == nil {
		snap.RSI14 = &rsi
	}
	if set.Len() > 0 {
		last := set.LastClose
		snap.LastClose = &last
	}

	if s.recorder != nil {
		if err := s.recorder.SaveSignalSnapshot(&snap); err != nil {
			s.logger.Warn("failed to record snapshot", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return snap
}

// SnapshotAll analyzes symbols with bounded parallelism. Results keep input order.
func (s *Service) SnapshotAll(ctx context.Context, symbols []string) []models.SignalSnapshot {
	ctx, span := telemetry.StartSpan(ctx, "analysis.snapshot_all", attribute.Int("symbols", len(symbols)))
	defer span.End()

	out := make([]models.SignalSnapshot, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			out[i] = s.Snapshot(gctx, sym)
			return nil
		})
	}
	_ = g.Wait()

	return out
}
