// Package behavior derives trading-psychology statistics from a user's closed trades.
package behavior

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/provider"
	"github.com/trogers1052/trade-journal/internal/telemetry"
)

const (
	slowLossRatio      = 2.0
	earlyWinRatio      = 0.5
	riskRatio          = 1.0
	strongRatio        = 2.0
	concentrationLimit = 40.0

	earlyExitWindow      = 10
	earlyExitDays        = 30
	earlyExitLookahead   = 5
	missedRisePercent    = 10.0
	earlyExitInsightMin  = 2
	defaultFetchTimeout  = 10 * time.Second
	defaultFetchParallel = 4
)

// HoldingPeriodResult compares how long winners and losers are held.
type HoldingPeriodResult struct {
	Winners       int     `json:"winners"`
	Losers        int     `json:"losers"`
	AvgWinnerDays float64 `json:"avg_winner_days"`
	AvgLoserDays  float64 `json:"avg_loser_days"`
	Ratio         float64 `json:"ratio"`
	Insight       string  `json:"insight"`
}

// ProfitPatternResult summarizes win rate and win/loss size asymmetry.
type ProfitPatternResult struct {
	Trades    int     `json:"trades"`
	WinRate   float64 `json:"win_rate"`
	AvgProfit float64 `json:"avg_profit"`
	AvgLoss   float64 `json:"avg_loss"`
	Ratio     float64 `json:"ratio"`
	Insight   string  `json:"insight"`
}

// SectorShare is one sector's slice of portfolio market value.
type SectorShare struct {
	Sector  string  `json:"sector"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// ConcentrationResult groups holdings by sector.
type ConcentrationResult struct {
	Sectors    []SectorShare `json:"sectors"`
	TopSector  string        `json:"top_sector,omitempty"`
	TopPercent float64       `json:"top_percent"`
	Insight    string        `json:"insight"`
}

// MissedExit is a sell after which the price rose significantly.
type MissedExit struct {
	Symbol       string    `json:"symbol"`
	SellDate     time.Time `json:"sell_date"`
	SellPrice    float64   `json:"sell_price"`
	LaterPrice   float64   `json:"later_price"`
	RisePercent  float64   `json:"rise_percent"`
	MissedProfit float64   `json:"missed_profit"`
}

// EarlyExitResult reports missed upside after recent exits.
type EarlyExitResult struct {
	Checked      int          `json:"checked"`
	Missed       int          `json:"missed"`
	Failures     int          `json:"failures"`
	MissedProfit float64      `json:"missed_profit"`
	Details      []MissedExit `json:"details"`
	Insight      string       `json:"insight"`
}

// Report bundles every behavioral metric.
type Report struct {
	HoldingPeriod HoldingPeriodResult `json:"holding_period"`
	ProfitPattern ProfitPatternResult `json:"profit_pattern"`
	Concentration ConcentrationResult `json:"sector_concentration"`
	EarlyExits    EarlyExitResult     `json:"early_exits"`
	ClosedTrades  int                 `json:"closed_trades"`
}

func profitOf(t *models.Trade) float64 {
	return t.ProfitLoss.InexactFloat64()
}

// HoldingPeriod computes average holding days for winners (P&L > 0) and losers.
func HoldingPeriod(trades []*models.Trade) HoldingPeriodResult {
	var res HoldingPeriodResult
	var winDays, lossDays float64

	for _, t := range models.ClosedTrades(trades) {
		days := float64(*t.HoldingPeriodDays)
		if profitOf(t) > 0 {
			res.Winners++
			winDays += days
		} else {
			res.Losers++
			lossDays += days
		}
	}

	if res.Winners > 0 {
		res.AvgWinnerDays = winDays / float64(res.Winners)
	}
	if res.Losers > 0 {
		res.AvgLoserDays = lossDays / float64(res.Losers)
	}
	if res.AvgWinnerDays > 0 {
		res.Ratio = res.AvgLoserDays / res.AvgWinnerDays
	}

	switch {
	case res.Ratio > slowLossRatio:
		res.Insight = fmt.Sprintf("You hold losers %.1fx longer than winners. Consider cutting losses earlier.", res.Ratio)
	case res.Ratio > 0 && res.Ratio < earlyWinRatio:
		res.Insight = fmt.Sprintf("You might be selling winners too early. You hold winners only %.0f days on average.", res.AvgWinnerDays)
	default:
		res.Insight = "Your holding patterns are balanced."
	}
	return res
}

// ProfitPattern computes win rate and the average win to average loss ratio.
func ProfitPattern(trades []*models.Trade) ProfitPatternResult {
	var res ProfitPatternResult
	var profit, loss float64
	var wins, losses int

	for _, t := range models.ClosedTrades(trades) {
		res.Trades++
		pl := profitOf(t)
		if pl > 0 {
			wins++
			profit += pl
		} else {
			losses++
			loss += pl
		}
	}

	if res.Trades > 0 {
		res.WinRate = float64(wins) / float64(res.Trades) * 100
	}
	if wins > 0 {
		res.AvgProfit = profit / float64(wins)
	}
	if losses > 0 {
		res.AvgLoss = loss / float64(losses)
	}
	if res.AvgLoss != 0 {
		res.Ratio = math.Abs(res.AvgProfit / res.AvgLoss)
	}

	switch {
	case res.AvgLoss != 0 && res.Ratio < riskRatio:
		res.Insight = fmt.Sprintf("Risk Warning: Your average loss (%.0f) is larger than your average profit (%.0f).",
			math.Abs(res.AvgLoss), res.AvgProfit)
	case res.Ratio > strongRatio:
		res.Insight = "Excellent! Your winners are significantly larger than your losers."
	default:
		res.Insight = "Balanced risk/reward ratio."
	}
	return res
}

// SectorConcentration groups holdings by sector using market value.
func SectorConcentration(holdings []*models.Holding, sectors SectorMap) ConcentrationResult {
	values := make(map[string]float64)
	var total float64
	for _, h := range holdings {
		if h == nil {
			continue
		}
		price := h.CurrentPrice
		if !price.IsPositive() {
			price = h.AveragePrice
		}
		v := h.Quantity.Mul(price).InexactFloat64()
		if v <= 0 {
			continue
		}
		values[sectors.Lookup(h.Symbol)] += v
		total += v
	}

	res := ConcentrationResult{Sectors: []SectorShare{}}
	if total == 0 {
		res.Insight = "No holdings to analyze."
		return res
	}

	for sector, v := range values {
		res.Sectors = append(res.Sectors, SectorShare{Sector: sector, Value: v, Percent: v / total * 100})
	}
	sort.Slice(res.Sectors, func(i, j int) bool {
		if res.Sectors[i].Percent != res.Sectors[j].Percent {
			return res.Sectors[i].Percent > res.Sectors[j].Percent
		}
		return res.Sectors[i].Sector < res.Sectors[j].Sector
	})

	top := res.Sectors[0]
	res.TopSector = top.Sector
	res.TopPercent = top.Percent
	if top.Percent > concentrationLimit {
		res.Insight = fmt.Sprintf("High concentration risk: %.0f%% of your portfolio is in %s.", top.Percent, top.Sector)
	} else {
		res.Insight = "Good diversification."
	}
	return res
}

// Analyzer runs the behavioral metrics, including the provider-backed early-exit check.
type Analyzer struct {
	provider    provider.PriceSeriesProvider
	sectors     SectorMap
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

func NewAnalyzer(p provider.PriceSeriesProvider, sectors SectorMap, timeout time.Duration, concurrency int, logger *zap.Logger) *Analyzer {
	if sectors == nil {
		sectors = DefaultSectors()
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if concurrency <= 0 {
		concurrency = defaultFetchParallel
	}
	return &Analyzer{
		provider:    p,
		sectors:     sectors,
		timeout:     timeout,
		concurrency: concurrency,
		logger:      logger.Named("behavior"),
		now:         time.Now,
	}
}

// Analyze computes the full report. Only closed trades are considered.
func (a *Analyzer) Analyze(ctx context.Context, trades []*models.Trade, holdings []*models.Holding) Report {
	ctx, span := telemetry.StartSpan(ctx, "behavior.analyze", attribute.Int("trades", len(trades)))
	defer span.End()

	return Report{
		HoldingPeriod: HoldingPeriod(trades),
		ProfitPattern: ProfitPattern(trades),
		Concentration: SectorConcentration(holdings, a.sectors),
		EarlyExits:    a.EarlyExits(ctx, trades),
		ClosedTrades:  len(models.ClosedTrades(trades)),
	}
}

// EarlyExits checks the most recent closed sells for a rise of at least 10%
// roughly 30 days later. Exits younger than that are skipped. Provider
// failures are counted per trade.
func (a *Analyzer) EarlyExits(ctx context.Context, trades []*models.Trade) EarlyExitResult {
	closed := models.ClosedTrades(trades)
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].SellDate.After(*closed[j].SellDate)
	})
	if len(closed) > earlyExitWindow {
		closed = closed[:earlyExitWindow]
	}

	res := EarlyExitResult{Details: []MissedExit{}}
	now := a.now()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, t := range closed {
		t := t
		checkAt := t.SellDate.AddDate(0, 0, earlyExitDays)
		if checkAt.After(now) {
			continue
		}

		g.Go(func() error {
			later, err := a.priceAfter(gctx, t.Symbol, checkAt)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures++
				a.logger.Warn("early exit check failed", zap.String("symbol", t.Symbol), zap.Error(err))
				return nil
			}

			res.Checked++
			sellPrice := t.SellPrice.InexactFloat64()
			if sellPrice <= 0 {
				return nil
			}
			rise := (later - sellPrice) / sellPrice * 100
			if rise >= missedRisePercent {
				missed := (later - sellPrice) * t.Quantity.InexactFloat64()
				res.Missed++
				res.MissedProfit += missed
				res.Details = append(res.Details, MissedExit{
					Symbol:       t.Symbol,
					SellDate:     *t.SellDate,
					SellPrice:    sellPrice,
					LaterPrice:   later,
					RisePercent:  rise,
					MissedProfit: missed,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Details, func(i, j int) bool { return res.Details[i].SellDate.After(res.Details[j].SellDate) })

	if res.Missed > earlyExitInsightMin {
		res.Insight = fmt.Sprintf("You tend to sell winners early. %d recent trades went up significantly after you sold.", res.Missed)
	} else {
		res.Insight = "Your exit timing is generally good."
	}
	return res
}

func (a *Analyzer) priceAfter(ctx context.Context, symbol string, at time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	bars, err := a.provider.DailySeries(ctx, symbol, at, at.AddDate(0, 0, earlyExitLookahead))
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no bars for %s after %s: %w", symbol, at.Format("2006-01-02"), models.ErrDataUnavailable)
	}
	return bars[0].Close, nil
}
