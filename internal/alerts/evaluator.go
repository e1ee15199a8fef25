// Package alerts evaluates user alert rules against live indicator values and
// dispatches notifications for the ones that trigger.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/indicators"
	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/telemetry"
)

// MinRuleBars is the minimum history required before a rule is evaluated.
const MinRuleBars = 50

// RuleStore lists rules and persists triggered alerts. Implemented by database.DB.
type RuleStore interface {
	GetActiveAlertRules() ([]*models.AlertRule, error)
	CreateAlert(a *models.Alert) error
}

// Notifier delivers one message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, subject, body string) error
}

// IndicatorSource resolves the indicator set for a symbol. analysis.Service implements it.
type IndicatorSource interface {
	Indicators(ctx context.Context, symbol string) (*indicators.Set, error)
}

// QuoteSource serves live prices. Any provider.PriceSeriesProvider satisfies it.
type QuoteSource interface {
	LiveQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// PassResult summarizes one evaluation pass.
type PassResult struct {
	Processed      int `json:"processed"`
	Triggered      int `json:"triggered"`
	Failed         int `json:"failed"`
	NotifyFailures int `json:"notify_failures"`
}

// Evaluator runs alert passes. Every pass re-evaluates every active rule;
// a rule that keeps holding triggers again on each pass.
type Evaluator struct {
	rules    RuleStore
	source   IndicatorSource
	notifier Notifier
	quotes   QuoteSource
	logger   *zap.Logger
	now      func() time.Time
}

func NewEvaluator(rules RuleStore, source IndicatorSource, notifier Notifier, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		rules:    rules,
		source:   source,
		notifier: notifier,
		logger:   logger.Named("alerts"),
		now:      time.Now,
	}
}

// SetQuoteSource makes PRICE rules compare the live quote instead of the last
// daily close. A failed quote falls back to the close.
func (e *Evaluator) SetQuoteSource(q QuoteSource) {
	e.quotes = q
}

type resolved struct {
	set   *indicators.Set
	err   error
	quote *float64
}

// Run evaluates all active rules. Per-rule failures are logged and counted;
// only a failure to list rules is returned as an error.
func (e *Evaluator) Run(ctx context.Context) (PassResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "alerts.run")
	defer span.End()

	var res PassResult

	rules, err := e.rules.GetActiveAlertRules()
	if err != nil {
		telemetry.RecordError(span, err)
		return res, fmt.Errorf("failed to list active alert rules: %w", err)
	}
	span.SetAttributes(attribute.Int("rules", len(rules)))

	cache := make(map[string]resolved)

	for _, rule := range rules {
		res.Processed++

		if err := e.evaluate(ctx, rule, cache, &res); err != nil {
			res.Failed++
			e.logger.Warn("alert rule evaluation failed",
				zap.Int("rule_id", rule.ID),
				zap.String("symbol", rule.Symbol),
				zap.Error(err))
		}
	}

	e.logger.Info("alert pass complete",
		zap.Int("processed", res.Processed),
		zap.Int("triggered", res.Triggered),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (e *Evaluator) evaluate(ctx context.Context, rule *models.AlertRule, cache map[string]resolved, res *PassResult) error {
	if rule.Condition == nil {
		return fmt.Errorf("rule %d has no condition", rule.ID)
	}

	symbol := strings.ToUpper(strings.TrimSpace(rule.Symbol))
	r, ok := cache[symbol]
	if !ok {
		set, err := e.source.Indicators(ctx, symbol)
		r = resolved{set: set, err: err}
		cache[symbol] = r
	}
	if r.err != nil {
		return r.err
	}
	if r.set.Len() < MinRuleBars {
		return fmt.Errorf("%s has %d bars, need %d: %w", symbol, r.set.Len(), MinRuleBars, models.ErrInsufficientData)
	}

	value, err := indicatorValue(rule.Condition, r.set)
	if err != nil {
		return err
	}
	if rule.Condition.Indicator() == models.IndicatorPrice && e.quotes != nil {
		if r.quote == nil {
			r.quote = e.liveQuote(ctx, symbol, value)
			cache[symbol] = r
		}
		value = *r.quote
	}
	if !rule.Condition.Holds(value) {
		return nil
	}

	alert := &models.Alert{
		UserID:      rule.UserID,
		RuleID:      rule.ID,
		Symbol:      symbol,
		Message:     fmt.Sprintf("%s Triggered: %s", rule.Name, rule.Condition.Describe(value)),
		Priority:    models.PriorityHigh,
		Value:       value,
		TriggeredAt: e.now(),
	}
	if err := e.rules.CreateAlert(alert); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	res.Triggered++

	if e.notifier != nil {
		subject := fmt.Sprintf("Alert: %s - %s", symbol, rule.Name)
		if err := e.notifier.Notify(ctx, rule.UserID, subject, alert.Message); err != nil {
			res.NotifyFailures++
			e.logger.Warn("alert notification failed",
				zap.Int("rule_id", rule.ID),
				zap.String("user_id", rule.UserID),
				zap.Error(err))
		}
	}
	return nil
}

func (e *Evaluator) liveQuote(ctx context.Context, symbol string, lastClose float64) *float64 {
	q, err := e.quotes.LiveQuote(ctx, symbol)
	if err != nil || q.Price <= 0 {
		e.logger.Warn("live quote unavailable, using last close",
			zap.String("symbol", symbol), zap.Error(err))
		return &lastClose
	}
	return &q.Price
}

func indicatorValue(c models.Condition, set *indicators.Set) (float64, error) {
	switch c.Indicator() {
	case models.IndicatorPrice:
		return set.LastClose, nil
	case models.IndicatorRSI:
		return set.LatestRSI()
	}
	return 0, fmt.Errorf("unsupported indicator %q", c.Indicator())
}
