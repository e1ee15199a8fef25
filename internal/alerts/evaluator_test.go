package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/indicators"
	"github.com/trogers1052/trade-journal/internal/models"
)

type memRules struct {
	rules   []*models.AlertRule
	alerts  []*models.Alert
	listErr error
	saveErr error
}

func (m *memRules) GetActiveAlertRules() ([]*models.AlertRule, error) {
	return m.rules, m.listErr
}

func (m *memRules) CreateAlert(a *models.Alert) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	a.ID = len(m.alerts) + 1
	m.alerts = append(m.alerts, a)
	return nil
}

type fakeSource struct {
	sets  map[string]*indicators.Set
	fail  map[string]error
	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		sets:  make(map[string]*indicators.Set),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeSource) Indicators(_ context.Context, symbol string) (*indicators.Set, error) {
	f.calls[symbol]++
	if err, ok := f.fail[symbol]; ok {
		return nil, err
	}
	return f.sets[symbol], nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
	err      error
}

func (r *recordingNotifier) Notify(_ context.Context, _, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	r.bodies = append(r.bodies, body)
	return r.err
}

func risingSet(n int, start float64) *indicators.Set {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := start + float64(i)
		bars[i] = models.Bar{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return indicators.Compute(bars)
}

func rule(id int, name, symbol string, c models.Condition) *models.AlertRule {
	return &models.AlertRule{ID: id, UserID: "u1", Name: name, Symbol: symbol, Condition: c, Active: true}
}

func newTestEvaluator(rules RuleStore, src IndicatorSource, n Notifier) *Evaluator {
	e := NewEvaluator(rules, src, n, zap.NewNop())
	e.now = func() time.Time { return time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC) }
	return e
}

func TestRun_PriceAndRSITrigger(t *testing.T) {
	src := newFakeSource()
	src.sets["AAPL"] = risingSet(60, 100) // last close 159, RSI 100

	store := &memRules{rules: []*models.AlertRule{
		rule(1, "Breakout", "AAPL", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 150}),
		rule(2, "Overbought", "AAPL", models.RSIRule{Comparison: models.ComparisonGT, Threshold: 70}),
		rule(3, "Dip", "AAPL", models.PriceRule{Comparison: models.ComparisonLT, Threshold: 120}),
	}}
	n := &recordingNotifier{}

	res, err := newTestEvaluator(store, src, n).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PassResult{Processed: 3, Triggered: 2}, res)
	require.Len(t, store.alerts, 2)
	assert.Equal(t, "Breakout Triggered: Price is 159.00", store.alerts[0].Message)
	assert.Equal(t, models.PriorityHigh, store.alerts[0].Priority)
	assert.Equal(t, 1, store.alerts[0].RuleID)
	assert.Equal(t, "Overbought Triggered: RSI is 100.0", store.alerts[1].Message)
	assert.Equal(t, []string{"Alert: AAPL - Breakout", "Alert: AAPL - Overbought"}, n.subjects)

	assert.Equal(t, 1, src.calls["AAPL"], "indicators resolved once per symbol per pass")
}

func TestRun_FailedRuleDoesNotStopPass(t *testing.T) {
	src := newFakeSource()
	src.sets["AAPL"] = risingSet(60, 100)
	src.sets["TSLA"] = risingSet(60, 200)
	src.fail["MSFT"] = models.ErrDataUnavailable

	store := &memRules{rules: []*models.AlertRule{
		rule(1, "A", "AAPL", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 100}),
		rule(2, "M", "MSFT", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 100}),
		rule(3, "T", "TSLA", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 100}),
	}}

	res, err := newTestEvaluator(store, src, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Triggered)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, store.alerts, 2)
	assert.Equal(t, 1, store.alerts[0].RuleID)
	assert.Equal(t, 3, store.alerts[1].RuleID)
}

func TestRun_ShortHistoryIsFailure(t *testing.T) {
	src := newFakeSource()
	src.sets["NEW"] = risingSet(MinRuleBars-1, 10)

	store := &memRules{rules: []*models.AlertRule{
		rule(1, "New", "NEW", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 1}),
	}}

	res, err := newTestEvaluator(store, src, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{Processed: 1, Failed: 1}, res)
	assert.Empty(t, store.alerts)
}

func TestRun_NotifyFailureKeepsAlert(t *testing.T) {
	src := newFakeSource()
	src.sets["AAPL"] = risingSet(60, 100)

	store := &memRules{rules: []*models.AlertRule{
		rule(1, "Breakout", "AAPL", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 150}),
	}}
	n := &recordingNotifier{err: errors.New("smtp down")}

	res, err := newTestEvaluator(store, src, n).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{Processed: 1, Triggered: 1, NotifyFailures: 1}, res)
	assert.Len(t, store.alerts, 1)
}

func TestRun_RepeatedPassesRetrigger(t *testing.T) {
	src := newFakeSource()
	src.sets["AAPL"] = risingSet(60, 100)
	store := &memRules{rules: []*models.AlertRule{
		rule(1, "Breakout", "AAPL", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 150}),
	}}
	e := newTestEvaluator(store, src, nil)

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.alerts, 2)
	assert.Equal(t, 2, src.calls["AAPL"])
}

func TestRun_ListError(t *testing.T) {
	store := &memRules{listErr: errors.New("db gone")}

	_, err := newTestEvaluator(store, newFakeSource(), nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list active alert rules")
}

func TestRun_SaveErrorCountsAsFailure(t *testing.T) {
	src := newFakeSource()
	src.sets["AAPL"] = risingSet(60, 100)
	store := &memRules{
		rules:   []*models.AlertRule{rule(1, "Breakout", "AAPL", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 150})},
		saveErr: errors.New("insert failed"),
	}
	n := &recordingNotifier{}

	res, err := newTestEvaluator(store, src, n).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{Processed: 1, Failed: 1}, res)
	assert.Empty(t, n.subjects)
}

type fakeQuotes struct {
	prices map[string]float64
	calls  int
}

func (f *fakeQuotes) LiveQuote(_ context.Context, symbol string) (models.Quote, error) {
	f.calls++
	p, ok := f.prices[symbol]
	if !ok {
		return models.Quote{}, models.ErrDataUnavailable
	}
	return models.Quote{Symbol: symbol, Price: p}, nil
}

func TestRun_LiveQuotesForPriceRules(t *testing.T) {
	src := newFakeSource()
	src.sets["AAPL"] = risingSet(60, 100) // last close 159, RSI 100
	src.sets["TSLA"] = risingSet(60, 200) // last close 259

	store := &memRules{rules: []*models.AlertRule{
		rule(1, "Dip", "AAPL", models.PriceRule{Comparison: models.ComparisonLT, Threshold: 150}),
		rule(2, "Breakout", "AAPL", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 150}),
		rule(3, "Overbought", "AAPL", models.RSIRule{Comparison: models.ComparisonGT, Threshold: 70}),
		rule(4, "Fallback", "TSLA", models.PriceRule{Comparison: models.ComparisonGT, Threshold: 250}),
	}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 142.5}}

	e := newTestEvaluator(store, src, &recordingNotifier{})
	e.SetQuoteSource(quotes)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PassResult{Processed: 4, Triggered: 3}, res)
	require.Len(t, store.alerts, 3)
	assert.Equal(t, "Dip Triggered: Price is 142.50", store.alerts[0].Message)
	assert.Equal(t, "Overbought Triggered: RSI is 100.0", store.alerts[1].Message)
	assert.Equal(t, "Fallback Triggered: Price is 259.00", store.alerts[2].Message)
	assert.Equal(t, 2, quotes.calls, "one quote per symbol per pass")
}
