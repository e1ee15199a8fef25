package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/trogers1052/trade-journal/internal/models"
)

const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo reads the public chart API.
type Yahoo struct {
	baseURL string
	client  *http.Client
}

func NewYahoo(baseURL string, timeout time.Duration) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &Yahoo{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (y *Yahoo) DailySeries(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if end.IsZero() {
		end = time.Now()
	}
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.Unix()))

	body, err := y.chart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	return parseChartBars(body, symbol)
}

func (y *Yahoo) LiveQuote(ctx context.Context, symbol string) (models.Quote, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", "1d")

	body, err := y.chart(ctx, symbol, params)
	if err != nil {
		return models.Quote{}, err
	}

	price := gjson.GetBytes(body, "chart.result.0.meta.regularMarketPrice")
	if !price.Exists() || price.Float() <= 0 {
		return models.Quote{}, fmt.Errorf("no quote for %s: %w", symbol, models.ErrDataUnavailable)
	}
	asOf := time.Now()
	if ts := gjson.GetBytes(body, "chart.result.0.meta.regularMarketTime"); ts.Exists() {
		asOf = time.Unix(ts.Int(), 0).UTC()
	}
	return models.Quote{Symbol: symbol, Price: price.Float(), AsOf: asOf}, nil
}

func (y *Yahoo) chart(ctx context.Context, symbol string, params url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", symbol, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request for %s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chart body for %s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		desc := gjson.GetBytes(body, "chart.error.description").String()
		return nil, fmt.Errorf("chart status %d for %s (%s): %w", resp.StatusCode, symbol, desc, models.ErrDataUnavailable)
	}
	return body, nil
}

func parseChartBars(body []byte, symbol string) ([]models.Bar, error) {
	if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() && desc.String() != "" {
		return nil, fmt.Errorf("chart error for %s: %s: %w", symbol, desc.String(), models.ErrDataUnavailable)
	}

	result := gjson.GetBytes(body, "chart.result.0")
	timestamps := result.Get("timestamp")
	if !result.Exists() || !timestamps.IsArray() {
		return nil, fmt.Errorf("no chart data for %s: %w", symbol, models.ErrDataUnavailable)
	}

	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	ts := timestamps.Array()
	bars := make([]models.Bar, 0, len(ts))
	for i, t := range ts {
		// bars without a close or range would read as a zero price
		if !present(closes, i) || !present(highs, i) || !present(lows, i) {
			continue
		}
		bars = append(bars, models.Bar{
			Date:   time.Unix(t.Int(), 0).UTC(),
			Open:   at(opens, i),
			High:   at(highs, i),
			Low:    at(lows, i),
			Close:  closes[i].Float(),
			Volume: at(volumes, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("empty chart for %s: %w", symbol, models.ErrDataUnavailable)
	}
	return bars, nil
}

func present(values []gjson.Result, i int) bool {
	return i < len(values) && values[i].Exists() && values[i].Type != gjson.Null
}

func at(values []gjson.Result, i int) float64 {
	if i >= len(values) {
		return 0
	}
	return values[i].Float()
}
