package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/m37335/threegate/internal/domain"
)

// yahooRPS and yahooBurst bound requests against Yahoo Finance's public,
// unauthenticated chart endpoint, which has no published quota of its own.
const (
	yahooRPS   = 2
	yahooBurst = 4
)

// YahooProvider fetches OHLCV bars from Yahoo Finance's public chart API,
// the HTTP surface the original yfinance-based collector sits on top of
// (original_source/modules/data_collection/providers/yahoo_finance.py).
// It uses a plain net/http.Client rather than a streaming transport since
// the collector only ever polls on a fixed schedule (spec §4.6), and a
// token-bucket limiter in front of every call, grounded on
// internal/infrastructure/providers/ratelimit.go's per-provider
// golang.org/x/time/rate.Limiter use.
type YahooProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewYahooProvider returns a provider with the teacher's own HTTP-client
// defaults (src/infrastructure/providers/kraken.go): a bounded timeout and
// no connection pooling overrides.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		baseURL: "https://query1.finance.yahoo.com/v8/finance/chart",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(yahooRPS), yahooBurst),
	}
}

func (p *YahooProvider) Name() string {
	return "yahoo_finance"
}

var yahooIntervals = map[domain.Timeframe]string{
	domain.TF5m:  "5m",
	domain.TF15m: "15m",
	domain.TF1h:  "1h",
	domain.TF4h:  "4h",
	domain.TF1d:  "1d",
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchBars retrieves bars for [from, to] at the given timeframe. Yahoo
// returns null entries for gaps (holidays, pre-market); those indices are
// skipped rather than stored as zero-valued bars.
func (p *YahooProvider) FetchBars(ctx context.Context, symbol string, timeframe domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	interval, ok := yahooIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("marketdata: unsupported timeframe %q", timeframe)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("marketdata: rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("interval", interval)
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(to.Unix(), 10))

	fullURL := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("marketdata: building request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketdata: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketdata: yahoo finance returned status %d", resp.StatusCode)
	}

	var parsed yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("marketdata: decoding response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("marketdata: yahoo finance error: %s", parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]domain.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || quote.Open[i] == nil || quote.High[i] == nil ||
			quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		volume := int64(0)
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		bar := domain.Bar{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			Volume:    volume,
			Source:    p.Name(),
		}
		bar.QualityScore = qualityScore(bar)
		bars = append(bars, bar)
	}
	return bars, nil
}

// qualityScore mirrors the original provider's _calculate_quality_score:
// start at 1.0, dock 0.3 for a malformed OHLC shape and 0.2 for negative
// volume, floored at 0.
func qualityScore(bar domain.Bar) float64 {
	score := 1.0
	priceShapeOK := bar.Low <= bar.Open && bar.Open <= bar.High &&
		bar.Low <= bar.Close && bar.Close <= bar.High
	if !priceShapeOK {
		score -= 0.3
	}
	if bar.Volume < 0 {
		score -= 0.2
	}
	if score < 0 {
		score = 0
	}
	return score
}
