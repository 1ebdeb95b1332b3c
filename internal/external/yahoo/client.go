package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/eqindex/pkg/httputil"
	"github.com/wonny/eqindex/pkg/logger"
)

// quoteBatchSize is the number of symbols per v7 quote request
const quoteBatchSize = 50

// Client handles communication with Yahoo Finance
// ⭐ SSOT: Yahoo Finance calls are only made from this client
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("yahoo"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// DailyBars fetches daily bars for ticker in [from, to]
func (c *Client) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", from.Unix()))
	params.Set("period2", fmt.Sprintf("%d", to.Unix()))
	params.Set("interval", "1d")
	params.Set("events", "history")

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("fetch chart for %s: %w", ticker, err)
	}

	bars, err := parseChart(&resp)
	if err != nil {
		return nil, fmt.Errorf("parse chart for %s: %w", ticker, err)
	}
	return bars, nil
}

// Quotes fetches market cap and shares outstanding for tickers.
// Tickers missing from the response are absent from the map.
func (c *Client) Quotes(ctx context.Context, tickers []string) (map[string]Quote, error) {
	quotes := make(map[string]Quote, len(tickers))

	for start := 0; start < len(tickers); start += quoteBatchSize {
		end := start + quoteBatchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		batch := tickers[start:end]

		params := url.Values{}
		params.Set("symbols", strings.Join(batch, ","))
		fullURL := fmt.Sprintf("%s/v7/finance/quote?%s", c.baseURL, params.Encode())

		var resp quoteResponse
		if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
			return quotes, fmt.Errorf("fetch quotes: %w", err)
		}
		if resp.QuoteResponse.Error != nil {
			return quotes, fmt.Errorf("quote API error %s: %s", resp.QuoteResponse.Error.Code, resp.QuoteResponse.Error.Description)
		}

		for _, q := range resp.QuoteResponse.Result {
			quotes[q.Symbol] = Quote{
				Symbol:            q.Symbol,
				MarketCap:         q.MarketCap,
				SharesOutstanding: q.SharesOutstanding,
			}
		}

		c.logger.WithFields(map[string]interface{}{
			"requested": len(batch),
			"received":  len(resp.QuoteResponse.Result),
		}).Debug("Fetched quote batch")
	}

	return quotes, nil
}

// parseChart converts a chart response into bars.
// Points with a missing close are skipped; other missing fields become 0.
func parseChart(resp *chartResponse) ([]Bar, error) {
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := result.Indicators.Quote[0]

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := floatAt(q.Close, i)
		if closePrice == nil {
			continue
		}

		bar := Bar{
			Date:  time.Unix(ts+result.Meta.GMTOffset, 0).UTC().Format("2006-01-02"),
			Close: *closePrice,
		}
		if v := floatAt(q.Open, i); v != nil {
			bar.Open = *v
		}
		if v := floatAt(q.High, i); v != nil {
			bar.High = *v
		}
		if v := floatAt(q.Low, i); v != nil {
			bar.Low = *v
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func floatAt(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
