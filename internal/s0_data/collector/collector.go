package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/external/yahoo"
	"github.com/wonny/eqindex/pkg/logger"
)

// estimateThreshold is the share of tickers without a quoted market cap
// above which market caps are estimated from price and volume
const estimateThreshold = 0.8

// estimateMultiplier scales avg(close)*avg(volume) into a market cap estimate
const estimateMultiplier = 100

// BarSource provides daily bars and quotes
type BarSource interface {
	DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]yahoo.Bar, error)
	Quotes(ctx context.Context, tickers []string) (map[string]yahoo.Quote, error)
}

// UniverseSource lists candidate constituents
type UniverseSource interface {
	SP500(ctx context.Context) ([]contracts.Stock, error)
}

// Collector orchestrates market data acquisition
// ⭐ SSOT: acquisition orchestration lives only in this package
type Collector struct {
	bars     BarSource
	universe UniverseSource
	repo     contracts.MarketDataRepository
	events   contracts.EventPublisher
	workers  int
	logger   *logger.Logger
	now      func() time.Time
}

// NewCollector creates a new Collector instance
func NewCollector(bars BarSource, universe UniverseSource, repo contracts.MarketDataRepository, workers int, log *logger.Logger) *Collector {
	if workers <= 0 {
		workers = 1
	}
	return &Collector{
		bars:     bars,
		universe: universe,
		repo:     repo,
		events:   contracts.NopPublisher{},
		workers:  workers,
		logger:   log.WithField("module", "collector"),
		now:      time.Now,
	}
}

// WithEvents publishes a completion event after each run
func (c *Collector) WithEvents(p contracts.EventPublisher) *Collector {
	c.events = p
	return c
}

// Acquire fetches the last days calendar days of bars for every ticker and
// stores them append-only
func (c *Collector) Acquire(ctx context.Context, days int) (*contracts.AcquisitionResult, error) {
	if days <= 0 {
		return nil, &contracts.ValidationError{Field: "days", Message: "must be positive"}
	}

	to := c.now()
	from := to.AddDate(0, 0, -days)

	result := &contracts.AcquisitionResult{
		StartDate: from.Format(contracts.DateLayout),
		EndDate:   to.Format(contracts.DateLayout),
	}

	tickers, upserted, err := c.resolveTickers(ctx)
	if err != nil {
		return nil, err
	}
	result.Tickers = len(tickers)
	result.StocksUpserted = upserted

	log := c.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"from":    result.StartDate,
		"to":      result.EndDate,
		"workers": c.workers,
	})
	log.Info("Starting market data acquisition")

	barsByTicker, failed, err := c.fetchBars(ctx, tickers, from, to)
	if err != nil {
		return nil, err
	}
	result.TickersFailed = failed
	if len(tickers) > 0 && len(barsByTicker) == 0 {
		return nil, &contracts.UpstreamError{Op: "fetch daily bars", Err: fmt.Errorf("no data for any of %d tickers", len(tickers))}
	}

	quotes, err := c.bars.Quotes(ctx, tickers)
	if err != nil {
		c.logger.WithError(err).Warn("Quote fetch failed, market caps may be estimated")
	}

	rows, estimated := BuildObservations(barsByTicker, quotes)
	result.MarketCapEstimated = estimated

	stored, err := c.repo.InsertObservations(ctx, rows)
	if err != nil {
		return nil, &contracts.UpstreamError{Op: "store observations", Err: err}
	}
	result.ObservationsStored = stored

	log.WithFields(map[string]interface{}{
		"observations": stored,
		"failed":       failed,
		"estimated":    estimated,
	}).Info("Market data acquisition completed")

	c.events.Publish(contracts.EventDataAcquired, result)
	return result, nil
}

// resolveTickers uses stored tickers, falling back to the S&P 500 list
func (c *Collector) resolveTickers(ctx context.Context) ([]string, int, error) {
	tickers, err := c.repo.Tickers(ctx)
	if err != nil {
		return nil, 0, &contracts.UpstreamError{Op: "list tickers", Err: err}
	}
	if len(tickers) > 0 {
		return tickers, 0, nil
	}

	stocks, err := c.universe.SP500(ctx)
	if err != nil {
		return nil, 0, &contracts.UpstreamError{Op: "fetch constituents", Err: err}
	}

	upserted, err := c.repo.UpsertStocks(ctx, stocks)
	if err != nil {
		return nil, 0, &contracts.UpstreamError{Op: "store stocks", Err: err}
	}

	tickers = make([]string, len(stocks))
	for i, s := range stocks {
		tickers[i] = s.Ticker
	}
	return tickers, upserted, nil
}

// fetchBars downloads bars with at most c.workers requests in flight.
// A failing ticker is logged and counted; only cancellation aborts the run.
func (c *Collector) fetchBars(ctx context.Context, tickers []string, from, to time.Time) (map[string][]yahoo.Bar, int, error) {
	var (
		mu     sync.Mutex
		out    = make(map[string][]yahoo.Bar, len(tickers))
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bars, err := c.bars.DailyBars(gctx, ticker, from, to)

			mu.Lock()
			defer mu.Unlock()
			if err != nil || len(bars) == 0 {
				failed++
				entry := c.logger.WithField("ticker", ticker)
				if err != nil {
					entry = entry.WithError(err)
				}
				entry.Warn("No bars fetched for ticker")
				return nil
			}
			out[ticker] = bars
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, failed, err
	}
	return out, failed, nil
}

// BuildObservations attaches a market cap to every bar.
//
// The daily cap is shares outstanding times close when shares are quoted,
// otherwise the quoted cap. When more than 80% of tickers have no quoted cap
// the missing ones are estimated from avg(close)*avg(volume)*100. Bars that
// still have no cap are dropped. The returned bool reports estimation.
func BuildObservations(barsByTicker map[string][]yahoo.Bar, quotes map[string]yahoo.Quote) ([]contracts.Observation, bool) {
	tickers := make([]string, 0, len(barsByTicker))
	for t := range barsByTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	missing := 0
	for _, t := range tickers {
		if q, ok := quotes[t]; !ok || (q.MarketCap <= 0 && q.SharesOutstanding <= 0) {
			missing++
		}
	}

	estimated := len(tickers) > 0 && float64(missing)/float64(len(tickers)) > estimateThreshold
	var estimates map[string]float64
	if estimated {
		estimates = estimateMarketCaps(barsByTicker)
	}

	var rows []contracts.Observation
	for _, t := range tickers {
		q := quotes[t]
		for _, bar := range barsByTicker[t] {
			marketCap := 0.0
			switch {
			case q.SharesOutstanding > 0:
				marketCap = q.SharesOutstanding * bar.Close
			case q.MarketCap > 0:
				marketCap = q.MarketCap
			case estimated:
				marketCap = estimates[t]
			}
			if marketCap <= 0 {
				continue
			}

			rows = append(rows, contracts.Observation{
				Date:      bar.Date,
				Ticker:    t,
				Open:      bar.Open,
				High:      bar.High,
				Low:       bar.Low,
				Close:     bar.Close,
				Volume:    bar.Volume,
				MarketCap: marketCap,
			})
		}
	}
	return rows, estimated
}

func estimateMarketCaps(barsByTicker map[string][]yahoo.Bar) map[string]float64 {
	estimates := make(map[string]float64, len(barsByTicker))
	for t, bars := range barsByTicker {
		if len(bars) == 0 {
			continue
		}
		var sumClose, sumVolume float64
		for _, b := range bars {
			sumClose += b.Close
			sumVolume += float64(b.Volume)
		}
		n := float64(len(bars))
		estimates[t] = (sumClose / n) * (sumVolume / n) * estimateMultiplier
	}
	return estimates
}
