package wikipedia

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/httputil"
	"github.com/wonny/eqindex/pkg/logger"
)

// Client scrapes the S&P 500 constituents page
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	url        string
}

// NewClient creates a new Wikipedia client
func NewClient(httpClient *httputil.Client, pageURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("wikipedia"),
		url:        pageURL,
	}
}

// SP500 returns the current S&P 500 constituents
func (c *Client) SP500(ctx context.Context) ([]contracts.Stock, error) {
	body, err := c.httpClient.GetBody(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents page: %w", err)
	}

	stocks, err := ParseConstituents(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(stocks)).Info("Fetched S&P 500 constituents")
	return stocks, nil
}

// ParseConstituents reads the #constituents table.
// Columns are located by header text so reordering on the page is tolerated.
func ParseConstituents(r io.Reader) ([]contracts.Stock, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse constituents page: %w", err)
	}

	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("constituents table not found")
	}

	columns := map[string]int{}
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		columns[strings.TrimSpace(th.Text())] = i
	})

	symbolCol, ok := columns["Symbol"]
	if !ok {
		return nil, fmt.Errorf("constituents table has no Symbol column")
	}
	nameCol, hasName := columns["Security"]
	sectorCol, hasSector := columns["GICS Sector"]

	var stocks []contracts.Stock
	seen := make(map[string]struct{})

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= symbolCol {
			return
		}

		symbolCell := cells.Eq(symbolCol)
		ticker := NormalizeTicker(symbolCell.Text())
		if ticker == "" {
			return
		}
		if _, dup := seen[ticker]; dup {
			return
		}
		seen[ticker] = struct{}{}

		stock := contracts.Stock{Ticker: ticker}
		if hasName && cells.Length() > nameCol {
			stock.Name = strings.TrimSpace(cells.Eq(nameCol).Text())
		}
		if hasSector && cells.Length() > sectorCol {
			stock.Sector = strings.TrimSpace(cells.Eq(sectorCol).Text())
		}
		if href, ok := symbolCell.Find("a").Attr("href"); ok {
			stock.Exchange = exchangeFromLink(href)
		}
		stocks = append(stocks, stock)
	})

	if len(stocks) == 0 {
		return nil, fmt.Errorf("constituents table has no rows")
	}
	return stocks, nil
}

// NormalizeTicker maps a listed symbol to its Yahoo form (BRK.B -> BRK-B)
func NormalizeTicker(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), ".", "-")
}

func exchangeFromLink(href string) string {
	switch {
	case strings.Contains(href, "nyse.com"):
		return "NYSE"
	case strings.Contains(href, "nasdaq.com"):
		return "NASDAQ"
	case strings.Contains(href, "cboe.com"):
		return "CBOE"
	default:
		return ""
	}
}
