package contracts

// Stock is ticker metadata
// ⭐ SSOT: stocks table row
type Stock struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Exchange string `json:"exchange"`
}

// Observation is one daily bar for a ticker.
// Immutable once stored for a (date, ticker) pair.
type Observation struct {
	Date      string  `json:"date"`
	Ticker    string  `json:"ticker"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	MarketCap float64 `json:"market_cap"`
}

// AcquisitionResult summarizes one market data acquisition run
type AcquisitionResult struct {
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date"`
	Tickers            int    `json:"tickers"`
	StocksUpserted     int    `json:"stocks_upserted"`
	ObservationsStored int    `json:"observations_stored"`
	TickersFailed      int    `json:"tickers_failed"`
	MarketCapEstimated bool   `json:"market_cap_estimated"`
}

// DateCoverage counts what is stored for one trading date
type DateCoverage struct {
	Date         string `json:"date"`
	Observations int    `json:"observations"`
	WithVolume   int    `json:"with_volume"`
}
