package contracts

// RankedStock is a candidate constituent for a date, ordered by market cap
type RankedStock struct {
	Ticker    string  `json:"ticker"`
	MarketCap float64 `json:"market_cap"`
	Close     float64 `json:"close"`
}

// CompositionEntry is one weighted constituent of the index on a date
// ⭐ SSOT: weight = 1/K for the K constituents of the date
type CompositionEntry struct {
	Date   string  `json:"date"`
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
}

// PerformancePoint is the index return for one trading date.
// Returns are fractions: 0.01 means 1%.
type PerformancePoint struct {
	Date             string  `json:"date"`
	DailyReturn      float64 `json:"daily_return"`
	CumulativeReturn float64 `json:"cumulative_return"`
}

// EventType is the kind of constituent change
type EventType string

const (
	EventEntry EventType = "ENTRY"
	EventExit  EventType = "EXIT"
)

// ChangeEvent records a ticker entering or leaving the index on a date
type ChangeEvent struct {
	Date   string    `json:"date"`
	Ticker string    `json:"ticker"`
	Event  EventType `json:"event"`
}

// CompositionDetail is a constituent joined with metadata and the day's bar
type CompositionDetail struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Sector    string  `json:"sector"`
	Weight    float64 `json:"weight"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
}

// ChangeDetail is a change event joined with ticker metadata
type ChangeDetail struct {
	Date   string    `json:"date"`
	Ticker string    `json:"ticker"`
	Name   string    `json:"name"`
	Sector string    `json:"sector"`
	Event  EventType `json:"event"`
}

// BuildSummary is returned by a successful index build
type BuildSummary struct {
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date"`
	TradingDays        int    `json:"trading_days"`
	CompositionChanges int    `json:"composition_changes"`
}

// PerformanceResponse is the performance read model
type PerformanceResponse struct {
	StartDate    string             `json:"start_date"`
	EndDate      string             `json:"end_date"`
	Performances []PerformancePoint `json:"performances"`
}

// CompositionResponse is the composition read model
type CompositionResponse struct {
	Date         string              `json:"date"`
	Compositions []CompositionDetail `json:"compositions"`
}

// ChangesResponse is the change ledger read model
type ChangesResponse struct {
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
	Changes   []ChangeDetail `json:"changes"`
}
