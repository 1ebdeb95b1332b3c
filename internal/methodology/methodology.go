package methodology

// Methodology describes how an index is constructed and maintained
type Methodology struct {
	Meta         Meta         `yaml:"meta" json:"meta"`
	Construction Construction `yaml:"construction" json:"construction"`
	Acquisition  Acquisition  `yaml:"acquisition" json:"acquisition"`
	Quality      Quality      `yaml:"quality" json:"quality"`
}

// Meta identifies the index
type Meta struct {
	IndexID     string `yaml:"index_id" json:"index_id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
}

// Construction selects and weights constituents per trading date
type Construction struct {
	Size      int    `yaml:"size" json:"size"`
	Ranking   string `yaml:"ranking" json:"ranking"`     // only "market_cap"
	Weighting string `yaml:"weighting" json:"weighting"` // only "equal"
}

// Acquisition controls the market data collector
type Acquisition struct {
	Days     int    `yaml:"days" json:"days"`
	Workers  int    `yaml:"workers" json:"workers"`
	Schedule string `yaml:"schedule" json:"schedule"` // cron, seconds first
}

// Quality holds coverage thresholds checked before a build
type Quality struct {
	MinPriceCoverage  float64 `yaml:"min_price_coverage" json:"min_price_coverage"`
	MinVolumeCoverage float64 `yaml:"min_volume_coverage" json:"min_volume_coverage"`
}

const (
	RankingMarketCap = "market_cap"
	WeightingEqual   = "equal"
)
