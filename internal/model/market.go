package model

import "time"

// Trend is the direction of a metric's latest change.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// MetricCategory is the asset class of a market metric.
type MetricCategory string

const (
	MetricIndex     MetricCategory = "Index"
	MetricCrypto    MetricCategory = "Crypto"
	MetricCurrency  MetricCategory = "Currency"
	MetricCommodity MetricCategory = "Commodity"
)

// MarketMetric is one row of a market snapshot.
// Metrics are never edited in place; a refresh replaces the whole snapshot.
type MarketMetric struct {
	Name     string         `json:"name"`
	Value    float64        `json:"value"`
	Change   float64        `json:"change"` // percentage
	Trend    Trend          `json:"trend"`
	Currency string         `json:"currency,omitempty"`
	Type     MetricCategory `json:"type"`
}

// MarketSnapshot is a full, immutable set of metrics taken at one instant.
type MarketSnapshot struct {
	Metrics []MarketMetric `json:"metrics"`
	TakenAt time.Time      `json:"takenAt"`
}
