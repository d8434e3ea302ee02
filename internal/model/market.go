package model

import (
	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. OpenTime is the UTC-aligned open timestamp in
// milliseconds; series handed to the engine are ordered and unique by OpenTime.
type Candle struct {
	Symbol   string          `json:"symbol,omitempty" db:"symbol"`
	Interval string          `json:"interval,omitempty" db:"interval"`
	OpenTime int64           `json:"open_time" db:"open_time"`
	Open     decimal.Decimal `json:"o" db:"open"`
	High     decimal.Decimal `json:"h" db:"high"`
	Low      decimal.Decimal `json:"l" db:"low"`
	Close    decimal.Decimal `json:"c" db:"close"`
	Volume   decimal.Decimal `json:"v" db:"volume"`
}

// intervalMs maps interval names to their duration in milliseconds.
// 1M is approximated at 30 days.
var intervalMs = map[string]int64{
	"1m":  60_000,
	"3m":  3 * 60_000,
	"5m":  5 * 60_000,
	"15m": 15 * 60_000,
	"30m": 30 * 60_000,
	"1h":  3_600_000,
	"2h":  2 * 3_600_000,
	"4h":  4 * 3_600_000,
	"6h":  6 * 3_600_000,
	"8h":  8 * 3_600_000,
	"12h": 12 * 3_600_000,
	"1d":  86_400_000,
	"3d":  3 * 86_400_000,
	"1w":  7 * 86_400_000,
	"1M":  30 * 86_400_000,
}

// IntervalMs returns the candle duration in milliseconds for a Binance-style
// interval name, or 0 if the interval is unknown.
func IntervalMs(interval string) int64 {
	return intervalMs[interval]
}
