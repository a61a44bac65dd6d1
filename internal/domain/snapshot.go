package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a timestamped sample of a market's per-outcome prices and
// aggregate volume/liquidity. Snapshots are appended opportunistically after
// trade and liquidity events, not on a fixed clock, and are ordered by
// timestamp per market.
type Snapshot struct {
	MarketAddress string    `json:"market_address"`
	Timestamp     time.Time `json:"timestamp"`

	// Prices holds one price per outcome index. A failed price read for a
	// single outcome degrades to zero rather than discarding the sample.
	Prices []decimal.Decimal `json:"prices"`

	Volume    decimal.Decimal `json:"volume"`
	Liquidity decimal.Decimal `json:"liquidity"`
}
