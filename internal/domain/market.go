package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus represents the lifecycle state of a market. The transition is
// strictly active -> resolved; resolved is terminal.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusResolved MarketStatus = "resolved"
)

// OutcomeSlot is one entry of a market's ordered outcome set. The index space
// is fixed at market creation and mirrors the on-chain outcome indices.
type OutcomeSlot struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// Market is a single on-chain prediction market deployed by the factory.
// Identity is the market contract address (lowercase hex).
type Market struct {
	Address  string        `json:"address"`
	Factory  string        `json:"factory"`
	Creator  string        `json:"creator"`
	Question string        `json:"question"`
	Outcomes []OutcomeSlot `json:"outcomes"`
	Status   MarketStatus  `json:"status"`

	// ResolutionTime is the deadline after which the resolver may settle the
	// market against the real-world result.
	ResolutionTime time.Time `json:"resolution_time"`
	WinningOutcome *int      `json:"winning_outcome,omitempty"`

	// Running totals, replaced (never decremented) as trade and liquidity
	// events arrive.
	Volume    decimal.Decimal `json:"volume"`
	Liquidity decimal.Decimal `json:"liquidity"`

	// Resolution routing metadata. GameID identifies the subject at the
	// sports-data provider; Mode and Threshold select the outcome mapping.
	GameID    string         `json:"game_id,omitempty"`
	Mode      ResolutionMode `json:"mode"`
	Threshold float64        `json:"threshold"`

	CreatedBlock uint64    `json:"created_block"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsResolved reports whether the market has reached its terminal state.
func (m Market) IsResolved() bool {
	return m.Status == MarketStatusResolved
}

// DueForResolution reports whether the market's deadline has passed at the
// given instant and it has not yet been settled.
func (m Market) DueForResolution(now time.Time) bool {
	return !m.IsResolved() && !now.Before(m.ResolutionTime)
}
