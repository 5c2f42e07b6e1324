package holdings

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no holding exists for a mint.
var ErrNotFound = errors.New("holding not found")

// Holding is one open position. There is at most one per mint; a re-buy is
// merged into the existing record.
type Holding struct {
	Mint      string    `json:"mint"`
	TokenName string    `json:"tokenName"`
	EntryTime time.Time `json:"entryTime"`

	Balance float64 `json:"balance"` // token units, UI amount

	SolPaid    float64 `json:"solPaid"`
	SolFeePaid float64 `json:"solFeePaid"`

	SolPaidUSD    float64 `json:"solPaidUsd"`
	SolFeePaidUSD float64 `json:"solFeePaidUsd"`
	PerTokenUSD   float64 `json:"perTokenUsd"` // cost basis per unit

	Slot    uint64 `json:"slot"`
	Program string `json:"program"` // source program of the swap route
}

// TokenSeen records a token the pipeline has evaluated, kept for
// returning-creator detection and webhook dedupe.
type TokenSeen struct {
	Mint      string    `json:"mint"`
	Name      string    `json:"name"`
	Creator   string    `json:"creator"`
	FirstSeen time.Time `json:"firstSeen"`
}
