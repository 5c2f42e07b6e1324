package txdetail

// MintPair is the base/quote mint pair extracted from a pool-init
// transaction. The quote side is always the configured wSOL mint.
type MintPair struct {
	BaseMint  string
	QuoteMint string
}

// TransactionDetail is one entry of the enriched transaction API response.
type TransactionDetail struct {
	Signature string `json:"signature"`
	Fee       uint64 `json:"fee"` // lamports
	Slot      uint64 `json:"slot"`
	Timestamp int64  `json:"timestamp"`

	Instructions []Instruction `json:"instructions"`
	Events       Events        `json:"events"`
}

type Instruction struct {
	ProgramID string   `json:"programId"`
	Accounts  []string `json:"accounts"`
}

type Events struct {
	Swap *SwapEvent `json:"swap"`
}

type SwapEvent struct {
	InnerSwaps []InnerSwap `json:"innerSwaps"`
}

type InnerSwap struct {
	TokenInputs  []TokenTransfer `json:"tokenInputs"`
	TokenOutputs []TokenTransfer `json:"tokenOutputs"`
	ProgramInfo  ProgramInfo     `json:"programInfo"`
}

type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"`
}

type ProgramInfo struct {
	Source      string `json:"source"`
	ProgramName string `json:"programName"`
	Account     string `json:"account"`
}
