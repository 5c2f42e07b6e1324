package server

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// HoldingView is one open position with its live valuation.
type HoldingView struct {
	Mint          string  `json:"mint"`
	TokenName     string  `json:"tokenName"`
	EntryTime     string  `json:"entryTime"`
	Balance       float64 `json:"balance"`
	CostBasisUSD  float64 `json:"costBasisUsd"`
	CurrentPrice  float64 `json:"currentPrice,omitempty"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
	PnLPercent    float64 `json:"pnlPercent"`
	Priced        bool    `json:"priced"`
}

// WebhookResponse reports what a webhook post produced.
type WebhookResponse struct {
	Found     []string `json:"found"`
	Duplicate []string `json:"duplicate"`
}
