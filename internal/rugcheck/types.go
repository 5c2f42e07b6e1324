package rugcheck

// Report is the token risk report returned by the provider.
type Report struct {
	Mint    string `json:"mint"`
	Creator string `json:"creator"`

	Token     TokenInfo `json:"token"`
	TokenMeta TokenMeta `json:"tokenMeta"`

	TopHolders []Holder `json:"topHolders"`
	Markets    []Market `json:"markets"`

	TotalLPProviders     int     `json:"totalLPProviders"`
	TotalMarketLiquidity float64 `json:"totalMarketLiquidity"`

	Rugged bool `json:"rugged"`
	Score  int  `json:"score"`

	Risks []Risk `json:"risks"`

	DetectedAt string `json:"detectedAt"`
}

type TokenInfo struct {
	MintAuthority   *string `json:"mintAuthority"`
	FreezeAuthority *string `json:"freezeAuthority"`
	IsInitialized   bool    `json:"isInitialized"`
}

type TokenMeta struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Mutable bool   `json:"mutable"`
}

type Holder struct {
	Address string  `json:"address"`
	Pct     float64 `json:"pct"`
	Insider bool    `json:"insider"`
}

type Market struct {
	LiquidityA string `json:"liquidityA"`
	LiquidityB string `json:"liquidityB"`
}

type Risk struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Level string `json:"level"`
	Score int    `json:"score"`
}

// Verdict is the outcome of evaluating a report. FailedRule is the name of
// the first rule that failed, empty when Passed.
type Verdict struct {
	Passed     bool
	FailedRule string
}
