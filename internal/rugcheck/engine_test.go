package rugcheck

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
)

type fakeFetcher struct {
	report *Report
	err    error
}

func (f *fakeFetcher) FetchReport(_ context.Context, _ string) (*Report, error) {
	return f.report, f.err
}

type fakeSeen struct {
	recorded [][3]string
	dup      bool
	dupErr   error
}

func (f *fakeSeen) RecordSeen(_ context.Context, mint, name, creator string) error {
	f.recorded = append(f.recorded, [3]string{mint, name, creator})
	return nil
}

func (f *fakeSeen) SeenBefore(_ context.Context, _, _ string) (bool, error) {
	return f.dup, f.dupErr
}

func testConfig() config.RugCheckConfig {
	return config.RugCheckConfig{
		ExcludeLPFromHolders: true,
		MaxSingleHolderPct:   30,
		MinMarketLiquidity:   1000,
		LegacyNotAllowed:     []string{"Freeze Authority still enabled"},
	}
}

func cleanReport() *Report {
	return &Report{
		Mint:    "TokenMint1111111111111111111111111111111111",
		Creator: "Creator111111111111111111111111111111111111",
		Token: TokenInfo{
			MintAuthority:   nil,
			FreezeAuthority: nil,
			IsInitialized:   true,
		},
		TokenMeta: TokenMeta{Name: "Test Token", Symbol: "TEST", Mutable: false},
		TopHolders: []Holder{
			{Address: "holderA", Pct: 10},
			{Address: "holderB", Pct: 5},
		},
		Markets:              []Market{{LiquidityA: "lpA", LiquidityB: "lpB"}},
		TotalLPProviders:     3,
		TotalMarketLiquidity: 25000,
		Score:                100,
		DetectedAt:           time.Now().UTC().Format(time.RFC3339),
	}
}

func newTestEngine(cfg config.RugCheckConfig, r *Report, seen SeenStore) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewEngine(cfg, &fakeFetcher{report: r}, seen, logger)
}

func TestEngine_CleanTokenPasses(t *testing.T) {
	eng := newTestEngine(testConfig(), cleanReport(), nil)

	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.True(t, verdict.Passed)
	assert.Empty(t, verdict.FailedRule)
}

func TestEngine_MintAuthorityFailsFirst(t *testing.T) {
	// A token failing several rules must always report the earliest one.
	r := cleanReport()
	auth := "SomeAuthority"
	r.Token.MintAuthority = &auth
	r.Token.FreezeAuthority = &auth
	r.TokenMeta.Mutable = true
	r.Rugged = true

	eng := newTestEngine(testConfig(), r, nil)

	for i := 0; i < 5; i++ {
		verdict, err := eng.Evaluate(context.Background(), "mint")
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, "mint authority enabled", verdict.FailedRule)
	}
}

func TestEngine_ZeroHoldersFailsOnLiquidity(t *testing.T) {
	// With no holders at all the concentration rules are vacuously
	// satisfied; the liquidity floor is what rejects an empty report.
	r := cleanReport()
	r.TopHolders = nil
	r.Markets = nil
	r.TotalLPProviders = 0
	r.TotalMarketLiquidity = 0

	eng := newTestEngine(testConfig(), r, nil)

	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
	assert.Equal(t, "not enough market liquidity", verdict.FailedRule)
}

func TestEngine_SingleHolderConcentration(t *testing.T) {
	r := cleanReport()
	r.TopHolders = append(r.TopHolders, Holder{Address: "whale", Pct: 45})

	eng := newTestEngine(testConfig(), r, nil)

	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
	assert.Equal(t, "single holder concentration", verdict.FailedRule)
}

func TestEngine_LPHoldersExcluded(t *testing.T) {
	// The pool's own vault holds most of the supply right after init.
	// With exclusion on it must not trip the concentration rule.
	r := cleanReport()
	r.TopHolders = append(r.TopHolders, Holder{Address: "lpA", Pct: 95})

	eng := newTestEngine(testConfig(), r, nil)
	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.True(t, verdict.Passed)

	cfg := testConfig()
	cfg.ExcludeLPFromHolders = false
	eng = newTestEngine(cfg, r, nil)
	verdict, err = eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
	assert.Equal(t, "single holder concentration", verdict.FailedRule)
}

func TestEngine_AllowFlagsInvertEnforcement(t *testing.T) {
	r := cleanReport()
	auth := "SomeAuthority"
	r.Token.MintAuthority = &auth
	r.TokenMeta.Mutable = true

	cfg := testConfig()
	cfg.AllowMintAuthority = true
	cfg.AllowMutable = true

	eng := newTestEngine(cfg, r, nil)

	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.True(t, verdict.Passed)
}

func TestEngine_ScoreZeroDisablesScoreRule(t *testing.T) {
	r := cleanReport()
	r.Score = 99999

	cfg := testConfig()
	cfg.MaxScore = 0
	eng := newTestEngine(cfg, r, nil)
	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.True(t, verdict.Passed)

	cfg.MaxScore = 500
	eng = newTestEngine(cfg, r, nil)
	verdict, err = eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
	assert.Equal(t, "risk score too high", verdict.FailedRule)
}

func TestEngine_TokenAge(t *testing.T) {
	r := cleanReport()
	r.DetectedAt = time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)

	cfg := testConfig()
	cfg.MaxTokenAgeMinutes = 60
	eng := newTestEngine(cfg, r, nil)
	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
	assert.Equal(t, "token too old", verdict.FailedRule)

	cfg.MaxTokenAgeMinutes = 0
	eng = newTestEngine(cfg, r, nil)
	verdict, err = eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.True(t, verdict.Passed)
}

func TestEngine_BlockedRiskFlag(t *testing.T) {
	r := cleanReport()
	r.Risks = []Risk{{Name: "Freeze Authority still enabled"}}

	eng := newTestEngine(testConfig(), r, nil)

	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
	assert.Equal(t, "disallowed risk flag", verdict.FailedRule)
}

func TestEngine_ReturningCreator(t *testing.T) {
	r := cleanReport()
	seen := &fakeSeen{dup: true}

	cfg := testConfig()
	cfg.BlockReturningCreator = true
	eng := newTestEngine(cfg, r, seen)

	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
	assert.Equal(t, "returning creator", verdict.FailedRule)

	// The token is still recorded even when rejected.
	require.Len(t, seen.recorded, 1)
	assert.Equal(t, r.Mint, seen.recorded[0][0])
}

func TestEngine_SeenStoreErrorDoesNotBlock(t *testing.T) {
	r := cleanReport()
	seen := &fakeSeen{dupErr: assert.AnError}

	cfg := testConfig()
	cfg.BlockReturningCreator = true
	eng := newTestEngine(cfg, r, seen)

	verdict, err := eng.Evaluate(context.Background(), "mint")
	require.NoError(t, err)
	assert.True(t, verdict.Passed)
}
