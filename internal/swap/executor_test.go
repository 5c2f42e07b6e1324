package swap

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/archive"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/holdings"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/jupiter"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/txdetail"
)

const (
	wsolMint  = "So11111111111111111111111111111111111111112"
	baseMint  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	buySig    = "BuySignature111"
	walletKey = "WalletAddress111"
)

type fakeQuoter struct {
	quoteErrs  []error // consumed one per Quote call, nil = success
	quoteCalls int
	quote      *jupiter.QuoteResponse

	buildErr   error
	buildCalls int

	prices map[string]float64
}

func (f *fakeQuoter) Quote(_ context.Context, _ jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
	idx := f.quoteCalls
	f.quoteCalls++
	if idx < len(f.quoteErrs) && f.quoteErrs[idx] != nil {
		return nil, f.quoteErrs[idx]
	}
	if f.quote != nil {
		return f.quote, nil
	}
	return &jupiter.QuoteResponse{OutAmount: "1000000"}, nil
}

func (f *fakeQuoter) BuildSwap(_ context.Context, _ jupiter.SwapRequest) (*jupiter.SwapResponse, error) {
	f.buildCalls++
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &jupiter.SwapResponse{SwapTransaction: "c2VyaWFsaXplZA==", LastValidBlockHeight: 500}, nil
}

func (f *fakeQuoter) Prices(_ context.Context, mints []string) (map[string]float64, error) {
	if f.prices == nil {
		return map[string]float64{wsolMint: 200}, nil
	}
	return f.prices, nil
}

type fakeWallet struct {
	submitErr  error
	confirmErr error
	submitted  int

	balanceUI  float64
	balanceRaw string
	balanceErr error
}

func (f *fakeWallet) Address() string { return walletKey }

func (f *fakeWallet) SubmitSerialized(_ context.Context, _ string) (string, error) {
	f.submitted++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return buySig, nil
}

func (f *fakeWallet) ConfirmTransaction(_ context.Context, _, _ string, _ uint64) error {
	return f.confirmErr
}

func (f *fakeWallet) GetTokenBalance(_ context.Context, _ string) (float64, string, error) {
	return f.balanceUI, f.balanceRaw, f.balanceErr
}

type fakeLedger struct {
	upserts []*holdings.Holding
	removed []string
}

func (f *fakeLedger) Upsert(_ context.Context, h *holdings.Holding) (*holdings.Holding, error) {
	f.upserts = append(f.upserts, h)
	return h, nil
}

func (f *fakeLedger) Remove(_ context.Context, mint string) error {
	f.removed = append(f.removed, mint)
	return nil
}

type fakeDetails struct {
	detail *txdetail.TransactionDetail
	err    error
}

func (f *fakeDetails) FetchDetail(_ context.Context, _ string) (*txdetail.TransactionDetail, error) {
	return f.detail, f.err
}

type fakeNotifier struct {
	titles []string
}

func (f *fakeNotifier) Notify(_ context.Context, title, _ string) {
	f.titles = append(f.titles, title)
}

type fakeArchiver struct {
	trades []*archive.TradeRecord
}

func (f *fakeArchiver) InsertTrade(_ context.Context, t *archive.TradeRecord) error {
	f.trades = append(f.trades, t)
	return nil
}

func buyDetail() *txdetail.TransactionDetail {
	return &txdetail.TransactionDetail{
		Fee:       5000,
		Slot:      123456,
		Timestamp: 1700000000,
		Events: txdetail.Events{
			Swap: &txdetail.SwapEvent{
				InnerSwaps: []txdetail.InnerSwap{{
					TokenInputs: []txdetail.TokenTransfer{{
						Mint: wsolMint, TokenAmount: 0.01,
					}},
					TokenOutputs: []txdetail.TokenTransfer{{
						Mint: baseMint, TokenAmount: 50000,
					}},
					ProgramInfo: txdetail.ProgramInfo{Source: "RAYDIUM"},
				}},
			},
		},
	}
}

func notTradableErr() error {
	return &jupiter.HTTPError{StatusCode: 400, Body: []byte(`{"errorCode":"TOKEN_NOT_TRADABLE"}`)}
}

func testExecutor(q *fakeQuoter, w *fakeWallet, l *fakeLedger, d *fakeDetails, n *fakeNotifier, a *fakeArchiver) *Executor {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	var chainWallet ChainWallet
	if w != nil {
		chainWallet = w
	}
	var notifier Notifier
	if n != nil {
		notifier = n
	}
	var archiver Archiver
	if a != nil {
		archiver = a
	}
	var details DetailFetcher
	if d != nil {
		details = d
	}

	return NewExecutor(Options{
		SwapConfig: config.SwapConfig{
			AmountLamports:     10_000_000,
			SlippageBps:        200,
			PrioFeeMaxLamports: 1_000_000,
			PrioLevel:          "veryHigh",
			NotTradableRetries: 3,
			NotTradableDelay:   0,
		},
		SellConfig: config.SellConfig{
			SlippageBps:        200,
			PrioFeeMaxLamports: 1_000_000,
			PrioLevel:          "veryHigh",
		},
		WSOLMint: wsolMint,
		Quoter:   q,
		Wallet:   chainWallet,
		Ledger:   l,
		Details:  details,
		Notifier: notifier,
		Archiver: archiver,
		Logger:   logger,
	})
}

func TestExecutor_BuyRecordsHolding(t *testing.T) {
	q := &fakeQuoter{}
	w := &fakeWallet{}
	l := &fakeLedger{}
	d := &fakeDetails{detail: buyDetail()}
	n := &fakeNotifier{}
	a := &fakeArchiver{}

	e := testExecutor(q, w, l, d, n, a)

	err := e.Buy(context.Background(), txdetail.MintPair{BaseMint: baseMint, QuoteMint: wsolMint})
	require.NoError(t, err)

	require.Len(t, l.upserts, 1)
	h := l.upserts[0]
	assert.Equal(t, baseMint, h.Mint)
	assert.Equal(t, 50000.0, h.Balance)
	assert.Equal(t, 0.01, h.SolPaid)
	assert.InDelta(t, 5000.0/1e9, h.SolFeePaid, 1e-12)
	assert.InDelta(t, 0.01*200, h.SolPaidUSD, 1e-9)
	assert.InDelta(t, 2.0/50000.0, h.PerTokenUSD, 1e-12)
	assert.Equal(t, uint64(123456), h.Slot)
	assert.Equal(t, "RAYDIUM", h.Program)

	require.Len(t, a.trades, 1)
	assert.Equal(t, "buy", a.trades[0].Side)
	assert.Contains(t, n.titles, "Sniped new token")
}

func TestExecutor_BuyRetriesNotTradable(t *testing.T) {
	q := &fakeQuoter{quoteErrs: []error{notTradableErr(), notTradableErr(), nil}}
	w := &fakeWallet{}
	l := &fakeLedger{}
	d := &fakeDetails{detail: buyDetail()}

	e := testExecutor(q, w, l, d, nil, nil)

	err := e.Buy(context.Background(), txdetail.MintPair{BaseMint: baseMint, QuoteMint: wsolMint})
	require.NoError(t, err)
	assert.Equal(t, 3, q.quoteCalls)
}

func TestExecutor_BuyGivesUpAfterRetryBudget(t *testing.T) {
	q := &fakeQuoter{quoteErrs: []error{notTradableErr(), notTradableErr(), notTradableErr()}}
	w := &fakeWallet{}
	l := &fakeLedger{}

	e := testExecutor(q, w, l, nil, nil, nil)

	err := e.Buy(context.Background(), txdetail.MintPair{BaseMint: baseMint, QuoteMint: wsolMint})
	assert.Error(t, err)
	assert.Equal(t, 3, q.quoteCalls)
	assert.Zero(t, w.submitted)
	assert.Empty(t, l.upserts)
}

func TestExecutor_BuyAbortsOnOtherQuoteError(t *testing.T) {
	q := &fakeQuoter{quoteErrs: []error{&jupiter.HTTPError{StatusCode: 500, Body: []byte("boom")}}}
	w := &fakeWallet{}
	l := &fakeLedger{}

	e := testExecutor(q, w, l, nil, nil, nil)

	err := e.Buy(context.Background(), txdetail.MintPair{BaseMint: baseMint, QuoteMint: wsolMint})
	assert.Error(t, err)
	assert.Equal(t, 1, q.quoteCalls, "server errors are not retried")
}

func TestExecutor_BuyConfirmFailureIsTerminal(t *testing.T) {
	q := &fakeQuoter{}
	w := &fakeWallet{confirmErr: errors.New("transaction failed on-chain")}
	l := &fakeLedger{}

	e := testExecutor(q, w, l, nil, nil, nil)

	err := e.Buy(context.Background(), txdetail.MintPair{BaseMint: baseMint, QuoteMint: wsolMint})
	assert.Error(t, err)
	assert.Empty(t, l.upserts)
}

func TestExecutor_SimulationModeSkipsSubmission(t *testing.T) {
	q := &fakeQuoter{quote: &jupiter.QuoteResponse{OutAmount: "50000"}}
	w := &fakeWallet{}
	l := &fakeLedger{}

	e := testExecutor(q, w, l, nil, nil, nil)
	e.swapCfg.SimulationMode = true

	err := e.Buy(context.Background(), txdetail.MintPair{BaseMint: baseMint, QuoteMint: wsolMint})
	require.NoError(t, err)
	assert.Zero(t, w.submitted)
	assert.Zero(t, q.buildCalls)
	require.Len(t, l.upserts, 1)
	assert.Equal(t, 50000.0, l.upserts[0].Balance)
}

func TestExecutor_SimulationBuyPricesBalanceFromFeed(t *testing.T) {
	q := &fakeQuoter{
		quote:  &jupiter.QuoteResponse{OutAmount: "50000000000"},
		prices: map[string]float64{wsolMint: 200, baseMint: 0.0001},
	}
	l := &fakeLedger{}

	e := testExecutor(q, nil, l, nil, nil, nil)
	e.swapCfg.SimulationMode = true

	err := e.Buy(context.Background(), txdetail.MintPair{BaseMint: baseMint, QuoteMint: wsolMint})
	require.NoError(t, err)

	require.Len(t, l.upserts, 1)
	h := l.upserts[0]
	// 0.01 SOL at $200 buys $2 of tokens at $0.0001 each, in UI units rather
	// than the quote's raw base units.
	assert.InDelta(t, 2.0, h.SolPaidUSD, 1e-9)
	assert.InDelta(t, 20000.0, h.Balance, 1e-6)
	assert.InDelta(t, 0.0001, h.PerTokenUSD, 1e-12)
}

func TestExecutor_SimulationSellNeedsNoWallet(t *testing.T) {
	q := &fakeQuoter{}
	l := &fakeLedger{}
	n := &fakeNotifier{}

	// Keyless dry runs wire no wallet at all; a threshold-triggered sell
	// must still complete without touching the chain.
	e := testExecutor(q, nil, l, nil, n, nil)
	e.swapCfg.SimulationMode = true

	err := e.Sell(context.Background(), testHolding())
	require.NoError(t, err)
	assert.Zero(t, q.quoteCalls)
	assert.Zero(t, q.buildCalls)
	// Removal on success belongs to the exit monitor.
	assert.Empty(t, l.removed)
}

func testHolding() *holdings.Holding {
	return &holdings.Holding{
		Mint:        baseMint,
		TokenName:   "Test Token",
		Balance:     50000,
		PerTokenUSD: 0.00004,
	}
}

func TestExecutor_SellZeroBalanceRemovesEntry(t *testing.T) {
	q := &fakeQuoter{}
	w := &fakeWallet{balanceUI: 0, balanceRaw: "0"}
	l := &fakeLedger{}

	e := testExecutor(q, w, l, nil, nil, nil)

	err := e.Sell(context.Background(), testHolding())
	assert.ErrorIs(t, err, ErrNoBalance)
	assert.Equal(t, []string{baseMint}, l.removed)
	assert.Zero(t, w.submitted)
}

func TestExecutor_SellBalanceMismatchHalts(t *testing.T) {
	q := &fakeQuoter{}
	w := &fakeWallet{balanceUI: 20000, balanceRaw: "20000000000"}
	l := &fakeLedger{}
	n := &fakeNotifier{}

	e := testExecutor(q, w, l, nil, n, nil)

	err := e.Sell(context.Background(), testHolding())
	assert.ErrorIs(t, err, ErrBalanceMismatch)
	assert.Zero(t, w.submitted, "no sell is attempted on a mismatch")
	assert.Empty(t, l.removed, "the entry stays for manual reconciliation")
	assert.Contains(t, n.titles, "Balance mismatch")
}

func TestExecutor_SellHappyPath(t *testing.T) {
	q := &fakeQuoter{}
	w := &fakeWallet{balanceUI: 50000, balanceRaw: "50000000000"}
	l := &fakeLedger{}
	n := &fakeNotifier{}
	a := &fakeArchiver{}

	e := testExecutor(q, w, l, nil, n, a)

	err := e.Sell(context.Background(), testHolding())
	require.NoError(t, err)
	assert.Equal(t, 1, w.submitted)
	// Removal on success belongs to the exit monitor, not the executor.
	assert.Empty(t, l.removed)

	require.Len(t, a.trades, 1)
	assert.Equal(t, "sell", a.trades[0].Side)
	assert.Contains(t, n.titles, "Position closed")
}

func TestBalancesMatch(t *testing.T) {
	assert.True(t, balancesMatch(100, 100))
	assert.True(t, balancesMatch(100, 100.00000001))
	assert.False(t, balancesMatch(100, 99))
	assert.False(t, balancesMatch(0, 100))
}
