package swap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/archive"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/holdings"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/jupiter"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/txdetail"
)

// ErrNoBalance is returned by Sell when the wallet holds none of the token.
// The ledger entry is already removed when this comes back.
var ErrNoBalance = errors.New("no on-chain balance for holding")

// ErrBalanceMismatch is returned by Sell when the on-chain balance is
// non-zero but does not match the ledger. No sell is attempted; the
// operator has to reconcile by hand.
var ErrBalanceMismatch = errors.New("on-chain balance does not match ledger")

// Quoter is the aggregator surface the executor needs.
type Quoter interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
	BuildSwap(ctx context.Context, req jupiter.SwapRequest) (*jupiter.SwapResponse, error)
	Prices(ctx context.Context, mints []string) (map[string]float64, error)
}

// ChainWallet submits and confirms transactions and answers balance queries.
type ChainWallet interface {
	Address() string
	SubmitSerialized(ctx context.Context, encodedTx string) (string, error)
	ConfirmTransaction(ctx context.Context, signature, commitment string, lastValidBlockHeight uint64) error
	GetTokenBalance(ctx context.Context, mint string) (float64, string, error)
}

// Ledger is the slice of the holdings store the executor writes to.
type Ledger interface {
	Upsert(ctx context.Context, h *holdings.Holding) (*holdings.Holding, error)
	Remove(ctx context.Context, mint string) error
}

// DetailFetcher looks up a confirmed transaction's enriched detail.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, signature string) (*txdetail.TransactionDetail, error)
}

// Notifier receives operator notifications. Implementations never block
// the trade path on delivery.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Archiver records confirmed trades. Nil disables archiving.
type Archiver interface {
	InsertTrade(ctx context.Context, trade *archive.TradeRecord) error
}

// Executor drives the swap lifecycle: quote, build, sign, submit, confirm,
// then the post-trade bookkeeping.
type Executor struct {
	swapCfg config.SwapConfig
	sellCfg config.SellConfig
	wsol    string

	jup      Quoter
	wallet   ChainWallet
	ledger   Ledger
	details  DetailFetcher
	notifier Notifier
	archiver Archiver
	logger   *logrus.Logger
}

type Options struct {
	SwapConfig config.SwapConfig
	SellConfig config.SellConfig
	WSOLMint   string

	Quoter   Quoter
	Wallet   ChainWallet
	Ledger   Ledger
	Details  DetailFetcher
	Notifier Notifier
	Archiver Archiver
	Logger   *logrus.Logger
}

func NewExecutor(opts Options) *Executor {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Executor{
		swapCfg:  opts.SwapConfig,
		sellCfg:  opts.SellConfig,
		wsol:     opts.WSOLMint,
		jup:      opts.Quoter,
		wallet:   opts.Wallet,
		ledger:   opts.Ledger,
		details:  opts.Details,
		notifier: opts.Notifier,
		archiver: opts.Archiver,
		logger:   opts.Logger,
	}
}

// Buy swaps the configured SOL amount into pair.BaseMint and records the
// resulting holding. Freshly initialized pools are often not yet routable,
// so that quote rejection is retried a fixed number of times.
func (e *Executor) Buy(ctx context.Context, pair txdetail.MintPair) error {
	quote, err := e.quoteWithRetry(ctx, jupiter.QuoteRequest{
		InputMint:   e.wsol,
		OutputMint:  pair.BaseMint,
		Amount:      e.swapCfg.AmountLamports,
		SlippageBps: e.swapCfg.SlippageBps,
	})
	if err != nil {
		return fmt.Errorf("quote for %s: %w", pair.BaseMint, err)
	}

	if e.swapCfg.SimulationMode {
		return e.recordSimulatedBuy(ctx, pair, quote)
	}

	swapTx, err := e.jup.BuildSwap(ctx, jupiter.SwapRequest{
		Quote:              quote,
		UserPublicKey:      e.wallet.Address(),
		PrioFeeMaxLamports: e.swapCfg.PrioFeeMaxLamports,
		PrioLevel:          e.swapCfg.PrioLevel,
		DynamicSlippageBps: e.swapCfg.SlippageBps,
	})
	if err != nil {
		return fmt.Errorf("build swap for %s: %w", pair.BaseMint, err)
	}

	signature, err := e.wallet.SubmitSerialized(ctx, swapTx.SwapTransaction)
	if err != nil {
		return fmt.Errorf("submit buy for %s: %w", pair.BaseMint, err)
	}

	e.logger.WithFields(logrus.Fields{
		"mint":      pair.BaseMint,
		"signature": signature,
	}).Info("buy submitted")

	if err := e.wallet.ConfirmTransaction(ctx, signature, "confirmed", swapTx.LastValidBlockHeight); err != nil {
		return fmt.Errorf("confirm buy %s: %w", signature, err)
	}

	holding, err := e.recordBuy(ctx, pair, signature)
	if err != nil {
		return err
	}

	e.notify(ctx, "Sniped new token",
		fmt.Sprintf("Bought %.4f %s for %.4f SOL\nhttps://solscan.io/tx/%s",
			holding.Balance, holding.TokenName, holding.SolPaid, signature))
	return nil
}

// Sell exits the full position. The ledger entry is removed by the caller
// on success; a zero balance removes it here and reports ErrNoBalance.
func (e *Executor) Sell(ctx context.Context, h *holdings.Holding) error {
	// Dry runs have no wallet and nothing on-chain to check or sell. A nil
	// return hands removal to the exit monitor like a confirmed sell.
	if e.swapCfg.SimulationMode {
		e.logger.WithField("mint", h.Mint).Info("simulation mode, sell not submitted")
		return nil
	}

	ui, raw, err := e.wallet.GetTokenBalance(ctx, h.Mint)
	if err != nil {
		return fmt.Errorf("balance check for %s: %w", h.Mint, err)
	}

	if ui == 0 {
		// Lost track of the position (sold elsewhere, or the buy never
		// actually delivered). Nothing to sell.
		e.logger.WithField("mint", h.Mint).Warn("no on-chain balance, removing holding")
		if err := e.ledger.Remove(ctx, h.Mint); err != nil {
			e.logger.WithError(err).Warn("failed to remove empty holding")
		}
		return ErrNoBalance
	}

	if !balancesMatch(ui, h.Balance) {
		e.notify(ctx, "Balance mismatch",
			fmt.Sprintf("Ledger has %.6f of %s but wallet holds %.6f. Selling halted for this token.",
				h.Balance, h.Mint, ui))
		return fmt.Errorf("%w: ledger %.6f, chain %.6f", ErrBalanceMismatch, h.Balance, ui)
	}

	amount, err := parseRawAmount(raw)
	if err != nil {
		return fmt.Errorf("bad raw balance for %s: %w", h.Mint, err)
	}

	quote, err := e.jup.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   h.Mint,
		OutputMint:  e.wsol,
		Amount:      amount,
		SlippageBps: e.sellCfg.SlippageBps,
	})
	if err != nil {
		return fmt.Errorf("sell quote for %s: %w", h.Mint, err)
	}

	swapTx, err := e.jup.BuildSwap(ctx, jupiter.SwapRequest{
		Quote:              quote,
		UserPublicKey:      e.wallet.Address(),
		PrioFeeMaxLamports: e.sellCfg.PrioFeeMaxLamports,
		PrioLevel:          e.sellCfg.PrioLevel,
		DynamicSlippageBps: e.sellCfg.SlippageBps,
	})
	if err != nil {
		return fmt.Errorf("build sell for %s: %w", h.Mint, err)
	}

	signature, err := e.wallet.SubmitSerialized(ctx, swapTx.SwapTransaction)
	if err != nil {
		return fmt.Errorf("submit sell for %s: %w", h.Mint, err)
	}

	e.logger.WithFields(logrus.Fields{
		"mint":      h.Mint,
		"signature": signature,
	}).Info("sell submitted")

	if err := e.wallet.ConfirmTransaction(ctx, signature, "confirmed", swapTx.LastValidBlockHeight); err != nil {
		return fmt.Errorf("confirm sell %s: %w", signature, err)
	}

	e.archiveTrade(ctx, &archive.TradeRecord{
		Signature: signature,
		Timestamp: time.Now().UTC(),
		Side:      "sell",
		Mint:      h.Mint,
		TokenName: h.TokenName,
		Units:     h.Balance,
		Slot:      h.Slot,
		Program:   h.Program,
	})

	e.notify(ctx, "Position closed",
		fmt.Sprintf("Sold %.4f %s\nhttps://solscan.io/tx/%s", h.Balance, h.TokenName, signature))
	return nil
}

func (e *Executor) quoteWithRetry(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
	var lastErr error
	attempts := e.swapCfg.NotTradableRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.swapCfg.NotTradableDelay):
			}
		}

		quote, err := e.jup.Quote(ctx, req)
		if err == nil {
			return quote, nil
		}
		if !jupiter.IsNotTradable(err) {
			return nil, err
		}
		lastErr = err
		e.logger.WithFields(logrus.Fields{
			"mint":    req.OutputMint,
			"attempt": attempt + 1,
		}).Debug("token not yet tradable")
	}

	return nil, fmt.Errorf("token stayed untradable after %d attempts: %w", attempts, lastErr)
}

func (e *Executor) notify(ctx context.Context, title, message string) {
	if e.notifier != nil {
		e.notifier.Notify(ctx, title, message)
	}
}

func (e *Executor) archiveTrade(ctx context.Context, trade *archive.TradeRecord) {
	if e.archiver == nil {
		return
	}
	if err := e.archiver.InsertTrade(ctx, trade); err != nil {
		e.logger.WithError(err).Warn("trade archive insert failed")
	}
}

// balancesMatch compares the ledger and chain balances with a small
// relative tolerance for decimal rounding.
func balancesMatch(chain, ledger float64) bool {
	diff := math.Abs(chain - ledger)
	scale := math.Max(math.Abs(chain), math.Abs(ledger))
	return diff <= scale*1e-6
}

func parseRawAmount(raw string) (uint64, error) {
	var amount uint64
	_, err := fmt.Sscanf(raw, "%d", &amount)
	return amount, err
}
