package swap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/archive"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/holdings"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/jupiter"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/txdetail"
)

// recordBuy fetches the confirmed buy's swap detail, prices the SOL leg in
// USD and writes the holding.
func (e *Executor) recordBuy(ctx context.Context, pair txdetail.MintPair, signature string) (*holdings.Holding, error) {
	detail, err := e.details.FetchDetail(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("fetch swap detail for %s: %w", signature, err)
	}

	holding, err := buildHolding(detail, pair)
	if err != nil {
		return nil, fmt.Errorf("build holding from %s: %w", signature, err)
	}

	solPrice := e.solPriceUSD(ctx)
	holding.SolPaidUSD = holding.SolPaid * solPrice
	holding.SolFeePaidUSD = holding.SolFeePaid * solPrice
	if holding.Balance > 0 {
		holding.PerTokenUSD = holding.SolPaidUSD / holding.Balance
	}

	stored, err := e.ledger.Upsert(ctx, holding)
	if err != nil {
		return nil, fmt.Errorf("store holding for %s: %w", pair.BaseMint, err)
	}

	e.archiveTrade(ctx, &archive.TradeRecord{
		Signature: signature,
		Timestamp: time.Now().UTC(),
		Side:      "buy",
		Mint:      holding.Mint,
		TokenName: holding.TokenName,
		Units:     holding.Balance,
		SolAmount: holding.SolPaid,
		SolFee:    holding.SolFeePaid,
		USDAmount: holding.SolPaidUSD,
		Slot:      holding.Slot,
		Program:   holding.Program,
	})

	return stored, nil
}

// buildHolding derives a holding from the swap event of a confirmed buy.
// The SOL leg is the first input of the first inner swap; the received
// tokens are the last output of the last inner swap.
func buildHolding(detail *txdetail.TransactionDetail, pair txdetail.MintPair) (*holdings.Holding, error) {
	if detail.Events.Swap == nil || len(detail.Events.Swap.InnerSwaps) == 0 {
		return nil, fmt.Errorf("no swap event in transaction detail")
	}

	swaps := detail.Events.Swap.InnerSwaps
	first := swaps[0]
	last := swaps[len(swaps)-1]

	if len(first.TokenInputs) == 0 || len(last.TokenOutputs) == 0 {
		return nil, fmt.Errorf("swap event missing token transfers")
	}

	solPaid := first.TokenInputs[0].TokenAmount
	received := last.TokenOutputs[len(last.TokenOutputs)-1]

	if received.Mint != "" && received.Mint != pair.BaseMint {
		return nil, fmt.Errorf("swap output mint %s does not match expected %s", received.Mint, pair.BaseMint)
	}

	entry := time.Now().UTC()
	if detail.Timestamp > 0 {
		entry = time.Unix(detail.Timestamp, 0).UTC()
	}

	return &holdings.Holding{
		Mint:       pair.BaseMint,
		TokenName:  "N/A",
		EntryTime:  entry,
		Balance:    received.TokenAmount,
		SolPaid:    solPaid,
		SolFeePaid: float64(detail.Fee) / 1e9,
		Slot:       detail.Slot,
		Program:    first.ProgramInfo.Source,
	}, nil
}

// recordSimulatedBuy writes a holding for a dry run where nothing is
// submitted on-chain.
func (e *Executor) recordSimulatedBuy(ctx context.Context, pair txdetail.MintPair, quote *jupiter.QuoteResponse) error {
	solPaid := float64(e.swapCfg.AmountLamports) / 1e9

	prices, err := e.jup.Prices(ctx, []string{e.wsol, pair.BaseMint})
	if err != nil {
		e.logger.WithError(err).Warn("price lookup failed, USD fields will be zero")
		prices = map[string]float64{}
	}

	h := &holdings.Holding{
		Mint:       pair.BaseMint,
		TokenName:  "N/A (simulated)",
		EntryTime:  time.Now().UTC(),
		SolPaid:    solPaid,
		SolPaidUSD: solPaid * prices[e.wsol],
		Program:    "simulation",
	}

	// The quote's out amount is in raw base units and the token's decimals
	// are unknown without a chain lookup. When the feed already prices the
	// mint, derive the balance from it so the holding is in UI units like a
	// live one and the exit monitor's percentages mean something.
	if price := prices[pair.BaseMint]; price > 0 && h.SolPaidUSD > 0 {
		h.Balance = h.SolPaidUSD / price
		h.PerTokenUSD = price
	} else {
		outAmount, err := strconv.ParseFloat(quote.OutAmount, 64)
		if err != nil {
			return fmt.Errorf("bad quote out amount %q: %w", quote.OutAmount, err)
		}
		h.Balance = outAmount
		if h.Balance > 0 {
			h.PerTokenUSD = h.SolPaidUSD / h.Balance
		}
	}

	if _, err := e.ledger.Upsert(ctx, h); err != nil {
		return fmt.Errorf("store simulated holding: %w", err)
	}

	e.logger.WithField("mint", pair.BaseMint).Info("simulation mode, buy not submitted")
	return nil
}

func (e *Executor) solPriceUSD(ctx context.Context) float64 {
	prices, err := e.jup.Prices(ctx, []string{e.wsol})
	if err != nil {
		e.logger.WithError(err).Warn("SOL price lookup failed, USD fields will be zero")
		return 0
	}
	return prices[e.wsol]
}
