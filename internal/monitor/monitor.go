package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/holdings"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/swap"
)

// Ledger is the slice of the holdings store the monitor needs.
type Ledger interface {
	List(ctx context.Context) ([]*holdings.Holding, error)
	Remove(ctx context.Context, mint string) error
}

// Pricer supplies current USD prices for a batch of mints.
type Pricer interface {
	Prices(ctx context.Context, mints []string) (map[string]float64, error)
}

// Seller executes a full-position exit.
type Seller interface {
	Sell(ctx context.Context, h *holdings.Holding) error
}

// Notifier receives operator notifications.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Monitor reprices open holdings on a fixed interval and triggers exits
// when stop-loss or take-profit thresholds are crossed. A failed sell is
// simply retried next tick; the interval itself is the throttle.
type Monitor struct {
	sellCfg  config.SellConfig
	priceCfg config.PriceConfig

	ledger   Ledger
	pricer   Pricer
	seller   Seller
	notifier Notifier
	logger   *logrus.Logger

	// halted marks mints whose ledger/chain balances disagree. They are
	// skipped until the operator reconciles and restarts.
	halted map[string]bool
}

func New(sellCfg config.SellConfig, priceCfg config.PriceConfig, ledger Ledger, pricer Pricer, seller Seller, notifier Notifier, logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{
		sellCfg:  sellCfg,
		priceCfg: priceCfg,
		ledger:   ledger,
		pricer:   pricer,
		seller:   seller,
		notifier: notifier,
		logger:   logger,
		halted:   make(map[string]bool),
	}
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.priceCfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				m.logger.WithError(err).Warn("holdings check failed")
			}
		}
	}
}

// Tick runs one pricing pass over all open holdings.
func (m *Monitor) Tick(ctx context.Context) error {
	open, err := m.ledger.List(ctx)
	if err != nil {
		return fmt.Errorf("list holdings: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	mints := make([]string, 0, len(open))
	for _, h := range open {
		mints = append(mints, h.Mint)
	}

	prices, err := m.pricer.Prices(ctx, mints)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	for _, h := range open {
		if m.halted[h.Mint] {
			continue
		}
		m.check(ctx, h, prices)
	}
	return nil
}

func (m *Monitor) notify(ctx context.Context, title, message string) {
	if m.notifier != nil {
		m.notifier.Notify(ctx, title, message)
	}
}

func (m *Monitor) check(ctx context.Context, h *holdings.Holding, prices map[string]float64) {
	price, ok := prices[h.Mint]
	if !ok {
		m.logger.WithField("mint", h.Mint).Debug("no price datum this tick")
		return
	}

	// Positions whose price stays under the worthless floor past the grace
	// age are written off instead of polled forever.
	if price < m.priceCfg.MinPriceUSD && time.Since(h.EntryTime) > m.priceCfg.StaleAge {
		m.logger.WithFields(logrus.Fields{
			"mint":  h.Mint,
			"price": price,
		}).Info("removing stale worthless position")
		if err := m.ledger.Remove(ctx, h.Mint); err != nil {
			m.logger.WithError(err).Warn("failed to remove stale position")
		}
		m.notify(ctx, "Position written off",
			fmt.Sprintf("%s stayed below $%.8f for over %s, removed without selling.",
				h.Mint, m.priceCfg.MinPriceUSD, m.priceCfg.StaleAge))
		return
	}

	pnl, percent := Unrealized(h.PerTokenUSD, h.Balance, price, h.SolFeePaidUSD)

	m.logger.WithFields(logrus.Fields{
		"mint":    h.Mint,
		"price":   price,
		"pnl":     fmt.Sprintf("%.2f", pnl),
		"percent": fmt.Sprintf("%.2f%%", percent),
	}).Debug("position repriced")

	if !m.sellCfg.AutoSell {
		return
	}

	takeProfit := percent >= m.sellCfg.TakeProfitPercent
	stopLoss := percent <= -m.sellCfg.StopLossPercent
	if !takeProfit && !stopLoss {
		return
	}

	reason := "take-profit"
	if stopLoss {
		reason = "stop-loss"
	}
	m.logger.WithFields(logrus.Fields{
		"mint":    h.Mint,
		"percent": fmt.Sprintf("%.2f%%", percent),
		"reason":  reason,
	}).Info("exit threshold crossed")

	err := m.seller.Sell(ctx, h)
	switch {
	case err == nil:
		if err := m.ledger.Remove(ctx, h.Mint); err != nil {
			m.logger.WithError(err).Warn("failed to remove sold holding")
		}
	case errors.Is(err, swap.ErrNoBalance):
		// Ledger entry already removed by the executor.
	case errors.Is(err, swap.ErrBalanceMismatch):
		m.halted[h.Mint] = true
		m.logger.WithField("mint", h.Mint).Error("selling halted for mint, manual reconciliation required")
	default:
		m.logger.WithError(err).WithField("mint", h.Mint).Warn("sell failed, retrying next tick")
	}
}
