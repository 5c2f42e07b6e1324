package rugcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
)

// ReportFetcher supplies a report for a mint.
type ReportFetcher interface {
	FetchReport(ctx context.Context, mint string) (*Report, error)
}

// SeenStore tracks tokens the bot has already looked at, keyed by mint,
// queryable by metadata for returning-creator detection.
type SeenStore interface {
	RecordSeen(ctx context.Context, mint, name, creator string) error
	SeenBefore(ctx context.Context, name, creator string) (bool, error)
}

// Engine evaluates a token report against the configured rule set. Rules
// run in a fixed order and the first failure decides the verdict.
type Engine struct {
	cfg     config.RugCheckConfig
	fetcher ReportFetcher
	seen    SeenStore
	logger  *logrus.Logger
	now     func() time.Time
}

func NewEngine(cfg config.RugCheckConfig, fetcher ReportFetcher, seen SeenStore, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		seen:    seen,
		logger:  logger,
		now:     time.Now,
	}
}

type rule struct {
	name string
	fail func() bool
}

// Evaluate fetches the report for mint and runs the rule list. A fetch
// failure is an error; a rule failure is a Verdict with Passed=false.
func (e *Engine) Evaluate(ctx context.Context, mint string) (Verdict, error) {
	report, err := e.fetcher.FetchReport(ctx, mint)
	if err != nil {
		return Verdict{}, fmt.Errorf("fetching report for %s: %w", mint, err)
	}
	return e.evaluateReport(ctx, report)
}

func (e *Engine) evaluateReport(ctx context.Context, r *Report) (Verdict, error) {
	cfg := e.cfg

	holders := r.TopHolders
	if cfg.ExcludeLPFromHolders && len(r.Markets) > 0 {
		lp := make(map[string]struct{}, len(r.Markets)*2)
		for _, m := range r.Markets {
			if m.LiquidityA != "" {
				lp[m.LiquidityA] = struct{}{}
			}
			if m.LiquidityB != "" {
				lp[m.LiquidityB] = struct{}{}
			}
		}
		filtered := make([]Holder, 0, len(holders))
		for _, h := range holders {
			if _, ok := lp[h.Address]; !ok {
				filtered = append(filtered, h)
			}
		}
		holders = filtered
	}

	ageMinutes := -1
	if detected, err := time.Parse(time.RFC3339, r.DetectedAt); err == nil {
		ageMinutes = int(e.now().Sub(detected).Round(time.Minute) / time.Minute)
	}

	// Returning-creator check runs before the report rules. Recording is
	// best effort either way so a store outage never blocks admission.
	if cfg.BlockReturningCreator && e.seen != nil {
		dup, err := e.seen.SeenBefore(ctx, r.TokenMeta.Name, r.Creator)
		if err != nil {
			e.logger.WithError(err).Warn("seen-store lookup failed, continuing")
		} else if dup {
			e.recordSeen(ctx, r)
			return Verdict{Passed: false, FailedRule: "returning creator"}, nil
		}
	}
	e.recordSeen(ctx, r)

	rules := []rule{
		{"mint authority enabled", func() bool {
			return !cfg.AllowMintAuthority && r.Token.MintAuthority != nil
		}},
		{"token not initialized", func() bool {
			return !cfg.AllowNotInitialized && !r.Token.IsInitialized
		}},
		{"freeze authority enabled", func() bool {
			return !cfg.AllowFreezeAuthority && r.Token.FreezeAuthority != nil
		}},
		{"metadata mutable", func() bool {
			return !cfg.AllowMutable && r.TokenMeta.Mutable
		}},
		{"insider top holder", func() bool {
			if cfg.AllowInsiderHolders {
				return false
			}
			for _, h := range holders {
				if h.Insider {
					return true
				}
			}
			return false
		}},
		{"single holder concentration", func() bool {
			for _, h := range holders {
				if h.Pct > cfg.MaxSingleHolderPct {
					return true
				}
			}
			return false
		}},
		{"not enough LP providers", func() bool {
			return r.TotalLPProviders < cfg.MinLPProviders
		}},
		{"not enough markets", func() bool {
			return len(r.Markets) < cfg.MinMarkets
		}},
		{"not enough market liquidity", func() bool {
			return r.TotalMarketLiquidity < cfg.MinMarketLiquidity
		}},
		{"token is rugged", func() bool {
			return !cfg.AllowRugged && r.Rugged
		}},
		{"symbol blocked", func() bool {
			return contains(cfg.BlockSymbols, r.TokenMeta.Symbol)
		}},
		{"name blocked", func() bool {
			return contains(cfg.BlockNames, r.TokenMeta.Name)
		}},
		{"risk score too high", func() bool {
			return cfg.MaxScore != 0 && r.Score > cfg.MaxScore
		}},
		{"disallowed risk flag", func() bool {
			for _, risk := range r.Risks {
				if contains(cfg.LegacyNotAllowed, risk.Name) {
					return true
				}
			}
			return false
		}},
		{"token too old", func() bool {
			return cfg.MaxTokenAgeMinutes > 0 && ageMinutes > cfg.MaxTokenAgeMinutes
		}},
	}

	for _, ru := range rules {
		if ru.fail() {
			e.logger.WithFields(logrus.Fields{
				"mint": r.Mint,
				"rule": ru.name,
			}).Info("token rejected")
			return Verdict{Passed: false, FailedRule: ru.name}, nil
		}
	}

	e.logger.WithField("mint", r.Mint).Info("token passed rug check")
	return Verdict{Passed: true}, nil
}

func (e *Engine) recordSeen(ctx context.Context, r *Report) {
	if e.seen == nil {
		return
	}
	if err := e.seen.RecordSeen(ctx, r.Mint, r.TokenMeta.Name, r.Creator); err != nil {
		e.logger.WithError(err).Warn("failed to record seen token")
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
