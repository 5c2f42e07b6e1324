package sniper

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/rugcheck"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/txdetail"
)

// Resolver turns a pool-init signature into the pool's mint pair.
type Resolver interface {
	Resolve(ctx context.Context, signature string) (txdetail.MintPair, error)
}

// Risk evaluates a mint against the configured rule set.
type Risk interface {
	Evaluate(ctx context.Context, mint string) (rugcheck.Verdict, error)
}

// Buyer executes the buy side of the swap lifecycle.
type Buyer interface {
	Buy(ctx context.Context, pair txdetail.MintPair) error
}

// Pipeline runs one admitted pool event through resolve, risk check and
// buy. Every run is independent; a failure at any stage just ends the run.
type Pipeline struct {
	poolCfg  config.PoolConfig
	resolver Resolver
	risk     Risk
	buyer    Buyer
	logger   *logrus.Logger
}

func NewPipeline(poolCfg config.PoolConfig, resolver Resolver, risk Risk, buyer Buyer, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		poolCfg:  poolCfg,
		resolver: resolver,
		risk:     risk,
		buyer:    buyer,
		logger:   logger,
	}
}

// Process handles one pool-init event end to end.
func (p *Pipeline) Process(ctx context.Context, signature string) {
	log := p.logger.WithField("signature", signature)

	pair, err := p.resolver.Resolve(ctx, signature)
	if err != nil {
		log.WithError(err).Warn("could not resolve pool transaction")
		return
	}

	log = log.WithField("mint", pair.BaseMint)

	if p.poolCfg.IgnorePumpFun && strings.HasSuffix(pair.BaseMint, "pump") {
		log.Info("skipping pump.fun token")
		return
	}

	verdict, err := p.risk.Evaluate(ctx, pair.BaseMint)
	if err != nil {
		log.WithError(err).Warn("risk evaluation failed")
		return
	}
	if !verdict.Passed {
		log.WithField("rule", verdict.FailedRule).Info("token rejected by risk rules")
		return
	}

	if err := p.buyer.Buy(ctx, pair); err != nil {
		log.WithError(err).Warn("buy failed")
		return
	}

	log.Info("position opened")
}
