package txdetail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
)

// Resolver turns a pool-init signature into the pool's mint pair via the
// enriched transaction API. Fresh signatures take a few seconds to index, so
// every structural failure is retried until the attempt budget runs out.
type Resolver struct {
	cfg    config.TxConfig
	pool   config.PoolConfig
	http   *http.Client
	logger *logrus.Logger
}

func NewResolver(txCfg config.TxConfig, poolCfg config.PoolConfig, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		cfg:  txCfg,
		pool: poolCfg,
		http: &http.Client{
			Timeout: txCfg.GetTimeout,
		},
		logger: logger,
	}
}

// Resolve waits for the transaction to confirm, then attempts extraction up
// to FetchMaxRetries times. Backoff between attempts grows by 1.5x from
// FetchBackoffBase up to FetchBackoffCap.
func (r *Resolver) Resolve(ctx context.Context, signature string) (MintPair, error) {
	r.logger.WithField("signature", signature).Debug("waiting for transaction confirmation")
	select {
	case <-ctx.Done():
		return MintPair{}, ctx.Err()
	case <-time.After(r.cfg.FetchInitialDelay):
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.FetchMaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)
			r.logger.WithFields(logrus.Fields{
				"attempt":   attempt + 1,
				"max":       r.cfg.FetchMaxRetries,
				"delay":     delay,
				"signature": signature,
			}).Debug("retrying transaction detail fetch")

			select {
			case <-ctx.Done():
				return MintPair{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		pair, err := r.attempt(ctx, signature)
		if err != nil {
			lastErr = err
			r.logger.WithError(err).WithField("signature", signature).Debug("detail fetch attempt failed")
			continue
		}
		return pair, nil
	}

	return MintPair{}, fmt.Errorf("all %d attempts to resolve %s failed: %w", r.cfg.FetchMaxRetries, signature, lastErr)
}

func (r *Resolver) attempt(ctx context.Context, signature string) (MintPair, error) {
	detail, err := r.fetch(ctx, signature)
	if err != nil {
		return MintPair{}, err
	}

	var instruction *Instruction
	for i := range detail.Instructions {
		if detail.Instructions[i].ProgramID == r.pool.ProgramID {
			instruction = &detail.Instructions[i]
			break
		}
	}
	if instruction == nil {
		return MintPair{}, fmt.Errorf("no pool program instruction found")
	}
	if len(instruction.Accounts) < 10 {
		return MintPair{}, fmt.Errorf("instruction has %d accounts, need at least 10", len(instruction.Accounts))
	}

	accountOne := instruction.Accounts[8]
	accountTwo := instruction.Accounts[9]
	if accountOne == "" || accountTwo == "" {
		return MintPair{}, fmt.Errorf("mint accounts missing from instruction")
	}

	if accountOne == r.pool.WSOLMint {
		return MintPair{BaseMint: accountTwo, QuoteMint: accountOne}, nil
	}
	return MintPair{BaseMint: accountOne, QuoteMint: accountTwo}, nil
}

// FetchDetail fetches a single transaction's detail without the retry
// envelope, used for post-buy swap-detail lookups where the transaction is
// already confirmed.
func (r *Resolver) FetchDetail(ctx context.Context, signature string) (*TransactionDetail, error) {
	return r.fetch(ctx, signature)
}

func (r *Resolver) fetch(ctx context.Context, signature string) (*TransactionDetail, error) {
	payload := map[string]any{
		"transactions": []string{signature},
		"commitment":   "finalized",
		"encoding":     "jsonParsed",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal detail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.DetailURI, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detail request failed: %w", err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detail http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var details []TransactionDetail
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("decode detail response: %w", err)
	}
	if len(details) == 0 {
		return nil, fmt.Errorf("transaction not found")
	}
	return &details[0], nil
}

func (r *Resolver) backoff(attempt int) time.Duration {
	d := time.Duration(float64(r.cfg.FetchBackoffBase) * math.Pow(1.5, float64(attempt)))
	if d > r.cfg.FetchBackoffCap {
		d = r.cfg.FetchBackoffCap
	}
	return d
}
