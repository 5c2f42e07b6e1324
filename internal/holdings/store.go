package holdings

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	indexKey    = "holdings:index"
	valuePrefix = "holdings:"
)

// Solana addresses are base58, no 0/O/I/l.
var mintRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// Store keeps open holdings in Redis, one record per mint plus an index set
// for listing.
type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

func ValidateMint(mint string) error {
	if !mintRe.MatchString(mint) {
		return fmt.Errorf("invalid mint address")
	}
	return nil
}

// Upsert writes a holding. When one already exists for the mint, the two are
// merged: balances and costs add up and the per-unit basis is recomputed, so
// a re-buy never produces a second open position.
func (s *Store) Upsert(ctx context.Context, h *Holding) (*Holding, error) {
	if h == nil {
		return nil, fmt.Errorf("holding is nil")
	}
	if err := ValidateMint(h.Mint); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, h.Mint)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	merged := *h
	if existing != nil {
		merged.EntryTime = existing.EntryTime
		merged.Balance = existing.Balance + h.Balance
		merged.SolPaid = existing.SolPaid + h.SolPaid
		merged.SolFeePaid = existing.SolFeePaid + h.SolFeePaid
		merged.SolPaidUSD = existing.SolPaidUSD + h.SolPaidUSD
		merged.SolFeePaidUSD = existing.SolFeePaidUSD + h.SolFeePaidUSD
		if merged.Balance > 0 {
			merged.PerTokenUSD = merged.SolPaidUSD / merged.Balance
		}
	}
	if merged.EntryTime.IsZero() {
		merged.EntryTime = time.Now().UTC()
	}

	b, err := json.Marshal(&merged)
	if err != nil {
		return nil, fmt.Errorf("marshal holding: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, holdingKey(h.Mint), b, 0)
	pipe.SAdd(ctx, indexKey, h.Mint)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert holding: %w", err)
	}

	return &merged, nil
}

func (s *Store) Get(ctx context.Context, mint string) (*Holding, error) {
	if err := ValidateMint(mint); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, holdingKey(mint)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get holding: %w", err)
	}

	var h Holding
	if err := json.Unmarshal([]byte(val), &h); err != nil {
		return nil, fmt.Errorf("unmarshal holding: %w", err)
	}
	return &h, nil
}

func (s *Store) List(ctx context.Context) ([]*Holding, error) {
	mints, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list holdings index: %w", err)
	}
	if len(mints) == 0 {
		return []*Holding{}, nil
	}

	redisKeys := make([]string, 0, len(mints))
	for _, m := range mints {
		if err := ValidateMint(m); err != nil {
			continue
		}
		redisKeys = append(redisKeys, holdingKey(m))
	}
	if len(redisKeys) == 0 {
		return []*Holding{}, nil
	}

	vals, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget holdings: %w", err)
	}

	out := make([]*Holding, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var h Holding
		if err := json.Unmarshal([]byte(str), &h); err != nil {
			continue
		}
		out = append(out, &h)
	}

	return out, nil
}

// Remove deletes a holding. Removing a mint that has no record is a no-op,
// so concurrent exit paths can both call it safely.
func (s *Store) Remove(ctx context.Context, mint string) error {
	if err := ValidateMint(mint); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, holdingKey(mint))
	pipe.SRem(ctx, indexKey, mint)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove holding: %w", err)
	}

	return nil
}

func holdingKey(mint string) string {
	return valuePrefix + mint
}
