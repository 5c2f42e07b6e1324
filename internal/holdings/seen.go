package holdings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	seenPrefix   = "seen:"
	seenIndexKey = "seen:index"
	seenPairsKey = "seen:pairs"
)

// SeenStore is an append-only record of every token the pipeline has
// evaluated. A secondary set of name|creator pairs answers the
// returning-creator question without scanning.
type SeenStore struct {
	client redis.Cmdable
}

func NewSeenStore(client redis.Cmdable) (*SeenStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &SeenStore{client: client}, nil
}

// RecordSeen stores the token once. An existing record is left untouched so
// FirstSeen stays the first sighting.
func (s *SeenStore) RecordSeen(ctx context.Context, mint, name, creator string) error {
	if err := ValidateMint(mint); err != nil {
		return err
	}

	rec := TokenSeen{Mint: mint, Name: name, Creator: creator, FirstSeen: time.Now().UTC()}
	b, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal seen record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.SetNX(ctx, seenPrefix+mint, b, 0)
	pipe.SAdd(ctx, seenIndexKey, mint)
	// Records without metadata (webhook sightings) stay out of the pair set,
	// otherwise one of them would match every later token whose report has
	// no name or creator yet.
	if name != "" || creator != "" {
		pipe.SAdd(ctx, seenPairsKey, pairKey(name, creator))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record seen token: %w", err)
	}
	return nil
}

// SeenBefore reports whether a token with this name and creator has been
// recorded already.
func (s *SeenStore) SeenBefore(ctx context.Context, name, creator string) (bool, error) {
	if name == "" && creator == "" {
		return false, nil
	}
	ok, err := s.client.SIsMember(ctx, seenPairsKey, pairKey(name, creator)).Result()
	if err != nil {
		return false, fmt.Errorf("seen lookup: %w", err)
	}
	return ok, nil
}

// SeenMint reports whether this exact mint has been recorded, used by the
// webhook receiver to drop repeats.
func (s *SeenStore) SeenMint(ctx context.Context, mint string) (bool, error) {
	if err := ValidateMint(mint); err != nil {
		return false, err
	}
	ok, err := s.client.SIsMember(ctx, seenIndexKey, mint).Result()
	if err != nil {
		return false, fmt.Errorf("seen mint lookup: %w", err)
	}
	return ok, nil
}

func pairKey(name, creator string) string {
	return name + "|" + creator
}
