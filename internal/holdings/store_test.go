package holdings

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMint  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testMint2 = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	err = client.FlushDB(ctx).Err()
	require.NoError(t, err)

	return client
}

func cleanupTestRedis(client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

func testHolding(mint string) *Holding {
	return &Holding{
		Mint:          mint,
		TokenName:     "Test Token",
		Balance:       100,
		SolPaid:       0.01,
		SolFeePaid:    0.0001,
		SolPaidUSD:    2.0,
		SolFeePaidUSD: 0.02,
		PerTokenUSD:   0.02,
		Slot:          123456,
		Program:       "raydium",
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	h, err := store.Upsert(ctx, testHolding(testMint))
	assert.NoError(t, err)
	assert.NotNil(t, h)
	assert.False(t, h.EntryTime.IsZero())

	got, err := store.Get(ctx, testMint)
	assert.NoError(t, err)
	assert.Equal(t, h.Mint, got.Mint)
	assert.Equal(t, h.Balance, got.Balance)
	assert.Equal(t, h.PerTokenUSD, got.PerTokenUSD)
}

func TestStore_GetMissing(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	h, err := store.Get(context.Background(), testMint)
	assert.Error(t, err)
	assert.Equal(t, ErrNotFound, err)
	assert.Nil(t, h)
}

func TestStore_UpsertMergesRebuy(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := store.Upsert(ctx, testHolding(testMint))
	require.NoError(t, err)

	rebuy := testHolding(testMint)
	rebuy.Balance = 300
	rebuy.SolPaidUSD = 3.0
	rebuy.SolPaid = 0.015
	rebuy.SolFeePaidUSD = 0.03
	rebuy.PerTokenUSD = 0.01

	merged, err := store.Upsert(ctx, rebuy)
	require.NoError(t, err)

	// Still one record, with summed units/costs and a blended basis.
	assert.Equal(t, 400.0, merged.Balance)
	assert.Equal(t, 5.0, merged.SolPaidUSD)
	assert.InDelta(t, 0.05, merged.SolFeePaidUSD, 1e-9)
	assert.InDelta(t, 5.0/400.0, merged.PerTokenUSD, 1e-9)
	assert.Equal(t, first.EntryTime, merged.EntryTime)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_RemoveIdempotent(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = store.Upsert(ctx, testHolding(testMint))
	require.NoError(t, err)

	err = store.Remove(ctx, testMint)
	assert.NoError(t, err)

	_, err = store.Get(ctx, testMint)
	assert.Equal(t, ErrNotFound, err)

	// Removing again is a no-op.
	err = store.Remove(ctx, testMint)
	assert.NoError(t, err)
}

func TestStore_List(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	all, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, all)

	_, err = store.Upsert(ctx, testHolding(testMint))
	require.NoError(t, err)
	_, err = store.Upsert(ctx, testHolding(testMint2))
	require.NoError(t, err)

	all, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_InvalidMint(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	for _, mint := range []string{"", "short", "has spaces in it but long enough to pass", "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl"} {
		h := testHolding(testMint)
		h.Mint = mint
		_, err := store.Upsert(ctx, h)
		assert.Error(t, err, "mint %q should be invalid", mint)
	}
}

func TestSeenStore_RecordAndLookup(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	seen, err := NewSeenStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	dup, err := seen.SeenBefore(ctx, "Test Token", "creator1")
	assert.NoError(t, err)
	assert.False(t, dup)

	err = seen.RecordSeen(ctx, testMint, "Test Token", "creator1")
	assert.NoError(t, err)

	dup, err = seen.SeenBefore(ctx, "Test Token", "creator1")
	assert.NoError(t, err)
	assert.True(t, dup)

	// Different creator with the same name is a different pair.
	dup, err = seen.SeenBefore(ctx, "Test Token", "creator2")
	assert.NoError(t, err)
	assert.False(t, dup)

	ok, err := seen.SeenMint(ctx, testMint)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = seen.SeenMint(ctx, testMint2)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSeenStore_MetadatalessRecordNeverMatchesAsPair(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	seen, err := NewSeenStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	// A webhook sighting carries only the mint.
	err = seen.RecordSeen(ctx, testMint, "", "")
	assert.NoError(t, err)

	ok, err := seen.SeenMint(ctx, testMint)
	assert.NoError(t, err)
	assert.True(t, ok)

	// A later token whose report has no name or creator yet must not be
	// flagged as a returning creator because of it.
	dup, err := seen.SeenBefore(ctx, "", "")
	assert.NoError(t, err)
	assert.False(t, dup)

	// Real metadata pairs still match.
	err = seen.RecordSeen(ctx, testMint2, "Test Token", "creator1")
	assert.NoError(t, err)

	dup, err = seen.SeenBefore(ctx, "Test Token", "creator1")
	assert.NoError(t, err)
	assert.True(t, dup)
}
