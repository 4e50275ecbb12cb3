package accounts_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

func TestCacheFetchAndInvalidate(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := accounts.NewCache(client, time.Minute)

	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return map[string]string{"code": "1001"}, nil
	}

	key, err := cache.BuildKey(ctx, "code", "1001")
	require.NoError(t, err)
	assert.Equal(t, "ledger:accounts:code:1001:v1", key)

	var out map[string]string
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "1001", out["code"])

	require.NoError(t, cache.Invalidate(ctx))
	next, err := cache.BuildKey(ctx, "code", "1001")
	require.NoError(t, err)
	assert.Equal(t, "ledger:accounts:code:1001:v2", next)
	require.NoError(t, cache.FetchJSON(ctx, next, &out, loader))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheFallsBackToLoaderWhenRedisFails(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := accounts.NewCache(client, time.Minute)

	key, err := cache.BuildKey(ctx, "code", "1100")
	require.NoError(t, err)

	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return map[string]string{"code": "1100"}, nil
	}
	mr.SetError("LOADING redis is loading the dataset in memory")
	var out map[string]string
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	assert.Equal(t, "1100", out["code"])
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	assert.Equal(t, int32(2), calls.Load())

	mr.SetError("")
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNilCacheCallsLoader(t *testing.T) {
	var cache *accounts.Cache
	var out []int
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return []int{1, 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out)
	assert.NoError(t, cache.Invalidate(context.Background()))
}
