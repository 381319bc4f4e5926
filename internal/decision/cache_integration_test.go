//go:build integration

package decision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"keygate/internal/platform/config"
	platformredis "keygate/internal/platform/redis"
	id "keygate/pkg/domain"
	"keygate/pkg/testutil/containers"
)

func newCacheClient(t *testing.T) *platformredis.Client {
	t.Helper()
	rc := containers.NewRedisContainer(t)

	client, err := platformredis.New(config.RedisConfig{
		URL:          rc.Addr,
		PoolSize:     2,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCacheRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	cache := NewCache(newCacheClient(t), time.Minute)

	req := Request{
		ContentID: "c1",
		Owner:     id.Principal("alice"),
		Requester: id.Principal("alice"),
		Now:       time.Now(),
	}

	require.False(t, cache.Get(ctx, req), "empty cache must miss")

	cache.Put(ctx, req)
	require.True(t, cache.Get(ctx, req), "stored approval must hit")

	other := req
	other.Requester = id.Principal("bob")
	require.False(t, cache.Get(ctx, other), "key must include the requester")
}

func TestCacheExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	cache := NewCache(newCacheClient(t), time.Second)

	req := Request{
		ContentID: "c1",
		Owner:     id.Principal("alice"),
		Requester: id.Principal("alice"),
		Now:       time.Now(),
	}

	cache.Put(ctx, req)
	require.True(t, cache.Get(ctx, req))

	time.Sleep(1500 * time.Millisecond)
	require.False(t, cache.Get(ctx, req), "entry must expire with its TTL")
}
