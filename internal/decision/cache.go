package decision

import (
	"context"
	"time"

	platformredis "keygate/internal/platform/redis"
)

// Cache remembers identity-bound approvals. Grant-bound approvals are never
// cached: a cached entry could outlive the revocation of the grant that
// produced it, and revocation must deny immediately. Ownership facts are
// immutable, so a short TTL on those is safe.
type Cache struct {
	client *platformredis.Client
	ttl    time.Duration
}

// NewCache wraps the redis client. A nil client disables caching entirely.
func NewCache(client *platformredis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(req Request) string {
	return "keygate:decision:" + req.ContentID.String() + ":" + req.Owner.String() + ":" + req.Requester.String()
}

// Get reports whether an identity-bound approval is cached for the request.
// Cache errors degrade to a miss; the walk is the source of truth.
func (c *Cache) Get(ctx context.Context, req Request) bool {
	if c == nil {
		return false
	}
	val, err := c.client.Get(ctx, cacheKey(req)).Result()
	return err == nil && val == "1"
}

// Put records an identity-bound approval. Failures are ignored: the cache is
// an optimization, never decision state.
func (c *Cache) Put(ctx context.Context, req Request) {
	if c == nil {
		return
	}
	c.client.Set(ctx, cacheKey(req), "1", c.ttl)
}
