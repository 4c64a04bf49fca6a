package permissions

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultDecisionTTL bounds how stale a cached capability check may be
const DefaultDecisionTTL = 30 * time.Second

// DecisionCache memoizes capability lookups in Redis. A lost or failing
// Redis is never fatal; callers fall through to the database.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDecisionCache creates a decision cache. A non-positive ttl falls back
// to DefaultDecisionTTL.
func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	if ttl <= 0 {
		ttl = DefaultDecisionTTL
	}
	return &DecisionCache{client: client, ttl: ttl}
}

func decisionKey(grant Grant) string {
	return fmt.Sprintf("perm:%s:%s:%s:%s", grant.GroupName, grant.Prefix, grant.Class, grant.Capability)
}

// Get returns the cached capability result. The second return reports a hit.
func (c *DecisionCache) Get(ctx context.Context, grant Grant) (held bool, hit bool) {
	val, err := c.client.Get(ctx, decisionKey(grant)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// Set stores a capability result with the configured TTL
func (c *DecisionCache) Set(ctx context.Context, grant Grant, held bool) {
	val := "0"
	if held {
		val = "1"
	}
	c.client.Set(ctx, decisionKey(grant), val, c.ttl)
}

// Invalidate drops the cached result for one grant
func (c *DecisionCache) Invalidate(ctx context.Context, grant Grant) {
	c.client.Del(ctx, decisionKey(grant))
}

// InvalidatePrefix drops every cached result scoped to a prefix
func (c *DecisionCache) InvalidatePrefix(ctx context.Context, prefix string) {
	pattern := fmt.Sprintf("perm:*:%s:*", prefix)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}

// Ping checks Redis connectivity
func (c *DecisionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying Redis connection
func (c *DecisionCache) Close() error {
	return c.client.Close()
}
