package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/open-rails/billingkit/entitlements"
)

// EntitlementCache caches per-user entitlement lists for the read API. The
// reconciler deletes the key on every applied grant/revoke, so staleness is
// bounded by the TTL only when invalidation itself fails.
type EntitlementCache struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

func NewEntitlementCache(rdb *redis.Client, keyPrefix string, ttl time.Duration) *EntitlementCache {
	if keyPrefix == "" {
		keyPrefix = "billing:entitlements:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &EntitlementCache{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (c *EntitlementCache) key(userID string) string { return c.keyNS + userID }

func (c *EntitlementCache) Put(ctx context.Context, userID string, list []entitlements.Entitlement) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(userID), b, c.ttl).Err()
}

func (c *EntitlementCache) Get(ctx context.Context, userID string) ([]entitlements.Entitlement, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var list []entitlements.Entitlement
	if err := json.Unmarshal(val, &list); err != nil {
		return nil, false, err
	}
	return list, true, nil
}

func (c *EntitlementCache) Del(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, c.key(userID)).Err()
}
