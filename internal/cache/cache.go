package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/visorry/flash-invite-sub001/internal/config"
)

// Default TTLs for cached reads.
const (
	// BalanceTTL bounds staleness of cached token balances.
	BalanceTTL = 10 * time.Second
	// FleetStatsTTL bounds staleness of cached fleet statistics.
	FleetStatsTTL = 15 * time.Second
)

// Cache is an optional read-through cache. A nil Cache (or one built from an
// empty redis address) is valid and degrades every call to a miss.
type Cache struct {
	client *redis.Client
}

// New connects to redis when configured, returning nil otherwise.
func New(cfg config.RedisConfig) *Cache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		log.WithError(errPing).Warn("cache: redis unreachable, continuing without cache")
		_ = client.Close()
		return nil
	}
	return &Cache{client: client}
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GetJSON loads a cached JSON value into out, reporting whether it was found.
// Errors count as misses; polling callers fall back to the database.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, errGet := c.client.Get(ctx, key).Bytes()
	if errGet != nil {
		return false
	}
	if errDecode := json.Unmarshal(raw, out); errDecode != nil {
		return false
	}
	return true
}

// SetJSON stores a JSON value with a TTL. Failures are logged, not returned;
// the cache is advisory.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	raw, errEncode := json.Marshal(value)
	if errEncode != nil {
		return
	}
	if errSet := c.client.Set(ctx, key, raw, ttl).Err(); errSet != nil {
		log.WithError(errSet).Debugf("cache: set %s failed", key)
	}
}

// Invalidate drops keys after a mutation.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if errDel := c.client.Del(ctx, keys...).Err(); errDel != nil {
		log.WithError(errDel).Debug("cache: invalidate failed")
	}
}

// BalanceKey keys a user's cached token balance.
func BalanceKey(userID uint64) string {
	return fmt.Sprintf("flash:balance:%d", userID)
}

// FleetStatsKey keys the cached bot fleet statistics.
func FleetStatsKey() string { return "flash:fleet:stats" }
