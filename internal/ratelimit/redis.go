package ratelimit

import (
  "fmt"

  "github.com/redis/go-redis/v9"
  "github.com/ulule/limiter/v3"
  sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewRedisStore shares counters between API instances. Increments run as one Lua script,
// so the counter and its expiry are set atomically.
func NewRedisStore(client *redis.Client, prefix string) (Store, error) {
  if prefix == "" {
    prefix = "ratelimit"
  }
  store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
  if err != nil {
    return nil, fmt.Errorf("redis rate limit store: %w", err)
  }
  return store, nil
}
