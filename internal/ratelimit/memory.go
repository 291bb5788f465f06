package ratelimit

import (
  "time"

  "github.com/ulule/limiter/v3"
  "github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewMemoryStore keeps counters in process. Used when Redis is not configured; expired
// windows are swept every minute.
func NewMemoryStore() Store {
  return memory.NewStoreWithOptions(limiter.StoreOptions{
    Prefix:          "tutor:ratelimit",
    CleanUpInterval: time.Minute,
  })
}
