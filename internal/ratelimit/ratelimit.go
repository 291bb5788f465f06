// Package ratelimit configures fixed-window request limits keyed by caller.
package ratelimit

import (
  "context"
  "time"

  "github.com/ulule/limiter/v3"
)

// Store holds the counters. Both the in-process and the Redis store come from ulule/limiter.
type Store = limiter.Store

type Policy struct {
  Name    string
  Limit   int64
  Window  time.Duration
}

type Result struct {
  Allowed     bool
  Limit       int64
  Remaining   int64
  ResetAt     time.Time
}

type Limiter struct {
  instance  *limiter.Limiter
  policy    Policy
}

func NewLimiter(store Store, policy Policy) *Limiter {
  return &Limiter{
    instance: limiter.New(store, limiter.Rate{Period: policy.Window, Limit: policy.Limit}),
    policy:   policy,
  }
}

func (l *Limiter) Policy() Policy {
  return l.policy
}

// Allow charges one request to key. A store failure is returned together with an allowing
// result so callers can fail open.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
  lc, err := l.instance.Get(ctx, l.policy.Name+":"+key)
  if err != nil {
    return Result{Allowed: true, Limit: l.policy.Limit, Remaining: l.policy.Limit}, err
  }
  return Result{
    Allowed:   !lc.Reached,
    Limit:     lc.Limit,
    Remaining: lc.Remaining,
    ResetAt:   time.Unix(lc.Reset, 0),
  }, nil
}
