package middleware

import (
  "math"
  "net/http"
  "strconv"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/metrics"
  "github.com/slotter-org/tutor-backend/internal/ratelimit"
  "github.com/slotter-org/tutor-backend/internal/requestdata"
)

// KeyFunc picks the counter a request is charged to.
type KeyFunc func(c *gin.Context) string

// SessionKey charges authenticated requests to the token's session, falling back to an
// anonymized daily hash of the client address. Must run after RequireAuth.
func SessionKey(keys *ratelimit.KeyDeriver) KeyFunc {
  return func(c *gin.Context) string {
    return keys.SessionKey(requestdata.GetRequestData(c.Request.Context()), c.ClientIP())
  }
}

// ClientKey charges anonymous requests to the client address.
func ClientKey(keys *ratelimit.KeyDeriver) KeyFunc {
  return func(c *gin.Context) string {
    return keys.ClientKey(c.ClientIP())
  }
}

type RateLimitMiddleware struct {
  log       *logger.Logger
  metrics   *metrics.Metrics
}

func NewRateLimitMiddleware(log *logger.Logger, m *metrics.Metrics) *RateLimitMiddleware {
  return &RateLimitMiddleware{log: log.With("Middleware", "RateLimitMiddleware"), metrics: m}
}

func (rl *RateLimitMiddleware) Limit(limiter *ratelimit.Limiter, keyFn KeyFunc) gin.HandlerFunc {
  policy := limiter.Policy()
  return func(c *gin.Context) {
    res, err := limiter.Allow(c.Request.Context(), keyFn(c))
    if err != nil {
      rl.log.Warn("Rate limit store failed, allowing request", "policy", policy.Name, "error", err)
      c.Next()
      return
    }
    resetSeconds := int64(math.Ceil(time.Until(res.ResetAt).Seconds()))
    if resetSeconds < 0 {
      resetSeconds = 0
    }
    c.Header("RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
    c.Header("RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
    c.Header("RateLimit-Reset", strconv.FormatInt(resetSeconds, 10))
    if !res.Allowed {
      if rl.metrics != nil {
        rl.metrics.RateLimited.WithLabelValues(policy.Name).Inc()
      }
      c.Header("Retry-After", strconv.FormatInt(resetSeconds, 10))
      c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later."})
      return
    }
    c.Next()
  }
}
