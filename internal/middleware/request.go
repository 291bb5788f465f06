package middleware

import (
  "net/http"
  "strconv"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/metrics"
)

// RequestLogger logs one line per request through the service logger.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
  reqLog := log.With("Middleware", "RequestLogger")
  return func(c *gin.Context) {
    start := time.Now()
    c.Next()
    status := c.Writer.Status()
    kv := []interface{}{
      "method", c.Request.Method,
      "path", c.Request.URL.Path,
      "status", status,
      "latency", time.Since(start).String(),
    }
    if len(c.Errors) > 0 {
      kv = append(kv, "errors", c.Errors.String())
    }
    switch {
    case status >= http.StatusInternalServerError:
      reqLog.Error("Request completed", kv...)
    case status >= http.StatusBadRequest:
      reqLog.Info("Request completed", kv...)
    default:
      reqLog.Debug("Request completed", kv...)
    }
  }
}

// Recovery turns a handler panic into a 500 and logs it.
func Recovery(log *logger.Logger) gin.HandlerFunc {
  recLog := log.With("Middleware", "Recovery")
  return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
    recLog.Error("Recovered from panic", "path", c.Request.URL.Path, "panic", recovered)
    c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
  })
}

// Metrics records request counts and latency by route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
  return func(c *gin.Context) {
    start := time.Now()
    c.Next()
    route := c.FullPath()
    if route == "" {
      route = "unmatched"
    }
    m.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
    m.HTTPDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
  }
}
