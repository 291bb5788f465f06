package handlers

import (
  "context"
  "net/http"
  "time"

  "github.com/gin-gonic/gin"
)

func Health(c *gin.Context) {
  c.JSON(http.StatusOK, gin.H{
    "status":    "ok",
    "timestamp": time.Now().UTC().Format(time.RFC3339),
  })
}

type Pinger interface {
  Ping(ctx context.Context) error
}

// Ready reports 503 until the store answers a ping.
func Ready(store Pinger) gin.HandlerFunc {
  return func(c *gin.Context) {
    ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
    defer cancel()
    if err := store.Ping(ctx); err != nil {
      c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
      return
    }
    c.JSON(http.StatusOK, gin.H{"status": "ready"})
  }
}
