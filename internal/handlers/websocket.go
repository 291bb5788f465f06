package handlers

import (
  "context"
  "net/http"
  "net/url"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/gorilla/websocket"

  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/requestdata"
  "github.com/slotter-org/tutor-backend/internal/socket"
)

// originChecker accepts requests without an Origin (non-browser clients) and browsers
// coming from one of the allowed origins.
func originChecker(allowed []string) func(r *http.Request) bool {
  set := make(map[string]struct{}, len(allowed))
  wildcard := false
  for _, o := range allowed {
    if o == "*" {
      wildcard = true
    }
    set[strings.TrimRight(o, "/")] = struct{}{}
  }
  return func(r *http.Request) bool {
    origin := r.Header.Get("Origin")
    if origin == "" || wildcard {
      return true
    }
    u, err := url.Parse(origin)
    if err != nil {
      return false
    }
    _, ok := set[u.Scheme+"://"+u.Host]
    return ok
  }
}

// WsHandler upgrades an authenticated request and subscribes it to the caller's user channel.
func WsHandler(hub *socket.Hub, log *logger.Logger, allowedOrigins []string) gin.HandlerFunc {
  wsLog := log.With("handler", "WsHandler")
  upgrader := websocket.Upgrader{
    ReadBufferSize:  1024,
    WriteBufferSize: 1024,
    CheckOrigin:     originChecker(allowedOrigins),
  }
  return func(c *gin.Context) {
    rd := requestdata.GetRequestData(c.Request.Context())
    if rd == nil || rd.UserID == uuid.Nil {
      c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
      return
    }
    conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
    if err != nil {
      wsLog.Warn("Failed to upgrade to websocket", "error", err)
      return
    }
    // the connection outlives the HTTP request context
    ctx, cancel := context.WithCancel(context.Background())
    client := socket.NewClient(conn, hub, rd.UserID, cancel, wsLog)
    hub.Subscribe(client, []string{socket.UserChannel(rd.UserID)})

    go client.WriteLoop(ctx)
    go client.ReadLoop(ctx)
  }
}
