package middleware

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/gorilla/websocket"

  "github.com/slotter-org/tutor-backend/internal/errordata"
  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/requestdata"
  "github.com/slotter-org/tutor-backend/internal/services"
  "github.com/slotter-org/tutor-backend/internal/utils"
)

type AuthMiddleware struct {
  log               *logger.Logger
  authService       services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
  middlewareLogger := log.With("Middleware", "AuthMiddleware")
  return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

// RequireAuth verifies the bearer token and installs the caller's RequestData.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractToken(c)
    if tokenString == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid authorization header"})
      return
    }
    ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString, c.ClientIP())
    if err != nil {
      am.log.Debug("Rejected bearer token", "error", err)
      msg := "Invalid or expired token"
      if ed, ok := errordata.As(err); ok {
        msg = ed.Message
      }
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
      return
    }
    rd := requestdata.GetRequestData(ctx)
    if rd == nil || rd.UserID == uuid.Nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user id in token"})
      return
    }
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

// extractToken reads the Authorization header. Browsers cannot set headers on a websocket
// handshake, so upgrade requests may pass the token as ?token= instead.
func extractToken(c *gin.Context) string {
  if token := utils.ExtractBearerToken(c.GetHeader("Authorization")); token != "" {
    return token
  }
  if websocket.IsWebSocketUpgrade(c.Request) {
    return c.Query("token")
  }
  return ""
}
