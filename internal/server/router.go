package server

import (
  "net/http"
  "time"

  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "github.com/prometheus/client_golang/prometheus/promhttp"

  "github.com/slotter-org/tutor-backend/internal/handlers"
  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/metrics"
  "github.com/slotter-org/tutor-backend/internal/middleware"
)

type RouterConfig struct {
  Log                   *logger.Logger
  Metrics               *metrics.Metrics
  CORSOrigins           []string
  AuthMiddleware        *middleware.AuthMiddleware
  AuthRateLimit         gin.HandlerFunc
  PublicRateLimit       gin.HandlerFunc
  ChatHandler           *handlers.ChatHandler
  ConversationHandler   *handlers.ConversationHandler
  AuthHandler           *handlers.AuthHandler
  WsHandler             gin.HandlerFunc
  ReadyHandler          gin.HandlerFunc
  // TrustedProxies may set X-Forwarded-For; nil trusts none.
  TrustedProxies        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.New()
  if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
    cfg.Log.Warn("Invalid trusted proxy list, trusting no proxies", "proxies", cfg.TrustedProxies, "error", err)
    _ = router.SetTrustedProxies(nil)
  }
  router.Use(middleware.Recovery(cfg.Log), middleware.RequestLogger(cfg.Log))
  if cfg.Metrics != nil {
    router.Use(middleware.Metrics(cfg.Metrics))
  }

  //-----------------------------------------
  // Cors Setup
  //-----------------------------------------
  corsCfg := cors.Config{
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    ExposeHeaders:    []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
    AllowCredentials: true,
    MaxAge:           12 * time.Hour,
  }
  if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
    corsCfg.AllowAllOrigins = true
    corsCfg.AllowCredentials = false
  } else {
    corsCfg.AllowOrigins = cfg.CORSOrigins
  }
  router.Use(cors.New(corsCfg))

  //-----------------------------------------
  // Health / Metrics Routes
  //-----------------------------------------
  router.GET("/health", handlers.Health)
  if cfg.ReadyHandler != nil {
    router.GET("/ready", cfg.ReadyHandler)
  }
  if cfg.Metrics != nil {
    router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
  }

  //-----------------------------------------
  // Public Routes
  //-----------------------------------------
  router.POST("/test-moderation", cfg.PublicRateLimit, cfg.ChatHandler.TestModeration)
  api := router.Group("/api")
  {
    api.POST("/public/gpt", cfg.PublicRateLimit, cfg.ChatHandler.PublicGPT)
    api.POST("/auth/resend-confirmation", cfg.PublicRateLimit, cfg.AuthHandler.ResendConfirmation)
  }

  //------------------------------------------
  // Protected Routes
  //------------------------------------------
  protected := api.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth(), cfg.AuthRateLimit)
  protected.POST("/gpt", cfg.ChatHandler.GPT)
  if cfg.WsHandler != nil {
    protected.GET("/ws", cfg.WsHandler)
  }

  //Conversations
  protected.GET("/conversations", cfg.ConversationHandler.ListConversations)
  protected.POST("/conversations", cfg.ConversationHandler.CreateConversation)
  protected.GET("/conversations/:id", cfg.ConversationHandler.GetConversation)
  protected.PUT("/conversations/:id", cfg.ConversationHandler.UpdateConversation)
  protected.PATCH("/conversations/:id", cfg.ConversationHandler.UpdateConversation)
  protected.DELETE("/conversations/:id", cfg.ConversationHandler.DeleteConversation)

  //Messages
  protected.GET("/conversations/:id/messages", cfg.ConversationHandler.ListMessages)
  protected.POST("/conversations/:id/messages", cfg.ConversationHandler.CreateMessage)

  router.NoRoute(func(c *gin.Context) {
    c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
  })
  return router
}
