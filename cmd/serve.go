package main

import (
  "context"
  "errors"
  "net/http"
  "os"
  "os/signal"
  "syscall"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/slotter-org/tutor-backend/internal/config"
  "github.com/slotter-org/tutor-backend/internal/db"
  "github.com/slotter-org/tutor-backend/internal/handlers"
  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/metrics"
  "github.com/slotter-org/tutor-backend/internal/middleware"
  "github.com/slotter-org/tutor-backend/internal/ratelimit"
  "github.com/slotter-org/tutor-backend/internal/repos"
  "github.com/slotter-org/tutor-backend/internal/sealing"
  "github.com/slotter-org/tutor-backend/internal/server"
  "github.com/slotter-org/tutor-backend/internal/services"
  "github.com/slotter-org/tutor-backend/internal/socket"
)

func runMigrate() error {
  log, cfg, err := bootstrap()
  if err != nil {
    return err
  }
  defer log.Sync()

  postgresService, err := db.NewPostgresService(log, cfg.PostgresDSN())
  if err != nil {
    log.Error("DB init failed", "error", err)
    return err
  }
  defer postgresService.Close()
  return migrate(context.Background(), postgresService)
}

func migrate(ctx context.Context, postgresService *db.PostgresService) error {
  if err := postgresService.AutoMigrateAll(); err != nil {
    return err
  }
  return postgresService.ApplySecurityMigrations(ctx)
}

func runServe() error {
  log, cfg, err := bootstrap()
  if err != nil {
    return err
  }
  defer log.Sync()
  if cfg.Mode == "production" {
    gin.SetMode(gin.ReleaseMode)
  }
  ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
  defer stop()

  // Postgres Setup
  log.Info("Setting Up Postgres from Main now...")
  postgresService, err := db.NewPostgresService(log, cfg.PostgresDSN())
  if err != nil {
    log.Error("DB init failed", "error", err)
    return err
  }
  defer postgresService.Close()
  if err := migrate(ctx, postgresService); err != nil {
    log.Error("Postgres migration failed", "error", err)
    return err
  }
  thePG := postgresService.DB()
  log.Info("Postgres Setup From Main Successful :)")

  // Redis Setup (optional)
  var redisStoreReady bool
  var rateStore ratelimit.Store
  wsHub := socket.NewHub(log)
  if cfg.RedisAddress != "" {
    log.Info("Setting Up Redis from Main now...")
    redisClient, err := db.NewRedisClient(log, cfg.RedisAddress, cfg.RedisPassword)
    if err != nil {
      log.Warn("Redis unavailable, falling back to in-process rate limits", "error", err)
    } else {
      defer redisClient.Close()
      if store, err := ratelimit.NewRedisStore(redisClient, "tutor:ratelimit"); err != nil {
        log.Warn("Redis rate limit store unavailable, falling back to in-process rate limits", "error", err)
      } else {
        rateStore = store
        redisStoreReady = true
      }
      redisPubSub := socket.NewRedisPubSub(log, redisClient, "tutor_hub_broadcast")
      if err := redisPubSub.StartSubscriber(wsHub); err != nil {
        log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
      } else {
        wsHub.SetRedisPubSub(redisPubSub)
        defer redisPubSub.Stop()
        log.Info("Redis pubsub is active!")
      }
    }
  }
  if !redisStoreReady {
    rateStore = ratelimit.NewMemoryStore()
  }

  // Repositories Setup
  log.Info("Setting Up Repositories from Main now...")
  conversationRepo := repos.NewConversationRepo(thePG, log)
  messageRepo := repos.NewMessageRepo(thePG, log)
  moderationFlagRepo := repos.NewModerationFlagRepo(thePG, log)
  log.Info("Repositories Set Up From Main Successful :)")

  // Services Setup
  log.Info("Setting up Services from Main now...")
  m := metrics.New()
  if cfg.MessageSealKey == "" {
    log.Warn("MESSAGE_SEAL_KEY not set; message content is stored unsealed")
  }
  if cfg.SessionSecret == "" {
    log.Warn("SESSION_SECRET not set; using a random rate-limit salt for this process")
  }
  llmService := services.NewLLMService(log, m, services.LLMOptions{
    APIKey:          cfg.OpenAIAPIKey,
    BaseURL:         cfg.OpenAIBaseURL,
    Model:           cfg.OpenAIModel,
    ModerationModel: cfg.OpenAIModerationModel,
    Timeout:         cfg.OpenAITimeout,
  })
  moderationService := services.NewModerationService(log, llmService, moderationFlagRepo, m)
  chatService := services.NewChatService(log, llmService, moderationService)
  authService := services.NewAuthService(log, services.AuthOptions{
    IdentityURL: cfg.IdentityURL,
    AnonKey:     cfg.IdentityAnonKey,
    JWTSecret:   cfg.IdentityJWTSecret,
    JWTAudience: cfg.IdentityJWTAudience,
  })
  conversationService := services.NewConversationService(
    thePG,
    log,
    db.NewCallerScope(cfg.RLSRole),
    conversationRepo,
    messageRepo,
    sealing.New(cfg.MessageSealKey),
    wsHub,
  )
  log.Info("Services Set Up From Main Successful :)")

  // Handlers / Middleware Setup
  router := buildRouter(log, cfg, m, rateStore, wsHub, handlers.Ready(postgresService), authService, chatService, moderationService, conversationService)

  srv := &http.Server{
    Addr:              ":" + cfg.Port,
    Handler:           router,
    ReadHeaderTimeout: 10 * time.Second,
  }
  errCh := make(chan error, 1)
  go func() {
    log.Info("Server listening", "port", cfg.Port, "mode", cfg.Mode)
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
      errCh <- err
    }
    close(errCh)
  }()

  select {
  case err := <-errCh:
    if err != nil {
      log.Error("Server failed", "error", err)
      return err
    }
  case <-ctx.Done():
    log.Info("Shutdown signal received, draining connections...")
  }
  shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
  defer cancel()
  if err := srv.Shutdown(shutdownCtx); err != nil {
    log.Error("Graceful shutdown failed", "error", err)
    return err
  }
  log.Info("Server stopped :)")
  return nil
}

func buildRouter(
  log                 *logger.Logger,
  cfg                 *config.Config,
  m                   *metrics.Metrics,
  rateStore           ratelimit.Store,
  wsHub               *socket.Hub,
  ready               gin.HandlerFunc,
  authService         services.AuthService,
  chatService         services.ChatService,
  moderationService   services.ModerationService,
  conversationService services.ConversationService,
) *gin.Engine {
  keys := ratelimit.NewKeyDeriver(cfg.SessionSecret)
  rl := middleware.NewRateLimitMiddleware(log, m)
  authLimiter := ratelimit.NewLimiter(rateStore, ratelimit.Policy{Name: "auth", Limit: int64(cfg.AuthRateLimit), Window: cfg.RateLimitWindow})
  publicLimiter := ratelimit.NewLimiter(rateStore, ratelimit.Policy{Name: "public", Limit: int64(cfg.PublicRateLimit), Window: cfg.RateLimitWindow})

  return server.NewRouter(server.RouterConfig{
    Log:                 log,
    Metrics:             m,
    CORSOrigins:         cfg.CORSOrigins,
    TrustedProxies:      cfg.TrustedProxies,
    AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
    AuthRateLimit:       rl.Limit(authLimiter, middleware.SessionKey(keys)),
    PublicRateLimit:     rl.Limit(publicLimiter, middleware.ClientKey(keys)),
    ChatHandler:         handlers.NewChatHandler(chatService, moderationService),
    ConversationHandler: handlers.NewConversationHandler(conversationService),
    AuthHandler:         handlers.NewAuthHandler(authService),
    WsHandler:           handlers.WsHandler(wsHub, log, cfg.CORSOrigins),
    ReadyHandler:        ready,
  })
}
