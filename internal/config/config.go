package config

import (
  "fmt"
  "net/url"
  "time"

  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/utils"
)

type Config struct {
  Mode                    string
  Port                    string
  LogFile                 string

  OpenAIAPIKey            string
  OpenAIBaseURL           string
  OpenAIModel             string
  OpenAIModerationModel   string
  OpenAITimeout           time.Duration

  DatabaseURL             string
  PostgresHost            string
  PostgresPort            string
  PostgresUser            string
  PostgresPassword        string
  PostgresName            string
  RLSRole                 string

  IdentityURL             string
  IdentityAnonKey         string
  IdentityJWTSecret       string
  IdentityJWTAudience     string

  SessionSecret           string
  MessageSealKey          string
  CORSOrigins             []string
  // TrustedProxies lists the proxy addresses or CIDRs whose X-Forwarded-For is honored.
  // Empty means the socket address is the client address.
  TrustedProxies          []string

  RedisAddress            string
  RedisPassword           string

  AuthRateLimit           int
  PublicRateLimit         int
  RateLimitWindow         time.Duration
}

func Load(log *logger.Logger) *Config {
  log.Info("Attempting to load environment variables for Config now...")
  cfg := &Config{
    Mode:                   utils.GetEnv("LOG_MODE", "development", log),
    Port:                   utils.GetEnv("PORT", "3001", log),
    LogFile:                utils.GetEnv("LOG_FILE", "", log),

    OpenAIAPIKey:           utils.GetEnv("OPENAI_API_KEY", "", log),
    OpenAIBaseURL:          utils.GetEnv("OPENAI_BASE_URL", "", log),
    OpenAIModel:            utils.GetEnv("OPENAI_MODEL", "gpt-3.5-turbo", log),
    OpenAIModerationModel:  utils.GetEnv("OPENAI_MODERATION_MODEL", "", log),
    OpenAITimeout:          time.Duration(utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 60, log)) * time.Second,

    DatabaseURL:            utils.GetEnv("DATABASE_URL", "", log),
    PostgresHost:           utils.GetEnv("POSTGRES_HOST", "localhost", log),
    PostgresPort:           utils.GetEnv("POSTGRES_PORT", "5432", log),
    PostgresUser:           utils.GetEnv("POSTGRES_USER", "postgres", log),
    PostgresPassword:       utils.GetEnv("POSTGRES_PASSWORD", "", log),
    PostgresName:           utils.GetEnv("POSTGRES_NAME", "tutor", log),
    RLSRole:                utils.GetEnv("DB_RLS_ROLE", "authenticated", log),

    IdentityURL:            utils.GetEnv("IDENTITY_URL", "", log),
    IdentityAnonKey:        utils.GetEnv("IDENTITY_ANON_KEY", "", log),
    IdentityJWTSecret:      utils.GetEnv("IDENTITY_JWT_SECRET", "", log),
    IdentityJWTAudience:    utils.GetEnv("IDENTITY_JWT_AUDIENCE", "authenticated", log),

    SessionSecret:          utils.GetEnv("SESSION_SECRET", "", log),
    MessageSealKey:         utils.GetEnv("MESSAGE_SEAL_KEY", "", log),
    CORSOrigins:            utils.GetEnvAsList("CORS_ORIGIN", []string{"http://localhost:3000"}, log),
    TrustedProxies:         utils.GetEnvAsList("TRUSTED_PROXIES", nil, log),

    RedisAddress:           utils.GetEnv("REDIS_ADDRESS", "", log),
    RedisPassword:          utils.GetEnv("REDIS_PASSWORD", "", log),

    AuthRateLimit:          utils.GetEnvAsInt("AUTH_RATE_LIMIT", 50, log),
    PublicRateLimit:        utils.GetEnvAsInt("PUBLIC_RATE_LIMIT", 10, log),
    RateLimitWindow:        time.Duration(utils.GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 15, log)) * time.Minute,
  }
  log.Info("Environment variables loaded for Config :)")
  return cfg
}

// PostgresDSN prefers DATABASE_URL and falls back to the discrete POSTGRES_* variables.
func (c *Config) PostgresDSN() string {
  if c.DatabaseURL != "" {
    return c.DatabaseURL
  }
  u := url.URL{
    Scheme:   "postgres",
    User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
    Host:     c.PostgresHost + ":" + c.PostgresPort,
    Path:     "/" + c.PostgresName,
    RawQuery: "sslmode=disable",
  }
  return u.String()
}

func (c *Config) Validate() error {
  if c.Mode != "development" && c.Mode != "production" {
    return fmt.Errorf("LOG_MODE must be 'development' or 'production': '%s'", c.Mode)
  }
  if c.Port == "" {
    return fmt.Errorf("PORT must not be empty")
  }
  if c.AuthRateLimit <= 0 || c.PublicRateLimit <= 0 {
    return fmt.Errorf("rate limits must be positive (auth=%d, public=%d)", c.AuthRateLimit, c.PublicRateLimit)
  }
  if c.RateLimitWindow <= 0 {
    return fmt.Errorf("RATE_LIMIT_WINDOW_MINUTES must be positive")
  }
  if c.Mode == "production" {
    if c.SessionSecret == "" {
      return fmt.Errorf("SESSION_SECRET is required in production")
    }
    if c.IdentityJWTSecret == "" {
      return fmt.Errorf("IDENTITY_JWT_SECRET is required in production")
    }
  }
  return nil
}
