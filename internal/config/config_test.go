package config

import (
  "net/url"
  "testing"
  "time"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/slotter-org/tutor-backend/internal/logger"
)

var configEnvVars = []string{
  "LOG_MODE", "PORT", "OPENAI_MODEL", "DATABASE_URL", "POSTGRES_HOST", "POSTGRES_PASSWORD",
  "SESSION_SECRET", "IDENTITY_JWT_SECRET", "CORS_ORIGIN", "AUTH_RATE_LIMIT",
  "PUBLIC_RATE_LIMIT", "RATE_LIMIT_WINDOW_MINUTES", "POSTGRES_USER", "TRUSTED_PROXIES",
}

func clearConfigEnv(t *testing.T) {
  for _, k := range configEnvVars {
    t.Setenv(k, "")
  }
}

func TestLoadDefaults(t *testing.T) {
  clearConfigEnv(t)
  cfg := Load(logger.Nop())

  tests := []struct {
    name     string
    expected interface{}
    actual   interface{}
  }{
    {"mode", "development", cfg.Mode},
    {"port", "3001", cfg.Port},
    {"model", "gpt-3.5-turbo", cfg.OpenAIModel},
    {"auth limit", 50, cfg.AuthRateLimit},
    {"public limit", 10, cfg.PublicRateLimit},
    {"window", 15 * time.Minute, cfg.RateLimitWindow},
    {"cors", []string{"http://localhost:3000"}, cfg.CORSOrigins},
    {"rls role", "authenticated", cfg.RLSRole},
    {"trusted proxies", []string(nil), cfg.TrustedProxies},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      assert.Equal(t, tt.expected, tt.actual)
    })
  }
  require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
  clearConfigEnv(t)
  t.Setenv("CORS_ORIGIN", "https://tutor.example, https://www.tutor.example ,")
  t.Setenv("AUTH_RATE_LIMIT", "75")
  t.Setenv("PUBLIC_RATE_LIMIT", "not-a-number")
  t.Setenv("DATABASE_URL", "postgres://app@db:5432/tutor")
  t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

  cfg := Load(logger.Nop())
  assert.Equal(t, []string{"https://tutor.example", "https://www.tutor.example"}, cfg.CORSOrigins)
  assert.Equal(t, 75, cfg.AuthRateLimit)
  assert.Equal(t, 10, cfg.PublicRateLimit)
  assert.Equal(t, "postgres://app@db:5432/tutor", cfg.PostgresDSN())
  assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
}

func TestPostgresDSNFallback(t *testing.T) {
  clearConfigEnv(t)
  t.Setenv("POSTGRES_HOST", "pg")
  t.Setenv("POSTGRES_PASSWORD", "pw")
  cfg := Load(logger.Nop())
  assert.Equal(t, "postgres://postgres:pw@pg:5432/tutor?sslmode=disable", cfg.PostgresDSN())
}

func TestPostgresDSNEscapesCredentials(t *testing.T) {
  clearConfigEnv(t)
  t.Setenv("POSTGRES_HOST", "pg")
  t.Setenv("POSTGRES_USER", "app@tutor")
  t.Setenv("POSTGRES_PASSWORD", "p@ss:w/rd")
  cfg := Load(logger.Nop())

  dsn := cfg.PostgresDSN()
  u, err := url.Parse(dsn)
  require.NoError(t, err)
  assert.Equal(t, "pg:5432", u.Host)
  assert.Equal(t, "/tutor", u.Path)
  assert.Equal(t, "app@tutor", u.User.Username())
  pw, ok := u.User.Password()
  assert.True(t, ok)
  assert.Equal(t, "p@ss:w/rd", pw)
}

func TestValidateProductionRequiresSecrets(t *testing.T) {
  clearConfigEnv(t)
  t.Setenv("LOG_MODE", "production")
  cfg := Load(logger.Nop())
  assert.ErrorContains(t, cfg.Validate(), "SESSION_SECRET")

  cfg.SessionSecret = "s3cret"
  assert.ErrorContains(t, cfg.Validate(), "IDENTITY_JWT_SECRET")

  cfg.IdentityJWTSecret = "jwt-secret"
  assert.NoError(t, cfg.Validate())
}
