package middleware

import (
  "context"
  "errors"
  "net/http"
  "net/http/httptest"
  "testing"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "github.com/prometheus/client_golang/prometheus/testutil"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
  "github.com/ulule/limiter/v3"

  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/metrics"
  "github.com/slotter-org/tutor-backend/internal/ratelimit"
  "github.com/slotter-org/tutor-backend/internal/requestdata"
  "github.com/slotter-org/tutor-backend/internal/services"
)

const testSecret = "middleware-test-secret-which-is-long-enough"

func init() {
  gin.SetMode(gin.TestMode)
}

func token(t *testing.T, sub, session string) string {
  t.Helper()
  claims := services.IdentityClaims{
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   sub,
      Audience:  jwt.ClaimStrings{"authenticated"},
      ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
    },
    Role:      "authenticated",
    SessionID: session,
  }
  s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
  require.NoError(t, err)
  return s
}

func authService() services.AuthService {
  return services.NewAuthService(logger.Nop(), services.AuthOptions{JWTSecret: testSecret, JWTAudience: "authenticated"})
}

func TestRequireAuth(t *testing.T) {
  am := NewAuthMiddleware(logger.Nop(), authService())
  r := gin.New()
  r.GET("/me", am.RequireAuth(), func(c *gin.Context) {
    rd := requestdata.GetRequestData(c.Request.Context())
    c.JSON(http.StatusOK, gin.H{"id": rd.UserID.String()})
  })
  userID := uuid.New()

  cases := []struct {
    name    string
    header  string
    want    int
  }{
    {"no header", "", http.StatusUnauthorized},
    {"not bearer", "Basic abc", http.StatusUnauthorized},
    {"bad token", "Bearer nope", http.StatusUnauthorized},
    {"valid", "Bearer " + token(t, userID.String(), "s1"), http.StatusOK},
  }
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      req := httptest.NewRequest(http.MethodGet, "/me", nil)
      if tc.header != "" {
        req.Header.Set("Authorization", tc.header)
      }
      w := httptest.NewRecorder()
      r.ServeHTTP(w, req)
      assert.Equal(t, tc.want, w.Code)
    })
  }

  // query tokens are only honoured on websocket handshakes
  req := httptest.NewRequest(http.MethodGet, "/me?token="+token(t, userID.String(), "s1"), nil)
  w := httptest.NewRecorder()
  r.ServeHTTP(w, req)
  assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitPublicPolicy(t *testing.T) {
  m := metrics.New()
  rl := NewRateLimitMiddleware(logger.Nop(), m)
  store := ratelimit.NewMemoryStore()
  lim := ratelimit.NewLimiter(store, ratelimit.Policy{Name: "public", Limit: 10, Window: 15 * time.Minute})
  keys := ratelimit.NewKeyDeriver("salt")

  r := gin.New()
  r.POST("/api/public/gpt", rl.Limit(lim, ClientKey(keys)), func(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
  })

  do := func(ip string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodPost, "/api/public/gpt", nil)
    req.RemoteAddr = ip + ":1234"
    w := httptest.NewRecorder()
    r.ServeHTTP(w, req)
    return w
  }

  for i := 0; i < 10; i++ {
    w := do("203.0.113.1")
    require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
    assert.Equal(t, "10", w.Header().Get("RateLimit-Limit"))
  }
  w := do("203.0.113.1")
  assert.Equal(t, http.StatusTooManyRequests, w.Code)
  assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))
  assert.NotEmpty(t, w.Header().Get("Retry-After"))
  assert.JSONEq(t, `{"error":"Too many requests, please try again later."}`, w.Body.String())
  assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("public")))

  assert.Equal(t, http.StatusOK, do("203.0.113.2").Code)
}

func TestRateLimitAuthenticatedPolicyKeysBySession(t *testing.T) {
  am := NewAuthMiddleware(logger.Nop(), authService())
  rl := NewRateLimitMiddleware(logger.Nop(), metrics.New())
  store := ratelimit.NewMemoryStore()
  lim := ratelimit.NewLimiter(store, ratelimit.Policy{Name: "auth", Limit: 50, Window: 15 * time.Minute})
  keys := ratelimit.NewKeyDeriver("salt")

  r := gin.New()
  r.POST("/api/gpt", am.RequireAuth(), rl.Limit(lim, SessionKey(keys)), func(c *gin.Context) {
    c.Status(http.StatusNoContent)
  })
  userID := uuid.New().String()
  sessionA := token(t, userID, "session-a")
  sessionB := token(t, userID, "session-b")

  do := func(tok string) int {
    req := httptest.NewRequest(http.MethodPost, "/api/gpt", nil)
    req.Header.Set("Authorization", "Bearer "+tok)
    w := httptest.NewRecorder()
    r.ServeHTTP(w, req)
    return w.Code
  }
  for i := 0; i < 50; i++ {
    require.Equal(t, http.StatusNoContent, do(sessionA), "request %d", i+1)
  }
  assert.Equal(t, http.StatusTooManyRequests, do(sessionA))
  assert.Equal(t, http.StatusNoContent, do(sessionB))
}

var errStoreDown = errors.New("store down")

type failingStore struct{}

func (failingStore) Get(context.Context, string, limiter.Rate) (limiter.Context, error) {
  return limiter.Context{}, errStoreDown
}

func (failingStore) Peek(context.Context, string, limiter.Rate) (limiter.Context, error) {
  return limiter.Context{}, errStoreDown
}

func (failingStore) Reset(context.Context, string, limiter.Rate) (limiter.Context, error) {
  return limiter.Context{}, errStoreDown
}

func (failingStore) Increment(context.Context, string, int64, limiter.Rate) (limiter.Context, error) {
  return limiter.Context{}, errStoreDown
}

func TestRateLimitFailsOpen(t *testing.T) {
  rl := NewRateLimitMiddleware(logger.Nop(), nil)
  lim := ratelimit.NewLimiter(failingStore{}, ratelimit.Policy{Name: "public", Limit: 1, Window: time.Minute})
  r := gin.New()
  r.GET("/x", rl.Limit(lim, ClientKey(ratelimit.NewKeyDeriver(""))), func(c *gin.Context) {
    c.Status(http.StatusOK)
  })
  for i := 0; i < 3; i++ {
    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
    assert.Equal(t, http.StatusOK, w.Code)
  }
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
  m := metrics.New()
  r := gin.New()
  r.Use(Metrics(m))
  r.GET("/api/conversations/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

  w := httptest.NewRecorder()
  r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/conversations/"+uuid.NewString(), nil))
  require.Equal(t, http.StatusOK, w.Code)
  assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/conversations/:id", "GET", "200")))
}
