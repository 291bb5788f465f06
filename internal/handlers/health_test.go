package handlers

import (
  "context"
  "errors"
  "net/http"
  "net/http/httptest"
  "testing"

  "github.com/gin-gonic/gin"
  "github.com/stretchr/testify/assert"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestReady(t *testing.T) {
  gin.SetMode(gin.TestMode)
  cases := []struct {
    name  string
    err   error
    want  int
  }{
    {"store up", nil, http.StatusOK},
    {"store down", errors.New("connection refused"), http.StatusServiceUnavailable},
  }
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      r := gin.New()
      r.GET("/ready", Ready(stubPinger{err: tc.err}))
      w := httptest.NewRecorder()
      r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
      assert.Equal(t, tc.want, w.Code)
    })
  }
}

func TestOriginChecker(t *testing.T) {
  check := originChecker([]string{"http://localhost:3000/", "https://tutor.example"})
  req := func(origin string) *http.Request {
    r := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
    if origin != "" {
      r.Header.Set("Origin", origin)
    }
    return r
  }
  assert.True(t, check(req("")))
  assert.True(t, check(req("http://localhost:3000")))
  assert.True(t, check(req("https://tutor.example")))
  assert.False(t, check(req("https://evil.example")))
  assert.True(t, originChecker([]string{"*"})(req("https://anything.example")))
}
