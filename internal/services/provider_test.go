package services

import (
  "encoding/json"
  "net/http"
  "net/http/httptest"
  "sync"
  "testing"
  "time"

  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/metrics"
)

// fakeProvider speaks just enough of the OpenAI wire format for the chat and moderation calls.
type fakeProvider struct {
  mu                sync.Mutex
  completionCalls   int
  moderationCalls   int
  lastCompletion    map[string]interface{}
  lastModeration    map[string]interface{}

  flagged           bool
  moderationStatus  int
  completionStatus  int
  completionError   map[string]interface{}
}

func (fp *fakeProvider) handler(w http.ResponseWriter, r *http.Request) {
  fp.mu.Lock()
  defer fp.mu.Unlock()
  var body map[string]interface{}
  _ = json.NewDecoder(r.Body).Decode(&body)
  w.Header().Set("Content-Type", "application/json")
  switch r.URL.Path {
  case "/v1/moderations":
    fp.moderationCalls++
    fp.lastModeration = body
    if fp.moderationStatus != 0 {
      w.WriteHeader(fp.moderationStatus)
      _ = json.NewEncoder(w).Encode(map[string]interface{}{
        "error": map[string]interface{}{"message": "moderation unavailable", "type": "server_error"},
      })
      return
    }
    _ = json.NewEncoder(w).Encode(map[string]interface{}{
      "id":    "modr-1",
      "model": "text-moderation-007",
      "results": []map[string]interface{}{{
        "flagged":         fp.flagged,
        "categories":      map[string]bool{"hate": fp.flagged, "violence": fp.flagged, "sexual": false},
        "category_scores": map[string]float64{"hate": 0.91, "violence": 0.72, "sexual": 0.01},
      }},
    })
  case "/v1/chat/completions":
    fp.completionCalls++
    fp.lastCompletion = body
    if fp.completionStatus != 0 {
      w.WriteHeader(fp.completionStatus)
      _ = json.NewEncoder(w).Encode(map[string]interface{}{"error": fp.completionError})
      return
    }
    _ = json.NewEncoder(w).Encode(map[string]interface{}{
      "id":     "chatcmpl-1",
      "object": "chat.completion",
      "model":  "gpt-3.5-turbo-0125",
      "choices": []map[string]interface{}{{
        "index":         0,
        "message":       map[string]string{"role": "assistant", "content": "Photosynthesis turns light into sugar."},
        "finish_reason": "stop",
      }},
      "usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 8, "total_tokens": 50},
    })
  default:
    w.WriteHeader(http.StatusNotFound)
  }
}

func (fp *fakeProvider) calls() (completions, moderations int) {
  fp.mu.Lock()
  defer fp.mu.Unlock()
  return fp.completionCalls, fp.moderationCalls
}

func newFakeLLM(t testing.TB) (*fakeProvider, LLMService, *metrics.Metrics) {
  t.Helper()
  fp := &fakeProvider{}
  srv := httptest.NewServer(http.HandlerFunc(fp.handler))
  t.Cleanup(srv.Close)
  m := metrics.New()
  llm := NewLLMService(logger.Nop(), m, LLMOptions{
    APIKey:  "sk-test",
    BaseURL: srv.URL + "/v1",
    Model:   "gpt-3.5-turbo",
    Timeout: 5 * time.Second,
  })
  return fp, llm, m
}
