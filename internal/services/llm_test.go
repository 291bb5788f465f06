package services

import (
  "context"
  "errors"
  "fmt"
  "net/http"
  "strconv"
  "testing"

  "github.com/prometheus/client_golang/prometheus/testutil"
  "github.com/sashabaranov/go-openai"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/slotter-org/tutor-backend/internal/errordata"
)

func TestLLMComplete(t *testing.T) {
  fp, llm, _ := newFakeLLM(t)
  res, err := llm.Complete(context.Background(), CompletionRequest{
    System:      "sys",
    Message:     "What is photosynthesis?",
    MaxTokens:   200,
    Temperature: 0.3,
  })
  require.NoError(t, err)
  assert.Equal(t, "Photosynthesis turns light into sugar.", res.Response)
  assert.Equal(t, "gpt-3.5-turbo-0125", res.Model)
  assert.Equal(t, Usage{PromptTokens: 42, CompletionTokens: 8, TotalTokens: 50}, res.Usage)

  msgs, ok := fp.lastCompletion["messages"].([]interface{})
  require.True(t, ok)
  require.Len(t, msgs, 2)
  assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
  assert.Equal(t, "user", msgs[1].(map[string]interface{})["role"])
  assert.EqualValues(t, 200, fp.lastCompletion["max_tokens"])
}

func TestLLMCompleteSendsZeroTemperature(t *testing.T) {
  fp, llm, _ := newFakeLLM(t)
  _, err := llm.Complete(context.Background(), CompletionRequest{System: "sys", Message: "hi", MaxTokens: 10, Temperature: 0})
  require.NoError(t, err)
  temp, ok := fp.lastCompletion["temperature"].(float64)
  require.True(t, ok, "temperature must be present in the request body")
  assert.Less(t, temp, 0.0001)
}

func TestLLMModerate(t *testing.T) {
  fp, llm, _ := newFakeLLM(t)
  fp.flagged = true
  verdict, err := llm.Moderate(context.Background(), "something awful")
  require.NoError(t, err)
  assert.True(t, verdict.Flagged)
  assert.Equal(t, []string{"hate", "violence"}, verdict.FlaggedCategories())
  assert.InDelta(t, 0.91, verdict.CategoryScores["hate"], 0.0001)
  assert.Equal(t, "something awful", fp.lastModeration["input"])
}

func TestLLMProviderErrorsAreClassified(t *testing.T) {
  cases := []struct {
    name    string
    status  int
    body    map[string]interface{}
    want    int
  }{
    {"quota", http.StatusTooManyRequests, map[string]interface{}{"message": "quota", "type": "insufficient_quota", "code": "insufficient_quota"}, http.StatusPaymentRequired},
    {"bad key", http.StatusUnauthorized, map[string]interface{}{"message": "Incorrect API key provided: sk-te***st", "type": "invalid_request_error", "code": "invalid_api_key"}, http.StatusUnauthorized},
    {"other", http.StatusBadGateway, map[string]interface{}{"message": "upstream", "type": "server_error"}, http.StatusInternalServerError},
  }
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      fp, llm, m := newFakeLLM(t)
      fp.completionStatus = tc.status
      fp.completionError = tc.body
      _, err := llm.Complete(context.Background(), CompletionRequest{System: "s", Message: "m", MaxTokens: 5, Temperature: 0.5})
      require.Error(t, err)
      assert.Equal(t, tc.want, errordata.StatusOf(err))
      body := errordata.Body(err)
      if tc.want == http.StatusInternalServerError {
        assert.Contains(t, body, "details")
      } else {
        assert.NotContains(t, body, "details")
        assert.NotContains(t, fmt.Sprint(body), "sk-")
      }
      assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderErrors.WithLabelValues("completion", strconv.Itoa(tc.want))))
    })
  }
}

func TestClassifyProviderErrorUntyped(t *testing.T) {
  ed := ClassifyProviderError(errors.New("dial tcp: connection refused"))
  assert.Equal(t, http.StatusInternalServerError, ed.Status)
  assert.Contains(t, ed.Details, "connection refused")

  ed = ClassifyProviderError(&openai.RequestError{HTTPStatusCode: http.StatusUnauthorized, Err: errors.New("unauthorized")})
  assert.Equal(t, http.StatusUnauthorized, ed.Status)
  assert.Empty(t, ed.Details)
}
