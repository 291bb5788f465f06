package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "math"
  "net/http"
  "sort"
  "time"

  "github.com/sashabaranov/go-openai"

  "github.com/slotter-org/tutor-backend/internal/errordata"
  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/metrics"
)

type CompletionRequest struct {
  System        string
  Message       string
  MaxTokens     int
  Temperature   float64
}

type Usage struct {
  PromptTokens      int   `json:"prompt_tokens"`
  CompletionTokens  int   `json:"completion_tokens"`
  TotalTokens       int   `json:"total_tokens"`
}

type CompletionResult struct {
  Response    string    `json:"response"`
  Usage       Usage     `json:"usage"`
  Model       string    `json:"model"`
}

// ModerationVerdict is the provider's judgement on a single input.
type ModerationVerdict struct {
  Flagged           bool                  `json:"flagged"`
  Categories        map[string]bool       `json:"categories"`
  CategoryScores    map[string]float64    `json:"category_scores"`
}

// FlaggedCategories lists the categories that tripped, sorted by name.
func (v *ModerationVerdict) FlaggedCategories() []string {
  out := make([]string, 0)
  for name, hit := range v.Categories {
    if hit {
      out = append(out, name)
    }
  }
  sort.Strings(out)
  return out
}

type LLMService interface {
  Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
  Moderate(ctx context.Context, text string) (*ModerationVerdict, error)
}

type LLMOptions struct {
  APIKey            string
  BaseURL           string
  Model             string
  ModerationModel   string
  Timeout           time.Duration
}

type llmService struct {
  log               *logger.Logger
  client            *openai.Client
  model             string
  moderationModel   string
  metrics           *metrics.Metrics
}

func NewLLMService(log *logger.Logger, m *metrics.Metrics, opts LLMOptions) LLMService {
  serviceLog := log.With("service", "LLMService")
  if opts.APIKey == "" {
    serviceLog.Warn("OPENAI_API_KEY not set; provider calls will be rejected")
  }
  timeout := opts.Timeout
  if timeout <= 0 {
    timeout = 60 * time.Second
  }
  cfg := openai.DefaultConfig(opts.APIKey)
  if opts.BaseURL != "" {
    cfg.BaseURL = opts.BaseURL
  }
  cfg.HTTPClient = &http.Client{Timeout: timeout}
  model := opts.Model
  if model == "" {
    model = openai.GPT3Dot5Turbo
  }
  return &llmService{
    log:              serviceLog,
    client:           openai.NewClientWithConfig(cfg),
    model:            model,
    moderationModel:  opts.ModerationModel,
    metrics:          m,
  }
}

func (ls *llmService) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
  temperature := float32(req.Temperature)
  if temperature == 0 {
    // go-openai omits a zero temperature, which the provider reads as its default
    temperature = math.SmallestNonzeroFloat32
  }
  resp, err := ls.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
    Model: ls.model,
    Messages: []openai.ChatCompletionMessage{
      {Role: openai.ChatMessageRoleSystem, Content: req.System},
      {Role: openai.ChatMessageRoleUser, Content: req.Message},
    },
    MaxTokens:   req.MaxTokens,
    Temperature: temperature,
  })
  if err != nil {
    ls.log.Warn("chat completion failed", "error", err)
    return nil, ls.classify("completion", err)
  }
  if len(resp.Choices) == 0 {
    ls.log.Warn("chat completion returned no choices", "model", resp.Model)
    return nil, ls.classify("completion", fmt.Errorf("provider returned no choices"))
  }
  model := resp.Model
  if model == "" {
    model = ls.model
  }
  return &CompletionResult{
    Response: resp.Choices[0].Message.Content,
    Usage: Usage{
      PromptTokens:     resp.Usage.PromptTokens,
      CompletionTokens: resp.Usage.CompletionTokens,
      TotalTokens:      resp.Usage.TotalTokens,
    },
    Model: model,
  }, nil
}

func (ls *llmService) Moderate(ctx context.Context, text string) (*ModerationVerdict, error) {
  resp, err := ls.client.Moderations(ctx, openai.ModerationRequest{
    Input: text,
    Model: ls.moderationModel,
  })
  if err != nil {
    return nil, ls.classify("moderation", err)
  }
  if len(resp.Results) == 0 {
    return nil, ls.classify("moderation", fmt.Errorf("provider returned no moderation results"))
  }
  res := resp.Results[0]
  verdict := &ModerationVerdict{Flagged: res.Flagged}
  if err := remarshal(res.Categories, &verdict.Categories); err != nil {
    return nil, fmt.Errorf("failed to decode moderation categories: %w", err)
  }
  if err := remarshal(res.CategoryScores, &verdict.CategoryScores); err != nil {
    return nil, fmt.Errorf("failed to decode moderation scores: %w", err)
  }
  return verdict, nil
}

func (ls *llmService) classify(operation string, err error) error {
  ed := ClassifyProviderError(err)
  if ls.metrics != nil {
    ls.metrics.ProviderErrors.WithLabelValues(operation, fmt.Sprint(ed.Status)).Inc()
  }
  return ed
}

// ClassifyProviderError maps a provider failure onto the status the API answers with:
// exhausted quota is 402, a rejected key is 401 and everything else is 500. Only the 500
// carries the provider's message as details; the provider echoes key fragments on 401.
func ClassifyProviderError(err error) *errordata.Error {
  var apiErr *openai.APIError
  if errors.As(err, &apiErr) {
    code, _ := apiErr.Code.(string)
    switch {
    case code == "insufficient_quota" || apiErr.Type == "insufficient_quota":
      return errordata.Conceal(http.StatusPaymentRequired, "AI service quota exceeded. Please try again later.", err)
    case code == "invalid_api_key" || apiErr.HTTPStatusCode == http.StatusUnauthorized:
      return errordata.Conceal(http.StatusUnauthorized, "Invalid AI service API key", err)
    }
  }
  var reqErr *openai.RequestError
  if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusUnauthorized {
    return errordata.Conceal(http.StatusUnauthorized, "Invalid AI service API key", err)
  }
  return errordata.Wrap(http.StatusInternalServerError, "Failed to get response from AI service", err)
}

func remarshal(in interface{}, out interface{}) error {
  raw, err := json.Marshal(in)
  if err != nil {
    return err
  }
  return json.Unmarshal(raw, out)
}
