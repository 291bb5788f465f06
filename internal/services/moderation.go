package services

import (
  "context"
  "encoding/json"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/slotter-org/tutor-backend/internal/errordata"
  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/metrics"
  "github.com/slotter-org/tutor-backend/internal/repos"
  "github.com/slotter-org/tutor-backend/internal/types"
)

const (
  ModerationSourceAuthenticated = "authenticated"
  ModerationSourcePublic        = "public"
)

type ModerationService interface {
  // Screen blocks flagged text with a 400. A failing moderation call lets the text through.
  Screen(ctx context.Context, source string, userID *uuid.UUID, text string) error
  // Inspect returns the raw verdict; provider failures are returned to the caller.
  Inspect(ctx context.Context, text string) (*ModerationVerdict, error)
}

type moderationService struct {
  log         *logger.Logger
  llm         LLMService
  flagRepo    repos.ModerationFlagRepo
  metrics     *metrics.Metrics
}

func NewModerationService(log *logger.Logger, llm LLMService, flagRepo repos.ModerationFlagRepo, m *metrics.Metrics) ModerationService {
  return &moderationService{
    log:      log.With("service", "ModerationService"),
    llm:      llm,
    flagRepo: flagRepo,
    metrics:  m,
  }
}

func (ms *moderationService) Screen(ctx context.Context, source string, userID *uuid.UUID, text string) error {
  verdict, err := ms.llm.Moderate(ctx, text)
  if err != nil {
    ms.log.Warn("Moderation check failed, continuing without it", "source", source, "error", err)
    ms.count(source, "error")
    return nil
  }
  if !verdict.Flagged {
    ms.count(source, "allowed")
    return nil
  }
  ms.count(source, "flagged")
  categories := verdict.FlaggedCategories()
  ms.log.Info("Message blocked by moderation", "source", source, "categories", categories)
  ms.record(ctx, source, userID, categories, verdict.CategoryScores)
  return errordata.BadRequest("Message violates content policy").WithField("categories", categories)
}

func (ms *moderationService) Inspect(ctx context.Context, text string) (*ModerationVerdict, error) {
  verdict, err := ms.llm.Moderate(ctx, text)
  if err != nil {
    ms.log.Warn("Moderation inspection failed", "error", err)
    return nil, err
  }
  return verdict, nil
}

// record writes the audit row. Failures are logged and swallowed.
func (ms *moderationService) record(ctx context.Context, source string, userID *uuid.UUID, categories []string, scores map[string]float64) {
  if ms.flagRepo == nil {
    return
  }
  catJSON, err := json.Marshal(categories)
  if err != nil {
    ms.log.Warn("Failed to encode moderation categories", "error", err)
    return
  }
  scoreJSON, err := json.Marshal(scores)
  if err != nil {
    ms.log.Warn("Failed to encode moderation scores", "error", err)
    return
  }
  flag := &types.ModerationFlag{
    UserID:         userID,
    Source:         source,
    Categories:     datatypes.JSON(catJSON),
    CategoryScores: datatypes.JSON(scoreJSON),
    CreatedAt:      time.Now().UTC(),
  }
  if err := ms.flagRepo.Create(ctx, nil, flag); err != nil {
    ms.log.Warn("Failed to record moderation flag", "error", err)
  }
}

func (ms *moderationService) count(source, verdict string) {
  if ms.metrics != nil {
    ms.metrics.ModerationVerdicts.WithLabelValues(source, verdict).Inc()
  }
}
