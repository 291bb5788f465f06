package repos

import (
    "context"
    "time"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/slotter-org/tutor-backend/internal/logger"
    "github.com/slotter-org/tutor-backend/internal/types"
)

type ModerationFlagRepo interface {
    Create(ctx context.Context, tx *gorm.DB, flag *types.ModerationFlag) error
}

type moderationFlagRepo struct {
    db      *gorm.DB
    log     *logger.Logger
}

func NewModerationFlagRepo(db *gorm.DB, baseLog *logger.Logger) ModerationFlagRepo {
    return &moderationFlagRepo{
        db:     db,
        log:    baseLog.With("repo", "ModerationFlagRepo"),
    }
}

func (r *moderationFlagRepo) Create(ctx context.Context, tx *gorm.DB, flag *types.ModerationFlag) error {
    if tx == nil {
        tx = r.db
    }
    if flag.ID == uuid.Nil {
        flag.ID = uuid.New()
    }
    if flag.CreatedAt.IsZero() {
        flag.CreatedAt = time.Now().UTC()
    }
    if err := tx.WithContext(ctx).Create(flag).Error; err != nil {
        r.log.Error("failed to create moderation flag", "error", err)
        return err
    }
    return nil
}
