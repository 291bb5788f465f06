package repos

import (
    "context"
    "time"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/slotter-org/tutor-backend/internal/logger"
    "github.com/slotter-org/tutor-backend/internal/types"
)

type MessageRepo interface {
    CreateMessages(ctx context.Context, tx *gorm.DB, msgs []*types.Message) ([]*types.Message, error)
    GetByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.Message, error)
    CountByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (int64, error)
}

type messageRepo struct {
    db      *gorm.DB
    log     *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
    return &messageRepo{
        db:     db,
        log:    baseLog.With("repo", "MessageRepo"),
    }
}

func (mr *messageRepo) CreateMessages(ctx context.Context, tx *gorm.DB, msgs []*types.Message) ([]*types.Message, error) {
    if tx == nil {
        tx = mr.db
    }
    if len(msgs) == 0 {
        return msgs, nil
    }
    now := time.Now().UTC()
    for _, m := range msgs {
        if m.ID == uuid.Nil {
            m.ID = uuid.New()
        }
        if m.CreatedAt.IsZero() {
            m.CreatedAt = now
        }
    }
    if err := tx.WithContext(ctx).Create(&msgs).Error; err != nil {
        mr.log.Error("failed to create messages", "error", err)
        return nil, err
    }
    return msgs, nil
}

func (mr *messageRepo) GetByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.Message, error) {
    if tx == nil {
        tx = mr.db
    }
    var msgs []*types.Message
    if err := tx.WithContext(ctx).
        Where("conversation_id = ?", conversationID).
        Order("created_at ASC").
        Find(&msgs).Error; err != nil {
        mr.log.Error("failed to get messages by conversationID", "error", err)
        return nil, err
    }
    return msgs, nil
}

func (mr *messageRepo) CountByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (int64, error) {
    if tx == nil {
        tx = mr.db
    }
    var count int64
    if err := tx.WithContext(ctx).
        Model(&types.Message{}).
        Where("conversation_id = ?", conversationID).
        Count(&count).Error; err != nil {
        return 0, err
    }
    return count, nil
}
