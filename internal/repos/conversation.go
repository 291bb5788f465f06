package repos

import (
    "context"
    "time"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/slotter-org/tutor-backend/internal/logger"
    "github.com/slotter-org/tutor-backend/internal/types"
)

type ConversationRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error)

    // READ
    GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Conversation, error)
    GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error)
    CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)

    // UPDATE
    UpdateTitle(ctx context.Context, tx *gorm.DB, id uuid.UUID, title string) error
    Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

    // DELETE
    DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type conversationRepo struct {
    db      *gorm.DB
    log     *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
    return &conversationRepo{
        db:     db,
        log:    baseLog.With("repo", "ConversationRepo"),
    }
}

func (cr *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error) {
    if tx == nil {
        tx = cr.db
    }
    if conv.ID == uuid.Nil {
        conv.ID = uuid.New()
    }
    now := time.Now().UTC()
    if conv.CreatedAt.IsZero() {
        conv.CreatedAt = now
    }
    if conv.UpdatedAt.IsZero() {
        conv.UpdatedAt = now
    }
    if err := tx.WithContext(ctx).Omit("Messages").Create(conv).Error; err != nil {
        cr.log.Error("failed to create conversation", "error", err)
        return nil, err
    }
    return conv, nil
}

// GetByID returns gorm.ErrRecordNotFound when the row is missing or hidden by row-level security.
func (cr *conversationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Conversation, error) {
    if tx == nil {
        tx = cr.db
    }
    var c types.Conversation
    if err := tx.WithContext(ctx).
        Where("id = ?", id).
        First(&c).Error; err != nil {
        return nil, err
    }
    return &c, nil
}

func (cr *conversationRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error) {
    if tx == nil {
        tx = cr.db
    }
    var convs []*types.Conversation
    if err := tx.WithContext(ctx).
        Where("user_id = ?", userID).
        Order("updated_at DESC").
        Find(&convs).Error; err != nil {
        cr.log.Error("failed to get conversations by userID", "error", err)
        return nil, err
    }
    return convs, nil
}

func (cr *conversationRepo) CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
    if tx == nil {
        tx = cr.db
    }
    var count int64
    if err := tx.WithContext(ctx).
        Model(&types.Conversation{}).
        Where("user_id = ?", userID).
        Count(&count).Error; err != nil {
        cr.log.Error("failed to count conversations by userID", "error", err)
        return 0, err
    }
    return count, nil
}

func (cr *conversationRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, id uuid.UUID, title string) error {
    if tx == nil {
        tx = cr.db
    }
    res := tx.WithContext(ctx).
        Model(&types.Conversation{}).
        Where("id = ?", id).
        Updates(map[string]interface{}{"title": title, "updated_at": time.Now().UTC()})
    if res.Error != nil {
        cr.log.Error("failed to update conversation title", "error", res.Error)
        return res.Error
    }
    if res.RowsAffected == 0 {
        return gorm.ErrRecordNotFound
    }
    return nil
}

func (cr *conversationRepo) Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
    if tx == nil {
        tx = cr.db
    }
    if err := tx.WithContext(ctx).
        Model(&types.Conversation{}).
        Where("id = ?", id).
        Update("updated_at", time.Now().UTC()).Error; err != nil {
        cr.log.Error("failed to touch conversation", "error", err)
        return err
    }
    return nil
}

// DeleteByID removes the conversation and its messages in the caller's transaction.
// The foreign key cascades as well; deleting messages first keeps stores without
// enforced foreign keys consistent.
func (cr *conversationRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
    if tx == nil {
        tx = cr.db
    }
    if err := tx.WithContext(ctx).
        Where("conversation_id = ?", id).
        Delete(&types.Message{}).Error; err != nil {
        cr.log.Error("failed to delete conversation messages", "error", err)
        return err
    }
    res := tx.WithContext(ctx).
        Where("id = ?", id).
        Delete(&types.Conversation{})
    if res.Error != nil {
        cr.log.Error("failed to delete conversation", "error", res.Error)
        return res.Error
    }
    if res.RowsAffected == 0 {
        return gorm.ErrRecordNotFound
    }
    return nil
}
