package repos

import (
    "context"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "gorm.io/gorm"

    "github.com/slotter-org/tutor-backend/internal/db/dbtest"
    "github.com/slotter-org/tutor-backend/internal/logger"
    "github.com/slotter-org/tutor-backend/internal/types"
)

func TestConversationRepoLifecycle(t *testing.T) {
    ctx := context.Background()
    gdb := dbtest.NewSQLite(t)
    convRepo := NewConversationRepo(gdb, logger.Nop())
    userID := uuid.New()

    older, err := convRepo.Create(ctx, nil, &types.Conversation{UserID: userID, Title: "Fractions"})
    require.NoError(t, err)
    assert.NotEqual(t, uuid.Nil, older.ID)

    newer, err := convRepo.Create(ctx, nil, &types.Conversation{
        UserID:    userID,
        Title:     "Cells",
        UpdatedAt: time.Now().UTC().Add(time.Minute),
    })
    require.NoError(t, err)

    _, err = convRepo.Create(ctx, nil, &types.Conversation{UserID: uuid.New(), Title: "Someone else"})
    require.NoError(t, err)

    list, err := convRepo.GetByUserID(ctx, nil, userID)
    require.NoError(t, err)
    require.Len(t, list, 2)
    assert.Equal(t, newer.ID, list[0].ID, "newest updated_at first")

    count, err := convRepo.CountByUserID(ctx, nil, userID)
    require.NoError(t, err)
    assert.Equal(t, int64(2), count)

    require.NoError(t, convRepo.UpdateTitle(ctx, nil, older.ID, "Fractions and decimals"))
    got, err := convRepo.GetByID(ctx, nil, older.ID)
    require.NoError(t, err)
    assert.Equal(t, "Fractions and decimals", got.Title)

    assert.ErrorIs(t, convRepo.UpdateTitle(ctx, nil, uuid.New(), "x"), gorm.ErrRecordNotFound)
}

func TestConversationRepoDeleteCascadesMessages(t *testing.T) {
    ctx := context.Background()
    gdb := dbtest.NewSQLite(t)
    convRepo := NewConversationRepo(gdb, logger.Nop())
    msgRepo := NewMessageRepo(gdb, logger.Nop())

    conv, err := convRepo.Create(ctx, nil, &types.Conversation{UserID: uuid.New(), Title: "Volcanoes"})
    require.NoError(t, err)
    keep, err := convRepo.Create(ctx, nil, &types.Conversation{UserID: conv.UserID, Title: "Rivers"})
    require.NoError(t, err)

    _, err = msgRepo.CreateMessages(ctx, nil, []*types.Message{
        {ConversationID: conv.ID, Role: types.MessageRoleUser, Content: "Why do volcanoes erupt?"},
        {ConversationID: conv.ID, Role: types.MessageRoleAssistant, Content: "Pressure from magma."},
        {ConversationID: keep.ID, Role: types.MessageRoleUser, Content: "How long is the Nile?"},
    })
    require.NoError(t, err)

    require.NoError(t, convRepo.DeleteByID(ctx, nil, conv.ID))

    remaining, err := msgRepo.CountByConversationID(ctx, nil, conv.ID)
    require.NoError(t, err)
    assert.Zero(t, remaining)

    kept, err := msgRepo.CountByConversationID(ctx, nil, keep.ID)
    require.NoError(t, err)
    assert.Equal(t, int64(1), kept)

    _, err = convRepo.GetByID(ctx, nil, conv.ID)
    assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
    assert.ErrorIs(t, convRepo.DeleteByID(ctx, nil, conv.ID), gorm.ErrRecordNotFound)
}

func TestMessageRepoOrdersOldestFirst(t *testing.T) {
    ctx := context.Background()
    gdb := dbtest.NewSQLite(t)
    convRepo := NewConversationRepo(gdb, logger.Nop())
    msgRepo := NewMessageRepo(gdb, logger.Nop())

    conv, err := convRepo.Create(ctx, nil, &types.Conversation{UserID: uuid.New(), Title: "Poems"})
    require.NoError(t, err)

    base := time.Now().UTC()
    _, err = msgRepo.CreateMessages(ctx, nil, []*types.Message{
        {ConversationID: conv.ID, Role: types.MessageRoleAssistant, Content: "second", CreatedAt: base.Add(time.Second)},
        {ConversationID: conv.ID, Role: types.MessageRoleUser, Content: "first", CreatedAt: base},
    })
    require.NoError(t, err)

    msgs, err := msgRepo.GetByConversationID(ctx, nil, conv.ID)
    require.NoError(t, err)
    require.Len(t, msgs, 2)
    assert.Equal(t, "first", msgs[0].Content)
    assert.Equal(t, "second", msgs[1].Content)
}
