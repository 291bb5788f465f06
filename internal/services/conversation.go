package services

import (
  "context"
  "errors"
  "fmt"
  "net/http"
  "strings"

  "github.com/google/uuid"
  "github.com/jackc/pgx/v5/pgconn"
  "gorm.io/gorm"

  "github.com/slotter-org/tutor-backend/internal/db"
  "github.com/slotter-org/tutor-backend/internal/errordata"
  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/normalization"
  "github.com/slotter-org/tutor-backend/internal/repos"
  "github.com/slotter-org/tutor-backend/internal/requestdata"
  "github.com/slotter-org/tutor-backend/internal/sealing"
  "github.com/slotter-org/tutor-backend/internal/types"
)

const (
  EventConversationCreated  = "conversation_created"
  EventConversationUpdated  = "conversation_updated"
  EventConversationDeleted  = "conversation_deleted"
  EventMessageCreated       = "message_created"
)

// Notifier fans change events out to the owner's live connections.
type Notifier interface {
  NotifyUser(userID uuid.UUID, event string, payload interface{})
}

type ConversationService interface {
  List(ctx context.Context) ([]*types.Conversation, error)
  Create(ctx context.Context, title string) (*types.Conversation, error)
  Get(ctx context.Context, id uuid.UUID) (*types.Conversation, error)
  Rename(ctx context.Context, id uuid.UUID, title string) (*types.Conversation, error)
  Delete(ctx context.Context, id uuid.UUID) error

  ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*types.Message, error)
  AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (*types.Message, error)
}

type conversationService struct {
  db                *gorm.DB
  log               *logger.Logger
  scope             *db.CallerScope
  conversationRepo  repos.ConversationRepo
  messageRepo       repos.MessageRepo
  sealer            *sealing.Sealer
  notifier          Notifier
}

func NewConversationService(
  gdb               *gorm.DB,
  log               *logger.Logger,
  scope             *db.CallerScope,
  conversationRepo  repos.ConversationRepo,
  messageRepo       repos.MessageRepo,
  sealer            *sealing.Sealer,
  notifier          Notifier,
) ConversationService {
  return &conversationService{
    db:               gdb,
    log:              log.With("service", "ConversationService"),
    scope:            scope,
    conversationRepo: conversationRepo,
    messageRepo:      messageRepo,
    sealer:           sealer,
    notifier:         notifier,
  }
}

func (cs *conversationService) caller(ctx context.Context) (*requestdata.RequestData, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    cs.log.Warn("No request data in context")
    return nil, errordata.Unauthorized("Authentication required")
  }
  return rd, nil
}

// ownedConversation loads the conversation and checks it belongs to the caller.
func (cs *conversationService) ownedConversation(ctx context.Context, tx *gorm.DB, rd *requestdata.RequestData, id uuid.UUID) (*types.Conversation, error) {
  conv, err := cs.conversationRepo.GetByID(ctx, tx, id)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, errordata.NotFound("Conversation not found")
    }
    return nil, fmt.Errorf("failed to load conversation: %w", err)
  }
  if conv.UserID != rd.UserID {
    cs.log.Warn("Ownership check failed", "conversationID", id, "userID", rd.UserID)
    return nil, errordata.Forbidden("You do not have access to this conversation")
  }
  return conv, nil
}

func (cs *conversationService) notify(userID uuid.UUID, event string, payload interface{}) {
  if cs.notifier != nil {
    cs.notifier.NotifyUser(userID, event, payload)
  }
}

func cleanTitle(title string) (string, error) {
  t := normalization.StripMarkup(normalization.ParseInputString(title))
  if normalization.RuneLength(t) > types.MaxConversationTitleLength {
    return "", errordata.BadRequest(fmt.Sprintf("Title is too long (max %d characters)", types.MaxConversationTitleLength))
  }
  return t, nil
}

func quotaError() *errordata.Error {
  return errordata.BadRequest(fmt.Sprintf("Conversation limit reached (max %d). Delete a conversation to start a new one.", types.MaxConversationsPerUser))
}

// isQuotaViolation recognises the exception raised by the conversation_quota trigger.
func isQuotaViolation(err error) bool {
  var pgErr *pgconn.PgError
  if errors.As(err, &pgErr) {
    return pgErr.Code == "P0001" && (pgErr.Hint == "conversation_quota" || strings.Contains(pgErr.Message, "conversation quota"))
  }
  return false
}

//----------------------------------------------------------------------------------------------------------------------
// Conversations
//----------------------------------------------------------------------------------------------------------------------

func (cs *conversationService) List(ctx context.Context) ([]*types.Conversation, error) {
  rd, err := cs.caller(ctx)
  if err != nil {
    return nil, err
  }
  var convs []*types.Conversation
  if err := cs.scope.Transaction(ctx, cs.db, rd, func(tx *gorm.DB) error {
    var txErr error
    convs, txErr = cs.conversationRepo.GetByUserID(ctx, tx, rd.UserID)
    return txErr
  }); err != nil {
    return nil, fmt.Errorf("failed to list conversations: %w", err)
  }
  if convs == nil {
    convs = []*types.Conversation{}
  }
  return convs, nil
}

func (cs *conversationService) Create(ctx context.Context, title string) (*types.Conversation, error) {
  rd, err := cs.caller(ctx)
  if err != nil {
    return nil, err
  }
  clean, err := cleanTitle(title)
  if err != nil {
    return nil, err
  }
  if clean == "" {
    clean = types.DefaultConversationTitle
  }
  conv := &types.Conversation{UserID: rd.UserID, Title: clean}
  err = cs.scope.Transaction(ctx, cs.db, rd, func(tx *gorm.DB) error {
    count, err := cs.conversationRepo.CountByUserID(ctx, tx, rd.UserID)
    if err != nil {
      return err
    }
    if count >= types.MaxConversationsPerUser {
      return quotaError()
    }
    _, err = cs.conversationRepo.Create(ctx, tx, conv)
    return err
  })
  if err != nil {
    if isQuotaViolation(err) {
      return nil, quotaError()
    }
    if _, ok := errordata.As(err); ok {
      return nil, err
    }
    return nil, fmt.Errorf("failed to create conversation: %w", err)
  }
  cs.log.Info("Conversation created", "conversationID", conv.ID, "userID", rd.UserID)
  cs.notify(rd.UserID, EventConversationCreated, conv)
  return conv, nil
}

func (cs *conversationService) Get(ctx context.Context, id uuid.UUID) (*types.Conversation, error) {
  rd, err := cs.caller(ctx)
  if err != nil {
    return nil, err
  }
  var conv *types.Conversation
  err = cs.scope.Transaction(ctx, cs.db, rd, func(tx *gorm.DB) error {
    var txErr error
    conv, txErr = cs.ownedConversation(ctx, tx, rd, id)
    return txErr
  })
  if err != nil {
    return nil, err
  }
  return conv, nil
}

func (cs *conversationService) Rename(ctx context.Context, id uuid.UUID, title string) (*types.Conversation, error) {
  rd, err := cs.caller(ctx)
  if err != nil {
    return nil, err
  }
  clean, err := cleanTitle(title)
  if err != nil {
    return nil, err
  }
  if clean == "" {
    return nil, errordata.BadRequest("Title is required")
  }
  var conv *types.Conversation
  err = cs.scope.Transaction(ctx, cs.db, rd, func(tx *gorm.DB) error {
    if _, err := cs.ownedConversation(ctx, tx, rd, id); err != nil {
      return err
    }
    if err := cs.conversationRepo.UpdateTitle(ctx, tx, id, clean); err != nil {
      return err
    }
    var txErr error
    conv, txErr = cs.conversationRepo.GetByID(ctx, tx, id)
    return txErr
  })
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, errordata.NotFound("Conversation not found")
    }
    return nil, err
  }
  cs.notify(rd.UserID, EventConversationUpdated, conv)
  return conv, nil
}

func (cs *conversationService) Delete(ctx context.Context, id uuid.UUID) error {
  rd, err := cs.caller(ctx)
  if err != nil {
    return err
  }
  err = cs.scope.Transaction(ctx, cs.db, rd, func(tx *gorm.DB) error {
    if _, err := cs.ownedConversation(ctx, tx, rd, id); err != nil {
      return err
    }
    return cs.conversationRepo.DeleteByID(ctx, tx, id)
  })
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return errordata.NotFound("Conversation not found")
    }
    return err
  }
  cs.log.Info("Conversation deleted", "conversationID", id, "userID", rd.UserID)
  cs.notify(rd.UserID, EventConversationDeleted, map[string]interface{}{"id": id})
  return nil
}

//----------------------------------------------------------------------------------------------------------------------
// Messages
//----------------------------------------------------------------------------------------------------------------------

func (cs *conversationService) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*types.Message, error) {
  rd, err := cs.caller(ctx)
  if err != nil {
    return nil, err
  }
  var msgs []*types.Message
  err = cs.scope.Transaction(ctx, cs.db, rd, func(tx *gorm.DB) error {
    if _, err := cs.ownedConversation(ctx, tx, rd, conversationID); err != nil {
      return err
    }
    var txErr error
    msgs, txErr = cs.messageRepo.GetByConversationID(ctx, tx, conversationID)
    return txErr
  })
  if err != nil {
    return nil, err
  }
  for _, m := range msgs {
    plain, err := cs.sealer.Open(rd.UserID, m.Content)
    if err != nil {
      cs.log.Error("Failed to open sealed message", "messageID", m.ID, "error", err)
      return nil, errordata.Wrap(http.StatusInternalServerError, "Failed to read message", err)
    }
    m.Content = plain
  }
  if msgs == nil {
    msgs = []*types.Message{}
  }
  return msgs, nil
}

func (cs *conversationService) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (*types.Message, error) {
  rd, err := cs.caller(ctx)
  if err != nil {
    return nil, err
  }
  role = strings.ToLower(normalization.ParseInputString(role))
  if !types.IsValidMessageRole(role) {
    return nil, errordata.BadRequest("role must be 'user' or 'assistant'")
  }
  if normalization.ParseInputString(content) == "" {
    return nil, errordata.BadRequest("content is required")
  }
  stored := content
  if cs.sealer.Enabled() {
    stored, err = cs.sealer.Seal(rd.UserID, content)
    if err != nil {
      return nil, fmt.Errorf("failed to seal message: %w", err)
    }
  }
  msg := &types.Message{ConversationID: conversationID, Role: role, Content: stored}
  err = cs.scope.Transaction(ctx, cs.db, rd, func(tx *gorm.DB) error {
    if _, err := cs.ownedConversation(ctx, tx, rd, conversationID); err != nil {
      return err
    }
    if _, err := cs.messageRepo.CreateMessages(ctx, tx, []*types.Message{msg}); err != nil {
      return err
    }
    return cs.conversationRepo.Touch(ctx, tx, conversationID)
  })
  if err != nil {
    if _, ok := errordata.As(err); ok {
      return nil, err
    }
    return nil, fmt.Errorf("failed to add message: %w", err)
  }
  msg.Content = content
  cs.notify(rd.UserID, EventMessageCreated, msg)
  return msg, nil
}
