package types

import (
  "time"

  "github.com/google/uuid"
)

const (
  MaxConversationsPerUser = 3
  DefaultConversationTitle = "New Chat"
  MaxConversationTitleLength = 200
)

type Conversation struct {
  ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
  UserID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
  Title       string          `gorm:"column:title;size:200;not null" json:"title"`
  Messages    []Message       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConversationID;references:ID" json:"messages,omitempty"`
  CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
  UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (Conversation) TableName() string {
  return "conversation"
}
