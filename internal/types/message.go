package types

import (
  "time"

  "github.com/google/uuid"
)

const (
  MessageRoleUser      = "user"
  MessageRoleAssistant = "assistant"
)

func IsValidMessageRole(role string) bool {
  return role == MessageRoleUser || role == MessageRoleAssistant
}

// Message rows are immutable; they only disappear with their conversation.
type Message struct {
  ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
  ConversationID  uuid.UUID       `gorm:"type:uuid;index;not null" json:"conversation_id"`
  Role            string          `gorm:"column:role;size:16;not null" json:"role"`
  Content         string          `gorm:"column:content;type:text;not null" json:"content"`
  CreatedAt       time.Time       `gorm:"not null;index" json:"created_at"`
}

func (Message) TableName() string {
  return "message"
}
