package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// ModerationFlag records a blocked message. The message text itself is never stored.
type ModerationFlag struct {
  ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
  UserID          *uuid.UUID        `gorm:"type:uuid;index" json:"user_id,omitempty"`
  Source          string            `gorm:"column:source;size:32;not null" json:"source"`
  Categories      datatypes.JSON    `gorm:"column:categories" json:"categories"`
  CategoryScores  datatypes.JSON    `gorm:"column:category_scores" json:"category_scores"`
  CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
}

func (ModerationFlag) TableName() string {
  return "moderation_flag"
}
