package types

import "github.com/google/uuid"

// Identity is the caller as described by a verified identity-provider token.
type Identity struct {
  ID          uuid.UUID     `json:"id"`
  Email       string        `json:"email"`
  Role        string        `json:"role"`
  SessionID   string        `json:"session_id,omitempty"`
}
