package requestdata

import (
  "context"

  "github.com/google/uuid"
)

type key struct{}

var requestDataKey key

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
  return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
  val := ctx.Value(requestDataKey)
  if rd, ok := val.(*RequestData); ok {
    return rd
  }
  return nil
}

// RequestData is what the auth middleware learned from the bearer token.
// ClaimsJSON is the verified claim set, forwarded verbatim to the store.
type RequestData struct {
  TokenString     string
  ClaimsJSON      string
  UserID          uuid.UUID
  Email           string
  Role            string
  SessionID       string
  ClientIP        string
}
