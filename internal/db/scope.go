package db

import (
  "context"
  "fmt"
  "strings"

  "gorm.io/gorm"

  "github.com/slotter-org/tutor-backend/internal/requestdata"
)

// CallerScope runs work inside a transaction that carries the caller's verified token
// claims, so the store's row-level security policies see the same identity the API saw.
// Only Postgres understands the claims; other dialects just get the transaction.
type CallerScope struct {
  role string
}

func NewCallerScope(role string) *CallerScope {
  return &CallerScope{role: role}
}

func (cs *CallerScope) Transaction(ctx context.Context, gdb *gorm.DB, rd *requestdata.RequestData, fn func(tx *gorm.DB) error) error {
  if rd == nil {
    return fmt.Errorf("no request data in context; refusing to run unscoped")
  }
  return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if tx.Dialector.Name() == "postgres" {
      if err := tx.Exec("SELECT set_config('request.jwt.claims', ?, true)", rd.ClaimsJSON).Error; err != nil {
        return fmt.Errorf("failed to install caller claims: %w", err)
      }
      if cs.role != "" {
        if err := tx.Exec("SET LOCAL ROLE " + quoteIdent(cs.role)).Error; err != nil {
          return fmt.Errorf("failed to switch to role %q: %w", cs.role, err)
        }
      }
    }
    return fn(tx)
  })
}

func quoteIdent(s string) string {
  return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
