// Package dbtest opens throwaway in-memory sqlite databases with the full schema.
package dbtest

import (
  "fmt"
  "testing"

  "github.com/google/uuid"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/slotter-org/tutor-backend/internal/db"
)

func NewSQLite(t testing.TB) *gorm.DB {
  t.Helper()
  dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
  gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("failed to open sqlite: %v", err)
  }
  sqlDB, err := gdb.DB()
  if err != nil {
    t.Fatalf("failed to get sql.DB: %v", err)
  }
  sqlDB.SetMaxOpenConns(1)
  if err := db.AutoMigrateModels(gdb); err != nil {
    t.Fatalf("failed to migrate sqlite: %v", err)
  }
  t.Cleanup(func() { _ = sqlDB.Close() })
  return gdb
}
