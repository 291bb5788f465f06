package db

import (
  "context"
  "embed"
  "fmt"

  "github.com/pressly/goose/v3"
  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/types"
)

//go:embed migrations/*.sql
var securityMigrations embed.FS

type PostgresService struct {
  db *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger, dsn string) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  serviceLog.Info("Attempting to connect to Postgres DB now...")
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
    Logger: gormlogger.Default.LogMode(gormlogger.Warn),
  })
  if err != nil {
    serviceLog.Error("Failed to connect to Postgres DB", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres DB: %w", err)
  }
  serviceLog.Info("Successfully Connected to Postgres DB :)")
  return &PostgresService{db: db, log: serviceLog}, nil
}

// AutoMigrateModels creates the tables for every model. Shared by the Postgres service and
// the sqlite databases used in tests.
func AutoMigrateModels(db *gorm.DB) error {
  return db.AutoMigrate(
    &types.Conversation{},
    &types.Message{},
    &types.ModerationFlag{},
  )
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Starting AutoMigrateAll for all GORM models now...")
  if err := AutoMigrateModels(s.db); err != nil {
    s.log.Error("AutoMigrateAll failed for Base Tables :(", "error", err)
    return err
  }
  s.log.Info("AutoMigrateAll completed successfully for Base Tables :)")

  s.log.Info("Configuring Foreign Key Relationships for Base Tables now...")
  // -- Message.conversation_id => conversation.id (ON DELETE CASCADE)
  if err := s.db.Exec(`
    DO $$
    BEGIN
      IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_message_conversation_id') THEN
        ALTER TABLE "message"
        ADD CONSTRAINT "fk_message_conversation_id"
        FOREIGN KEY ("conversation_id")
        REFERENCES "conversation" ("id")
        ON DELETE CASCADE;
      END IF;
    END $$;
  `).Error; err != nil {
    return fmt.Errorf("failed to add fk_message_conversation_id: %w", err)
  }
  s.log.Info("Successfully Added Foreign Key Relationships to Base Tables :)")
  return nil
}

// ApplySecurityMigrations installs the row-level security policies and the conversation
// quota trigger. They are plain SQL, tracked by goose in their own version table.
func (s *PostgresService) ApplySecurityMigrations(ctx context.Context) error {
  s.log.Info("Applying security migrations now...")
  sqlDB, err := s.db.DB()
  if err != nil {
    return fmt.Errorf("failed to get sql.DB from gorm: %w", err)
  }
  goose.SetBaseFS(securityMigrations)
  goose.SetTableName("goose_security_migrations")
  if err := goose.SetDialect("postgres"); err != nil {
    return fmt.Errorf("failed to set goose dialect: %w", err)
  }
  if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
    s.log.Error("Security migrations failed :(", "error", err)
    return fmt.Errorf("failed to apply security migrations: %w", err)
  }
  s.log.Info("Security migrations applied :)")
  return nil
}

func (s *PostgresService) Ping(ctx context.Context) error {
  sqlDB, err := s.db.DB()
  if err != nil {
    return err
  }
  return sqlDB.PingContext(ctx)
}

func (s *PostgresService) Close() error {
  sqlDB, err := s.db.DB()
  if err != nil {
    return err
  }
  return sqlDB.Close()
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
