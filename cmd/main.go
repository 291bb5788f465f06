package main

import (
  "fmt"
  "os"
  "strings"

  "github.com/joho/godotenv"
  "github.com/spf13/cobra"
  "github.com/spf13/viper"

  "github.com/slotter-org/tutor-backend/internal/config"
  "github.com/slotter-org/tutor-backend/internal/logger"
)

var (
  rootCmd = &cobra.Command{
    Use:   "tutor",
    Short: "Backend API for the educational chat tutor.",
    PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
      // .env is optional; real deployments set the environment directly
      _ = godotenv.Load()
      return nil
    },
    RunE: func(cmd *cobra.Command, args []string) error {
      return runServe()
    },
    SilenceUsage: true,
  }

  serveCmd = &cobra.Command{
    Use:   "serve",
    Short: "Run the HTTP API (default).",
    RunE: func(cmd *cobra.Command, args []string) error {
      return runServe()
    },
  }

  migrateCmd = &cobra.Command{
    Use:   "migrate",
    Short: "Create tables and apply row-level security and quota migrations, then exit.",
    RunE: func(cmd *cobra.Command, args []string) error {
      return runMigrate()
    },
  }
)

func init() {
  viper.SetDefault("mode", "development")
  viper.SetDefault("port", "3001")

  rootCmd.PersistentFlags().String("mode", "development", `log mode, "development" or "production"`)
  rootCmd.PersistentFlags().String("port", "3001", "port the HTTP API listens on")
  rootCmd.PersistentFlags().String("log-file", "", "optional path for rotated JSON logs")

  for _, name := range []string{"mode", "port", "log-file"} {
    if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
      panic(err)
    }
  }
  viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
  if err := viper.BindEnv("mode", "LOG_MODE"); err != nil {
    panic(err)
  }
  if err := viper.BindEnv("port", "PORT"); err != nil {
    panic(err)
  }
  if err := viper.BindEnv("log-file", "LOG_FILE"); err != nil {
    panic(err)
  }

  rootCmd.AddCommand(serveCmd, migrateCmd)
}

// bootstrap builds the logger and config shared by every command. Flags win over env.
func bootstrap() (*logger.Logger, *config.Config, error) {
  log, err := logger.NewWithOptions(logger.Options{
    Mode:     viper.GetString("mode"),
    FilePath: viper.GetString("log-file"),
  })
  if err != nil {
    return nil, nil, fmt.Errorf("failed to init logger: %w", err)
  }
  cfg := config.Load(log)
  cfg.Mode = viper.GetString("mode")
  cfg.Port = viper.GetString("port")
  cfg.LogFile = viper.GetString("log-file")
  if err := cfg.Validate(); err != nil {
    log.Error("Invalid configuration", "error", err)
    return nil, nil, err
  }
  return log, cfg, nil
}

func main() {
  if err := rootCmd.Execute(); err != nil {
    fmt.Fprintln(os.Stderr, err)
    os.Exit(1)
  }
}
