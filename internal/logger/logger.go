package logger

import (
  "fmt"
  "os"

  "go.uber.org/zap"
  "go.uber.org/zap/zapcore"
  "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a thin key/value wrapper around zap's SugaredLogger.
// Every component gets its own child via With("service", "X").
type Logger struct {
  sugar *zap.SugaredLogger
}

type Options struct {
  Mode        string
  FilePath    string
  MaxSizeMB   int
  MaxAgeDays  int
}

func New(mode string) (*Logger, error) {
  return NewWithOptions(Options{Mode: mode})
}

func NewWithOptions(opts Options) (*Logger, error) {
  var cores []zapcore.Core
  switch opts.Mode {
  case "production":
    encCfg := zap.NewProductionEncoderConfig()
    encCfg.TimeKey = "timestamp"
    encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
    cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), zap.InfoLevel))
  case "development", "":
    encCfg := zap.NewDevelopmentEncoderConfig()
    encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
    cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), zap.DebugLevel))
  default:
    return nil, fmt.Errorf("unknown log mode %q (want 'development' or 'production')", opts.Mode)
  }

  if opts.FilePath != "" {
    maxSize := opts.MaxSizeMB
    if maxSize <= 0 {
      maxSize = 100
    }
    maxAge := opts.MaxAgeDays
    if maxAge <= 0 {
      maxAge = 28
    }
    fileCfg := zap.NewProductionEncoderConfig()
    fileCfg.TimeKey = "timestamp"
    fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
    fileCore := zapcore.NewCore(
      zapcore.NewJSONEncoder(fileCfg),
      zapcore.AddSync(&lumberjack.Logger{
        Filename: opts.FilePath,
        MaxSize:  maxSize,
        MaxAge:   maxAge,
        Compress: true,
      }),
      zap.InfoLevel,
    )
    cores = append(cores, fileCore)
  }

  base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
  return &Logger{sugar: base.Sugar()}, nil
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
  return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
  return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
  l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
  l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
  l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
  l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Sync() error {
  return l.sugar.Sync()
}
