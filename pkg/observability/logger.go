// Package observability contains logging setup and other observability utilities.
package observability

import (
    "os"
    "strings"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "gopkg.in/natefinch/lumberjack.v2"

    "netplayd/pkg/config"
)

// InitLogger builds the process logger from config and installs it as the
// zap global. Returns a flush function for deferred use in main.
func InitLogger(cfg config.LogConfig) (*zap.Logger, func(), error) {
    level := zapcore.InfoLevel
    if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
        level = zapcore.InfoLevel
    }

    var encCfg zapcore.EncoderConfig
    if cfg.Development {
        encCfg = zap.NewDevelopmentEncoderConfig()
    } else {
        encCfg = zap.NewProductionEncoderConfig()
        encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
    }

    var enc zapcore.Encoder
    if cfg.Format == "json" {
        enc = zapcore.NewJSONEncoder(encCfg)
    } else {
        encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
        enc = zapcore.NewConsoleEncoder(encCfg)
    }

    var syncers []zapcore.WriteSyncer
    for _, out := range cfg.Outputs {
        switch out {
        case "stdout":
            syncers = append(syncers, zapcore.AddSync(os.Stdout))
        case "stderr":
            syncers = append(syncers, zapcore.AddSync(os.Stderr))
        case "file":
            syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
                Filename:   cfg.Rotation.Filename,
                MaxSize:    cfg.Rotation.MaxSizeMB,
                MaxBackups: cfg.Rotation.MaxBackups,
                MaxAge:     cfg.Rotation.MaxAgeDays,
                Compress:   cfg.Rotation.Compress,
            }))
        }
    }
    if len(syncers) == 0 { syncers = append(syncers, zapcore.AddSync(os.Stdout)) }

    core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(syncers...), level)

    opts := []zap.Option{zap.AddCaller()}
    if cfg.Development { opts = append(opts, zap.Development()) }
    logger := zap.New(core, opts...)

    undo := zap.ReplaceGlobals(logger)
    restoreStd, err := zap.RedirectStdLogAt(logger, zapcore.DebugLevel)
    if err != nil {
        undo()
        return nil, nil, err
    }
    flush := func() {
        _ = logger.Sync()
        restoreStd()
        undo()
    }
    return logger, flush, nil
}
