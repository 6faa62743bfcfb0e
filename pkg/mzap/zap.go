// Package mzap wires go.uber.org/zap behind the mlog.Logger interface.
package mzap

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lerianlabs/batchgate/pkg/mlog"
)

// ZapLogger is a mlog.Logger backed by a zap.SugaredLogger.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// InitializeLogger builds the process-wide logger. Encoding and level follow
// ENV_NAME and LOG_LEVEL the same way every other component in this stack
// does, so logs from this gateway look the same in any of the teams' tools.
//
//nolint:ireturn
func InitializeLogger() mlog.Logger {
	var cfg zap.Config

	if os.Getenv("ENV_NAME") == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if val, ok := os.LookupEnv("LOG_LEVEL"); ok {
		var lvl zapcore.Level
		if err := lvl.Set(val); err != nil {
			lvl = zapcore.InfoLevel
		}

		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic("mzap: can't initialize zap logger: " + err.Error())
	}

	return &ZapLogger{s: logger.Sugar()}
}

func (l *ZapLogger) Info(args ...any)                  { l.s.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any)   { l.s.Infof(format, args...) }
func (l *ZapLogger) Infoln(args ...any)                 { l.s.Infoln(args...) }
func (l *ZapLogger) Error(args ...any)                  { l.s.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any)  { l.s.Errorf(format, args...) }
func (l *ZapLogger) Errorln(args ...any)                { l.s.Errorln(args...) }
func (l *ZapLogger) Warn(args ...any)                   { l.s.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any)    { l.s.Warnf(format, args...) }
func (l *ZapLogger) Warnln(args ...any)                 { l.s.Warnln(args...) }
func (l *ZapLogger) Debug(args ...any)                  { l.s.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any)  { l.s.Debugf(format, args...) }
func (l *ZapLogger) Debugln(args ...any)                { l.s.Debugln(args...) }
func (l *ZapLogger) Fatal(args ...any)                  { l.s.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...any)  { l.s.Fatalf(format, args...) }
func (l *ZapLogger) Fatalln(args ...any)                { l.s.Fatalln(args...) }

// WithFields returns a new logger and leaves the original unchanged.
//
//nolint:ireturn
func (l *ZapLogger) WithFields(fields ...any) mlog.Logger {
	return &ZapLogger{s: l.s.With(fields...)}
}

func (l *ZapLogger) Sync() error { return l.s.Sync() }
