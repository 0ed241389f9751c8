package logzap

import (
	"strings"

	"github.com/aatuh/shield/ports"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts zap to the ports.Logger interface.
type ZapLogger struct{ s *zap.SugaredLogger }

func New(z *zap.Logger) ports.Logger { return &ZapLogger{s: z.Sugar()} }

// NewProduction creates a production logger.
func NewProduction() ports.Logger {
	z, _ := zap.NewProduction()
	return &ZapLogger{s: z.Sugar()}
}

// NewWithLevel creates a production logger at the given level name
// ("debug", "info", "warn", "error"). Unknown names fall back to info.
func NewWithLevel(level string) (ports.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{s: z.Sugar()}, nil
}

// Nop returns a logger that discards everything.
func Nop() ports.Logger { return &ZapLogger{s: zap.NewNop().Sugar()} }

func (l *ZapLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *ZapLogger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *ZapLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *ZapLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error { return l.s.Sync() }

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
