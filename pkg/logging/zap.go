package logging

import (
	"context"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	// Format is the output format (json or text)
	Format Format
	// Level is the minimum log level
	Level Level
	// Path is the log file path; empty writes to Output
	Path string
	// MaxSize is the maximum size in bytes before rotation (0 = no rotation)
	MaxSize int64
	// MaxBackups is the maximum number of backup files to keep
	MaxBackups int
	// Output receives entries when Path is empty; defaults to stderr
	Output io.Writer
}

// ZapLogger implements Logger on top of a zap core
type ZapLogger struct {
	logger *zap.Logger
	closer io.Closer
}

// New builds a zap-backed logger
func New(cfg Config) (*ZapLogger, error) {
	var (
		sink   zapcore.WriteSyncer
		closer io.Closer
	)

	if cfg.Path != "" {
		w, err := newRotatingWriter(cfg.Path, cfg.MaxSize, cfg.MaxBackups)
		if err != nil {
			return nil, err
		}
		sink, closer = w, w
	} else {
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		sink = zapcore.Lock(zapcore.AddSync(out))
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, zap.NewAtomicLevelAt(zapLevel(cfg.Level)))
	return &ZapLogger{
		logger: zap.New(core),
		closer: closer,
	}, nil
}

func newEncoder(format Format) zapcore.Encoder {
	if format == FormatText {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(encCfg)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	return zapcore.NewJSONEncoder(encCfg)
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// toZapFields converts Fields in key order so output is stable
func toZapFields(fields Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// Debug logs a debug message
func (l *ZapLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.logger.Debug(msg, toZapFields(fields)...)
}

// Info logs an info message
func (l *ZapLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.logger.Info(msg, toZapFields(fields)...)
}

// Warn logs a warning message
func (l *ZapLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.logger.Warn(msg, toZapFields(fields)...)
}

// Error logs an error message
func (l *ZapLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	zf := toZapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.logger.Error(msg, zf...)
}

// WithFields returns a logger with additional fields.
// The child shares the parent's output; closing the parent closes both.
func (l *ZapLogger) WithFields(fields Fields) Logger {
	return &ZapLogger{logger: l.logger.With(toZapFields(fields)...)}
}

// Zap exposes the underlying zap logger
func (l *ZapLogger) Zap() *zap.Logger {
	return l.logger
}

// Close flushes and closes the logger
func (l *ZapLogger) Close() error {
	// Sync on stderr fails on some platforms; that is not worth surfacing
	_ = l.logger.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
