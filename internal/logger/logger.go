package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// level is shared by every logger built with New, so SetLevel applies to all of them.
	//nolint:gochecknoglobals // The CLI changes the level once for the whole process.
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
	// global is used when the context carries no logger.
	//nolint:gochecknoglobals // Logger is used all over the project, so it's okay.
	global = New()
)

// levelNames maps the accepted --log-level values to zap levels.
//
//nolint:gochecknoglobals // Read-only lookup table.
var levelNames = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// New creates a console logger writing to stdout at the shared level.
func New(options ...zap.Option) *zap.SugaredLogger {
	//nolint:exhaustruct // I'm okay with default encoder configuration values.
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: ", ",
	})

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)

	return zap.New(core, options...).Sugar()
}

// ParseLogLevel converts a --log-level value to a zap level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	parsed, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return zapcore.InfoLevel, false
	}

	return parsed, true
}

// SetLevel changes the level of every logger created by New.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// Debug writes a debug level message using the logger from the context.
func Debug(ctx context.Context, args ...any) {
	FromContext(ctx).Debug(args...)
}

// DebugKV writes a message and key-value pairs at the debug level.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// Info writes an information level message using the logger from the context.
func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

// InfoKV writes a message and key-value pairs at the information level.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// WarnKV writes a message and key-value pairs at the warning level.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// ErrorKV writes a message and key-value pairs at the error level.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
