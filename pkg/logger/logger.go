// Package logger wraps zap with the key-value call convention used across
// the Integrity Spine (Info(msg, "key", value, ...)) and RedactedField for
// PII-bearing identifiers. Redaction is not applied automatically: values
// passed to the key-value methods reach the sink as given, and only fields
// built with RedactedField are redacted.
package logger

import (
	"github.com/integrity-spine/spine/pkg/pii"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger and exposes the raw *zap.Logger for
// call sites that want typed fields (zap.String, zap.Error, ...).
type Logger struct {
	sugar *zap.SugaredLogger
	raw   *zap.Logger
}

// New builds a Logger. level is one of "debug", "info", "warn", "error".
// environment "production" selects JSON encoding; anything else selects
// a human-readable console encoding, matching the teacher's two-mode setup.
func New(level, environment string) *Logger {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if environment != "production" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	raw, err := cfg.Build()
	if err != nil {
		raw = zap.NewNop()
	}

	return &Logger{sugar: raw.Sugar(), raw: raw}
}

// Zap returns the underlying *zap.Logger for typed-field call sites.
func (l *Logger) Zap() *zap.Logger { return l.raw }

// Sugar exposes the sugared logger directly.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.sugar }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.sugar.Fatalw(msg, kv...) }

// WithRequestID returns a child logger that always includes the request id.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		sugar: l.sugar.With("request_id", requestID),
		raw:   l.raw.With(zap.String("request_id", requestID)),
	}
}

// RedactedField returns a zap field whose value is the partial-redaction
// form of an identifier (user_id and aliases), per the PII boundary in §9.
func RedactedField(key, value string) zap.Field {
	return zap.String(key, pii.RedactID(value))
}
