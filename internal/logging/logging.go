// Package logging builds component-scoped zap loggers and provides the
// field sanitizer that keeps secret material out of log output.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// redactedValue replaces any field value the sanitizer rejects.
const redactedValue = "[REDACTED]"

// sensitiveSubstrings flags a field for redaction when its name contains
// one of these, case-insensitively.
var sensitiveSubstrings = []string{
	"secret",
	"privatekey",
	"password",
	"encryptedsecretkey",
}

// allowedFields are exempt from redaction even if a substring matches.
var allowedFields = map[string]struct{}{
	"publickey":        {},
	"walletpublickey":  {},
	"public_key":       {},
	"wallet_public_key": {},
}

// New constructs the root logger at the given level ("debug", "info",
// "warn", "error"). Output is JSON to stderr with ISO-8601 timestamps.
func New(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "message"
	cfg.DisableStacktrace = true

	return cfg.Build()
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Component returns a child logger tagged with the component name.
func Component(log *zap.Logger, name string) *zap.Logger {
	return log.With(zap.String("component", name))
}

// IsSensitive reports whether a field name must be redacted.
func IsSensitive(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := allowedFields[lower]; ok {
		return false
	}
	for _, s := range sensitiveSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Sanitize redacts sensitive fields before they reach a log record or an
// HTTP error payload. Nested maps are sanitized recursively; the input
// map is not modified.
func Sanitize(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if IsSensitive(k) {
			out[k] = redactedValue
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Sanitize(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// Field wraps a key/value pair as a zap field, redacting sensitive keys.
func Field(key string, value any) zap.Field {
	if IsSensitive(key) {
		return zap.String(key, redactedValue)
	}
	if m, ok := value.(map[string]any); ok {
		return zap.Any(key, Sanitize(m))
	}
	return zap.Any(key, value)
}
