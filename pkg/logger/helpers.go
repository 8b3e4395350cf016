package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogRequest logs the outcome of one portal HTTP round trip
func LogRequest(method, url string, statusCode int, durationMs float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 500:
		GetLogger().ErrorWithFields("portal request server error", fields)
	case statusCode >= 400:
		GetLogger().WarnWithFields("portal request client error", fields)
	default:
		GetLogger().DebugWithFields("portal request completed", fields)
	}
}

// LogDownload logs the outcome of one khewat download
func LogDownload(khewat int, filename string, size int, err error) {
	fields := map[string]interface{}{
		"khewat": khewat,
		"file":   filename,
		"size":   size,
	}

	l := GetLogger().WithFields(fields)
	if err != nil {
		l.WithError(err).Warn("download failed")
		return
	}
	l.Info("download completed")
}

// LogSessionEvent logs a session lifecycle transition (initialized,
// configured, expired, terminated)
func LogSessionEvent(workerID int, event string) {
	GetLogger().WithFields(map[string]interface{}{
		"worker": workerID,
		"event":  event,
	}).Info("session state changed")
}

// LogBackoff logs a rate-limit backoff window
func LogBackoff(seconds float64, errorCount int) {
	GetLogger().WithFields(map[string]interface{}{
		"backoff_seconds": seconds,
		"error_count":     errorCount,
	}).Warn("rate limited, backing off")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
