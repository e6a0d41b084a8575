package observability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SessionLog is the append-only activity log of one session.
// It is owned by the conversation loop and must be closed when the loop exits.
type SessionLog struct {
	logger *zap.Logger
	file   *os.File
	path   string
}

// OpenSessionLog opens (or creates) <dir>/<sessionID>.log for appending.
func OpenSessionLog(dir, sessionID string) (*SessionLog, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, sessionID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.CallerKey = zapcore.OmitKey

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(file), zapcore.InfoLevel)

	return &SessionLog{
		logger: zap.New(core).With(zap.String("session_id", sessionID)),
		file:   file,
		path:   path,
	}, nil
}

// Path returns the log file location.
func (l *SessionLog) Path() string {
	return l.path
}

// Publish writes one line for the event with the given data.
func (l *SessionLog) Publish(_ context.Context, eventType string, data map[string]any) {
	if l == nil || l.logger == nil {
		return
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, data[k]))
	}

	l.logger.Info(eventType, fields...)
}

// Close flushes and releases the log file.
func (l *SessionLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	_ = l.logger.Sync()
	err := l.file.Close()
	l.file = nil
	l.logger = zap.NewNop()

	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}
