package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RestyLogger routes resty's printf-style diagnostics into zap.
type RestyLogger struct {
	logger *zap.Logger
}

func NewRestyLogger(logger *zap.Logger) *RestyLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RestyLogger{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (l *RestyLogger) Errorf(format string, v ...any) {
	l.logger.Error(message(format, v))
}

func (l *RestyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(message(format, v))
}

func (l *RestyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(message(format, v))
}

func message(format string, v []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}
