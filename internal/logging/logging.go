package logging

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"doclookup/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// OpenLogFile opens logFile for appending, creating its directory. An empty
// path disables the file log.
func OpenLogFile(logFile string) (*os.File, error) {
	if logFile == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

func Level(debug bool) zapcore.Level {
	if debug {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

// BackendFields identify the OData system a log line belongs to. Several
// systems may share one log file.
func BackendFields(cfg config.Config) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if u, err := url.Parse(cfg.ServiceURL); err == nil && u.Host != "" {
		fields = append(fields, zap.String("backend", u.Host))
	}
	if cfg.SAPClient != "" {
		fields = append(fields, zap.String("sap_client", cfg.SAPClient))
	}
	return fields
}

// AttachFileLogger tees entries at or above the configured level into file as
// JSON lines tagged with the backend they concern. The console output of base
// is left as it is.
func AttachFileLogger(base *zap.Logger, file *os.File, cfg config.Config) *zap.Logger {
	if file == nil {
		return base
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), Level(cfg.Debug)).
		With(BackendFields(cfg))
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
}

// WithCorrelation tags logger with the id sent to the backend in the
// X-CorrelationID header, so gateway traces can be matched to local lines.
func WithCorrelation(logger *zap.Logger, correlationID string) *zap.Logger {
	return logger.With(zap.String("correlation_id", correlationID))
}
