// Package logger provides a thin wrapper around zap, the logging library
// the teacher's node and tooling entrypoints construct via
// logger.New(serviceName) to get a pre-configured *zap.SugaredLogger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a SugaredLogger that writes JSON-encoded entries to stdout,
// tagged with the given service name on every log line.
func New(service string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := config.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}
