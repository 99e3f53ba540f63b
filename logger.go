package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/bridges/otellogrus"
	"go.opentelemetry.io/otel/log/global"
)

// NewLogger builds the process-wide logger. Level accepts the standard
// logrus names; format is "text" or "json".
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// NewEventLogger builds the logger synthetic event records go through. It
// shares the diagnostic logger's output, formatter, and hooks but passes
// every level, so event batches are never thinned by the console log level
// and the generated-log counters stay truthful.
func NewEventLogger(diag *logrus.Logger) *logrus.Logger {
	evt := logrus.New()
	evt.SetOutput(diag.Out)
	evt.SetFormatter(diag.Formatter)
	// the map is shared, so hooks attached to either logger fire for both
	evt.Hooks = diag.Hooks
	evt.SetLevel(logrus.TraceLevel)
	return evt
}

// AttachOTelBridge forwards every entry the logger emits to the registered
// OTel logger provider, so the collector receives the same stream the
// console does. Call it after telemetry init has installed the provider.
func AttachOTelBridge(logger *logrus.Logger) {
	hook := otellogrus.NewHook(ResourceLibrary,
		otellogrus.WithLoggerProvider(global.GetLoggerProvider()),
		otellogrus.WithLevels(logrus.AllLevels),
	)
	logger.AddHook(hook)
}
