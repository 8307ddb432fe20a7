// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance for both the command line and the
// HTTP server, and integrates with the Fiber web framework.
//
// # Context Awareness
//
// The WithRayID helper extracts the RayID (request ID) from a Fiber context
// and attaches it to the log entry, so every log line of a request can be
// correlated.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: DEBUG, INFO, WARNING, ERROR (case insensitive, WARN accepted)
//   - Format: console (coloured levels, no stack traces) or json
//
// # Usage
//
//	log, err := logger.New(&cfg.Log)
//	log.Info("Run finished", zap.Float64("match_rate", rate))
//
//	// In a request handler:
//	l := logger.WithRayID(log, c)
//	l.Error("Handler failed", zap.Error(err))
package logger
