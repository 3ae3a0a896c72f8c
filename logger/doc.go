// Package logger provides structured logging for recpipe using zerolog.
//
// It supports JSON and console output, log level configuration,
// component-scoped loggers and forwarding of JSON log lines emitted by
// worker processes.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.Get("batch")
//	log.Info("job finished", logger.Fields(logger.FieldJobID, id))
package logger
