// Package logger provides structured logging on top of zerolog.
//
// Loggers are injected: every stage receives a *Logger at construction and
// scopes it with WithComponent, so there is no package-level logger state.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.New(&cfg, "filestream").WithComponent("lister")
//	log.Warn("glob failed", logger.Fields(logger.FieldPattern, "*.txt"))
package logger
