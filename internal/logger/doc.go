// Package logger builds the process zap logger and carries request-scoped
// loggers through context.
package logger
