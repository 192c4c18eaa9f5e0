// Package logger wraps zap with a process-wide console logger, a shared level
// set from the command line, and context helpers (ToContext, FromContext,
// WithName, WithKV, WithFields). Services take the logger from their context
// so names and fields attached upstream appear on every message.
package logger
