// Package logger builds zap loggers and carries them through contexts.
package logger
