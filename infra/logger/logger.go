package logger

import corelogger "github.com/kilianp07/flexmarket/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards every message.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component using the process-wide
// configuration set by Configure.
func New(component string) Logger {
	return NewZerologLogger(component)
}
