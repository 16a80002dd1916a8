package logger

import (
	"io"

	corelogger "markmailer/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns a Logger for the given component writing to stdout. The
// environment is detected via the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component, "", nil)
}

// NewBatch returns a Logger stamped with the batch run id. When mirror is
// non-nil every line is additionally written to it, which is how the
// sidecar log file of a mailing run is fed.
func NewBatch(component, runID string, mirror io.Writer) Logger {
	return NewZerologLogger(component, runID, mirror)
}
