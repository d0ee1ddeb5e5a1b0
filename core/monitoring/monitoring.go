// Package monitoring defines the error reporting hook used by the market
// service. Implementations live in infra/monitoring.
package monitoring

import "time"

// Monitor reports errors that operators should see outside the logs.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Recover reports a panic in the calling goroutine and re-panics.
	// It must be deferred directly.
	Recover()
	Flush(timeout time.Duration)
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}
