package metrics

import "errors"

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordBid forwards the event to every sink. All sinks are called even if
// one fails; the errors are joined.
func (m *MultiSink) RecordBid(ev BidEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordBid(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordClearing forwards the event to every sink.
func (m *MultiSink) RecordClearing(ev ClearingEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordClearing(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
