package metrics

import "time"

// BidEvent describes one submission attempt to a market operator.
type BidEvent struct {
	BidID        string
	AggregatorID string
	Items        int
	Offered      int
	Valuation    float64
	Accepted     bool
	// Reason is empty for accepted submissions.
	Reason string
	Time   time.Time
}

// BidRecorder records submission attempts.
type BidRecorder interface {
	RecordBid(ev BidEvent) error
}

// ClearingEvent summarises one winner determination round.
type ClearingEvent struct {
	RoundID        string
	Bids           int
	Accepted       int
	Rejected       int
	Offered        int
	Allocated      int
	TotalValuation float64
	Remaining      []int
	Duration       time.Duration
	Time           time.Time
}

// ClearingRecorder records clearing rounds.
type ClearingRecorder interface {
	RecordClearing(ev ClearingEvent) error
}

// Sink records every market event kind.
type Sink interface {
	BidRecorder
	ClearingRecorder
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordBid(BidEvent) error           { return nil }
func (NopSink) RecordClearing(ClearingEvent) error { return nil }
