package wdp

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/flexmarket/core/model"
)

// Rejection explains why a bid was not accepted: the first line item, in
// bundle order, whose interval lacked capacity, and by how much.
type Rejection struct {
	Bid       model.Bid
	Interval  int
	Shortfall int
}

// Result is the outcome of one clearing round.
type Result struct {
	RoundID string
	// Accepted lists the winning bids in acceptance order.
	Accepted []model.Bid
	// Rejected lists the losing bids in evaluation order.
	Rejected []Rejection
	// Remaining is the capacity left per interval after all commits.
	Remaining      []int
	TotalValuation decimal.Decimal
	Started        time.Time
	Duration       time.Duration
}

// AcceptedIDs returns the identifiers of the winning bids in acceptance order.
func (r Result) AcceptedIDs() []string {
	ids := make([]string, len(r.Accepted))
	for i, b := range r.Accepted {
		ids[i] = b.ID()
	}
	return ids
}

// Accepts reports whether the bid with the given identifier won.
func (r Result) Accepts(bidID string) bool {
	for _, b := range r.Accepted {
		if b.ID() == bidID {
			return true
		}
	}
	return false
}

// Allocated returns the capacity committed to winning bids.
func (r Result) Allocated() int {
	total := 0
	for _, b := range r.Accepted {
		total += b.TotalOffered()
	}
	return total
}
