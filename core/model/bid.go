package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem requests Offered units of capacity in a single interval.
type LineItem struct {
	Interval int `json:"interval"`
	Offered  int `json:"offered"`
}

// Bid is an atomic request for capacity across one or more intervals. It is
// accepted as a whole or not at all. A Bid is immutable once built.
type Bid struct {
	id           string
	aggregatorID string
	items        []LineItem
	valuation    decimal.Decimal
	submittedAt  time.Time
}

// NewBid validates the bundle and returns a bid carrying a fresh identifier.
// The items slice is copied.
func NewBid(aggregatorID string, items []LineItem, valuation decimal.Decimal) (Bid, error) {
	b := Bid{
		id:           uuid.NewString(),
		aggregatorID: aggregatorID,
		items:        append([]LineItem(nil), items...),
		valuation:    valuation,
		submittedAt:  time.Now(),
	}
	if err := b.Validate(); err != nil {
		return Bid{}, err
	}
	return b, nil
}

// ID returns the identifier assigned when the bid was built.
func (b Bid) ID() string { return b.id }

// AggregatorID returns the submitter identity. Several bids may share it.
func (b Bid) AggregatorID() string { return b.aggregatorID }

// Valuation returns the scalar used to order bids.
func (b Bid) Valuation() decimal.Decimal { return b.valuation }

// SubmittedAt returns the construction time of the bid.
func (b Bid) SubmittedAt() time.Time { return b.submittedAt }

// Items returns a copy of the line items.
func (b Bid) Items() []LineItem {
	return append([]LineItem(nil), b.items...)
}

// Len returns the number of line items in the bundle.
func (b Bid) Len() int { return len(b.items) }

// Validate checks the structural rules of the bundle. Interval bounds are
// not checked here since they depend on the curve the bid is submitted to.
// An empty bundle is valid and always feasible.
func (b Bid) Validate() error {
	seen := make(map[int]struct{}, len(b.items))
	for _, it := range b.items {
		if it.Offered <= 0 {
			return fmt.Errorf("%w: interval %d offers %d", ErrInvalidBid, it.Interval, it.Offered)
		}
		if _, dup := seen[it.Interval]; dup {
			return fmt.Errorf("%w: duplicate interval %d", ErrInvalidBid, it.Interval)
		}
		seen[it.Interval] = struct{}{}
	}
	return nil
}

// MaxInterval returns the highest interval referenced by the bundle, or -1
// for an empty bundle.
func (b Bid) MaxInterval() int {
	hi := -1
	for _, it := range b.items {
		if it.Interval > hi {
			hi = it.Interval
		}
	}
	return hi
}

// TotalOffered sums the offered capacity over all line items.
func (b Bid) TotalOffered() int {
	total := 0
	for _, it := range b.items {
		total += it.Offered
	}
	return total
}

// String returns a short human-readable form of the bid.
func (b Bid) String() string {
	return fmt.Sprintf("bid %s from %s valued %s (%d items)", b.id, b.aggregatorID, b.valuation.String(), len(b.items))
}
