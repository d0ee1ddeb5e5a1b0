// Package market implements the market operator of a flexibility market
// session: it owns a read-only capacity curve and an append-only log of the
// bids received for it.
package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/flexmarket/core/curve"
	"github.com/kilianp07/flexmarket/core/logger"
	"github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/wdp"
)

// Operator collects bids for one curve. It is safe for concurrent use.
type Operator struct {
	curve *curve.Curve

	mu   sync.RWMutex
	bids []model.Bid

	log logger.Logger
	rec metrics.BidRecorder
	now func() time.Time
}

// Option configures an Operator.
type Option func(*Operator)

// WithLogger sets the operator logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Operator) { o.log = logger.OrNop(l) }
}

// WithRecorder sets where submissions are recorded.
func WithRecorder(r metrics.BidRecorder) Option {
	return func(o *Operator) {
		if r != nil {
			o.rec = r
		}
	}
}

// WithClock overrides the time source used for submission events.
func WithClock(now func() time.Time) Option {
	return func(o *Operator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOperator returns an operator with an empty bid log for c.
func NewOperator(c *curve.Curve, opts ...Option) (*Operator, error) {
	if c == nil {
		return nil, model.ErrEmptyCurve
	}
	o := &Operator{
		curve: c,
		log:   logger.NopLogger{},
		rec:   metrics.NopSink{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Curve returns the capacity curve of the session.
func (o *Operator) Curve() *curve.Curve { return o.curve }

// ReceiveBid validates b and appends it to the log. Structural problems fail
// with model.ErrInvalidBid and intervals outside the curve with
// model.ErrIndexOutOfRange; a refused bid never enters the log. Capacity is
// not checked here.
func (o *Operator) ReceiveBid(b model.Bid) error {
	if err := o.admit(b); err != nil {
		o.record(b, err)
		o.log.Warnf("bid %s from %s refused: %v", b.ID(), b.AggregatorID(), err)
		return err
	}
	o.mu.Lock()
	o.bids = append(o.bids, b)
	n := len(o.bids)
	o.mu.Unlock()

	o.record(b, nil)
	o.log.Debugw("bid received", map[string]any{
		"bid_id":        b.ID(),
		"aggregator_id": b.AggregatorID(),
		"items":         b.Len(),
		"log_size":      n,
	})
	return nil
}

func (o *Operator) admit(b model.Bid) error {
	if err := b.Validate(); err != nil {
		return err
	}
	n := o.curve.Len()
	if hi := b.MaxInterval(); hi >= n {
		return fmt.Errorf("%w: interval %d outside [0,%d)", model.ErrIndexOutOfRange, hi, n)
	}
	for _, it := range b.Items() {
		if it.Interval < 0 {
			return fmt.Errorf("%w: interval %d outside [0,%d)", model.ErrIndexOutOfRange, it.Interval, n)
		}
	}
	return nil
}

func (o *Operator) record(b model.Bid, refusal error) {
	ev := metrics.BidEvent{
		BidID:        b.ID(),
		AggregatorID: b.AggregatorID(),
		Items:        b.Len(),
		Offered:      b.TotalOffered(),
		Valuation:    b.Valuation().InexactFloat64(),
		Accepted:     refusal == nil,
		Time:         o.now(),
	}
	if refusal != nil {
		ev.Reason = refusal.Error()
	}
	if err := o.rec.RecordBid(ev); err != nil {
		o.log.Warnf("record bid %s: %v", b.ID(), err)
	}
}

// EvaluateBids sums the offered capacity per interval over every received
// bid, ignoring capacity limits and valuations. It reports total demand only
// and is never used to decide allocations. The log is left untouched.
func (o *Operator) EvaluateBids() map[int]int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	demand := make(map[int]int)
	for _, b := range o.bids {
		for _, it := range b.Items() {
			demand[it.Interval] += it.Offered
		}
	}
	return demand
}

// Bids returns a snapshot of the log in arrival order.
func (o *Operator) Bids() []model.Bid {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]model.Bid(nil), o.bids...)
}

// Len returns the number of bids in the log.
func (o *Operator) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.bids)
}

// Clear snapshots the log and runs a clearing round with s. Bids received
// while the round is solving are not part of it.
func (o *Operator) Clear(ctx context.Context, s *wdp.Solver) (wdp.Result, error) {
	return s.Solve(ctx, o.curve, o.Bids())
}
