package wdp

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kilianp07/flexmarket/core/curve"
	"github.com/kilianp07/flexmarket/core/logger"
	"github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/core/model"
)

// Solver runs greedy winner determination rounds. A Solver holds no round
// state and may run several rounds concurrently on a shared curve.
type Solver struct {
	maxBids int
	log     logger.Logger
	rec     metrics.ClearingRecorder
	now     func() time.Time
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger used for round summaries and per-bid decisions.
func WithLogger(l logger.Logger) Option {
	return func(s *Solver) { s.log = logger.OrNop(l) }
}

// WithRecorder sets where finished rounds are recorded.
func WithRecorder(r metrics.ClearingRecorder) Option {
	return func(s *Solver) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithMaxBids limits the number of bids per round. Zero means no limit.
func WithMaxBids(n int) Option {
	return func(s *Solver) { s.maxBids = n }
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Solver) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSolver returns a Solver with no bid limit, a no-op logger and recorder.
func NewSolver(opts ...Option) *Solver {
	s := &Solver{
		log: logger.NopLogger{},
		rec: metrics.NopSink{},
		now: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewSolverFromConfig returns a Solver honouring cfg. Options passed after
// cfg take precedence.
func NewSolverFromConfig(cfg Config, opts ...Option) *Solver {
	return NewSolver(append([]Option{WithMaxBids(cfg.MaxBids)}, opts...)...)
}

// Solve runs one clearing round over bids against the capacity of c.
//
// The bids are expected to have passed ingestion checks. Any interval outside
// the curve aborts the whole round with model.ErrIndexOutOfRange, and so does
// the cancellation of ctx; no partial result is returned in either case.
func (s *Solver) Solve(ctx context.Context, c *curve.Curve, bids []model.Bid) (Result, error) {
	if c == nil {
		return Result{}, model.ErrEmptyCurve
	}
	if s.maxBids > 0 && len(bids) > s.maxBids {
		return Result{}, fmt.Errorf("%w: %d bids, limit %d", ErrTooManyBids, len(bids), s.maxBids)
	}

	res := Result{
		RoundID:        uuid.NewString(),
		Started:        s.now(),
		TotalValuation: decimal.Zero,
	}
	remaining := c.Values()

	for _, b := range rank(bids) {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("clearing round %s interrupted: %w", res.RoundID, err)
		}
		interval, shortfall, err := shortfallOf(remaining, b)
		if err != nil {
			return Result{}, fmt.Errorf("clearing round %s: bid %s: %w", res.RoundID, b.ID(), err)
		}
		if shortfall > 0 {
			res.Rejected = append(res.Rejected, Rejection{Bid: b, Interval: interval, Shortfall: shortfall})
			s.log.Debugw("bid rejected", map[string]any{
				"round_id":  res.RoundID,
				"bid_id":    b.ID(),
				"interval":  interval,
				"shortfall": shortfall,
			})
			continue
		}
		for _, it := range b.Items() {
			remaining[it.Interval] -= it.Offered
		}
		res.Accepted = append(res.Accepted, b)
		res.TotalValuation = res.TotalValuation.Add(b.Valuation())
		s.log.Debugw("bid accepted", map[string]any{
			"round_id":  res.RoundID,
			"bid_id":    b.ID(),
			"valuation": b.Valuation().String(),
		})
	}

	res.Remaining = remaining
	res.Duration = s.now().Sub(res.Started)
	s.log.Infof("round %s cleared: %d/%d bids accepted, valuation %s", res.RoundID, len(res.Accepted), len(bids), res.TotalValuation)
	s.record(res, bids)
	return res, nil
}

// rank orders a copy of bids by valuation descending. The sort is stable so
// equal valuations keep their submission order.
func rank(bids []model.Bid) []model.Bid {
	ordered := slices.Clone(bids)
	slices.SortStableFunc(ordered, func(a, b model.Bid) int {
		return b.Valuation().Cmp(a.Valuation())
	})
	return ordered
}

// shortfallOf checks every line item of b against remaining. It returns the
// first interval lacking capacity with the missing amount, or a zero
// shortfall when the bid fits. Bounds are checked for the whole bundle before
// any capacity is compared.
func shortfallOf(remaining []int, b model.Bid) (int, int, error) {
	items := b.Items()
	for _, it := range items {
		if it.Interval < 0 || it.Interval >= len(remaining) {
			return 0, 0, fmt.Errorf("%w: interval %d outside [0,%d)", model.ErrIndexOutOfRange, it.Interval, len(remaining))
		}
	}
	for _, it := range items {
		if left := remaining[it.Interval] - it.Offered; left < 0 {
			return it.Interval, -left, nil
		}
	}
	return 0, 0, nil
}

func (s *Solver) record(res Result, bids []model.Bid) {
	offered := 0
	for _, b := range bids {
		offered += b.TotalOffered()
	}
	ev := metrics.ClearingEvent{
		RoundID:        res.RoundID,
		Bids:           len(bids),
		Accepted:       len(res.Accepted),
		Rejected:       len(res.Rejected),
		Offered:        offered,
		Allocated:      res.Allocated(),
		TotalValuation: res.TotalValuation.InexactFloat64(),
		Remaining:      slices.Clone(res.Remaining),
		Duration:       res.Duration,
		Time:           res.Started,
	}
	if err := s.rec.RecordClearing(ev); err != nil {
		s.log.Warnf("record clearing round %s: %v", res.RoundID, err)
	}
}
