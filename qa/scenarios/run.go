package scenarios

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/kilianp07/flexmarket/core/curve"
	"github.com/kilianp07/flexmarket/core/logger"
	"github.com/kilianp07/flexmarket/core/market"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/wdp"
	"github.com/kilianp07/flexmarket/infra/metrics"
)

var sentinels = map[string]error{
	"empty_curve":        model.ErrEmptyCurve,
	"index_out_of_range": model.ErrIndexOutOfRange,
	"invalid_bid":        model.ErrInvalidBid,
	"too_many_bids":      wdp.ErrTooManyBids,
}

//gocyclo:ignore
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	c, err := curve.New(sc.Curve)
	if err != nil {
		if want := sentinels[sc.Expected.Error]; want != nil && errors.Is(err, want) {
			return
		}
		t.Fatalf("curve: %v", err)
	}
	for _, q := range sc.Queries {
		got, err := query(c, q)
		if err != nil {
			t.Errorf("%s(%d,%d): %v", q.Kind, q.Start, q.End, err)
			continue
		}
		if got != q.Want {
			t.Errorf("%s(%d,%d) = %d, want %d", q.Kind, q.Start, q.End, got, q.Want)
		}
	}

	op, err := market.NewOperator(c, market.WithLogger(logger.NopLogger{}), market.WithRecorder(sink))
	if err != nil {
		t.Fatalf("operator: %v", err)
	}
	refused := 0
	for _, def := range sc.Bids {
		b, err := def.ToModel()
		if err == nil {
			err = op.ReceiveBid(b)
		}
		if err != nil {
			refused++
		}
	}
	if refused != sc.Expected.Refused {
		t.Errorf("scenario %s expected %d refused, got %d", sc.Name, sc.Expected.Refused, refused)
	}

	solver := wdp.NewSolver(wdp.WithMaxBids(sc.MaxBids), wdp.WithRecorder(sink))
	res, err := op.Clear(context.Background(), solver)
	if sc.Expected.Error != "" {
		if want := sentinels[sc.Expected.Error]; !errors.Is(err, want) {
			t.Errorf("scenario %s expected error %s, got %v", sc.Name, sc.Expected.Error, err)
		}
		return
	}
	if err != nil {
		t.Fatalf("clear: %v", err)
	}

	accepted := make([]string, len(res.Accepted))
	for i, b := range res.Accepted {
		accepted[i] = b.AggregatorID()
	}
	if !slices.Equal(accepted, sc.Expected.Accepted) {
		t.Errorf("scenario %s expected accepted %v, got %v", sc.Name, sc.Expected.Accepted, accepted)
	}
	if len(res.Rejected) != sc.Expected.Rejected {
		t.Errorf("scenario %s expected %d rejected, got %d", sc.Name, sc.Expected.Rejected, len(res.Rejected))
	}
	if sc.Expected.Remaining != nil && !slices.Equal(res.Remaining, sc.Expected.Remaining) {
		t.Errorf("scenario %s expected remaining %v, got %v", sc.Name, sc.Expected.Remaining, res.Remaining)
	}
	if sc.Expected.TotalValuation != "" {
		want := decimal.RequireFromString(sc.Expected.TotalValuation)
		if !res.TotalValuation.Equal(want) {
			t.Errorf("scenario %s expected valuation %s, got %s", sc.Name, want, res.TotalValuation)
		}
	}
	if sc.Expected.Bound != 0 {
		bound, err := wdp.RelaxationBound(c, op.Bids())
		if err != nil {
			t.Fatalf("relaxation bound: %v", err)
		}
		if math.Abs(bound-sc.Expected.Bound) > 1e-6 {
			t.Errorf("scenario %s expected bound %.3f, got %.3f", sc.Name, sc.Expected.Bound, bound)
		}
	}
	if got := counterValue(t, reg, "flexmarket_clearing_rounds_total"); got != 1 {
		t.Errorf("scenario %s expected 1 round recorded, got %v", sc.Name, got)
	}
}

func query(c *curve.Curve, q QueryDef) (int, error) {
	switch q.Kind {
	case "range_sum":
		return c.RangeSum(q.Start, q.End)
	case "ramp_up":
		return c.RampUp(q.Start)
	case "ramp_down":
		return c.RampDown(q.Start)
	case "total_ramp_up":
		return c.TotalRampUp(q.Start, q.End)
	case "total_ramp_down":
		return c.TotalRampDown(q.Start, q.End)
	default:
		return 0, errors.New("unknown query kind " + q.Kind)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}
