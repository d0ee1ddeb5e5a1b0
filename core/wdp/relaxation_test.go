package wdp

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/flexmarket/core/model"
)

func assertBound(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("bound = %v, want %v", got, want)
	}
}

func TestRelaxationBound_ExceedsGreedyOnWitness(t *testing.T) {
	c := mustCurve(t, 10, 10)
	bids := []model.Bid{
		mustBid(t, "large", 10, item(0, 10), item(1, 10)),
		mustBid(t, "left", 6, item(0, 10)),
		mustBid(t, "right", 6, item(1, 10)),
	}
	bound, err := RelaxationBound(c, bids)
	if err != nil {
		t.Fatalf("bound: %v", err)
	}
	assertBound(t, bound, 12)

	res, err := NewSolver().Solve(context.Background(), c, bids)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.TotalValuation.InexactFloat64(); got >= bound {
		t.Errorf("greedy %v not below bound %v", got, bound)
	}
}

func TestRelaxationBound_Fractional(t *testing.T) {
	c := mustCurve(t, 3)
	bound, err := RelaxationBound(c, []model.Bid{mustBid(t, "a", 8, item(0, 2)), mustBid(t, "b", 6, item(0, 2))})
	if err != nil {
		t.Fatal(err)
	}
	// a fully, b at one half.
	assertBound(t, bound, 11)
}

func TestRelaxationBound_EmptyBundleCounted(t *testing.T) {
	c := mustCurve(t, 3)
	bound, err := RelaxationBound(c, []model.Bid{mustBid(t, "e", 2), mustBid(t, "a", 5, item(0, 3))})
	if err != nil {
		t.Fatal(err)
	}
	assertBound(t, bound, 7)
}

func TestRelaxationBound_SkipsBidsThatNeverFit(t *testing.T) {
	c := mustCurve(t, 2, -5)
	bound, err := RelaxationBound(c, []model.Bid{
		mustBid(t, "big", 100, item(0, 3)),
		mustBid(t, "down", 50, item(1, 1)),
	})
	if err != nil {
		t.Fatal(err)
	}
	assertBound(t, bound, 0)

	bound, err = RelaxationBound(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertBound(t, bound, 0)
}

func TestRelaxationBound_Errors(t *testing.T) {
	if _, err := RelaxationBound(nil, nil); !errors.Is(err, model.ErrEmptyCurve) {
		t.Errorf("nil curve: %v", err)
	}

	c := mustCurve(t, 5)
	if _, err := RelaxationBound(c, []model.Bid{mustBid(t, "a", 1, item(3, 1))}); !errors.Is(err, model.ErrIndexOutOfRange) {
		t.Errorf("out of range: %v", err)
	}

	old := lpSolve
	lpSolve = func([]float64, *mat.Dense, []float64) (float64, []float64, error) {
		return 0, nil, errors.New("singular")
	}
	defer func() { lpSolve = old }()
	if _, err := RelaxationBound(c, []model.Bid{mustBid(t, "a", 1, item(0, 1))}); err == nil {
		t.Error("expected solver failure to surface")
	}
}
