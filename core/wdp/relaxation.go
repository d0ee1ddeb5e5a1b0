package wdp

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/flexmarket/core/curve"
	"github.com/kilianp07/flexmarket/core/model"
)

// solveRelaxation minimises c·x subject to g·x <= h with the simplex method
// and returns the optimum and the general-form solution.
func solveRelaxation(c []float64, g *mat.Dense, h []float64) (float64, []float64, error) {
	cStd, aStd, bStd := lp.Convert(c, g, h, nil, nil)
	opt, x, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return 0, nil, err
	}
	// Convert splits every free variable in a positive and a negative part.
	n := len(c)
	sol := make([]float64, n)
	for i := range sol {
		sol[i] = x[i] - x[n+i]
	}
	return opt, sol, nil
}

// lpSolve points to the LP routine. Tests override it to simulate failures.
var lpSolve = solveRelaxation

// RelaxationBound returns an upper bound on the total valuation any feasible
// set of winners could reach: the optimum of the LP relaxation where each
// bid may be accepted fractionally. Comparing it with Result.TotalValuation
// bounds the loss of the greedy heuristic. It never selects winners.
//
// Bids with a line item larger than its interval's headroom can never win and
// are left out. Intervals outside the curve fail with model.ErrIndexOutOfRange.
func RelaxationBound(c *curve.Curve, bids []model.Bid) (float64, error) {
	if c == nil {
		return 0, model.ErrEmptyCurve
	}
	capacity := c.Values()
	for i, v := range capacity {
		capacity[i] = max(v, 0)
	}

	var cands []model.Bid
	touched := make(map[int]struct{})
	for _, b := range bids {
		fits := b.Valuation().IsPositive()
		for _, it := range b.Items() {
			if it.Interval < 0 || it.Interval >= len(capacity) {
				return 0, fmt.Errorf("bid %s: %w: interval %d outside [0,%d)", b.ID(), model.ErrIndexOutOfRange, it.Interval, len(capacity))
			}
			if it.Offered > capacity[it.Interval] {
				fits = false
			}
		}
		if !fits {
			continue
		}
		cands = append(cands, b)
		for _, it := range b.Items() {
			touched[it.Interval] = struct{}{}
		}
	}
	if len(cands) == 0 {
		return 0, nil
	}

	intervals := make([]int, 0, len(touched))
	for i := range touched {
		intervals = append(intervals, i)
	}
	sort.Ints(intervals)
	row := make(map[int]int, len(intervals))
	for r, i := range intervals {
		row[i] = r
	}

	// Rows: one capacity row per touched interval, then x_j <= 1 and
	// -x_j <= 0 for every candidate.
	n := len(cands)
	rows := len(intervals) + 2*n
	g := mat.NewDense(rows, n, nil)
	h := make([]float64, rows)
	obj := make([]float64, n)
	for r, i := range intervals {
		h[r] = float64(capacity[i])
	}
	for j, b := range cands {
		obj[j] = -b.Valuation().InexactFloat64()
		for _, it := range b.Items() {
			g.Set(row[it.Interval], j, float64(it.Offered))
		}
		g.Set(len(intervals)+j, j, 1)
		h[len(intervals)+j] = 1
		g.Set(len(intervals)+n+j, j, -1)
	}

	opt, _, err := lpSolve(obj, g, h)
	if err != nil {
		return 0, fmt.Errorf("relaxation bound: %w", err)
	}
	return -opt, nil
}
