package curve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kilianp07/flexmarket/core/model"
)

// Curve is an immutable range-sum index over per-interval capacity values.
// It is safe for concurrent readers.
type Curve struct {
	n    int
	tree []int
}

// New builds the index in O(n). It fails with model.ErrEmptyCurve when values
// is empty. The input slice is not retained.
func New(values []int) (*Curve, error) {
	n := len(values)
	if n == 0 {
		return nil, model.ErrEmptyCurve
	}
	tree := make([]int, 2*n)
	copy(tree[n:], values)
	for i := n - 1; i > 0; i-- {
		tree[i] = tree[2*i] + tree[2*i+1]
	}
	return &Curve{n: n, tree: tree}, nil
}

// Len returns the number of intervals.
func (c *Curve) Len() int { return c.n }

func (c *Curve) check(i int) error {
	if i < 0 || i >= c.n {
		return fmt.Errorf("%w: interval %d outside [0,%d)", model.ErrIndexOutOfRange, i, c.n)
	}
	return nil
}

// Value returns the raw signed capacity at interval i.
func (c *Curve) Value(i int) (int, error) {
	if err := c.check(i); err != nil {
		return 0, err
	}
	return c.tree[c.n+i], nil
}

// RampUp returns the ramp-up headroom of interval i, max(value, 0).
func (c *Curve) RampUp(i int) (int, error) {
	v, err := c.Value(i)
	if err != nil {
		return 0, err
	}
	return max(v, 0), nil
}

// RampDown returns the ramp-down headroom of interval i, max(-value, 0).
func (c *Curve) RampDown(i int) (int, error) {
	v, err := c.Value(i)
	if err != nil {
		return 0, err
	}
	return max(-v, 0), nil
}

// RangeSum returns the sum of the values of intervals s through e inclusive
// in O(log n).
func (c *Curve) RangeSum(s, e int) (int, error) {
	if err := c.check(s); err != nil {
		return 0, err
	}
	if err := c.check(e); err != nil {
		return 0, err
	}
	if s > e {
		return 0, fmt.Errorf("%w: range start %d after end %d", model.ErrIndexOutOfRange, s, e)
	}
	sum := 0
	l, r := s+c.n, e+c.n+1
	for l < r {
		if l&1 == 1 {
			sum += c.tree[l]
			l++
		}
		if r&1 == 1 {
			r--
			sum += c.tree[r]
		}
		l >>= 1
		r >>= 1
	}
	return sum, nil
}

// TotalRampUp returns the net sum over [s,e] clipped at zero. A range mixing
// ramp-up and ramp-down intervals reports only its net surplus, not the sum
// of the individual ramp-up values.
func (c *Curve) TotalRampUp(s, e int) (int, error) {
	sum, err := c.RangeSum(s, e)
	if err != nil {
		return 0, err
	}
	return max(sum, 0), nil
}

// TotalRampDown returns the negated net sum over [s,e] clipped at zero.
func (c *Curve) TotalRampDown(s, e int) (int, error) {
	sum, err := c.RangeSum(s, e)
	if err != nil {
		return 0, err
	}
	return max(-sum, 0), nil
}

// Values returns a copy of the raw capacity sequence.
func (c *Curve) Values() []int {
	return append([]int(nil), c.tree[c.n:]...)
}

// String renders the curve as Curve(v0, v1, ...).
func (c *Curve) String() string {
	var sb strings.Builder
	sb.WriteString("Curve(")
	for i, v := range c.tree[c.n:] {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(v))
	}
	sb.WriteString(")")
	return sb.String()
}
