package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/flexmarket/core/model"
)

// Generator draws bids from a seeded source, so equal configurations yield
// equal streams. It is not safe for concurrent use.
type Generator struct {
	cfg     Config
	rng     *rand.Rand
	offered distuv.Poisson
	price   distuv.Normal
}

// NewGenerator validates cfg and seeds the distributions.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	return &Generator{
		cfg:     cfg,
		rng:     rand.New(src),
		offered: distuv.Poisson{Lambda: cfg.MeanOffered, Src: src},
		price:   distuv.Normal{Mu: cfg.UnitPrice, Sigma: cfg.PriceStdDev, Src: src},
	}, nil
}

// Bids generates cfg.Bids bids.
func (g *Generator) Bids() ([]model.Bid, error) {
	out := make([]model.Bid, 0, g.cfg.Bids)
	for i := 0; i < g.cfg.Bids; i++ {
		b, err := g.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Next generates one bid on distinct intervals. Aggregators are named
// agg01..aggNN.
func (g *Generator) Next() (model.Bid, error) {
	size := 1
	if g.rng.Float64() >= g.cfg.SinglePct {
		size = 1 + g.rng.IntN(min(g.cfg.MaxItems, g.cfg.Intervals))
	}
	intervals := g.rng.Perm(g.cfg.Intervals)[:size]
	items := make([]model.LineItem, size)
	units := 0
	for i, iv := range intervals {
		offered := max(1, int(g.offered.Rand()))
		items[i] = model.LineItem{Interval: iv, Offered: offered}
		units += offered
	}
	unit := math.Max(0.01, g.price.Rand())
	valuation := decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(units))).Round(2)
	agg := fmt.Sprintf("agg%02d", 1+g.rng.IntN(g.cfg.Aggregators))
	return model.NewBid(agg, items, valuation)
}

// Curve draws n capacity values from a normal distribution with the given
// mean and deviation, rounded to integers. Negative values model intervals
// that need ramp-down.
func (g *Generator) Curve(n int, mean, stddev float64) []int {
	d := distuv.Normal{Mu: mean, Sigma: stddev, Src: g.rng}
	out := make([]int, n)
	for i := range out {
		out[i] = int(math.Round(d.Rand()))
	}
	return out
}
