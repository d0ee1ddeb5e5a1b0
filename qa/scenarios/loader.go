package scenarios

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/flexmarket/core/model"
)

type ItemDef struct {
	Interval int `yaml:"interval"`
	Offered  int `yaml:"offered"`
}

type BidDef struct {
	AggregatorID string    `yaml:"aggregator_id"`
	Valuation    string    `yaml:"valuation"`
	Items        []ItemDef `yaml:"items"`
}

func (b BidDef) ToModel() (model.Bid, error) {
	v, err := decimal.NewFromString(b.Valuation)
	if err != nil {
		return model.Bid{}, fmt.Errorf("valuation %q: %w", b.Valuation, err)
	}
	items := make([]model.LineItem, len(b.Items))
	for i, it := range b.Items {
		items[i] = model.LineItem{Interval: it.Interval, Offered: it.Offered}
	}
	return model.NewBid(b.AggregatorID, items, v)
}

// QueryDef is a curve query and its expected answer. Kind is one of
// range_sum, ramp_up, ramp_down, total_ramp_up, total_ramp_down.
type QueryDef struct {
	Kind  string `yaml:"kind"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
	Want  int    `yaml:"want"`
}

type Expected struct {
	Refused        int      `yaml:"refused"`
	Accepted       []string `yaml:"accepted"`
	Rejected       int      `yaml:"rejected"`
	Remaining      []int    `yaml:"remaining"`
	TotalValuation string   `yaml:"total_valuation"`
	// Bound is the LP relaxation value, checked when non-zero.
	Bound float64 `yaml:"bound,omitempty"`
	// Error names the sentinel the round must fail with.
	Error string `yaml:"error,omitempty"`
}

type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Curve       []int      `yaml:"curve"`
	MaxBids     int        `yaml:"max_bids,omitempty"`
	Queries     []QueryDef `yaml:"queries,omitempty"`
	Bids        []BidDef   `yaml:"bids"`
	Expected    Expected   `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
