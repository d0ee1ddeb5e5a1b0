package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/flexmarket/core/model"
)

// bidFile is the on-disk bid book read by clear and written by simulate.
// JSON files parse as well since JSON is valid YAML.
type bidFile struct {
	Curve []int      `yaml:"curve,omitempty" json:"curve,omitempty"`
	Bids  []bidEntry `yaml:"bids" json:"bids"`
}

type bidEntry struct {
	AggregatorID string      `yaml:"aggregator_id" json:"aggregator_id"`
	Items        []itemEntry `yaml:"items" json:"items"`
	Valuation    string      `yaml:"valuation" json:"valuation"`
}

type itemEntry struct {
	Interval int `yaml:"interval" json:"interval"`
	Offered  int `yaml:"offered" json:"offered"`
}

func readBidFile(path string) (bidFile, error) {
	var bf bidFile
	data, err := os.ReadFile(path)
	if err != nil {
		return bf, err
	}
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return bf, fmt.Errorf("parse %s: %w", path, err)
	}
	return bf, nil
}

func writeBidFile(w io.Writer, bf bidFile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(bf); err != nil {
		return err
	}
	return enc.Close()
}

func (e bidEntry) bid() (model.Bid, error) {
	v, err := decimal.NewFromString(e.Valuation)
	if err != nil {
		return model.Bid{}, fmt.Errorf("%w: valuation %q", model.ErrInvalidBid, e.Valuation)
	}
	items := make([]model.LineItem, len(e.Items))
	for i, it := range e.Items {
		items[i] = model.LineItem{Interval: it.Interval, Offered: it.Offered}
	}
	return model.NewBid(e.AggregatorID, items, v)
}

func entryOf(b model.Bid) bidEntry {
	items := b.Items()
	e := bidEntry{AggregatorID: b.AggregatorID(), Valuation: b.Valuation().String(), Items: make([]itemEntry, len(items))}
	for i, it := range items {
		e.Items[i] = itemEntry{Interval: it.Interval, Offered: it.Offered}
	}
	return e
}
