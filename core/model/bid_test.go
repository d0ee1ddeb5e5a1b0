package model

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewBid_Valid(t *testing.T) {
	items := []LineItem{{Interval: 0, Offered: 2}, {Interval: 3, Offered: 5}}
	b, err := NewBid("agg-1", items, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("new bid: %v", err)
	}
	if b.ID() == "" {
		t.Error("expected a bid id")
	}
	if b.AggregatorID() != "agg-1" {
		t.Errorf("aggregator = %q", b.AggregatorID())
	}
	if !b.Valuation().Equal(decimal.NewFromInt(10)) {
		t.Errorf("valuation = %s", b.Valuation())
	}
	if !reflect.DeepEqual(b.Items(), items) {
		t.Errorf("items = %v, want %v", b.Items(), items)
	}
	if b.Len() != 2 || b.MaxInterval() != 3 || b.TotalOffered() != 7 {
		t.Errorf("len %d, max interval %d, total %d", b.Len(), b.MaxInterval(), b.TotalOffered())
	}
	if b.SubmittedAt().IsZero() {
		t.Error("submission time not set")
	}
}

func TestNewBid_CopiesItems(t *testing.T) {
	items := []LineItem{{Interval: 1, Offered: 4}}
	b, err := NewBid("agg", items, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("new bid: %v", err)
	}

	items[0].Offered = 99
	if got := b.Items()[0].Offered; got != 4 {
		t.Fatalf("caller slice leaked into bid: offered %d", got)
	}
	got := b.Items()
	got[0].Interval = 42
	if b.Items()[0].Interval != 1 {
		t.Fatalf("accessor slice leaked into bid")
	}
}

func TestNewBid_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		items []LineItem
	}{
		{"zero offered", []LineItem{{Interval: 0, Offered: 0}}},
		{"negative offered", []LineItem{{Interval: 0, Offered: -3}}},
		{"duplicate interval", []LineItem{{Interval: 2, Offered: 1}, {Interval: 2, Offered: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBid("agg", tc.items, decimal.NewFromInt(1))
			if !errors.Is(err, ErrInvalidBid) {
				t.Fatalf("expected ErrInvalidBid, got %v", err)
			}
		})
	}
}

func TestNewBid_EmptyBundle(t *testing.T) {
	b, err := NewBid("agg", nil, decimal.NewFromInt(4))
	if err != nil {
		t.Fatalf("empty bundle refused: %v", err)
	}
	if b.Len() != 0 || b.TotalOffered() != 0 || b.MaxInterval() != -1 {
		t.Fatalf("len %d, total %d, max interval %d", b.Len(), b.TotalOffered(), b.MaxInterval())
	}
	var zero Bid
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero bid: %v", err)
	}
}

func TestNewBid_UniqueIDsForDuplicateAggregators(t *testing.T) {
	items := []LineItem{{Interval: 0, Offered: 1}}
	a, err := NewBid("same", items, decimal.NewFromInt(1))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBid("same", items, decimal.NewFromInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() == b.ID() {
		t.Fatalf("duplicate id %s", a.ID())
	}
}
