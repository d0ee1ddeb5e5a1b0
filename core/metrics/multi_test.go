package metrics

import (
	"errors"
	"testing"
)

type countingSink struct {
	bids, rounds int
	err          error
}

func (c *countingSink) RecordBid(BidEvent) error {
	c.bids++
	return c.err
}

func (c *countingSink) RecordClearing(ClearingEvent) error {
	c.rounds++
	return c.err
}

func TestMultiSink_ForwardsToAll(t *testing.T) {
	s1, s2 := &countingSink{}, &countingSink{}
	m := NewMultiSink(s1, s2)

	if err := m.RecordBid(BidEvent{BidID: "b1"}); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordClearing(ClearingEvent{RoundID: "r1"}); err != nil {
		t.Fatal(err)
	}
	for i, s := range []*countingSink{s1, s2} {
		if s.bids != 1 || s.rounds != 1 {
			t.Errorf("sink %d: bids %d rounds %d", i, s.bids, s.rounds)
		}
	}
}

func TestMultiSink_KeepsGoingOnError(t *testing.T) {
	boom := errors.New("boom")
	failing := &countingSink{err: boom}
	ok := &countingSink{}
	m := NewMultiSink(failing, ok)

	if err := m.RecordClearing(ClearingEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ok.rounds != 1 {
		t.Fatalf("second sink skipped")
	}
}

func TestConfig_HasSink(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.PrometheusPort != ":2112" {
		t.Errorf("prometheus port = %q", cfg.PrometheusPort)
	}
	if cfg.HasSink("prometheus") {
		t.Error("no sink configured")
	}
}
