package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
)

func TestPromSink_RecordBid(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordBid(coremetrics.BidEvent{Accepted: true}))
	require.NoError(t, sink.RecordBid(coremetrics.BidEvent{Accepted: true}))
	require.NoError(t, sink.RecordBid(coremetrics.BidEvent{Reason: "invalid_bid"}))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.bids.WithLabelValues("true", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.bids.WithLabelValues("false", "invalid_bid")))
}

func TestPromSink_RecordClearing(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	ev := coremetrics.ClearingEvent{
		Accepted: 2, Rejected: 1, Allocated: 7, TotalValuation: 30,
		Remaining: []int{3, 0, 5}, Duration: 10 * time.Millisecond,
	}
	require.NoError(t, sink.RecordClearing(ev))
	require.NoError(t, sink.RecordClearing(ev))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.rounds))
	assert.Equal(t, 4.0, testutil.ToFloat64(sink.outcomes.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.outcomes.WithLabelValues("rejected")))
	assert.Equal(t, 7.0, testutil.ToFloat64(sink.allocated))
	assert.Equal(t, 30.0, testutil.ToFloat64(sink.valuation))
	assert.Equal(t, 5.0, testutil.ToFloat64(sink.remaining.WithLabelValues("2")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.duration))
}

func TestNewPromSinkWithRegistry_Reuse(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordBid(coremetrics.BidEvent{Accepted: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(second.bids.WithLabelValues("true", "")))
}
