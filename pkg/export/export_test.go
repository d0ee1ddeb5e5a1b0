package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/wdp"
)

func sampleResult(t *testing.T) wdp.Result {
	t.Helper()
	a, err := model.NewBid("agg-a", []model.LineItem{{Interval: 0, Offered: 2}, {Interval: 1, Offered: 1}}, decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	b, err := model.NewBid("agg-b", []model.LineItem{{Interval: 1, Offered: 4}}, decimal.NewFromInt(3))
	require.NoError(t, err)
	return wdp.Result{
		RoundID:        "r1",
		Accepted:       []model.Bid{a},
		Rejected:       []wdp.Rejection{{Bid: b, Interval: 1, Shortfall: 2}},
		Remaining:      []int{0, 1},
		TotalValuation: decimal.RequireFromString("12.5"),
		Started:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:       1500 * time.Microsecond,
	}
}

func TestNewResultRecord(t *testing.T) {
	res := sampleResult(t)
	rec := NewResultRecord(res)

	assert.Equal(t, "r1", rec.RoundID)
	assert.Equal(t, 1.5, rec.DurationMS)
	require.Len(t, rec.Accepted, 1)
	assert.Equal(t, res.Accepted[0].ID(), rec.Accepted[0].BidID)
	assert.Equal(t, "agg-a", rec.Accepted[0].AggregatorID)
	require.Len(t, rec.Rejected, 1)
	assert.Equal(t, 2, rec.Rejected[0].Shortfall)
	assert.True(t, rec.Involves("agg-b"))
	assert.False(t, rec.Involves("agg-c"))

	rec.Remaining[0] = 99
	assert.Equal(t, 0, res.Remaining[0])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewResultRecord(sampleResult(t))))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "r1", out["round_id"])
	assert.Equal(t, "12.5", out["total_valuation"])
	rejected := out["rejected"].([]any)
	assert.Equal(t, "agg-b", rejected[0].(map[string]any)["aggregator_id"])

	var back ResultRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.True(t, back.TotalValuation.Equal(decimal.RequireFromString("12.5")))
}

func TestWriteCSV(t *testing.T) {
	rec := NewResultRecord(sampleResult(t))
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rec))
	id := rec.Accepted[0].BidID
	expected := "round_id,bid_id,aggregator_id,valuation,interval,offered\n" +
		"r1," + id + ",agg-a,12.5,0,2\n" +
		"r1," + id + ",agg-a,12.5,1,1\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteRemainingCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRemainingCSV(&buf, []int{3, 0, 5}))
	assert.Equal(t, "interval,remaining\n0,3\n1,0\n2,5\n", buf.String())
}
