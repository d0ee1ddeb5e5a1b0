package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flexmarket/core/curve"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/wdp"
	"github.com/kilianp07/flexmarket/infra/journal"
	"github.com/kilianp07/flexmarket/pkg/export"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

const book = `curve: [10, 10]
bids:
  - aggregator_id: big
    valuation: "10"
    items:
      - {interval: 0, offered: 10}
      - {interval: 1, offered: 10}
  - aggregator_id: left
    valuation: "6"
    items:
      - {interval: 0, offered: 10}
  - aggregator_id: right
    valuation: "6"
    items:
      - {interval: 1, offered: 10}
  - aggregator_id: stray
    valuation: "1"
    items:
      - {interval: 5, offered: 1}
`

func TestClearCommand_JSON(t *testing.T) {
	path := writeTemp(t, "book.yaml", book)
	out, err := execute(t, "clear", "--bids", path, "--config", writeTemp(t, "c.yaml", "logging:\n  level: error\n"))
	require.NoError(t, err)

	var rec export.ResultRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.Len(t, rec.Accepted, 1)
	assert.Equal(t, "big", rec.Accepted[0].AggregatorID)
	assert.Len(t, rec.Rejected, 2)
	assert.Equal(t, []int{0, 0}, rec.Remaining)
}

func TestClearCommand_CSVWithCurveOverride(t *testing.T) {
	path := writeTemp(t, "book.yaml", book)
	out, err := execute(t, "clear", "--bids", path, "--format", "csv", "--curve", "10,10,0,0,0,0", "--remaining")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "round_id,bid_id,aggregator_id,valuation,interval,offered", lines[0])
	assert.Contains(t, lines[1], ",big,10,0,10")
	assert.Contains(t, lines[2], ",big,10,1,10")
	assert.Contains(t, out, "interval,remaining\n0,0\n1,0\n2,0")
}

func TestClearCommand_Errors(t *testing.T) {
	_, err := execute(t, "clear")
	assert.Error(t, err)

	path := writeTemp(t, "book.yaml", book)
	_, err = execute(t, "clear", "--bids", path, "--format", "xml")
	assert.Error(t, err)

	_, err = execute(t, "clear", "--bids", writeTemp(t, "empty.yaml", "bids: []\n"))
	assert.ErrorIs(t, err, model.ErrEmptyCurve)

	_, err = execute(t, "clear", "--bids", path, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSimulateThenClear(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "sim.yaml")
	_, err := execute(t, "simulate", "--bids", "30", "--seed", "7", "--intervals", "6", "--curve-mean", "8", "--out", bookPath)
	require.NoError(t, err)

	bf, err := readBidFile(bookPath)
	require.NoError(t, err)
	assert.Len(t, bf.Bids, 30)
	assert.Len(t, bf.Curve, 6)

	again, err := execute(t, "simulate", "--bids", "30", "--seed", "7", "--intervals", "6", "--curve-mean", "8")
	require.NoError(t, err)
	data, err := os.ReadFile(bookPath)
	require.NoError(t, err)
	assert.Equal(t, string(data), again)

	out, err := execute(t, "clear", "--bids", bookPath, "--curve", "50,50,50,50,50,50")
	require.NoError(t, err)
	var rec export.ResultRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, 30, len(rec.Accepted)+len(rec.Rejected))
}

func TestSimulatePublishRequiresBroker(t *testing.T) {
	_, err := execute(t, "simulate", "--bids", "1", "--publish", "--out", filepath.Join(t.TempDir(), "b.yaml"))
	assert.ErrorContains(t, err, "mqtt.broker")
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal.jsonl")
	store, err := journal.NewJSONLStore(journalPath)
	require.NoError(t, err)

	c, err := curve.New([]int{5})
	require.NoError(t, err)
	for _, agg := range []string{"agg-a", "agg-b"} {
		b, err := model.NewBid(agg, []model.LineItem{{Interval: 0, Offered: 1}}, decimal.NewFromInt(2))
		require.NoError(t, err)
		res := wdp.Result{RoundID: "round-" + agg, Accepted: []model.Bid{b}, TotalValuation: decimal.NewFromInt(2), Started: time.Now()}
		require.NoError(t, store.Append(context.Background(), journal.NewRecord(c, 1, res, 2)))
	}

	cfgPath := writeTemp(t, "config.yaml", "journal:\n  path: "+journalPath+"\n")
	out, err := execute(t, "history", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "round-agg-a")
	assert.Contains(t, out, "round-agg-b")

	out, err = execute(t, "history", "--config", cfgPath, "--aggregator", "agg-b")
	require.NoError(t, err)
	assert.NotContains(t, out, "round-agg-a")
	assert.Contains(t, out, "round-agg-b")

	out, err = execute(t, "history", "--config", cfgPath, "--round", "none")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}
