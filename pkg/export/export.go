// Package export renders clearing results for reports and the wire.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/wdp"
)

// BidRecord is the serialisable form of a bid.
type BidRecord struct {
	BidID        string           `json:"bid_id"`
	AggregatorID string           `json:"aggregator_id"`
	Valuation    decimal.Decimal  `json:"valuation"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	Items        []model.LineItem `json:"items"`
}

// RejectionRecord is a losing bid with the interval that blocked it.
type RejectionRecord struct {
	BidRecord
	Interval  int `json:"interval"`
	Shortfall int `json:"shortfall"`
}

// ResultRecord is the serialisable form of a clearing round. It is the
// payload published on the result topic and stored in the journal.
type ResultRecord struct {
	RoundID        string            `json:"round_id"`
	Started        time.Time         `json:"started"`
	DurationMS     float64           `json:"duration_ms"`
	Accepted       []BidRecord       `json:"accepted"`
	Rejected       []RejectionRecord `json:"rejected"`
	Remaining      []int             `json:"remaining"`
	TotalValuation decimal.Decimal   `json:"total_valuation"`
}

// NewBidRecord converts b.
func NewBidRecord(b model.Bid) BidRecord {
	return BidRecord{
		BidID:        b.ID(),
		AggregatorID: b.AggregatorID(),
		Valuation:    b.Valuation(),
		SubmittedAt:  b.SubmittedAt(),
		Items:        b.Items(),
	}
}

// NewResultRecord converts res.
func NewResultRecord(res wdp.Result) ResultRecord {
	rec := ResultRecord{
		RoundID:        res.RoundID,
		Started:        res.Started,
		DurationMS:     float64(res.Duration.Microseconds()) / 1000,
		Accepted:       make([]BidRecord, len(res.Accepted)),
		Rejected:       make([]RejectionRecord, len(res.Rejected)),
		Remaining:      append([]int{}, res.Remaining...),
		TotalValuation: res.TotalValuation,
	}
	for i, b := range res.Accepted {
		rec.Accepted[i] = NewBidRecord(b)
	}
	for i, r := range res.Rejected {
		rec.Rejected[i] = RejectionRecord{BidRecord: NewBidRecord(r.Bid), Interval: r.Interval, Shortfall: r.Shortfall}
	}
	return rec
}

// Involves reports whether any accepted or rejected bid came from the aggregator.
func (r ResultRecord) Involves(aggregatorID string) bool {
	for _, b := range r.Accepted {
		if b.AggregatorID == aggregatorID {
			return true
		}
	}
	for _, b := range r.Rejected {
		if b.AggregatorID == aggregatorID {
			return true
		}
	}
	return false
}

// WriteJSON writes rec to w as indented JSON.
func WriteJSON(w io.Writer, rec ResultRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// WriteCSV writes one row per accepted line item.
func WriteCSV(w io.Writer, rec ResultRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"round_id", "bid_id", "aggregator_id", "valuation", "interval", "offered"}); err != nil {
		return err
	}
	for _, b := range rec.Accepted {
		for _, it := range b.Items {
			row := []string{
				rec.RoundID,
				b.BidID,
				b.AggregatorID,
				b.Valuation.String(),
				strconv.Itoa(it.Interval),
				strconv.Itoa(it.Offered),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRemainingCSV writes the capacity left in each interval.
func WriteRemainingCSV(w io.Writer, remaining []int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"interval", "remaining"}); err != nil {
		return err
	}
	for i, r := range remaining {
		if err := cw.Write([]string{strconv.Itoa(i), strconv.Itoa(r)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
