package bids

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/kilianp07/flexmarket/core/model"
	coremqtt "github.com/kilianp07/flexmarket/core/mqtt"
	"github.com/kilianp07/flexmarket/infra/mqtt"
)

// maxBody bounds a single submission.
const maxBody = 1 << 20

// Market is the part of the service the bid endpoints drive.
type Market interface {
	SubmitBid(b model.Bid) error
	Demand() map[int]int
	Pending() int
}

type submitResponse struct {
	BidID   string `json:"bid_id"`
	Pending int    `json:"pending"`
}

// DemandEntry is the aggregated offer on one interval.
type DemandEntry struct {
	Interval int `json:"interval"`
	Offered  int `json:"offered"`
}

// NewSubmitHandler returns the POST /api/bids handler. The body uses the
// same JSON shape as bids received over MQTT.
func NewSubmitHandler(m Market) http.Handler {
	codec, _ := mqtt.NewCodec("json")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, err := mqtt.DecodeBid(codec, body)
		if err == nil {
			err = m.SubmitBid(b)
		}
		if err != nil {
			http.Error(w, err.Error(), statusOf(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(submitResponse{BidID: b.ID(), Pending: m.Pending()})
	})
}

// NewDemandHandler returns the GET /api/demand handler listing the offered
// volume per interval of the open session, sorted by interval.
func NewDemandHandler(m Market) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		demand := m.Demand()
		out := make([]DemandEntry, 0, len(demand))
		for i, v := range demand {
			out = append(out, DemandEntry{Interval: i, Offered: v})
		}
		sort.Slice(out, func(a, b int) bool { return out[a].Interval < out[b].Interval })
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, coremqtt.ErrMalformedMessage):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidBid), errors.Is(err, model.ErrIndexOutOfRange):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
