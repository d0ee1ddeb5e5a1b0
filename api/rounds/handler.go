package rounds

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/flexmarket/infra/journal"
)

// NewHandler returns the GET /api/rounds handler serving the clearing
// journal. Supported filters: start and end (RFC3339), aggregator_id and
// round_id.
func NewHandler(store journal.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		q := journal.Query{
			AggregatorID: params.Get("aggregator_id"),
			RoundID:      params.Get("round_id"),
		}
		var err error
		if q.Start, err = parseTime(params.Get("start")); err != nil {
			http.Error(w, "invalid start: "+err.Error(), http.StatusBadRequest)
			return
		}
		if q.End, err = parseTime(params.Get("end")); err != nil {
			http.Error(w, "invalid end: "+err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []journal.ClearingRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
