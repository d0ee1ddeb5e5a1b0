package rounds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flexmarket/infra/journal"
	"github.com/kilianp07/flexmarket/pkg/export"
)

type memStore struct{ recs []journal.ClearingRecord }

func (m *memStore) Append(_ context.Context, r journal.ClearingRecord) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q journal.Query) ([]journal.ClearingRecord, error) {
	var res []journal.ClearingRecord
	for _, r := range m.recs {
		if q.Matches(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func TestHandler_Filters(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	for i, id := range []string{"r1", "r2"} {
		_ = store.Append(context.Background(), journal.ClearingRecord{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			RoundID:   id,
			Result:    export.ResultRecord{RoundID: id},
		})
	}
	h := NewHandler(store)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/rounds?start=2024-05-01T12:30:00Z", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var out []journal.ClearingRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "r2", out[0].RoundID)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/rounds?round_id=none", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestHandler_BadTime(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(&memStore{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/rounds?end=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
