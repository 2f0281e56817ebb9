package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/chocosentinel/internal/timeseries"
)

func TestHandleGapsSummary_FlagsStaleSeriesWhenEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/gaps/summary", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action_needed":true`)
}

func TestHandleGapsSummary_NotStaleWithRecentData(t *testing.T) {
	srv, store := newTestServer(t)
	now := time.Now().UTC()
	store.points["energy_prices"] = []timeseries.Point{{Measurement: "energy_prices", Time: now}}
	store.points["weather_data"] = []timeseries.Point{{Measurement: "weather_data", Time: now}}

	w := doRequest(t, srv, http.MethodGet, "/gaps/summary", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action_needed":false`)
}

func TestHandleGapsDetect_ReportsZeroGapsWhenFullyCovered(t *testing.T) {
	srv, store := newTestServer(t)
	now := time.Now().UTC().Truncate(time.Hour)
	for ts := now.Add(-48 * time.Hour); !ts.After(now); ts = ts.Add(time.Hour) {
		store.points["energy_prices"] = append(store.points["energy_prices"], timeseries.Point{Measurement: "energy_prices", Time: ts})
		store.points["weather_data"] = append(store.points["weather_data"], timeseries.Point{Measurement: "weather_data", Time: ts})
	}

	w := doRequest(t, srv, http.MethodGet, "/gaps/detect?days_back=2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"price_gap_count":0`)
	assert.Contains(t, w.Body.String(), `"recommended_strategy":"monitor"`)
}

func TestHandleGapsBackfillAuto_NoActionWhenFresh(t *testing.T) {
	srv, store := newTestServer(t)
	now := time.Now().UTC()
	store.points["energy_prices"] = []timeseries.Point{{Measurement: "energy_prices", Time: now}}
	store.points["weather_data"] = []timeseries.Point{{Measurement: "weather_data", Time: now}}

	w := doRequest(t, srv, http.MethodPost, "/gaps/backfill/auto?max_gap_hours=6", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"no_action_needed"`)
}

func TestHandleGapsBackfill_AcceptsAndRunsInBackground(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodPost, "/gaps/backfill?days_back=1", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"executing_in_background"`)
}

func TestHandleGapsBackfillRange_RejectsInvertedRange(t *testing.T) {
	srv, _ := newTestServer(t)
	body := []byte(`{"start":"2026-01-02T00:00:00Z","end":"2026-01-01T00:00:00Z","data_source":"price"}`)
	w := doRequest(t, srv, http.MethodPost, "/gaps/backfill/range", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGapsBackfillRange_RejectsUnknownDataSource(t *testing.T) {
	srv, _ := newTestServer(t)
	body := []byte(`{"start":"2026-01-01T00:00:00Z","end":"2026-01-02T00:00:00Z","data_source":"smoke_signal"}`)
	w := doRequest(t, srv, http.MethodPost, "/gaps/backfill/range", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
