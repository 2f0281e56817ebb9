package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/chocosentinel/internal/timeseries"
)

func TestHandleOptimizeDaily_RequiresAllThreeModelsTrained(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodPost, "/optimize/production/daily", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleOptimizeDaily_ProducesTimelineWhenFullyTrained(t *testing.T) {
	srv, store := newTestServer(t)
	regressor, classifier := trainedScoringArtifacts(t, srv.cal)
	srv.seedArtifacts(trainedForecaster(t, srv.cal), regressor, classifier, nil)

	now := time.Now().UTC()
	for h := 0; h < 24*7; h++ {
		ts := now.Add(-time.Duration(h) * time.Hour)
		store.points["weather_data"] = append(store.points["weather_data"], timeseries.Point{
			Measurement: "weather_data", Time: ts,
			Fields: map[string]float64{"temperature": 21, "humidity": 50},
		})
	}

	w := doRequest(t, srv, http.MethodPost, "/optimize/production/daily", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"timeline"`)
}

func TestProjectedWeather_FallsBackToLatestReadingWithNoSameHourHistory(t *testing.T) {
	srv, store := newTestServer(t)
	only := time.Now().UTC().Add(-2 * time.Hour)
	store.points["weather_data"] = []timeseries.Point{{
		Measurement: "weather_data", Time: only,
		Fields: map[string]float64{"temperature": 18, "humidity": 60},
	}}

	targets := []time.Time{time.Now().UTC().Add(48 * time.Hour)}
	points, err := srv.projectedWeather(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 18.0, points[0].TemperatureC)
	assert.Equal(t, 60.0, points[0].HumidityPct)
}
