package api

import (
	"bytes"
	"context"
	"io"
	"math"
	"math/rand"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/chocosentinel/internal/backfill"
	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/clients"
	"github.com/aristath/chocosentinel/internal/forecast/price"
	"github.com/aristath/chocosentinel/internal/gaps"
	"github.com/aristath/chocosentinel/internal/ingestion"
	"github.com/aristath/chocosentinel/internal/machinery"
	"github.com/aristath/chocosentinel/internal/scheduler"
	"github.com/aristath/chocosentinel/internal/scoring"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

// fakeStore is an in-memory timeseries.StoreAPI used across this
// package's handler tests, following the same fake shape gaps and
// backfill tests use.
type fakeStore struct {
	points  map[string][]timeseries.Point
	pingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{points: make(map[string][]timeseries.Point)}
}

func (f *fakeStore) WritePoints(ctx context.Context, points []timeseries.Point) (timeseries.WriteStats, error) {
	for _, p := range points {
		f.points[p.Measurement] = append(f.points[p.Measurement], p)
	}
	return timeseries.WriteStats{Requested: len(points), Written: len(points)}, nil
}

func (f *fakeStore) LastTimestamp(ctx context.Context, measurement string, filter timeseries.TagFilter) (time.Time, bool, error) {
	pts := f.points[measurement]
	if len(pts) == 0 {
		return time.Time{}, false, nil
	}
	latest := pts[0].Time
	for _, p := range pts[1:] {
		if p.Time.After(latest) {
			latest = p.Time
		}
	}
	return latest, true, nil
}

func (f *fakeStore) Range(ctx context.Context, measurement string, filter timeseries.TagFilter, start, end time.Time) ([]timeseries.Point, error) {
	var out []timeseries.Point
	for _, p := range f.points[measurement] {
		if !p.Time.Before(start) && !p.Time.After(end) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (f *fakeStore) AggregateWindow(ctx context.Context, measurement string, filter timeseries.TagFilter, start, end time.Time, window time.Duration, fn string) ([]timeseries.Point, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) seedHourlyPriceAndWeather(start time.Time, hours int) {
	for i := 0; i < hours; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		price := 0.05 + 0.2*float64(i%24)/24.0
		f.points["energy_prices"] = append(f.points["energy_prices"], timeseries.Point{
			Measurement: "energy_prices", Time: t, Fields: map[string]float64{"price_eur_kwh": price},
		})
		f.points["weather_data"] = append(f.points["weather_data"], timeseries.Point{
			Measurement: "weather_data", Time: t,
			Fields: map[string]float64{"temperature": 15 + 10*float64((i*7)%24)/24.0, "humidity": 40 + 20*float64((i*13)%24)/24.0},
		})
	}
}

type fakePriceSource struct {
	records []clients.RawRecord
	err     error
}

func (f *fakePriceSource) FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	return f.records, f.err
}
func (f *fakePriceSource) FetchCurrent(ctx context.Context) (clients.RawRecord, error) {
	if len(f.records) == 0 {
		return clients.RawRecord{}, f.err
	}
	return f.records[0], f.err
}

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	c, err := calendar.New("Europe/Madrid", zerolog.Nop())
	require.NoError(t, err)
	return c
}

// newTestServer wires a Server against a fakeStore and real leaf
// components (ingestion/gaps/backfill/scheduler), the same dependency
// graph cmd/server builds, without any trained model state.
func newTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	cal := testCalendar(t)
	ingest := ingestion.New(store, cal, "esios", "pvpc", "test-station", zerolog.Nop())
	detector := gaps.New(store)
	backfillSvc := backfill.New(ingest, &fakePriceSource{}, nil, nil, detector, "28079", time.Hour, zerolog.Nop())
	sched := scheduler.New(zerolog.Nop())

	srv := New(Config{
		Log:         zerolog.Nop(),
		Store:       store,
		Calendar:    cal,
		Ingest:      ingest,
		Detector:    detector,
		Backfill:    backfillSvc,
		Scheduler:   sched,
		Machinery:   machinery.DummySpec(),
		PriceSource: &fakePriceSource{},
		Port:        0,
		DevMode:     true,
		Build:       BuildInfo{Version: "test"},
	})
	return srv, store
}

// trainedForecaster builds a real price.Model over synthetic data, for
// tests that need a trained forecaster without exercising the HTTP
// training endpoint.
func trainedForecaster(t *testing.T, cal *calendar.Calendar) *price.Model {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]price.Observation, 24*30)
	for i := range obs {
		ts := start.Add(time.Duration(i) * time.Hour)
		obs[i] = price.Observation{Time: ts, Price: 0.15 + 0.05*math.Sin(2*math.Pi*float64(i)/24.0)}
	}
	model, err := price.Train(obs, cal, zerolog.Nop())
	require.NoError(t, err)
	return model
}

// trainedScoringArtifacts builds a real regressor and classifier over
// synthetic samples, for tests that need scoring predictions seeded
// without exercising the HTTP training endpoint.
func trainedScoringArtifacts(t *testing.T, cal *calendar.Calendar) (*scoring.EnergyScoreRegressor, *scoring.ProductionClassifier) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]scoring.Sample, 300)
	for i := range samples {
		ts := start.Add(time.Duration(i) * time.Hour)
		p := 0.05 + 0.2*float64(i%24)/24.0
		temp := 15 + 10*float64((i*7)%24)/24.0
		hum := 40 + 20*float64((i*13)%24)/24.0
		f := scoring.BuildFeatures(ts, p, temp, hum, 40, 22, 55, p/0.25, cal)
		samples[i] = scoring.Sample{Features: f, Target: scoring.EnergyScore(f)}
	}
	regressor, err := scoring.TrainEnergyScoreRegressor(samples, newSeededRand())
	require.NoError(t, err)

	classSamples := make([]scoring.Sample, len(samples))
	for i, s := range samples {
		classSamples[i] = scoring.Sample{Features: s.Features, Target: scoring.Suitability(s.Features)}
	}
	classifier, err := scoring.TrainProductionClassifier(classSamples, newSeededRand())
	require.NoError(t, err)
	return regressor, classifier
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func newSeededRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}
