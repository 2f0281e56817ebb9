package backfill

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/clients"
	"github.com/aristath/chocosentinel/internal/gaps"
	"github.com/aristath/chocosentinel/internal/ingestion"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

type fakeStore struct {
	written []timeseries.Point
	rangePts map[string][]timeseries.Point
	last    time.Time
	found   bool
}

func (f *fakeStore) WritePoints(ctx context.Context, points []timeseries.Point) (timeseries.WriteStats, error) {
	f.written = append(f.written, points...)
	return timeseries.WriteStats{Requested: len(points), Written: len(points)}, nil
}

func (f *fakeStore) LastTimestamp(ctx context.Context, measurement string, filter timeseries.TagFilter) (time.Time, bool, error) {
	return f.last, f.found, nil
}

func (f *fakeStore) Range(ctx context.Context, measurement string, filter timeseries.TagFilter, start, end time.Time) ([]timeseries.Point, error) {
	return f.rangePts[measurement], nil
}

func (f *fakeStore) AggregateWindow(ctx context.Context, measurement string, filter timeseries.TagFilter, start, end time.Time, window time.Duration, fn string) ([]timeseries.Point, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

type fakePriceSource struct{ calls int }

func (f *fakePriceSource) FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	f.calls++
	return []clients.RawRecord{{Time: start, Fields: map[string]float64{"price_eur_mwh": 100}}}, nil
}

func (f *fakePriceSource) FetchCurrent(ctx context.Context) (clients.RawRecord, error) {
	return clients.RawRecord{}, nil
}

type fakeObsSource struct {
	forecastRecords    []clients.RawRecord
	climatologyRecords []clients.RawRecord
	windowRecords      []clients.RawRecord
}

func (f *fakeObsSource) FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	return f.windowRecords, nil
}

func (f *fakeObsSource) FetchCurrent(ctx context.Context) (clients.RawRecord, error) {
	return clients.RawRecord{}, nil
}

func (f *fakeObsSource) FetchMunicipalityForecast(ctx context.Context, municipalityCode string) ([]clients.RawRecord, error) {
	return f.forecastRecords, nil
}

func (f *fakeObsSource) FetchClimatology(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	return f.climatologyRecords, nil
}

func newTestServiceDeps(t *testing.T) (*ingestion.Service, *fakeStore) {
	t.Helper()
	store := &fakeStore{rangePts: map[string][]timeseries.Point{}}
	cal, err := calendar.New("Europe/Madrid", zerolog.Nop())
	require.NoError(t, err)
	ingest := ingestion.New(store, cal, "esios", "pvpc", "3195", zerolog.Nop())
	return ingest, store
}

func TestBackfillPriceGap_DailyChunking(t *testing.T) {
	ingest, store := newTestServiceDeps(t)
	priceSrc := &fakePriceSource{}
	detector := gaps.New(store)
	svc := New(ingest, priceSrc, &fakeObsSource{}, nil, detector, "28079", 0, zerolog.Nop())

	gap := gaps.Gap{
		Measurement: "energy_prices",
		Start:       time.Now().Add(-50 * time.Hour),
		End:         time.Now(),
		Severity:    gaps.SeverityModerate,
	}
	result := svc.BackfillPriceGap(context.Background(), gap)
	assert.Greater(t, priceSrc.calls, 1) // multiple daily chunks
	assert.Equal(t, "price_client", result.SourceUsed)
	assert.Empty(t, result.Errors)
}

func TestBackfillWeatherGap_RecentGapUsesForecast(t *testing.T) {
	ingest, _ := newTestServiceDeps(t)
	obs := &fakeObsSource{forecastRecords: []clients.RawRecord{
		{Time: time.Now(), Fields: map[string]float64{"temperature": 18, "humidity": 50}},
	}}
	detector := gaps.New(&fakeStore{})
	svc := New(ingest, &fakePriceSource{}, obs, nil, detector, "28079", 0, zerolog.Nop())

	gap := gaps.Gap{
		Measurement: "weather_data",
		Start:       time.Now().Add(-1 * time.Hour),
		End:         time.Now().Add(1 * time.Hour),
		Severity:    gaps.SeverityMinor,
	}
	result := svc.BackfillWeatherGap(context.Background(), gap)
	assert.Equal(t, "forecast", result.SourceUsed)
}

func TestBackfillWeatherGap_OldGapUsesCSVWhenNoClimatologyMatch(t *testing.T) {
	ingest, _ := newTestServiceDeps(t)
	etl := &fakeETL{records: []ingestion.HistoricalRecord{
		{RawRecord: clients.RawRecord{Time: time.Now().AddDate(0, -2, 0), Fields: map[string]float64{"temperature_mean": 12}}, StationID: "B"},
	}}
	detector := gaps.New(&fakeStore{})
	svc := New(ingest, &fakePriceSource{}, &fakeObsSource{}, etl, detector, "28079", 0, zerolog.Nop())

	now := time.Now()
	gapEnd := now.AddDate(0, -2, 0)
	gap := gaps.Gap{
		Measurement: "weather_data",
		Start:       gapEnd.Add(-1 * time.Hour),
		End:         gapEnd,
		Severity:    gaps.SeverityMinor,
	}
	result := svc.BackfillWeatherGap(context.Background(), gap)
	assert.Equal(t, "historical_csv", result.SourceUsed)
	assert.Equal(t, 1, result.RecordsWritten)
}

type fakeETL struct{ records []ingestion.HistoricalRecord }

func (f *fakeETL) FetchRecordsForRange(ctx context.Context, start, end time.Time) ([]ingestion.HistoricalRecord, error) {
	return f.records, nil
}

func TestCheckAndRun_NoActionWhenFresh(t *testing.T) {
	ingest, store := newTestServiceDeps(t)
	store.last = time.Now()
	store.found = true
	detector := gaps.New(store)
	svc := New(ingest, &fakePriceSource{}, &fakeObsSource{}, nil, detector, "28079", 0, zerolog.Nop())

	result, err := svc.CheckAndRun(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "no_action_needed", result.Action)
}

func TestCheckAndRun_BackfillsWhenStale(t *testing.T) {
	ingest, store := newTestServiceDeps(t)
	store.last = time.Now().Add(-20 * time.Hour)
	store.found = true
	detector := gaps.New(store)
	svc := New(ingest, &fakePriceSource{}, &fakeObsSource{}, nil, detector, "28079", 0, zerolog.Nop())

	result, err := svc.CheckAndRun(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "backfill_executed", result.Action)
	require.NotNil(t, result.Backfill)
}
