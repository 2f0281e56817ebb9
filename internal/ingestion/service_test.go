package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/clients"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

type fakeStore struct {
	written []timeseries.Point
	failOn  int // if > 0, WritePoints fails once this many points have been seen
	seen    int
}

func (f *fakeStore) WritePoints(ctx context.Context, points []timeseries.Point) (timeseries.WriteStats, error) {
	f.seen += len(points)
	if f.failOn > 0 && f.seen >= f.failOn {
		return timeseries.WriteStats{Requested: len(points)}, assertErr
	}
	f.written = append(f.written, points...)
	return timeseries.WriteStats{Requested: len(points), Written: len(points)}, nil
}

func (f *fakeStore) LastTimestamp(ctx context.Context, measurement string, filter timeseries.TagFilter) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (f *fakeStore) Range(ctx context.Context, measurement string, filter timeseries.TagFilter, start, end time.Time) ([]timeseries.Point, error) {
	return nil, nil
}

func (f *fakeStore) AggregateWindow(ctx context.Context, measurement string, filter timeseries.TagFilter, start, end time.Time, window time.Duration, fn string) ([]timeseries.Point, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

var assertErr = fakeError("write failed")

type fakeError string

func (e fakeError) Error() string { return string(e) }

type fakeSource struct {
	windowRecords  []clients.RawRecord
	currentRecord  clients.RawRecord
	windowErr      error
	currentErr     error
}

func (s *fakeSource) FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	return s.windowRecords, s.windowErr
}

func (s *fakeSource) FetchCurrent(ctx context.Context) (clients.RawRecord, error) {
	return s.currentRecord, s.currentErr
}

func newTestService(t *testing.T, store timeseries.StoreAPI) *Service {
	t.Helper()
	cal, err := calendar.New("Europe/Madrid", zerolog.Nop())
	require.NoError(t, err)
	return New(store, cal, "esios", "pvpc", "3195", zerolog.Nop())
}

func TestIngestPriceWindow_WritesValidRecords(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store)
	src := &fakeSource{windowRecords: []clients.RawRecord{
		{Time: time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC), Fields: map[string]float64{"price_eur_mwh": 120}},
		{Time: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC), Fields: map[string]float64{"price_eur_mwh": 80}},
	}}

	stats, err := svc.IngestPriceWindow(context.Background(), src, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Obtained)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 0, stats.ValidationErrors)
	require.Len(t, store.written, 2)
	assert.InDelta(t, 0.12, store.written[0].Fields["price_eur_kwh"], 1e-9)
	assert.NotEmpty(t, store.written[0].Tags["tariff_period"])
}

func TestIngestPriceWindow_RejectsMissingField(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store)
	src := &fakeSource{windowRecords: []clients.RawRecord{
		{Time: time.Now(), Fields: map[string]float64{}},
	}}

	stats, err := svc.IngestPriceWindow(context.Background(), src, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ValidationErrors)
	assert.Equal(t, 0, stats.Written)
}

func TestIngestWeatherWindow_RejectsOutOfRangeHumidity(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store)
	src := &fakeSource{windowRecords: []clients.RawRecord{
		{Time: time.Now(), Fields: map[string]float64{"temperature": 20, "humidity": 150}},
		{Time: time.Now(), Fields: map[string]float64{"temperature": 18, "humidity": 60}},
	}}

	stats, err := svc.IngestWeatherWindow(context.Background(), src, "official", "observation", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ValidationErrors)
	assert.Equal(t, 1, stats.Written)
	require.Len(t, store.written, 1)
	assert.Contains(t, store.written[0].Fields, "heat_index")
	assert.Contains(t, store.written[0].Fields, "production_comfort_index")
}

func TestIngestHybridWeather_DaytimeUsesRealtimeFirst(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store)
	obs := &fakeSource{currentErr: fakeError("obs unreachable")}
	realtime := &fakeSource{currentRecord: clients.RawRecord{Time: time.Now(), Fields: map[string]float64{"temperature": 19, "humidity": 50}}}

	// The service reads the wall clock: between 00:00 and 07:59 Madrid time
	// the failing observation source is tried first, so realtime is then
	// reached only as a substitute.
	loc, _ := time.LoadLocation("Europe/Madrid")
	isNight := time.Now().In(loc).Hour() <= 7

	stats, err := svc.IngestHybridWeather(context.Background(), obs, realtime)
	require.NoError(t, err)
	assert.Equal(t, "realtime", stats.SourceUsed)
	assert.Equal(t, isNight, stats.Substituted)
}

func TestIngestHybridWeather_FallsBackOnPrimaryFailure(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store)

	now := time.Now()
	loc, _ := time.LoadLocation("Europe/Madrid")
	nowLocal := now.In(loc)
	isNight := nowLocal.Hour() <= 7

	var primary, secondary *fakeSource
	healthy := clients.RawRecord{Time: time.Now(), Fields: map[string]float64{"temperature": 19, "humidity": 50}}
	if isNight {
		primary = &fakeSource{currentErr: fakeError("obs down")}
		secondary = &fakeSource{currentRecord: healthy}
		stats, err := svc.IngestHybridWeather(context.Background(), primary, secondary)
		require.NoError(t, err)
		assert.Equal(t, "realtime", stats.SourceUsed)
		assert.True(t, stats.Substituted)
	} else {
		primary = &fakeSource{currentErr: fakeError("realtime down")}
		secondary = &fakeSource{currentRecord: healthy}
		stats, err := svc.IngestHybridWeather(context.Background(), secondary, primary)
		require.NoError(t, err)
		assert.Equal(t, "official", stats.SourceUsed)
		assert.True(t, stats.Substituted)
	}
}

type fakeHistoricalSource struct {
	records []HistoricalRecord
	err     error
}

func (f *fakeHistoricalSource) FetchRecords(ctx context.Context) ([]HistoricalRecord, error) {
	return f.records, f.err
}

func TestIngestHistoricalCSV_BatchesWrites(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store)

	var records []HistoricalRecord
	for i := 0; i < 250; i++ {
		records = append(records, HistoricalRecord{
			RawRecord: clients.RawRecord{Time: time.Now().Add(time.Duration(i) * time.Hour), Fields: map[string]float64{"temperature_mean": 15}},
			StationID: "B",
		})
	}
	src := &fakeHistoricalSource{records: records}

	stats, err := svc.IngestHistoricalCSV(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 250, stats.Obtained)
	assert.Equal(t, 250, stats.Written)
	assert.Equal(t, "B", store.written[0].Tags["station_id"])
	assert.Equal(t, "historical_csv", store.written[0].Tags["data_source"])
}
