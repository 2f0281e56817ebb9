package siar

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/ingestion"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

type fakeStore struct {
	written []timeseries.Point
}

func (f *fakeStore) WritePoints(ctx context.Context, points []timeseries.Point) (timeseries.WriteStats, error) {
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

func writeFixture(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestRunAll_ProcessesKnownStationFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "AL010126.csv",
		"01/01/2026;10,0;5,0;15,0;60,0;2,0;100,0;0,0\n02/01/2026;11,0;6,0;16,0;61,0;2,1;101,0;0,1\n")
	writeFixture(t, dir, "zz_unknown.csv", "01/01/2026;10,0;5,0;15,0;60,0;2,0;100,0;0,0\n")

	store := &fakeStore{}
	cal, err := calendar.New("Europe/Madrid", zerolog.Nop())
	require.NoError(t, err)
	ingest := ingestion.New(store, cal, "esios", "pvpc", "3195", zerolog.Nop())
	etl := New(dir, ingest, zerolog.Nop())

	stats, err := etl.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 2, stats.RecordsWritten)
}

func TestFetchRecordsForRange_FiltersByDate(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "MU010126.csv",
		"01/01/2026;10,0;5,0;15,0;60,0;2,0;100,0;0,0\n15/02/2026;11,0;6,0;16,0;61,0;2,1;101,0;0,1\n")

	store := &fakeStore{}
	cal, err := calendar.New("Europe/Madrid", zerolog.Nop())
	require.NoError(t, err)
	ingest := ingestion.New(store, cal, "esios", "pvpc", "3195", zerolog.Nop())
	etl := New(dir, ingest, zerolog.Nop())

	records, err := etl.FetchRecordsForRange(context.Background(),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "murcia_sur", records[0].StationID)
}
