package timeseries

import (
	"context"
	"time"
)

// StoreAPI is the subset of *Store the ingestion, gap-detection, and
// backfill packages depend on. They take this interface rather than the
// concrete type so tests can inject an in-memory fake instead of driving a
// real Influx instance.
type StoreAPI interface {
	WritePoints(ctx context.Context, points []Point) (WriteStats, error)
	LastTimestamp(ctx context.Context, measurement string, filter TagFilter) (time.Time, bool, error)
	Range(ctx context.Context, measurement string, filter TagFilter, start, end time.Time) ([]Point, error)
	AggregateWindow(ctx context.Context, measurement string, filter TagFilter, start, end time.Time, window time.Duration, fn string) ([]Point, error)
	Ping(ctx context.Context) error
}

var _ StoreAPI = (*Store)(nil)
