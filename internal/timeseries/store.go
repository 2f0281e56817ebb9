// Package timeseries adapts the energy/weather core onto an InfluxDB v2
// compatible backend: batched writes, absolute-bound range queries, and the
// raw Flux escape hatch the forecaster and scoring packages need for
// aggregated rollups.
package timeseries

import (
	"context"
	"fmt"
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/aristath/chocosentinel/internal/apierr"
)

var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// Config configures a Store.
type Config struct {
	URL              string
	Token            string
	Org              string
	BucketOperational string
	BucketHistorical string
}

// Store is the C1 time-series store adapter. One Store instance is shared
// across ingestion, gap detection, forecasting, and scoring.
type Store struct {
	client  influxdb2.Client
	org     string
	opBkt   string
	histBkt string
	log     zerolog.Logger
}

// New constructs a Store. It does not verify connectivity; call Ping for
// that.
func New(cfg Config, log zerolog.Logger) *Store {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(500))
	return &Store{
		client:  client,
		org:     cfg.Org,
		opBkt:   cfg.BucketOperational,
		histBkt: cfg.BucketHistorical,
		log:     log.With().Str("component", "timeseries").Logger(),
	}
}

// Close releases the underlying client's connections.
func (s *Store) Close() {
	s.client.Close()
}

// Ping verifies the store is reachable, backing /ready and the scheduled
// health_check job.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil || !ok {
		return apierr.Wrap(apierr.KindStoreUnavailable, "store ping failed", err)
	}
	return nil
}

func (s *Store) bucketFor(measurement string) string {
	if measurement == "siar_weather" {
		return s.histBkt
	}
	return s.opBkt
}

// WritePoints writes a batch of points, retrying transient errors up to
// three times with exponential backoff before returning a
// StoreUnavailable-kind error. Writes within a batch share one bucket —
// callers split batches that span measurements in different buckets.
func (s *Store) WritePoints(ctx context.Context, points []Point) (WriteStats, error) {
	stats := WriteStats{Requested: len(points)}
	if len(points) == 0 {
		return stats, nil
	}

	bucket := s.bucketFor(points[0].Measurement)
	writeAPI := s.client.WriteAPIBlocking(s.org, bucket)

	wps := make([]*write.Point, 0, len(points))
	for _, p := range points {
		wps = append(wps, influxdb2.NewPoint(p.Measurement, p.Tags, toInterfaceFields(p.Fields), p.Time))
	}

	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		err := writeAPI.WritePoint(ctx, wps...)
		if err == nil {
			stats.Written = len(points)
			return stats, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt+1).Int("points", len(points)).Msg("write batch failed")
		if attempt < len(retryDelays) {
			select {
			case <-ctx.Done():
				return stats, apierr.Wrap(apierr.KindCancelled, "write cancelled", ctx.Err())
			case <-time.After(retryDelays[attempt]):
			}
		}
	}

	stats.Rejected = len(points)
	if len(points) > 0 {
		stats.Samples = []RejectedPoint{{Point: points[0], Reason: lastErr.Error()}}
	}
	return stats, apierr.Wrap(apierr.KindStoreUnavailable, "write batch failed after retries", lastErr)
}

func toInterfaceFields(fields map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// LastTimestamp returns the newest timestamp across all series matching
// filter for measurement, or the zero value if none exist. The underlying
// Flux query groups by every series (one row per tagset) and this method
// flattens the result before taking the max — querying `last()` without
// flattening returns one row per series, which is the "last per series"
// pitfall the store contract explicitly forbids.
func (s *Store) LastTimestamp(ctx context.Context, measurement string, filter TagFilter) (time.Time, bool, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: -5y)
		  |> filter(fn: (r) => r._measurement == "%s")
		  %s
		  |> group()
		  |> sort(columns: ["_time"], desc: true)
		  |> limit(n: 1)
	`, s.bucketFor(measurement), measurement, filterFragment(filter))

	tables, err := s.queryWithRetry(ctx, query)
	if err != nil {
		return time.Time{}, false, err
	}

	var times []time.Time
	for tables.Next() {
		times = append(times, tables.Record().Time())
	}
	if err := tables.Err(); err != nil {
		return time.Time{}, false, apierr.Wrap(apierr.KindStoreUnavailable, "last-timestamp query failed", err)
	}
	if len(times) == 0 {
		return time.Time{}, false, nil
	}
	sort.Slice(times, func(i, j int) bool { return times[i].After(times[j]) })
	return times[0], true, nil
}

// Range returns every point of measurement matching filter within
// [start,end). Both bounds are absolute and inclusive-exclusive as Flux's
// range() defines them; callers (gap detector, ETL, forecaster) compute
// them from clock + offset, never pass relative durations here.
func (s *Store) Range(ctx context.Context, measurement string, filter TagFilter, start, end time.Time) ([]Point, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: %s, stop: %s)
		  |> filter(fn: (r) => r._measurement == "%s")
		  %s
		  |> sort(columns: ["_time"], desc: false)
	`, s.bucketFor(measurement), rfc3339(start), rfc3339(end), measurement, filterFragment(filter))

	tables, err := s.queryWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectPoints(tables)
}

// AggregateWindow runs a windowed aggregation (mean, sum, max, ...) over a
// measurement, matching InfluxDB's aggregateWindow() semantics.
func (s *Store) AggregateWindow(ctx context.Context, measurement string, filter TagFilter, start, end time.Time, window time.Duration, fn string) ([]Point, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: %s, stop: %s)
		  |> filter(fn: (r) => r._measurement == "%s")
		  %s
		  |> aggregateWindow(every: %s, fn: %s, createEmpty: false)
	`, s.bucketFor(measurement), rfc3339(start), rfc3339(end), measurement, filterFragment(filter), fluxDuration(window), fn)

	tables, err := s.queryWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectPoints(tables)
}

// Query runs a caller-supplied Flux query against the operational bucket's
// organization, for the aggregated rollups the higher-level packages need
// that don't fit the Range/AggregateWindow shape.
func (s *Store) Query(ctx context.Context, flux string) (*api.QueryTableResult, error) {
	return s.queryWithRetry(ctx, flux)
}

func (s *Store) queryWithRetry(ctx context.Context, flux string) (*api.QueryTableResult, error) {
	queryAPI := s.client.QueryAPI(s.org)

	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		result, err := queryAPI.Query(ctx, flux)
		if err == nil {
			return result, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("query failed")
		if attempt < len(retryDelays) {
			select {
			case <-ctx.Done():
				return nil, apierr.Wrap(apierr.KindCancelled, "query cancelled", ctx.Err())
			case <-time.After(retryDelays[attempt]):
			}
		}
	}
	return nil, apierr.Wrap(apierr.KindStoreUnavailable, "query failed after retries", lastErr)
}

func collectPoints(tables *api.QueryTableResult) ([]Point, error) {
	byKey := map[string]*Point{}
	var order []string
	for tables.Next() {
		rec := tables.Record()
		key := fmt.Sprintf("%s|%v", rec.Measurement(), rec.Time())
		for _, tk := range []string{"provider", "market_type", "tariff_period", "day_type", "season", "data_source", "station_id", "data_type"} {
			if v, ok := rec.ValueByKey(tk).(string); ok {
				key += "|" + tk + "=" + v
			}
		}
		p, exists := byKey[key]
		if !exists {
			p = &Point{Measurement: rec.Measurement(), Time: rec.Time(), Tags: map[string]string{}, Fields: map[string]float64{}}
			for k, v := range rec.Values() {
				if s, ok := v.(string); ok && k != "_measurement" && k != "_time" && k != "_field" && k != "_value" && k != "result" && k != "table" {
					p.Tags[k] = s
				}
			}
			byKey[key] = p
			order = append(order, key)
		}
		if field, ok := rec.ValueByKey("_field").(string); ok {
			if v, ok := rec.Value().(float64); ok {
				p.Fields[field] = v
			}
		}
	}
	if err := tables.Err(); err != nil {
		return nil, apierr.Wrap(apierr.KindStoreUnavailable, "query result iteration failed", err)
	}
	points := make([]Point, 0, len(order))
	for _, k := range order {
		points = append(points, *byKey[k])
	}
	return points, nil
}

func filterFragment(filter TagFilter) string {
	if len(filter) == 0 {
		return ""
	}
	frag := ""
	for k, v := range filter {
		frag += fmt.Sprintf("|> filter(fn: (r) => r.%s == \"%s\")\n\t\t  ", k, v)
	}
	return frag
}

func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fluxDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return fmt.Sprintf("%dm", int(d/time.Minute))
}
