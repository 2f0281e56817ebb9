// Package gaps implements the C4 gap detector: a pure function over the
// timestamps a measurement's series actually has versus the timestamps it
// should have, with no I/O of its own beyond the Range/LastTimestamp calls
// its caller hands it.
package gaps

import (
	"context"
	"sort"
	"time"

	"github.com/aristath/chocosentinel/internal/timeseries"
)

// Severity classifies a gap by duration.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// Gap is a contiguous run of missing expected timestamps. It is never
// persisted — produced by Detect, consumed immediately by the backfill
// service.
type Gap struct {
	Measurement   string            `json:"measurement"`
	TagFilter     timeseries.TagFilter `json:"tag_filter"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	ExpectedCount int               `json:"expected_count"`
	MissingCount  int               `json:"missing_count"`
	Severity      Severity          `json:"severity"`
}

func severityFor(d time.Duration) Severity {
	switch {
	case d <= 2*time.Hour:
		return SeverityMinor
	case d <= 12*time.Hour:
		return SeverityModerate
	default:
		return SeverityCritical
	}
}

// Detector finds gaps in a measurement's series against a C1 store.
type Detector struct {
	store timeseries.StoreAPI
}

// New constructs a Detector over store.
func New(store timeseries.StoreAPI) *Detector {
	return &Detector{store: store}
}

// Detect finds gaps in measurement (matching filter) over the last
// `lookback` ending at now, assuming points are expected every interval.
func (d *Detector) Detect(ctx context.Context, measurement string, filter timeseries.TagFilter, interval, lookback time.Duration) ([]Gap, error) {
	now := time.Now().UTC().Truncate(interval)
	start := now.Add(-lookback)

	expected := expectedTimestamps(start, now, interval)

	actualPoints, err := d.store.Range(ctx, measurement, filter, start, now)
	if err != nil {
		return nil, err
	}
	actual := make(map[time.Time]struct{}, len(actualPoints))
	for _, p := range actualPoints {
		actual[p.Time.UTC().Truncate(interval)] = struct{}{}
	}

	var missing []time.Time
	for _, ts := range expected {
		if _, ok := actual[ts]; !ok {
			missing = append(missing, ts)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Before(missing[j]) })

	return groupGaps(measurement, filter, missing, interval, len(expected)), nil
}

func expectedTimestamps(start, end time.Time, interval time.Duration) []time.Time {
	var out []time.Time
	for t := start; t.Before(end); t = t.Add(interval) {
		out = append(out, t)
	}
	return out
}

// groupGaps groups consecutive misses into gaps, where two misses belong
// to the same gap iff their distance is <= 1.5*interval (§4.4 step 4).
func groupGaps(measurement string, filter timeseries.TagFilter, missing []time.Time, interval time.Duration, expectedCount int) []Gap {
	if len(missing) == 0 {
		return nil
	}

	threshold := time.Duration(float64(interval) * 1.5)
	var gaps []Gap
	groupStart := missing[0]
	groupEnd := missing[0]
	count := 1

	flush := func() {
		dur := groupEnd.Sub(groupStart)
		gaps = append(gaps, Gap{
			Measurement:   measurement,
			TagFilter:     filter,
			Start:         groupStart,
			End:           groupEnd,
			ExpectedCount: expectedCount,
			MissingCount:  count,
			Severity:      severityFor(dur),
		})
	}

	for i := 1; i < len(missing); i++ {
		if missing[i].Sub(groupEnd) <= threshold {
			groupEnd = missing[i]
			count++
			continue
		}
		flush()
		groupStart = missing[i]
		groupEnd = missing[i]
		count = 1
	}
	flush()
	return gaps
}

// LatestTimestamps reports the newest timestamp for price and weather
// series matching their respective filters. Both calls flatten/sort before
// taking the max (via Store.LastTimestamp), avoiding the "last per series"
// pitfall (§9).
type LatestTimestamps struct {
	Price        time.Time
	PriceFound   bool
	Weather      time.Time
	WeatherFound bool
}

func (d *Detector) LatestTimestamps(ctx context.Context, priceFilter, weatherFilter timeseries.TagFilter) (LatestTimestamps, error) {
	var out LatestTimestamps
	var err error

	out.Price, out.PriceFound, err = d.store.LastTimestamp(ctx, "energy_prices", priceFilter)
	if err != nil {
		return out, err
	}
	out.Weather, out.WeatherFound, err = d.store.LastTimestamp(ctx, "weather_data", weatherFilter)
	if err != nil {
		return out, err
	}
	return out, nil
}
