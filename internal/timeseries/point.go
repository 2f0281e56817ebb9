package timeseries

import "time"

// Point is the canonical time-series record: a measurement, a timestamp, a
// set of indexed string tags, and a set of floating-point fields.
type Point struct {
	Measurement string
	Time        time.Time
	Tags        map[string]string
	Fields      map[string]float64
}

// TagFilter selects a series (or group of series) by exact tag match. An
// empty filter matches every series of the measurement.
type TagFilter map[string]string

// Matches reports whether a point's tags satisfy every key/value in f.
func (f TagFilter) Matches(tags map[string]string) bool {
	for k, v := range f {
		if tags[k] != v {
			return false
		}
	}
	return true
}

// WriteStats summarizes the outcome of a WritePoints call.
type WriteStats struct {
	Requested int
	Written   int
	Rejected  int
	Samples   []RejectedPoint
}

// RejectedPoint pairs a point that failed to write with the reason why.
type RejectedPoint struct {
	Point  Point
	Reason string
}
