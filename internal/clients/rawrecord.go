// Package clients holds the shared record type returned by every upstream
// API client before the ingestion service (C3) validates and tags it.
package clients

import "time"

// RawRecord is an untagged, unvalidated observation as it comes off an
// upstream API: one timestamp, one bag of named numeric fields.
type RawRecord struct {
	Time   time.Time
	Fields map[string]float64
}
