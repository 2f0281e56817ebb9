// Package ingestion transforms upstream API payloads into validated,
// tagged time-series points and writes them through the C1 store (C3). It
// is the single place that knows how to turn a RawRecord into an
// energy_prices or weather_data point.
package ingestion

import (
	"context"
	"time"

	"github.com/aristath/chocosentinel/internal/clients"
)

// Stats summarizes one ingestion call, matching §4.3's IngestionStats.
type Stats struct {
	Requested        int           `json:"requested"`
	Obtained         int           `json:"obtained"`
	Written          int           `json:"written"`
	ValidationErrors int           `json:"validation_errors"`
	Duration         time.Duration `json:"duration"`
	SuccessRate      float64       `json:"success_rate"`
	SourceUsed       string        `json:"source_used,omitempty"`
	Substituted      bool          `json:"substituted,omitempty"`
}

func (s *Stats) finalize(start time.Time) {
	s.Duration = time.Since(start)
	if s.Requested == 0 {
		s.SuccessRate = 1
		return
	}
	s.SuccessRate = float64(s.Written) / float64(s.Requested)
}

// PriceSource is the C2 contract the price ingestion path depends on.
type PriceSource interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error)
	FetchCurrent(ctx context.Context) (clients.RawRecord, error)
}

// WeatherSource is the C2 contract both weather ingestion paths
// (observation and realtime) satisfy.
type WeatherSource interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error)
	FetchCurrent(ctx context.Context) (clients.RawRecord, error)
}
