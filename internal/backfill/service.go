// Package backfill implements the C5 strategy selector: given a set of
// gaps, it picks an upstream (or the offline CSV ETL) per gap and drives
// C3 to rewrite the range idempotently.
package backfill

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/chocosentinel/internal/clients"
	"github.com/aristath/chocosentinel/internal/gaps"
	"github.com/aristath/chocosentinel/internal/ingestion"
)

// ObservationSource is the weatherobs.Client surface backfill depends on,
// beyond the plain ingestion.WeatherSource contract every client has.
type ObservationSource interface {
	ingestion.WeatherSource
	FetchMunicipalityForecast(ctx context.Context, municipalityCode string) ([]clients.RawRecord, error)
	FetchClimatology(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error)
}

// ETLSource is the C6 contract backfill depends on for gaps that fall in a
// previous month/year, where the observation API no longer serves history.
type ETLSource interface {
	FetchRecordsForRange(ctx context.Context, start, end time.Time) ([]ingestion.HistoricalRecord, error)
}

// Result is the per-gap outcome of a backfill attempt (§4.5).
type Result struct {
	Measurement        string   `json:"measurement"`
	Gap                gaps.Gap `json:"gap"`
	RecordsRequested   int      `json:"records_requested"`
	RecordsObtained    int      `json:"records_obtained"`
	RecordsWritten     int      `json:"records_written"`
	SourceUsed         string   `json:"source_used"`
	Errors             []string `json:"errors,omitempty"`
}

func (r Result) successRate() float64 {
	if r.RecordsRequested == 0 {
		return 1
	}
	return float64(r.RecordsWritten) / float64(r.RecordsRequested)
}

// Stats aggregates every Result produced by one backfill run.
type Stats struct {
	Results            []Result `json:"results"`
	OverallSuccessRate float64  `json:"overall_success_rate"`
}

// Service drives gap recovery across the price and weather clients plus
// the historical CSV ETL.
type Service struct {
	ingest           *ingestion.Service
	priceSrc         ingestion.PriceSource
	obsSrc           ObservationSource
	etl              ETLSource
	municipalityCode string
	priceDelay       time.Duration
	detector         *gaps.Detector
	log              zerolog.Logger
}

// New constructs a Service.
func New(ingest *ingestion.Service, priceSrc ingestion.PriceSource, obsSrc ObservationSource, etl ETLSource, detector *gaps.Detector, municipalityCode string, priceDelay time.Duration, log zerolog.Logger) *Service {
	return &Service{
		ingest:           ingest,
		priceSrc:         priceSrc,
		obsSrc:           obsSrc,
		etl:              etl,
		municipalityCode: municipalityCode,
		priceDelay:       priceDelay,
		detector:         detector,
		log:              log.With().Str("component", "backfill").Logger(),
	}
}

// BackfillPriceGap fills a price gap in daily chunks (6h chunks if
// critical, to speed recovery), each chunk retried independently by the
// ingestion path it drives.
func (s *Service) BackfillPriceGap(ctx context.Context, gap gaps.Gap) Result {
	result := Result{Measurement: gap.Measurement, Gap: gap, SourceUsed: "price_client"}

	chunkSize := 24 * time.Hour
	if gap.Severity == gaps.SeverityCritical {
		chunkSize = 6 * time.Hour
	}

	for chunkStart := gap.Start; chunkStart.Before(gap.End); chunkStart = chunkStart.Add(chunkSize) {
		chunkEnd := chunkStart.Add(chunkSize)
		if chunkEnd.After(gap.End) {
			chunkEnd = gap.End
		}

		stats, err := s.ingest.IngestPriceWindow(ctx, s.priceSrc, chunkStart, chunkEnd)
		result.RecordsRequested += stats.Requested
		result.RecordsObtained += stats.Obtained
		result.RecordsWritten += stats.Written
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}

		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, ctx.Err().Error())
			return result
		case <-time.After(s.priceDelay):
		}
	}

	s.logOutcome(result)
	return result
}

type fixedWeatherSource struct {
	records []clients.RawRecord
	err     error
}

func (f fixedWeatherSource) FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	var out []clients.RawRecord
	for _, r := range f.records {
		if (r.Time.Equal(start) || r.Time.After(start)) && (r.Time.Equal(end) || r.Time.Before(end)) {
			out = append(out, r)
		}
	}
	return out, f.err
}

func (f fixedWeatherSource) FetchCurrent(ctx context.Context) (clients.RawRecord, error) {
	if len(f.records) == 0 {
		return clients.RawRecord{}, f.err
	}
	return f.records[len(f.records)-1], f.err
}

type fixedHistoricalSource struct {
	records []ingestion.HistoricalRecord
	err     error
}

func (f fixedHistoricalSource) FetchRecords(ctx context.Context) ([]ingestion.HistoricalRecord, error) {
	return f.records, f.err
}

// BackfillWeatherGap picks a strategy by gap age/duration (§4.5's ordered
// table) and drives C3 to rewrite the range.
func (s *Service) BackfillWeatherGap(ctx context.Context, gap gaps.Gap) Result {
	result := Result{Measurement: gap.Measurement, Gap: gap}

	strategy := selectWeatherStrategy(time.Now(), gap.End, gap.Start)
	switch strategy {
	case strategyForecast:
		result.SourceUsed = "forecast"
		records, err := s.obsSrc.FetchMunicipalityForecast(ctx, s.municipalityCode)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			s.logOutcome(result)
			return result
		}
		src := fixedWeatherSource{records: records}
		stats, err := s.ingest.IngestWeatherWindow(ctx, src, "forecast", "forecast", gap.Start, gap.End)
		s.mergeWeatherStats(&result, stats, err)

	case strategyClimatology:
		result.SourceUsed = "climatology"
		records, err := s.obsSrc.FetchClimatology(ctx, gap.Start, gap.End)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			s.logOutcome(result)
			return result
		}
		src := fixedWeatherSource{records: records}
		stats, err := s.ingest.IngestWeatherWindow(ctx, src, "official", "climatology", gap.Start, gap.End)
		s.mergeWeatherStats(&result, stats, err)

	case strategyHistoricalCSV:
		result.SourceUsed = "historical_csv"
		if s.etl == nil {
			result.Errors = append(result.Errors, "no ETL source configured for historical gap")
			s.logOutcome(result)
			return result
		}
		records, err := s.etl.FetchRecordsForRange(ctx, gap.Start, gap.End)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			s.logOutcome(result)
			return result
		}
		stats, err := s.ingest.IngestHistoricalCSV(ctx, fixedHistoricalSource{records: records})
		result.RecordsRequested += stats.Requested
		result.RecordsObtained += stats.Obtained
		result.RecordsWritten += stats.Written
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}

	default: // strategyObservation
		result.SourceUsed = "observation"
		stats, err := s.ingest.IngestWeatherWindow(ctx, s.obsSrc, "official", "observation", gap.Start, gap.End)
		s.mergeWeatherStats(&result, stats, err)
	}

	s.logOutcome(result)
	return result
}

func (s *Service) mergeWeatherStats(result *Result, stats ingestion.Stats, err error) {
	result.RecordsRequested += stats.Requested
	result.RecordsObtained += stats.Obtained
	result.RecordsWritten += stats.Written
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
}

func (s *Service) logOutcome(result Result) {
	rate := result.successRate()
	event := s.log.Info()
	switch {
	case rate < 0.5:
		event = s.log.Error()
	case rate < 0.9:
		event = s.log.Warn()
	}
	event.Str("measurement", result.Measurement).Str("source", result.SourceUsed).
		Float64("success_rate", rate).Int("written", result.RecordsWritten).
		Msg("backfill gap processed")
}

// ExecuteIntelligentBackfill detects gaps over the last daysBack days and
// backfills each with BackfillPriceGap/BackfillWeatherGap.
func (s *Service) ExecuteIntelligentBackfill(ctx context.Context, daysBack int) (Stats, error) {
	lookback := time.Duration(daysBack) * 24 * time.Hour

	priceGaps, err := s.detector.Detect(ctx, "energy_prices", nil, time.Hour, lookback)
	if err != nil {
		return Stats{}, err
	}
	weatherGaps, err := s.detector.Detect(ctx, "weather_data", nil, time.Hour, lookback)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, g := range priceGaps {
		stats.Results = append(stats.Results, s.BackfillPriceGap(ctx, g))
	}
	for _, g := range weatherGaps {
		stats.Results = append(stats.Results, s.BackfillWeatherGap(ctx, g))
	}

	if len(stats.Results) == 0 {
		stats.OverallSuccessRate = 1
		return stats, nil
	}
	var sum float64
	for _, r := range stats.Results {
		sum += r.successRate()
	}
	stats.OverallSuccessRate = sum / float64(len(stats.Results))
	return stats, nil
}

// CheckAndRunResult is CheckAndRun's outcome.
type CheckAndRunResult struct {
	Action  string            `json:"action"`
	Latest  gaps.LatestTimestamps `json:"latest_timestamps"`
	Backfill *Stats           `json:"backfill,omitempty"`
}

// CheckAndRun is the auto-backfill controller (§4.5): if any series' last
// point is older than maxGapHours, it runs a 10-day intelligent backfill;
// otherwise it reports no_action_needed.
func (s *Service) CheckAndRun(ctx context.Context, maxGapHours int) (CheckAndRunResult, error) {
	latest, err := s.detector.LatestTimestamps(ctx, nil, nil)
	if err != nil {
		return CheckAndRunResult{}, err
	}

	threshold := time.Duration(maxGapHours) * time.Hour
	priceStale := !latest.PriceFound || time.Since(latest.Price) > threshold
	weatherStale := !latest.WeatherFound || time.Since(latest.Weather) > threshold

	if !priceStale && !weatherStale {
		return CheckAndRunResult{Action: "no_action_needed", Latest: latest}, nil
	}

	s.log.Info().Bool("price_stale", priceStale).Bool("weather_stale", weatherStale).
		Msg("auto-backfill threshold exceeded, running intelligent backfill")
	backfillStats, err := s.ExecuteIntelligentBackfill(ctx, 10)
	if err != nil {
		return CheckAndRunResult{}, err
	}
	return CheckAndRunResult{Action: "backfill_executed", Latest: latest, Backfill: &backfillStats}, nil
}
