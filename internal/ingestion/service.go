package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/chocosentinel/internal/apierr"
	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/clients"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

const (
	measurementPrice      = "energy_prices"
	measurementWeather    = "weather_data"
	measurementHistorical = "siar_weather"
)

// Service is the C3 ingestion service: it turns C2 payloads into validated,
// tagged points and writes them through the C1 store.
type Service struct {
	store  timeseries.StoreAPI
	cal    *calendar.Calendar
	log    zerolog.Logger

	provider   string
	marketType string
	stationID  string
}

// New constructs a Service. provider/marketType tag every price point
// (e.g. "esios", "pvpc"); stationID tags every live weather point.
func New(store timeseries.StoreAPI, cal *calendar.Calendar, provider, marketType, stationID string, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		cal:        cal,
		provider:   provider,
		marketType: marketType,
		stationID:  stationID,
		log:        log.With().Str("component", "ingestion").Logger(),
	}
}

// IngestPriceWindow fetches and writes prices for [start,end] from src.
func (s *Service) IngestPriceWindow(ctx context.Context, src PriceSource, start, end time.Time) (Stats, error) {
	begin := time.Now()
	stats := Stats{SourceUsed: "price"}

	records, err := src.FetchWindow(ctx, start, end)
	if err != nil {
		stats.finalize(begin)
		return stats, err
	}
	stats.Obtained = len(records)
	stats.Requested = len(records)

	points := make([]timeseries.Point, 0, len(records))
	for _, rec := range records {
		if err := validatePrice(rec); err != nil {
			stats.ValidationErrors++
			continue
		}
		points = append(points, timeseries.Point{
			Measurement: measurementPrice,
			Time:        rec.Time,
			Tags:        priceTags(s.cal, rec.Time, s.provider, s.marketType, "realtime"),
			Fields:      priceFields(rec.Fields["price_eur_mwh"]),
		})
	}

	writeStats, err := s.store.WritePoints(ctx, points)
	stats.Written = writeStats.Written
	stats.finalize(begin)
	return stats, err
}

// IngestWeatherWindow fetches and writes weather points for [start,end]
// from src, tagged with dataSource ("official" or "realtime") and
// dataType (e.g. "observation", "forecast").
func (s *Service) IngestWeatherWindow(ctx context.Context, src WeatherSource, dataSource, dataType string, start, end time.Time) (Stats, error) {
	begin := time.Now()
	stats := Stats{SourceUsed: dataSource}

	records, err := src.FetchWindow(ctx, start, end)
	if err != nil {
		stats.finalize(begin)
		return stats, err
	}
	stats.Obtained = len(records)
	stats.Requested = len(records)

	points := s.weatherPoints(records, dataSource, dataType, &stats)

	writeStats, err := s.store.WritePoints(ctx, points)
	stats.Written = writeStats.Written
	stats.finalize(begin)
	return stats, err
}

// IngestWeatherCurrent fetches and writes the single most recent weather
// point from src.
func (s *Service) IngestWeatherCurrent(ctx context.Context, src WeatherSource, dataSource, dataType string) (Stats, error) {
	begin := time.Now()
	stats := Stats{SourceUsed: dataSource}

	rec, err := src.FetchCurrent(ctx)
	if err != nil {
		stats.finalize(begin)
		return stats, err
	}
	stats.Obtained = 1
	stats.Requested = 1

	points := s.weatherPoints([]clients.RawRecord{rec}, dataSource, dataType, &stats)

	writeStats, err := s.store.WritePoints(ctx, points)
	stats.Written = writeStats.Written
	stats.finalize(begin)
	return stats, err
}

func (s *Service) weatherPoints(records []clients.RawRecord, dataSource, dataType string, stats *Stats) []timeseries.Point {
	points := make([]timeseries.Point, 0, len(records))
	for _, rec := range records {
		if err := validateWeather(rec); err != nil {
			stats.ValidationErrors++
			continue
		}
		points = append(points, timeseries.Point{
			Measurement: measurementWeather,
			Time:        rec.Time,
			Tags:        weatherTags(s.stationID, dataSource, dataType),
			Fields:      withDerivedWeatherFields(rec.Fields),
		})
	}
	return points
}

// IngestHybridWeather picks the weather source by local wall-clock hour in
// the plant's time zone: [0,7] tries obs (consolidated measurements are
// best-available that late at night), [8,23] uses realtime directly. On
// primary failure it falls back to the other source and records the
// substitution.
func (s *Service) IngestHybridWeather(ctx context.Context, obs, realtime WeatherSource) (Stats, error) {
	now := time.Now()
	hour := s.cal.LocalHour(now)

	primary, primaryTag, primaryType := realtime, "realtime", "realtime"
	secondary, secondaryTag, secondaryType := obs, "official", "observation"
	if hour <= 7 {
		primary, primaryTag, primaryType = obs, "official", "observation"
		secondary, secondaryTag, secondaryType = realtime, "realtime", "realtime"
	}

	stats, err := s.IngestWeatherCurrent(ctx, primary, primaryTag, primaryType)
	if err == nil {
		return stats, nil
	}

	s.log.Warn().Err(err).Str("primary", primaryTag).Str("fallback", secondaryTag).Msg("hybrid weather primary source failed, falling back")
	fallbackStats, fallbackErr := s.IngestWeatherCurrent(ctx, secondary, secondaryTag, secondaryType)
	fallbackStats.Substituted = true
	if fallbackErr != nil {
		return fallbackStats, apierr.Wrap(apierr.KindUpstreamHTTPError, "both hybrid weather sources failed", fallbackErr)
	}
	return fallbackStats, nil
}

// HistoricalRecord is a raw SIAR CSV record tagged with the station the
// ETL layer (C6) derived from its source filename.
type HistoricalRecord struct {
	clients.RawRecord
	StationID string
}

// HistoricalSource is the C6 contract IngestHistoricalCSV depends on.
type HistoricalSource interface {
	FetchRecords(ctx context.Context) ([]HistoricalRecord, error)
}

// IngestHistoricalCSV drives src (a parsed SIAR CSV batch) through
// validation and writes it to the historical bucket.
func (s *Service) IngestHistoricalCSV(ctx context.Context, src HistoricalSource) (Stats, error) {
	begin := time.Now()
	stats := Stats{SourceUsed: "historical_csv"}

	records, err := src.FetchRecords(ctx)
	if err != nil {
		stats.finalize(begin)
		return stats, err
	}
	stats.Obtained = len(records)
	stats.Requested = len(records)

	points := make([]timeseries.Point, 0, len(records))
	for _, rec := range records {
		if err := validateWeather(rec.RawRecord); err != nil {
			stats.ValidationErrors++
			continue
		}
		points = append(points, timeseries.Point{
			Measurement: measurementHistorical,
			Time:        rec.Time,
			Tags:        historicalTags(rec.StationID),
			Fields:      rec.Fields,
		})
	}

	var written int
	const batchSize = 100
	for i := 0; i < len(points); i += batchSize {
		end := i + batchSize
		if end > len(points) {
			end = len(points)
		}
		writeStats, err := s.store.WritePoints(ctx, points[i:end])
		written += writeStats.Written
		if err != nil {
			stats.Written = written
			stats.finalize(begin)
			return stats, err
		}
	}

	stats.Written = written
	stats.finalize(begin)
	return stats, nil
}
