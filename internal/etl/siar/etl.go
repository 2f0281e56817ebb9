package siar

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/chocosentinel/internal/ingestion"
)

// RunStats summarizes one full directory pass (§4.6's return shape).
type RunStats struct {
	FilesProcessed int `json:"files_processed"`
	FilesFailed    int `json:"files_failed"`
	RecordsWritten int `json:"records_written"`
}

// ETL processes a directory of SIAR CSV archives into the historical
// bucket through the ingestion service.
type ETL struct {
	dir    string
	ingest *ingestion.Service
	log    zerolog.Logger
}

// New constructs an ETL rooted at dir.
func New(dir string, ingest *ingestion.Service, log zerolog.Logger) *ETL {
	return &ETL{dir: dir, ingest: ingest, log: log.With().Str("component", "etl_siar").Logger()}
}

type fixedRecordSource struct {
	records []ingestion.HistoricalRecord
}

func (f fixedRecordSource) FetchRecords(ctx context.Context) ([]ingestion.HistoricalRecord, error) {
	return f.records, nil
}

// RunAll processes every CSV file in the ETL's directory, writing in
// 100-point batches (handled inside IngestHistoricalCSV) and continuing on
// per-file errors (§4.6 step 5).
func (e *ETL) RunAll(ctx context.Context) (RunStats, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return RunStats{}, err
	}

	var stats RunStats
	for _, entry := range entries {
		if entry.IsDir() || !isCSV(entry.Name()) {
			continue
		}
		records, err := e.parseFile(filepath.Join(e.dir, entry.Name()))
		if err != nil {
			stats.FilesFailed++
			e.log.Warn().Err(err).Str("file", entry.Name()).Msg("failed to parse SIAR file")
			continue
		}
		stats.FilesProcessed++

		ingestStats, err := e.ingest.IngestHistoricalCSV(ctx, fixedRecordSource{records: records})
		stats.RecordsWritten += ingestStats.Written
		if err != nil {
			e.log.Warn().Err(err).Str("file", entry.Name()).Msg("failed to write SIAR records")
		}
	}
	return stats, nil
}

// FetchRecordsForRange implements backfill.ETLSource: it re-scans the
// directory and returns every parsed record whose date falls in
// [start,end]. Used only for the rare previous-month/year backfill path,
// so a directory walk per call is an acceptable cost.
func (e *ETL) FetchRecordsForRange(ctx context.Context, start, end time.Time) ([]ingestion.HistoricalRecord, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, err
	}

	var out []ingestion.HistoricalRecord
	for _, entry := range entries {
		if entry.IsDir() || !isCSV(entry.Name()) {
			continue
		}
		records, err := e.parseFile(filepath.Join(e.dir, entry.Name()))
		if err != nil {
			continue
		}
		for _, r := range records {
			if (r.Time.Equal(start) || r.Time.After(start)) && (r.Time.Equal(end) || r.Time.Before(end)) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (e *ETL) parseFile(path string) ([]ingestion.HistoricalRecord, error) {
	station, ok := stationForFilename(filepath.Base(path))
	if !ok {
		return nil, errUnknownStation(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	body, err := decodeFile(raw)
	if err != nil {
		return nil, err
	}

	rows, skipped := parseCSV(body)
	if skipped > 0 {
		e.log.Debug().Str("file", path).Int("skipped_rows", skipped).Msg("skipped malformed SIAR rows")
	}

	records := make([]ingestion.HistoricalRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, ingestion.HistoricalRecord{RawRecord: row.toRawRecord(), StationID: station})
	}
	return records, nil
}

func isCSV(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".txt")
}

type errUnknownStation string

func (e errUnknownStation) Error() string { return "unknown station prefix for file " + string(e) }
