// Package siar parses SIAR (Sistema de Informacion Agroclimatica para el
// Regadio) daily CSV archives into store points for long-horizon history
// (C6). The files use Windows-era Spanish locale conventions: `;`-separated
// fields, `,` decimals, `DD/MM/YYYY` dates, and a non-UTF-8 encoding that
// varies file to file.
package siar

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/aristath/chocosentinel/internal/clients"
)

// encodingChain is tried in order; the first one that decodes the whole
// file without error wins (§4.6 step 1).
var encodingChain = []encoding.Encoding{
	charmap.ISO8859_1,
	charmap.Windows1252,
	encoding.Nop, // utf-8, the identity transform
}

// stationPrefixes maps a filename prefix to the station tag it represents.
// SIAR filenames encode the station as a two-letter prefix; the two the
// plant's region uses are mapped here, anything else is rejected.
var stationPrefixes = map[string]string{
	"AL": "almeria_norte",
	"MU": "murcia_sur",
}

// decodeFile tries each encoding in encodingChain and returns the first
// clean UTF-8 decoding.
func decodeFile(raw []byte) (string, error) {
	var lastErr error
	for _, enc := range encodingChain {
		decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
		if err == nil && utf8.Valid(decoded) {
			return string(decoded), nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("no encoding in chain could decode file cleanly: %w", lastErr)
}

// cleanLine drops non-printable and invisible-whitespace runes, keeping
// only alphanumerics plus `;,/:.-` (§4.6 step 2).
func cleanLine(line string) string {
	var b strings.Builder
	for _, r := range line {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case strings.ContainsRune(";,/:.-", r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stationForFilename derives the station tag from a SIAR filename prefix.
func stationForFilename(name string) (string, bool) {
	upper := strings.ToUpper(name)
	for prefix, station := range stationPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return station, true
		}
	}
	return "", false
}

// siarRow is one cleaned, semicolon-delimited CSV row.
type siarRow struct {
	date            time.Time
	temperatureMean float64
	temperatureMin  float64
	temperatureMax  float64
	humidityMean    float64
	windMean        float64
	radiation       float64
	precipitation   float64
	evapotranspiration float64
}

// parseCSV parses a decoded, cleaned SIAR CSV body into rows. Malformed
// rows are skipped, not fatal — the caller counts them via the returned
// skipped count.
func parseCSV(body string) ([]siarRow, int) {
	scanner := bufio.NewScanner(strings.NewReader(body))
	var rows []siarRow
	skipped := 0
	first := true
	for scanner.Scan() {
		line := cleanLine(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if looksLikeHeader(line) {
				continue
			}
		}
		row, err := parseRow(line)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped
}

func looksLikeHeader(line string) bool {
	fields := strings.Split(line, ";")
	if len(fields) == 0 {
		return false
	}
	_, err := time.Parse("02/01/2006", fields[0])
	return err != nil
}

func parseRow(line string) (siarRow, error) {
	fields := strings.Split(line, ";")
	if len(fields) < 8 {
		return siarRow{}, fmt.Errorf("expected at least 8 fields, got %d", len(fields))
	}

	date, err := time.Parse("02/01/2006", fields[0])
	if err != nil {
		return siarRow{}, fmt.Errorf("invalid date %q: %w", fields[0], err)
	}

	parseDecimal := func(s string) (float64, error) {
		return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	}

	vals := make([]float64, 7)
	for i, f := range fields[1:8] {
		v, err := parseDecimal(f)
		if err != nil {
			return siarRow{}, fmt.Errorf("invalid numeric field %q: %w", f, err)
		}
		vals[i] = v
	}

	return siarRow{
		date:               date,
		temperatureMean:    vals[0],
		temperatureMin:     vals[1],
		temperatureMax:     vals[2],
		humidityMean:       vals[3],
		windMean:           vals[4],
		radiation:          vals[5],
		precipitation:      vals[6],
		evapotranspiration: 0,
	}, nil
}

func (r siarRow) toRawRecord() clients.RawRecord {
	return clients.RawRecord{
		Time: r.date,
		Fields: map[string]float64{
			"temperature_mean":   r.temperatureMean,
			"temperature_min":    r.temperatureMin,
			"temperature_max":    r.temperatureMax,
			"humidity_mean":      r.humidityMean,
			"wind_mean":          r.windMean,
			"radiation":          r.radiation,
			"precipitation":      r.precipitation,
			"evapotranspiration": r.evapotranspiration,
		},
	}
}
