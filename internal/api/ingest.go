package api

import (
	"net/http"
	"time"

	"github.com/aristath/chocosentinel/internal/apierr"
)

type ingestNowRequest struct {
	Source string `json:"source"`
}

// handleIngestNow drives one manual ingestion cycle over the trailing hour
// ending now, the same window the scheduled price/weather jobs use.
func (s *Server) handleIngestNow(w http.ResponseWriter, r *http.Request) {
	var req ingestNowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAPIError(w, apierr.Wrap(apierr.KindValidationError, "invalid request body", err))
		return
	}

	end := time.Now().UTC()
	start := end.Add(-time.Hour)

	var stats interface{}
	var err error
	switch req.Source {
	case "price":
		stats, err = s.ingest.IngestPriceWindow(r.Context(), s.priceSource, start, end)
	case "weather":
		stats, err = s.ingest.IngestWeatherWindow(r.Context(), s.obsSource, "official", "observation", start, end)
	case "hybrid":
		stats, err = s.ingest.IngestHybridWeather(r.Context(), s.obsSource, s.realtimeSource)
	default:
		s.writeAPIError(w, apierr.New(apierr.KindValidationError, "source must be one of price, weather, hybrid"))
		return
	}
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
