// Package weatherrealtime implements the OpenWeatherMap-shaped realtime
// weather client (C2): simple API-key auth, no token lifecycle, highest
// request rate of the three upstreams.
package weatherrealtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/chocosentinel/internal/apierr"
	"github.com/aristath/chocosentinel/internal/clients"
	"github.com/aristath/chocosentinel/internal/clients/ratelimit"
	"github.com/aristath/chocosentinel/internal/clients/retry"
)

// LagThreshold is the default staleness threshold for realtime weather.
const LagThreshold = 2 * time.Hour

type owmCurrentResponse struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
}

type owmForecastResponse struct {
	List []owmCurrentResponse `json:"list"`
}

// Client fetches realtime weather from OpenWeatherMap's current-weather and
// forecast endpoints. Only FetchCurrent maps to a real OWM free-tier
// endpoint; FetchWindow uses the 5-day/3-hour forecast endpoint filtered to
// the requested bounds, since OWM's free tier does not serve past data.
type Client struct {
	baseURL    string
	apiKey     string
	lat, lon   string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	retryCfg   retry.Config
	log        zerolog.Logger
}

// New creates a weatherrealtime Client.
func New(baseURL, apiKey, lat, lon string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		lat:        lat,
		lon:        lon,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    ratelimit.New(ratelimit.WeatherRealtimeDelay),
		retryCfg:   retry.DefaultConfig(),
		log:        log.With().Str("client", "weatherrealtime").Logger(),
	}
}

// FetchCurrent retrieves the current weather conditions.
func (c *Client) FetchCurrent(ctx context.Context) (clients.RawRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return clients.RawRecord{}, apierr.Wrap(apierr.KindCancelled, "rate limiter wait cancelled", err)
	}

	url := fmt.Sprintf("%s/data/2.5/weather?lat=%s&lon=%s&appid=%s&units=metric", c.baseURL, c.lat, c.lon, c.apiKey)

	var record clients.RawRecord
	err := retry.Do(ctx, c.retryCfg, c.log, func(attempt int) error {
		c.log.Debug().Str("url", c.baseURL+"/data/2.5/weather").Int("attempt", attempt+1).Msg("fetching current realtime weather")

		body, status, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		c.log.Debug().Int("status", status).Int("bytes", len(body)).Msg("realtime weather response")
		if status != http.StatusOK {
			return apierr.New(apierr.KindUpstreamHTTPError, fmt.Sprintf("weather realtime API returned %d", status))
		}

		var parsed owmCurrentResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to decode realtime weather response", err)
		}
		record = toRecord(parsed)
		return nil
	})
	if err != nil {
		return clients.RawRecord{}, err
	}

	if age := time.Since(record.Time); age > LagThreshold {
		c.log.Warn().Dur("age", age).Dur("threshold", LagThreshold).Msg("realtime weather lag exceeds threshold")
	}
	return record, nil
}

// FetchWindow retrieves the forecast points falling within [start,end] from
// the 5-day/3-hour forecast endpoint.
func (c *Client) FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apierr.Wrap(apierr.KindCancelled, "rate limiter wait cancelled", err)
	}

	url := fmt.Sprintf("%s/data/2.5/forecast?lat=%s&lon=%s&appid=%s&units=metric", c.baseURL, c.lat, c.lon, c.apiKey)

	var records []clients.RawRecord
	err := retry.Do(ctx, c.retryCfg, c.log, func(attempt int) error {
		body, status, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return apierr.New(apierr.KindUpstreamHTTPError, fmt.Sprintf("weather realtime API returned %d", status))
		}

		var parsed owmForecastResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to decode realtime forecast response", err)
		}

		records = make([]clients.RawRecord, 0, len(parsed.List))
		for _, item := range parsed.List {
			rec := toRecord(item)
			if (rec.Time.Equal(start) || rec.Time.After(start)) && (rec.Time.Equal(end) || rec.Time.Before(end)) {
				records = append(records, rec)
			}
		}
		return nil
	})
	return records, err
}

func toRecord(r owmCurrentResponse) clients.RawRecord {
	return clients.RawRecord{
		Time: time.Unix(r.Dt, 0).UTC(),
		Fields: map[string]float64{
			"temperature":    r.Main.Temp,
			"humidity":       r.Main.Humidity,
			"pressure":       r.Main.Pressure,
			"wind_speed":     r.Wind.Speed,
			"wind_direction": r.Wind.Deg,
			"precipitation":  r.Rain.OneHour,
		},
	}
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindUpstreamHTTPError, "failed to build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, apierr.Wrap(apierr.KindUpstreamTimeout, "request timed out", err)
		}
		return nil, 0, apierr.Wrap(apierr.KindUpstreamHTTPError, "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindUpstreamParseError, "failed to read response body", err)
	}
	return body, resp.StatusCode, nil
}
