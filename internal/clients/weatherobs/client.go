// Package weatherobs implements the AEMET-shaped weather observation
// client (C2): consolidated station observations, a municipality-forecast
// endpoint used by the backfill service's short-horizon strategy, and a
// bearer token with ~6-day validity cached on disk.
package weatherobs

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
	"github.com/aristath/chocosentinel/internal/sidestore"
)

// LagThreshold is the default staleness threshold for weather observations.
// Consolidated AEMET observations routinely publish 24-72h late; the lag
// warning documents this rather than treating it as a fault (§4.2).
const LagThreshold = 2 * time.Hour

// TokenValidity is how long a fetched token is assumed good for before a
// proactive refresh is due.
const TokenValidity = 6 * 24 * time.Hour

const tokenScope = "weatherobs_token"
const tokenKey = "aemet"

type cachedToken struct {
	Token       string    `json:"token"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type aemetRecord struct {
	FechaHora      string  `json:"fecha_hora"`
	Temperatura    float64 `json:"temperatura"`
	HumedadRelativa float64 `json:"humedad_relativa"`
	Presion        float64 `json:"presion"`
	VelocidadViento float64 `json:"velocidad_viento"`
	DireccionViento float64 `json:"direccion_viento"`
	Precipitacion  float64 `json:"precipitacion"`
}

// Client fetches Spanish official weather observations.
type Client struct {
	baseURL    string
	apiKey     string
	stationID  string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	retryCfg   retry.Config
	side       *sidestore.Store
	log        zerolog.Logger
}

// New creates a weatherobs Client. side may be nil to disable token
// persistence (tests, dry runs).
func New(baseURL, apiKey, stationID string, side *sidestore.Store, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		stationID:  stationID,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    ratelimit.New(ratelimit.WeatherObsDelay),
		retryCfg:   retry.DefaultConfig(),
		side:       side,
		log:        log.With().Str("client", "weatherobs").Logger(),
	}
}

// EnsureToken returns a valid bearer token, refreshing and caching it if
// the cached one is absent or older than TokenValidity. AEMET issues a
// fresh token per request to its auth endpoint — "refresh" here means
// obtaining a brand new one, there is no refresh-grant flow.
func (c *Client) EnsureToken(ctx context.Context) (string, error) {
	if c.side != nil {
		var cached cachedToken
		found, err := c.side.GetIfFresh(tokenScope, tokenKey, &cached)
		if err == nil && found && time.Since(cached.RefreshedAt) < TokenValidity {
			return cached.Token, nil
		}
	}
	return c.refreshToken(ctx)
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	var token string
	err := retry.Do(ctx, c.retryCfg, c.log, func(attempt int) error {
		url := fmt.Sprintf("%s/auth/token?api_key=%s", c.baseURL, c.apiKey)
		c.log.Debug().Str("url", c.baseURL+"/auth/token").Int("attempt", attempt+1).Msg("refreshing weather-observation token")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamHTTPError, "failed to build token request", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamHTTPError, "token request failed", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return apierr.New(apierr.KindUpstreamHTTPError, fmt.Sprintf("token endpoint returned %d", resp.StatusCode))
		}

		var parsed struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to decode token response", err)
		}
		token = parsed.Token
		return nil
	})
	if err != nil {
		return "", err
	}

	if c.side != nil {
		if err := c.side.Put(tokenScope, tokenKey, cachedToken{Token: token, RefreshedAt: time.Now()}, TokenValidity+24*time.Hour); err != nil {
			c.log.Warn().Err(err).Msg("failed to cache refreshed weather-observation token")
		}
	}
	c.log.Info().Msg("refreshed weather-observation token")
	return token, nil
}

// FetchWindow retrieves hourly station observations in [start,end].
func (c *Client) FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	token, err := c.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apierr.Wrap(apierr.KindCancelled, "rate limiter wait cancelled", err)
	}

	url := fmt.Sprintf("%s/observacion/convencional/datos/estacion/%s?fechaini=%s&fechafin=%s",
		c.baseURL, c.stationID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))

	var records []clients.RawRecord
	err = retry.Do(ctx, c.retryCfg, c.log, func(attempt int) error {
		c.log.Debug().Str("url", url).Int("attempt", attempt+1).Int("total", c.retryCfg.MaxAttempts).Msg("fetching weather observation window")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamHTTPError, "failed to build request", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamHTTPError, "weather observation request failed", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to read response body", err)
		}
		c.log.Debug().Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("weather observation response")

		if resp.StatusCode != http.StatusOK {
			return apierr.New(apierr.KindUpstreamHTTPError, fmt.Sprintf("weather observation API returned %d", resp.StatusCode))
		}

		var parsed []aemetRecord
		if err := json.Unmarshal(body, &parsed); err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to decode weather observation response", err)
		}

		records = make([]clients.RawRecord, 0, len(parsed))
		for _, v := range parsed {
			ts, err := time.Parse(time.RFC3339, v.FechaHora)
			if err != nil {
				continue
			}
			records = append(records, clients.RawRecord{Time: ts, Fields: map[string]float64{
				"temperature":     v.Temperatura,
				"humidity":        v.HumedadRelativa,
				"pressure":        v.Presion,
				"wind_speed":      v.VelocidadViento,
				"wind_direction":  v.DireccionViento,
				"precipitation":   v.Precipitacion,
			}})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.checkLag(records)
	return records, nil
}

// FetchCurrent retrieves the most recent station observation.
func (c *Client) FetchCurrent(ctx context.Context) (clients.RawRecord, error) {
	now := time.Now().UTC()
	records, err := c.FetchWindow(ctx, now.Add(-6*time.Hour), now)
	if err != nil {
		return clients.RawRecord{}, err
	}
	if len(records) == 0 {
		return clients.RawRecord{}, apierr.New(apierr.KindUpstreamParseError, "no current weather observation available")
	}
	return records[len(records)-1], nil
}

// FetchMunicipalityForecast retrieves the short-horizon hourly forecast for
// the configured municipality, used by the backfill service's near-future
// strategy.
func (c *Client) FetchMunicipalityForecast(ctx context.Context, municipalityCode string) ([]clients.RawRecord, error) {
	token, err := c.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apierr.Wrap(apierr.KindCancelled, "rate limiter wait cancelled", err)
	}

	url := fmt.Sprintf("%s/prediccion/especifica/municipio/horaria/%s", c.baseURL, municipalityCode)

	var records []clients.RawRecord
	err = retry.Do(ctx, c.retryCfg, c.log, func(attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamHTTPError, "failed to build request", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamHTTPError, "municipality forecast request failed", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to read response body", err)
		}
		if resp.StatusCode != http.StatusOK {
			return apierr.New(apierr.KindUpstreamHTTPError, fmt.Sprintf("municipality forecast API returned %d", resp.StatusCode))
		}

		var parsed []aemetRecord
		if err := json.Unmarshal(body, &parsed); err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to decode municipality forecast response", err)
		}
		records = make([]clients.RawRecord, 0, len(parsed))
		for _, v := range parsed {
			ts, err := time.Parse(time.RFC3339, v.FechaHora)
			if err != nil {
				continue
			}
			records = append(records, clients.RawRecord{Time: ts, Fields: map[string]float64{
				"temperature": v.Temperatura,
				"humidity":    v.HumedadRelativa,
			}})
		}
		return nil
	})
	return records, err
}

// FetchClimatology retrieves daily consolidated climatology values for
// [start,end] for the configured station. These publish with a ~3-day lag
// but are the authoritative source for gaps older than 72h (§4.5).
func (c *Client) FetchClimatology(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	token, err := c.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apierr.Wrap(apierr.KindCancelled, "rate limiter wait cancelled", err)
	}

	url := fmt.Sprintf("%s/valores/climatologicos/diarios/datos/fechaini/%s/fechafin/%s/estacion/%s",
		c.baseURL, start.UTC().Format("2006-01-02T15:04:05UTC"), end.UTC().Format("2006-01-02T15:04:05UTC"), c.stationID)

	var records []clients.RawRecord
	err = retry.Do(ctx, c.retryCfg, c.log, func(attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamHTTPError, "failed to build request", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamHTTPError, "climatology request failed", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to read response body", err)
		}
		if resp.StatusCode != http.StatusOK {
			return apierr.New(apierr.KindUpstreamHTTPError, fmt.Sprintf("climatology API returned %d", resp.StatusCode))
		}

		var parsed []aemetRecord
		if err := json.Unmarshal(body, &parsed); err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to decode climatology response", err)
		}
		records = make([]clients.RawRecord, 0, len(parsed))
		for _, v := range parsed {
			ts, err := time.Parse(time.RFC3339, v.FechaHora)
			if err != nil {
				continue
			}
			records = append(records, clients.RawRecord{Time: ts, Fields: map[string]float64{
				"temperature": v.Temperatura,
				"humidity":    v.HumedadRelativa,
			}})
		}
		return nil
	})
	return records, err
}

func (c *Client) checkLag(records []clients.RawRecord) {
	if len(records) == 0 {
		return
	}
	newest := records[0].Time
	for _, r := range records {
		if r.Time.After(newest) {
			newest = r.Time
		}
	}
	if age := time.Since(newest); age > LagThreshold {
		c.log.Warn().Dur("age", age).Dur("threshold", LagThreshold).Msg("weather observation lag exceeds threshold (expected: consolidated data publishes late)")
	}
}
