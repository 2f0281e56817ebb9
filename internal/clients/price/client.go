// Package price implements the REE/PVPC-shaped wholesale electricity price
// client (C2).
package price

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

// LagThreshold is the default staleness threshold past which FetchWindow
// logs a lag warning instead of an error (§4.2).
const LagThreshold = 6 * time.Hour

type esiosResponse struct {
	Indicator struct {
		Values []struct {
			Datetime string  `json:"datetime"`
			Value    float64 `json:"value"`
		} `json:"values"`
	} `json:"indicator"`
}

// Client fetches Spanish wholesale electricity price data.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	retryCfg   retry.Config
	log        zerolog.Logger
}

// New creates a price Client against baseURL (PRICE_API_BASE).
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    ratelimit.New(ratelimit.PriceDelay),
		retryCfg:   retry.DefaultConfig(),
		log:        log.With().Str("client", "price").Logger(),
	}
}

// FetchWindow retrieves hourly prices in [start,end].
func (c *Client) FetchWindow(ctx context.Context, start, end time.Time) ([]clients.RawRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apierr.Wrap(apierr.KindCancelled, "rate limiter wait cancelled", err)
	}

	url := fmt.Sprintf("%s/indicators/1001?start_date=%s&end_date=%s",
		c.baseURL, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))

	var records []clients.RawRecord
	attempt := 0
	err := retry.Do(ctx, c.retryCfg, c.log, func(a int) error {
		attempt = a + 1
		c.log.Debug().Str("url", url).Int("attempt", attempt).Int("total", c.retryCfg.MaxAttempts).Msg("fetching price window")

		resp, payloadSize, err := c.doGet(ctx, url)
		if err != nil {
			return err
		}
		c.log.Debug().Int("status", resp.status).Int("bytes", payloadSize).Msg("price window response")

		if resp.status != http.StatusOK {
			return apierr.New(apierr.KindUpstreamHTTPError, fmt.Sprintf("price API returned %d", resp.status)).
				WithDetails(map[string]interface{}{"status": resp.status})
		}

		var parsed esiosResponse
		if err := json.Unmarshal(resp.body, &parsed); err != nil {
			return apierr.Wrap(apierr.KindUpstreamParseError, "failed to decode price response", err)
		}

		records = make([]clients.RawRecord, 0, len(parsed.Indicator.Values))
		for _, v := range parsed.Indicator.Values {
			ts, err := time.Parse(time.RFC3339, v.Datetime)
			if err != nil {
				continue
			}
			records = append(records, clients.RawRecord{Time: ts, Fields: map[string]float64{"price_eur_mwh": v.Value}})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.checkLag(records)
	return records, nil
}

// FetchCurrent retrieves the most recent hourly price point.
func (c *Client) FetchCurrent(ctx context.Context) (clients.RawRecord, error) {
	now := time.Now().UTC()
	records, err := c.FetchWindow(ctx, now.Add(-2*time.Hour), now)
	if err != nil {
		return clients.RawRecord{}, err
	}
	if len(records) == 0 {
		return clients.RawRecord{}, apierr.New(apierr.KindUpstreamParseError, "no current price record available")
	}
	return records[len(records)-1], nil
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
		c.log.Warn().Dur("age", age).Dur("threshold", LagThreshold).Msg("price data lag exceeds threshold")
	}
}

type rawResponse struct {
	status int
	body   []byte
}

func (c *Client) doGet(ctx context.Context, url string) (rawResponse, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rawResponse{}, 0, apierr.Wrap(apierr.KindUpstreamHTTPError, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return rawResponse{}, 0, apierr.Wrap(apierr.KindUpstreamTimeout, "price request timed out", err)
		}
		return rawResponse{}, 0, apierr.Wrap(apierr.KindUpstreamHTTPError, "price request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rawResponse{}, 0, apierr.Wrap(apierr.KindUpstreamParseError, "failed to read price response body", err)
	}
	return rawResponse{status: resp.StatusCode, body: body}, len(body), nil
}
