// Package fetch implements the remote-acquisition collaborators: a resilient
// HTTP byte fetcher with retries and a circuit breaker, archive extraction,
// and an optional byte cache in front of the network.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
	"github.com/couchcryptid/flightwx-etl/internal/flights"
	"github.com/couchcryptid/flightwx-etl/internal/observability"
	"github.com/sony/gobreaker"
)

// Cache is the byte-cache collaborator. Get misses return ok=false; Put
// failures are the cache's problem, not the fetch's.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Config holds the endpoints and resilience settings for the fetch client.
type Config struct {
	ISDLiteBaseURL    string
	StationHistoryURL string
	BTSBaseURL        string
	RegistryURL       string

	Timeout time.Duration
	Retries int
}

// Client satisfies the StationSource, VariantFetcher, SnapshotFetcher, and
// station-history fetch contracts over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      Cache
	logger     *slog.Logger
	metrics    *observability.Metrics
}

var errServerError = errors.New("server error")

// New creates a fetch client. cache may be nil to disable caching.
func New(cfg Config, cache Cache, logger *slog.Logger, metrics *observability.Metrics) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "remote-fetch",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Timeout: 30 * time.Second,
	})
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchStationHistory retrieves the station-directory CSV.
func (c *Client) FetchStationHistory(ctx context.Context) (io.ReadCloser, error) {
	body, err := c.fetchBytes(ctx, "stations", c.cfg.StationHistoryURL)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// FetchStationYear retrieves and decompresses one annual ISD-Lite station
// file. stationID is the "USAF-WBAN" pair.
func (c *Client) FetchStationYear(ctx context.Context, stationID string, year int) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/%d/%s-%d.gz", strings.TrimSuffix(c.cfg.ISDLiteBaseURL, "/"), year, stationID, year)
	body, err := c.fetchBytes(ctx, "weather", url)
	if err != nil {
		return nil, err
	}
	return extractGzip(body)
}

// BTS prezip archive names per extract variant.
const (
	reportingZipPattern = "On_Time_Reporting_Carrier_On_Time_Performance_(1987_present)_%d_%d.zip"
	marketingZipPattern = "On_Time_Marketing_Carrier_On_Time_Performance_Beginning_January_2018_%d_%d.zip"
)

// FetchFlightMonth retrieves one monthly on-time archive and extracts its
// CSV member.
func (c *Client) FetchFlightMonth(ctx context.Context, variant string, year int, month time.Month) (io.ReadCloser, error) {
	var pattern string
	switch variant {
	case flights.VariantReporting:
		pattern = reportingZipPattern
	case flights.VariantMarketing:
		pattern = marketingZipPattern
	default:
		return nil, fmt.Errorf("unknown flight variant %q", variant)
	}

	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.cfg.BTSBaseURL, "/"), fmt.Sprintf(pattern, year, int(month)))
	body, err := c.fetchBytes(ctx, "flights", url)
	if err != nil {
		return nil, err
	}
	return extractZipCSV(body)
}

// FetchRegistry retrieves the aircraft registry snapshot, extracting the
// CSV member when the source is zipped.
func (c *Client) FetchRegistry(ctx context.Context) (io.ReadCloser, error) {
	body, err := c.fetchBytes(ctx, "registry", c.cfg.RegistryURL)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(c.cfg.RegistryURL), ".zip") {
		return extractZipCSV(body)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// fetchBytes performs a GET through the cache, the retry loop, and the
// circuit breaker. 404 maps to domain.ErrNotFound and is never retried;
// server errors retry with doubling backoff up to the configured attempts.
func (c *Client) fetchBytes(ctx context.Context, source, url string) ([]byte, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(url); ok {
			c.metrics.FetchCache.WithLabelValues("hit").Inc()
			return body, nil
		}
		c.metrics.FetchCache.WithLabelValues("miss").Inc()
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			if !sleepWithContext(ctx, backoff) {
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		body, err := c.doFetch(ctx, url)
		if err == nil {
			c.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
			if c.cache != nil {
				if err := c.cache.Put(url, body); err != nil {
					c.logger.Warn("cache put failed", "url", url, "error", err)
				}
			}
			return body, nil
		}

		if errors.Is(err, domain.ErrNotFound) {
			c.metrics.FetchRequests.WithLabelValues(source, "not_found").Inc()
			return nil, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
			return nil, fmt.Errorf("circuit open for %s: %w", url, err)
		}

		lastErr = err
		c.logger.Warn("fetch attempt failed", "source", source, "url", url, "attempt", attempt+1, "error", err)
	}

	c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", url, c.cfg.Retries+1, lastErr)
}

func (c *Client) doFetch(ctx context.Context, url string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			// Not a source fault: the breaker should not count missing
			// station files against the endpoint.
			return nil, nil
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%s: %w", url, domain.ErrNotFound)
	}
	return result.([]byte), nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
