// Package defra fetches vector flood risk layers from the Defra Data
// Services Platform geospatial query API. The API takes a layer identifier
// and a geographic query polygon and answers with a zipped ESRI shapefile.
package defra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/floodhapi/rofsw-extract/internal/config"
	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/geometry"
	"github.com/floodhapi/rofsw-extract/internal/observability"
	"github.com/floodhapi/rofsw-extract/internal/shapefile"
)

const (
	userAgent = "FloodHapi/1.0"

	// minPayloadBytes is the threshold below which a response body counts
	// as an empty dataset rather than a shapefile.
	minPayloadBytes = 100
)

// Client fetches remote vector layers. One instance is shared by all
// concurrent layer fetches of a job; the underlying HTTP client reuses
// connections across requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Defra query API client.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		baseURL:    cfg.EAQueryURL,
		retries:    cfg.FetchRetries,
		retryDelay: cfg.FetchRetryDelay,
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchLayer downloads one source layer restricted to the region's
// geographic query polygon and parses it into grid cells. Network and
// server failures are retried with linear backoff up to the configured
// budget; client errors are terminal on the first attempt. A payload below
// the minimal size threshold is an empty dataset, not an error, and so is
// any payload that cannot be read as a zipped shapefile.
func (c *Client) FetchLayer(ctx context.Context, source string, region *geometry.SearchRegion) (domain.FeatureCollection, error) {
	layerID, ok := domain.SourceLayerIDs[source]
	if !ok {
		return nil, domain.NewError(domain.KindLayerProcessing, fmt.Sprintf("unknown source layer %q", source))
	}

	body, err := json.Marshal(geojson.NewGeometry(region.QueryPolygon()))
	if err != nil {
		return nil, fmt.Errorf("encode query polygon: %w", err)
	}

	start := time.Now()
	data, err := c.download(ctx, source, layerID, body)
	c.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return nil, err
	}

	if len(data) < minPayloadBytes {
		c.logger.Warn("empty payload for layer", "source", source, "bytes", len(data))
		c.metrics.FetchRequests.WithLabelValues(source, "empty").Inc()
		return nil, nil
	}

	fc, err := shapefile.ReadZippedDataset(data)
	if err != nil {
		// A payload that cannot be read as a zipped shapefile counts as an
		// empty dataset. Only network and server failures surface as errors.
		if errors.Is(err, shapefile.ErrNoShapefile) {
			c.logger.Warn("no shapefile in payload", "source", source, "bytes", len(data))
		} else {
			c.logger.Warn("unreadable payload for layer", "source", source, "bytes", len(data), "error", err)
		}
		c.metrics.FetchRequests.WithLabelValues(source, "empty").Inc()
		return nil, nil
	}

	c.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
	c.logger.Info("fetched layer",
		"source", source,
		"cells", len(fc),
		"bytes", len(data),
		"duration", time.Since(start),
	)
	return fc, nil
}

func (c *Client) download(ctx context.Context, source, layerID string, body []byte) ([]byte, error) {
	u := c.baseURL + "?layer=" + url.QueryEscape(layerID)

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			c.metrics.FetchRetries.Inc()
			if err := sleepContext(ctx, time.Duration(attempt-1)*c.retryDelay); err != nil {
				return nil, domain.WrapError(domain.KindTransport, fmt.Sprintf("fetch %s aborted", source), err)
			}
		}

		data, retryable, err := c.attempt(ctx, u, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		c.logger.Warn("layer fetch attempt failed",
			"source", source,
			"attempt", attempt,
			"error", err,
		)
		if !retryable {
			return nil, domain.WrapError(domain.KindTransport, fmt.Sprintf("fetch %s", source), err)
		}
	}
	return nil, domain.WrapError(domain.KindTransport,
		fmt.Sprintf("fetch %s failed after %d attempts", source, c.retries), lastErr)
}

// attempt performs a single query request. retryable reports whether a
// failure may be transient: network errors and 5xx statuses are, 4xx
// statuses are not.
func (c *Client) attempt(ctx context.Context, u string, body []byte) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/zipped-shapefile")
	req.Header.Set("Content-Type", "application/geo+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= 500, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	return data, false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
