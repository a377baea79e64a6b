// Package postcodesio implements domain.Geocoder against the postcodes.io
// lookup API, which resolves UK postcodes to coordinates in both WGS84 and
// British National Grid.
package postcodesio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/floodhapi/rofsw-extract/internal/domain"
)

// Client implements domain.Geocoder using the postcodes.io lookup API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a postcodes.io geocoding client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Geocode resolves a UK postcode to a Location. An unknown postcode is an
// input_not_found error; connectivity and decoding problems are transport
// errors.
func (c *Client) Geocode(ctx context.Context, postcode string) (domain.Location, error) {
	formatted := domain.NormalizePostcode(postcode)

	u := c.baseURL + "/" + url.PathEscape(formatted)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Location{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Location{}, domain.WrapError(domain.KindTransport, "postcode lookup request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Location{}, notFoundError(formatted)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Location{}, domain.NewError(domain.KindTransport,
			fmt.Sprintf("postcode lookup: status %d", resp.StatusCode))
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Location{}, domain.WrapError(domain.KindTransport, "decode postcode lookup response", err)
	}
	if payload.Status != http.StatusOK || payload.Result == nil {
		return domain.Location{}, notFoundError(formatted)
	}

	r := payload.Result
	c.logger.Debug("geocoded postcode",
		"postcode", r.Postcode,
		"easting", r.Eastings,
		"northing", r.Northings,
	)
	return domain.Location{
		Postcode:  r.Postcode,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Easting:   r.Eastings,
		Northing:  r.Northings,
		District:  r.AdminDistrict,
	}, nil
}

func notFoundError(formatted string) error {
	return domain.NewError(domain.KindInputNotFound,
		fmt.Sprintf("Postcode '%s' not found. Please check and try again.", formatted))
}

// postcodes.io API response types.

type response struct {
	Status int     `json:"status"`
	Result *result `json:"result"`
}

type result struct {
	Postcode      string  `json:"postcode"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Eastings      float64 `json:"eastings"`
	Northings     float64 `json:"northings"`
	AdminDistrict string  `json:"admin_district"`
}
