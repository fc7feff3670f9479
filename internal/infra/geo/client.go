// Package geo proxies forward and reverse geocoding to a Nominatim-style
// third-party service. These calls are what the rate limiter guards.
package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"encoding/json"
)

// Place is the subset of the provider's result the frontend consumes.
type Place struct {
	DisplayName string  `json:"display_name"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Class       string  `json:"class,omitempty"`
	Type        string  `json:"type,omitempty"`
	Importance  float64 `json:"importance,omitempty"`
}

type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	// UserAgent identifies this deployment to the provider, which requires
	// a contact-bearing agent string for fair-use tracking.
	UserAgent string
	Logger    *slog.Logger
}

// Forward resolves a free-text query to candidate places.
func (c *Client) Forward(ctx context.Context, query string, limit int) ([]Place, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", strconv.Itoa(limit))

	var places []Place
	if err := c.get(ctx, "/search", params, &places); err != nil {
		return nil, err
	}
	return places, nil
}

// Reverse resolves coordinates to the nearest place.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "jsonv2")

	var place Place
	if err := c.get(ctx, "/reverse", params, &place); err != nil {
		return Place{}, err
	}
	return place, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c == nil || c.HTTPClient == nil {
		return errors.New("geo: http client not configured")
	}
	if c.BaseURL == "" {
		return errors.New("geo: base url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("geo: build request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("geo: request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		if c.Logger != nil {
			c.Logger.Warn("geocoding provider returned unexpected status", "status", resp.StatusCode, "path", path)
		}
		return fmt.Errorf("geo: provider status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geo: decode response: %w", err)
	}
	return nil
}
