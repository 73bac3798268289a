// Package weather talks to an OpenWeatherMap-compatible API: current
// conditions for a fixed geolocation, plus one-shot zip geocoding.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/blissend/sensor/internal/logger"
	"github.com/blissend/sensor/internal/models"
)

// Client errors
var (
	ErrBadStatus    = errors.New("weather source returned non-success status")
	ErrMissingField = errors.New("weather response is missing a required field")
)

const requestTimeout = 5 * time.Second

// Client is a reusable weather source client. Build it once; the
// underlying http.Client pools TCP connections across polls.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a Client for the given API base URL and key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// currentResponse mirrors the fields of /data/2.5/weather that we use.
// Temp is a pointer so a missing field is detectable, not silently zero.
type currentResponse struct {
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Name string `json:"name"`
}

// Current fetches the current temperature at (lat, lon) in imperial
// units and returns it as a Sample.
func (c *Client) Current(ctx context.Context, lat, lon float64) (models.Sample, error) {
	log := logger.WithComponent("weather")

	u := fmt.Sprintf("%s/data/2.5/weather?lat=%v&lon=%v&units=imperial&appid=%s",
		c.baseURL, lat, lon, c.apiKey)

	body, err := c.get(ctx, u)
	if err != nil {
		return models.Sample{}, err
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Sample{}, fmt.Errorf("decode weather response: %w", err)
	}
	if resp.Main.Temp == nil {
		return models.Sample{}, fmt.Errorf("%w: main.temp", ErrMissingField)
	}
	if resp.Name == "" {
		return models.Sample{}, fmt.Errorf("%w: name", ErrMissingField)
	}

	log.Debug().
		Float64("temp", *resp.Main.Temp).
		Str("name", resp.Name).
		Msg("weather fetched")

	return models.Sample{
		Value:      *resp.Main.Temp,
		Label:      resp.Name,
		ObservedAt: time.Now(),
	}, nil
}

// geocodeResponse mirrors /geo/1.0/zip.
type geocodeResponse struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// GeocodeZip resolves a US zip code to coordinates.
func (c *Client) GeocodeZip(ctx context.Context, zip string) (lat, lon float64, err error) {
	u := fmt.Sprintf("%s/geo/1.0/zip?zip=%s,US&appid=%s",
		c.baseURL, url.QueryEscape(zip), c.apiKey)

	body, err := c.get(ctx, u)
	if err != nil {
		return 0, 0, err
	}

	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, fmt.Errorf("decode geocode response: %w", err)
	}
	if resp.Lat == nil || resp.Lon == nil {
		return 0, 0, fmt.Errorf("%w: lat/lon", ErrMissingField)
	}

	log := logger.WithComponent("weather")
	log.Debug().
		Str("zip", zip).
		Float64("lat", *resp.Lat).
		Float64("lon", *resp.Lon).
		Msg("zip geocoded")

	return *resp.Lat, *resp.Lon, nil
}

// get issues one GET and returns the body on a 200.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather source: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrBadStatus, resp.StatusCode, string(body))
	}
	return body, nil
}
