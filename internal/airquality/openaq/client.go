// Package openaq provides a client for the OpenAQ v3 API.
package openaq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqtracker/aqtracker/internal/airquality"
	"github.com/aqtracker/aqtracker/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the OpenAQ v3 API.
	DefaultBaseURL = "https://api.openaq.org/v3"

	// ProviderName identifies this provider.
	ProviderName = "openaq"

	// DefaultPageSize is the number of locations requested per page.
	DefaultPageSize = 100
)

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// PageSize caps locations per discovery page (default: 100).
	PageSize int

	// Registry receives success and failure reports when set. A default
	// resilient client is registered under ProviderName.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an OpenAQ API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	pageSize   int
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		rc := resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
		if cfg.Registry != nil {
			cfg.Registry.Register(ProviderName, rc)
		}
		httpClient = rc
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		pageSize:   pageSize,
		registry:   cfg.Registry,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// API response types (from OpenAQ v3).

type locationsResponse struct {
	Meta    pageMeta   `json:"meta"`
	Results []location `json:"results"`
}

type pageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type location struct {
	ID           int64        `json:"id"`
	Name         *string      `json:"name"`
	Locality     *string      `json:"locality"`
	Country      *country     `json:"country"`
	Coordinates  *coordinates `json:"coordinates"`
	Sensors      []sensor     `json:"sensors"`
	DatetimeLast *datetime    `json:"datetimeLast"`
}

type country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type sensor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Parameter parameter `json:"parameter"`
}

type parameter struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Units string `json:"units"`
}

type datetime struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

type latestResponse struct {
	Results []latestResult `json:"results"`
}

type latestResult struct {
	SensorsID   int64        `json:"sensorsId"`
	LocationsID int64        `json:"locationsId"`
	Value       *float64     `json:"value"`
	Datetime    *datetime    `json:"datetime"`
	Coordinates *coordinates `json:"coordinates"`
}

// ListLocationIDs returns up to limit distinct location ids, paging as
// needed. Paging stops at a short page or at a page that brings no new id.
// Any failure is logged and yields an empty slice.
func (c *Client) ListLocationIDs(ctx context.Context, limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	pageSize := min(limit, c.pageSize)
	ids := make([]string, 0, limit)
	seen := make(map[int64]struct{}, limit)

	for page := 1; len(ids) < limit; page++ {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("page", strconv.Itoa(page))

		var result locationsResponse
		if err := c.getJSON(ctx, "/locations", query, &result); err != nil {
			c.logger.Warn().Err(err).Int("page", page).Msg("failed to list locations")
			return []string{}
		}

		added := 0
		for _, loc := range result.Results {
			if loc.ID == 0 {
				continue
			}
			if _, dup := seen[loc.ID]; dup {
				continue
			}
			seen[loc.ID] = struct{}{}
			ids = append(ids, strconv.FormatInt(loc.ID, 10))
			added++
			if len(ids) == limit {
				break
			}
		}

		if len(result.Results) < pageSize || added == 0 {
			break
		}
	}

	c.logger.Debug().Int("locations", len(ids)).Msg("listed locations")
	return ids
}

// FetchLatestReadings returns the latest value of every sensor at a location.
func (c *Client) FetchLatestReadings(ctx context.Context, locationID string) ([]airquality.SensorReading, error) {
	var result latestResponse
	if err := c.getJSON(ctx, "/locations/"+url.PathEscape(locationID)+"/latest", nil, &result); err != nil {
		return nil, fmt.Errorf("fetch latest for location %s: %w", locationID, err)
	}

	readings := make([]airquality.SensorReading, 0, len(result.Results))
	for _, r := range result.Results {
		if r.SensorsID == 0 {
			continue
		}
		readings = append(readings, airquality.SensorReading{
			SensorID: r.SensorsID,
			Value:    r.Value,
		})
	}

	return readings, nil
}

// FetchLocationMetadata returns the names, coordinates and sensors of a location.
func (c *Client) FetchLocationMetadata(ctx context.Context, locationID string) (*airquality.LocationMetadata, error) {
	var result locationsResponse
	if err := c.getJSON(ctx, "/locations/"+url.PathEscape(locationID), nil, &result); err != nil {
		return nil, fmt.Errorf("fetch location %s: %w", locationID, err)
	}
	if len(result.Results) == 0 {
		return nil, fmt.Errorf("location %s: %w", locationID, airquality.ErrLocationNotFound)
	}

	return c.toMetadata(&result.Results[0]), nil
}

// toMetadata converts API location data to domain LocationMetadata.
func (c *Client) toMetadata(loc *location) *airquality.LocationMetadata {
	meta := &airquality.LocationMetadata{
		CityName:         cityName(loc),
		CountryName:      airquality.Unknown,
		SensorParameters: make(map[int64]string, len(loc.Sensors)),
	}

	if loc.Country != nil && strings.TrimSpace(loc.Country.Name) != "" {
		meta.CountryName = strings.TrimSpace(loc.Country.Name)
	}
	if loc.Coordinates != nil {
		meta.Coordinates = &airquality.Coordinates{
			Latitude:  loc.Coordinates.Latitude,
			Longitude: loc.Coordinates.Longitude,
		}
	}
	for _, s := range loc.Sensors {
		if s.ID != 0 && s.Parameter.Name != "" {
			meta.SensorParameters[s.ID] = s.Parameter.Name
		}
	}
	if loc.DatetimeLast != nil && loc.DatetimeLast.UTC != "" {
		ts, err := time.Parse(time.RFC3339, loc.DatetimeLast.UTC)
		if err != nil {
			c.logger.Debug().Err(err).Int64("location_id", loc.ID).Msg("unparseable datetimeLast")
		} else {
			meta.LastUpdated = ts.UTC()
		}
	}

	return meta
}

// cityName prefers the locality, then the location name.
func cityName(loc *location) string {
	for _, candidate := range []*string{loc.Locality, loc.Name} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			return strings.TrimSpace(*candidate)
		}
	}
	return airquality.Unknown
}

// getJSON performs a GET request and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %w", airquality.ErrUpstreamUnavailable, err)
		c.recordFailure(err)
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.recordSuccess()
		return airquality.ErrLocationNotFound
	case resp.StatusCode != http.StatusOK:
		err := fmt.Errorf("%w: unexpected status %d from %s", airquality.ErrUpstreamUnavailable, resp.StatusCode, path)
		c.recordFailure(err)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		err = fmt.Errorf("%w: decode %s response: %w", airquality.ErrUpstreamMalformed, path, err)
		c.recordFailure(err)
		return err
	}

	c.recordSuccess()
	return nil
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(ProviderName)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil && !errors.Is(err, context.Canceled) {
		c.registry.RecordFailure(ProviderName, err)
	}
}

// Ensure Client implements airquality.Upstream.
var _ airquality.Upstream = (*Client)(nil)
