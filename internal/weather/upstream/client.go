// Package upstream implements weather.Source against the weather gateway's
// two HTTP endpoints.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/skycache/skycache/internal/provider/resilience"
	"github.com/skycache/skycache/internal/weather"
)

const (
	// ProviderName identifies this source.
	ProviderName = "weather-gateway"

	// DefaultBaseURL is the weather gateway base URL.
	DefaultBaseURL = "https://2hcwrualh8.execute-api.us-east-1.amazonaws.com/prod"

	opObservation = "get weather"
	opForecast    = "get overview"
)

// ClientConfig holds configuration for the gateway client.
type ClientConfig struct {
	// BaseURL is the gateway base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// WeatherHTTP is the client for the observation endpoint (optional).
	// If nil, a resilient client named "<provider>-weather" is created.
	WeatherHTTP *resilience.Client

	// OverviewHTTP is the client for the forecast endpoint (optional).
	// If nil, a resilient client named "<provider>-overview" is created.
	OverviewHTTP *resilience.Client

	// Registry receives the default clients (optional).
	Registry *resilience.Registry

	// Timeout is the per-request timeout of the default clients.
	Timeout time.Duration

	// Metrics records request durations (optional).
	Metrics *Metrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches observations and forecast overviews from the gateway.
type Client struct {
	baseURL  string
	weather  *resilience.Client
	overview *resilience.Client
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewClient creates a new gateway client. The two endpoints get separate
// circuit breakers so a failing forecast endpoint cannot trip the primary one.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	newHTTP := func(suffix string) *resilience.Client {
		rc := resilience.DefaultClientConfig(ProviderName + "-" + suffix)
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		return resilience.NewClient(rc)
	}

	weatherHTTP := cfg.WeatherHTTP
	if weatherHTTP == nil {
		weatherHTTP = newHTTP("weather")
	}
	overviewHTTP := cfg.OverviewHTTP
	if overviewHTTP == nil {
		overviewHTTP = newHTTP("overview")
	}

	return &Client{
		baseURL:  baseURL,
		weather:  weatherHTTP,
		overview: overviewHTTP,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchObservation fetches the current observation for a location.
func (c *Client) FetchObservation(ctx context.Context, coord weather.Coordinate) (*weather.RawObservation, error) {
	start := time.Now()

	var resp weatherResponse
	err := c.get(ctx, c.weather, "/getWeather", coord, &resp)
	if err == nil {
		err = resp.validate()
	}
	c.metrics.RecordRequest(ProviderName, opObservation, time.Since(start), err)
	if err != nil {
		return nil, &weather.UpstreamError{Op: opObservation, Err: err}
	}

	return resp.toObservation(), nil
}

// FetchForecast fetches the forecast overview for a location. An overview
// without entries yields weather.ErrNoForecast.
func (c *Client) FetchForecast(ctx context.Context, coord weather.Coordinate) (*weather.ForecastSummary, error) {
	start := time.Now()

	var resp overviewResponse
	err := c.get(ctx, c.overview, "/getOverview", coord, &resp)
	c.metrics.RecordRequest(ProviderName, opForecast, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opForecast, err)
	}

	summary := resp.toForecast()
	if summary == nil {
		c.logger.Debug().
			Int("entries", len(resp.List)).
			Msg("overview response has no usable forecast entry")
		return nil, weather.ErrNoForecast
	}
	return summary, nil
}

func (c *Client) get(ctx context.Context, hc *resilience.Client, path string, coord weather.Coordinate, out any) error {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	reqURL := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Gateway response structures.

type weatherResponse struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity float64  `json:"humidity"`
	} `json:"main"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}

func (r *weatherResponse) validate() error {
	if r.Main == nil || r.Main.Temp == nil {
		return fmt.Errorf("decoding response: missing main.temp")
	}
	if *r.Main.Temp < 0 {
		return fmt.Errorf("decoding response: negative kelvin temperature %v", *r.Main.Temp)
	}
	return nil
}

func (r *weatherResponse) toObservation() *weather.RawObservation {
	return &weather.RawObservation{
		TemperatureK: *r.Main.Temp,
		Humidity:     r.Main.Humidity,
		ObservedAt:   time.Unix(r.Dt, 0),
		Place:        r.Name,
	}
}

type overviewResponse struct {
	List []struct {
		Dt      int64 `json:"dt"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	} `json:"list"`
}

// toForecast takes the first entry of the overview, or nil when there is none.
func (r *overviewResponse) toForecast() *weather.ForecastSummary {
	if len(r.List) == 0 || len(r.List[0].Weather) == 0 {
		return nil
	}

	first := r.List[0]
	return &weather.ForecastSummary{
		Description: first.Weather[0].Description,
		Icon:        first.Weather[0].Icon,
		IconURL:     weather.IconURL(first.Weather[0].Icon),
		ForecastAt:  time.Unix(first.Dt, 0),
	}
}
