package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/maypok86/otter/v2"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/metrics"
	"github.com/Perceptus-Labs/roomscout/models"
)

var ErrNoAPIKey = errors.New("weather API key not configured")

// WeatherClient reads current conditions from OpenWeatherMap in metric units.
type WeatherClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client

	cache   *otter.Cache[string, models.Weather]
	breaker *gobreaker.CircuitBreaker[*models.Weather]
}

type owmResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func NewWeatherClient(cfg config.WeatherConfig) *WeatherClient {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &WeatherClient{
		APIKey:  cfg.APIKey,
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Client:  &http.Client{Timeout: cfg.Timeout},
		cache: otter.Must(&otter.Options[string, models.Weather]{
			MaximumSize:      10_000,
			ExpiryCalculator: otter.ExpiryWriting[string, models.Weather](ttl),
		}),
		breaker: newBreaker[*models.Weather]("weather"),
	}
}

// ByCoords returns current weather at a point. Coordinates are rounded to
// two decimals for caching.
func (c *WeatherClient) ByCoords(ctx context.Context, lat, lon float64) (*models.Weather, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return c.lookup(ctx, fmt.Sprintf("%.2f,%.2f", lat, lon), params)
}

func (c *WeatherClient) ByCity(ctx context.Context, city string) (*models.Weather, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("city is required")
	}
	params := url.Values{}
	params.Set("q", city)
	return c.lookup(ctx, "city:"+strings.ToLower(city), params)
}

func (c *WeatherClient) lookup(ctx context.Context, key string, params url.Values) (*models.Weather, error) {
	if c.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	if cached, ok := c.cache.GetIfPresent(key); ok {
		metrics.RecordCacheLookup("weather", true)
		w := cached
		return &w, nil
	}
	metrics.RecordCacheLookup("weather", false)

	start := time.Now()
	weather, err := c.breaker.Execute(func() (*models.Weather, error) {
		return c.fetch(ctx, params)
	})
	metrics.RecordExternalCall("weather", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, *weather)
	return weather, nil
}

func (c *WeatherClient) fetch(ctx context.Context, params url.Values) (*models.Weather, error) {
	params.Set("appid", c.APIKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/weather?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("weather location: %w", errNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var data owmResponse
	if err := json.Unmarshal(bodyBytes, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}
	if len(data.Weather) == 0 {
		return nil, fmt.Errorf("weather API response has no conditions")
	}

	weather := &models.Weather{
		Temperature: data.Main.Temp,
		Conditions:  strings.ToLower(data.Weather[0].Main),
		Humidity:    data.Main.Humidity,
		WindSpeed:   data.Wind.Speed,
	}
	zap.L().Debug("Weather fetched",
		zap.Float64("temperature", weather.Temperature),
		zap.String("conditions", weather.Conditions))
	return weather, nil
}
