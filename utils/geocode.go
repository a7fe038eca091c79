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

	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/metrics"
	"github.com/Perceptus-Labs/roomscout/models"
)

// Geocoder resolves free-form addresses through a Nominatim search endpoint.
type Geocoder struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client

	cache   *otter.Cache[string, models.Location]
	breaker *gobreaker.CircuitBreaker[*models.Location]
}

// Nominatim encodes coordinates as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func NewGeocoder(cfg config.WeatherConfig) *Geocoder {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Geocoder{
		BaseURL:   strings.TrimRight(cfg.GeocoderURL, "/"),
		UserAgent: cfg.UserAgent,
		Client:    &http.Client{Timeout: cfg.Timeout},
		cache: otter.Must(&otter.Options[string, models.Location]{
			MaximumSize:      10_000,
			ExpiryCalculator: otter.ExpiryWriting[string, models.Location](ttl),
		}),
		breaker: newBreaker[*models.Location]("geocoder"),
	}
}

// Geocode returns the best match for address, or nil when nothing matched.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*models.Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	key := strings.ToLower(address)

	if cached, ok := g.cache.GetIfPresent(key); ok {
		metrics.RecordCacheLookup("geocoder", true)
		loc := cached
		return &loc, nil
	}
	metrics.RecordCacheLookup("geocoder", false)

	start := time.Now()
	loc, err := g.breaker.Execute(func() (*models.Location, error) {
		return g.search(ctx, address)
	})
	metrics.RecordExternalCall("geocoder", err, time.Since(start))
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	g.cache.Set(key, *loc)
	return loc, nil
}

func (g *Geocoder) search(ctx context.Context, address string) (*models.Location, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var places []nominatimPlace
	if err := json.Unmarshal(bodyBytes, &places); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}
	if len(places) == 0 {
		return nil, errNotFound
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", places[0].Lon, err)
	}
	return &models.Location{Lat: lat, Lon: lon, Address: places[0].DisplayName}, nil
}
