package handlers

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/metrics"
	"github.com/Perceptus-Labs/roomscout/models"
	"github.com/Perceptus-Labs/roomscout/recommender"
	"github.com/Perceptus-Labs/roomscout/utils"
)

const maxRequestBody = 64 << 10

var validate = validator.New()

type WeatherLookup interface {
	ByCoords(ctx context.Context, lat, lon float64) (*models.Weather, error)
	ByCity(ctx context.Context, city string) (*models.Weather, error)
}

type AddressLookup interface {
	Geocode(ctx context.Context, address string) (*models.Location, error)
}

// LocationInput carries optional coordinates; an address alone is geocoded.
type LocationInput struct {
	Lat     *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lon     *float64 `json:"lon" validate:"omitempty,min=-180,max=180"`
	Address string   `json:"address" validate:"max=256"`
}

type RecommendationRequest struct {
	Preferences models.Preferences `json:"preferences"`
	Location    LocationInput      `json:"location"`
}

type RecommendationResponse struct {
	Status          string                  `json:"status"`
	Recommendations []models.Recommendation `json:"recommendations"`
}

type WeatherResponse struct {
	Status  string          `json:"status"`
	Weather *models.Weather `json:"weather"`
}

type LocationResponse struct {
	Status   string           `json:"status"`
	Location *models.Location `json:"location"`
}

// RecommenderServer serves the travel recommendation API.
type RecommenderServer struct {
	recommender *recommender.Recommender
	weather     WeatherLookup
	geocoder    AddressLookup
	cfg         config.RecommenderConfig
}

func NewRecommenderServer(rec *recommender.Recommender, weather WeatherLookup, geocoder AddressLookup, cfg config.RecommenderConfig) *RecommenderServer {
	return &RecommenderServer{
		recommender: rec,
		weather:     weather,
		geocoder:    geocoder,
		cfg:         cfg,
	}
}

func (s *RecommenderServer) Routes(allowedOrigins []string) http.Handler {
	r := newRouter(allowedOrigins)

	r.Get("/healthz", HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))
		r.Post("/recommendations", s.HandleRecommendations)
		r.Get("/weather", s.HandleWeather)
		r.Get("/location", s.HandleLocation)
	})
	return r
}

func (s *RecommenderServer) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	req.Preferences.PreferredType = strings.TrimSpace(req.Preferences.PreferredType)

	weather := s.lookupWeather(r.Context(), req.Location)
	if weather != nil {
		metrics.Recommendations.WithLabelValues("present").Inc()
	} else {
		metrics.Recommendations.WithLabelValues("absent").Inc()
	}

	writeJSON(w, http.StatusOK, RecommendationResponse{
		Status:          statusSuccess,
		Recommendations: s.recommender.Recommend(req.Preferences, weather),
	})
}

// lookupWeather resolves the request location to current weather. Any
// failure yields nil so scoring falls back to neutral.
func (s *RecommenderServer) lookupWeather(ctx context.Context, loc LocationInput) *models.Weather {
	if s.weather == nil {
		return nil
	}

	var lat, lon float64
	switch {
	case loc.Lat != nil && loc.Lon != nil:
		lat, lon = *loc.Lat, *loc.Lon
	case strings.TrimSpace(loc.Address) != "" && s.geocoder != nil:
		place, err := s.geocoder.Geocode(ctx, loc.Address)
		if err != nil {
			zap.L().Warn("Failed to geocode address", zap.Error(err), zap.String("address", loc.Address))
			return nil
		}
		if place == nil {
			return nil
		}
		lat, lon = place.Lat, place.Lon
	default:
		return nil
	}

	return s.weatherAt(ctx, lat, lon)
}

func (s *RecommenderServer) weatherAt(ctx context.Context, lat, lon float64) *models.Weather {
	weather, err := s.weather.ByCoords(ctx, lat, lon)
	return s.checkWeather(weather, err, zap.Float64("lat", lat), zap.Float64("lon", lon))
}

// checkWeather logs a failed lookup and turns it into nil.
func (s *RecommenderServer) checkWeather(weather *models.Weather, err error, fields ...zap.Field) *models.Weather {
	switch {
	case errors.Is(err, utils.ErrNoAPIKey):
		zap.L().Debug("Weather lookup skipped, no API key")
		return nil
	case err != nil:
		zap.L().Warn("Failed to fetch weather", append(fields, zap.Error(err))...)
		return nil
	}
	return weather
}

// HandleWeather looks up current weather by lat/lon, or by city name when
// no coordinates are given.
func (s *RecommenderServer) HandleWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if city := strings.TrimSpace(q.Get("city")); city != "" && q.Get("lat") == "" && q.Get("lon") == "" {
		if len(city) > 256 {
			writeError(w, http.StatusBadRequest, "City name is too long")
			return
		}
		var weather *models.Weather
		if s.weather != nil {
			found, err := s.weather.ByCity(r.Context(), city)
			weather = s.checkWeather(found, err, zap.String("city", city))
		}
		writeJSON(w, http.StatusOK, WeatherResponse{Status: statusSuccess, Weather: weather})
		return
	}

	lat, lon, problem := parseCoords(q)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	var weather *models.Weather
	if s.weather != nil {
		weather = s.weatherAt(r.Context(), lat, lon)
	}
	writeJSON(w, http.StatusOK, WeatherResponse{Status: statusSuccess, Weather: weather})
}

// parseCoords applies the same bounds as LocationInput. A non-empty
// problem is the client-facing reason for rejecting the query.
func parseCoords(q url.Values) (lat, lon float64, problem string) {
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, "Latitude and longitude are required"
	}
	if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return 0, 0, "Latitude must be within ±90 and longitude within ±180"
	}
	return lat, lon, ""
}

func (s *RecommenderServer) HandleLocation(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeError(w, http.StatusBadRequest, "Address is required")
		return
	}
	if s.geocoder == nil {
		writeError(w, http.StatusNotFound, "Location not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	place, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		zap.L().Warn("Failed to geocode address", zap.Error(err), zap.String("address", address))
	}
	if place == nil {
		writeError(w, http.StatusNotFound, "Location not found")
		return
	}
	writeJSON(w, http.StatusOK, LocationResponse{Status: statusSuccess, Location: place})
}
