// Package config loads service settings and the rule tables used by the
// room analyzer and the travel recommender.
//
// Settings are layered: struct defaults, then an optional YAML file, then
// environment variables. Rule tables ship embedded and can be replaced by a
// file named in rules_path.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the settings file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"roomscout.yaml",
	"roomscout.yml",
	"/etc/roomscout/roomscout.yaml",
}

type Config struct {
	Environment        string            `koanf:"environment"`
	LogLevel           string            `koanf:"log_level"`
	RulesPath          string            `koanf:"rules_path"`
	CORSAllowedOrigins []string          `koanf:"cors_allowed_origins"`
	Detector           DetectorConfig    `koanf:"detector"`
	Recommender        RecommenderConfig `koanf:"recommender"`
	Weather            WeatherConfig     `koanf:"weather"`
	Redis              RedisConfig       `koanf:"redis"`
}

type DetectorConfig struct {
	Addr string `koanf:"addr"`

	// VideoSource is a file path or URL; empty means the local camera.
	VideoSource string `koanf:"video_source"`
	DeviceID    int    `koanf:"device_id"`
	Width       int    `koanf:"width"`
	Height      int    `koanf:"height"`
	Framerate   int    `koanf:"framerate"`

	InferenceURL        string        `koanf:"inference_url"`
	InferenceTimeout    time.Duration `koanf:"inference_timeout"`
	ConfidenceThreshold float64       `koanf:"confidence_threshold"`

	AnalysisInterval time.Duration `koanf:"analysis_interval"`
	PushInterval     time.Duration `koanf:"push_interval"`
	StopTimeout      time.Duration `koanf:"stop_timeout"`
	HistorySize      int           `koanf:"history_size"`
}

type RecommenderConfig struct {
	Addr              string        `koanf:"addr"`
	TopN              int           `koanf:"top_n"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

type WeatherConfig struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
	GeocoderURL string        `koanf:"geocoder_url"`
	UserAgent   string        `koanf:"user_agent"`
}

// RedisConfig enables the history mirror when Addr is set.
type RedisConfig struct {
	Addr       string `koanf:"addr"`
	Password   string `koanf:"password"`
	DB         int    `koanf:"db"`
	HistoryKey string `koanf:"history_key"`
}

func defaultConfig() *Config {
	return &Config{
		Environment:        "production",
		LogLevel:           "info",
		CORSAllowedOrigins: []string{"*"},
		Detector: DetectorConfig{
			Addr:                ":5000",
			DeviceID:            0,
			Width:               640,
			Height:              480,
			Framerate:           30,
			InferenceURL:        "http://localhost:8500",
			InferenceTimeout:    5 * time.Second,
			ConfidenceThreshold: 0.5,
			AnalysisInterval:    5 * time.Second,
			PushInterval:        time.Second,
			StopTimeout:         5 * time.Second,
			HistorySize:         100,
		},
		Recommender: RecommenderConfig{
			Addr:              ":5001",
			TopN:              5,
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Weather: WeatherConfig{
			BaseURL:     "https://api.openweathermap.org/data/2.5",
			Timeout:     10 * time.Second,
			CacheTTL:    10 * time.Minute,
			GeocoderURL: "https://nominatim.openstreetmap.org",
			UserAgent:   "travel_recommender",
		},
		Redis: RedisConfig{
			HistoryKey: "roomscout:history",
		},
	}
}

// Load reads settings with precedence env > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		return fmt.Errorf("detector.confidence_threshold must be within [0,1], got %v", c.Detector.ConfidenceThreshold)
	}
	if c.Detector.AnalysisInterval <= 0 {
		return fmt.Errorf("detector.analysis_interval must be positive")
	}
	if c.Detector.PushInterval <= 0 {
		return fmt.Errorf("detector.push_interval must be positive")
	}
	if c.Detector.StopTimeout <= 0 {
		return fmt.Errorf("detector.stop_timeout must be positive")
	}
	if c.Detector.HistorySize <= 0 {
		return fmt.Errorf("detector.history_size must be positive")
	}
	if c.Recommender.TopN <= 0 {
		return fmt.Errorf("recommender.top_n must be positive")
	}
	return nil
}

// IsDevelopment reports whether human-readable logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.LogLevel == "debug"
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"cors_allowed_origins",
}

// splitSliceFields turns comma-separated env values into slices.
func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"environment":          "environment",
	"log_level":            "log_level",
	"rules_path":           "rules_path",
	"cors_allowed_origins": "cors_allowed_origins",

	"detector_addr":                 "detector.addr",
	"video_source":                  "detector.video_source",
	"video_device":                  "detector.device_id",
	"inference_url":                 "detector.inference_url",
	"inference_timeout":             "detector.inference_timeout",
	"detector_confidence_threshold": "detector.confidence_threshold",
	"analysis_interval":             "detector.analysis_interval",
	"push_interval":                 "detector.push_interval",
	"stop_timeout":                  "detector.stop_timeout",

	"recommender_addr":    "recommender.addr",
	"rate_limit_requests": "recommender.rate_limit_requests",
	"rate_limit_window":   "recommender.rate_limit_window",

	"openweathermap_api_key":  "weather.api_key",
	"openweathermap_base_url": "weather.base_url",
	"weather_cache_ttl":       "weather.cache_ttl",
	"geocoder_url":            "weather.geocoder_url",

	"redis_host":        "redis.addr",
	"redis_password":    "redis.password",
	"redis_db":          "redis.db",
	"redis_history_key": "redis.history_key",
}

// envTransformFunc maps well-known environment variable names to config
// paths. Unknown variables are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
