package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Detector.Addr != ":5000" {
		t.Errorf("Detector.Addr = %q, want :5000", cfg.Detector.Addr)
	}
	if cfg.Detector.AnalysisInterval != 5*time.Second {
		t.Errorf("Detector.AnalysisInterval = %v, want 5s", cfg.Detector.AnalysisInterval)
	}
	if cfg.Detector.PushInterval != time.Second {
		t.Errorf("Detector.PushInterval = %v, want 1s", cfg.Detector.PushInterval)
	}
	if cfg.Detector.HistorySize != 100 {
		t.Errorf("Detector.HistorySize = %d, want 100", cfg.Detector.HistorySize)
	}
	if cfg.Recommender.TopN != 5 {
		t.Errorf("Recommender.TopN = %d, want 5", cfg.Recommender.TopN)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"OPENWEATHERMAP_API_KEY", "weather.api_key"},
		{"REDIS_HOST", "redis.addr"},
		{"ANALYSIS_INTERVAL", "detector.analysis_interval"},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roomscout.yaml")
	content := []byte("detector:\n  addr: \":7000\"\n  analysis_interval: 2s\nweather:\n  api_key: from-file\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("OPENWEATHERMAP_API_KEY", "from-env")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Detector.Addr != ":7000" {
		t.Errorf("Detector.Addr = %q, want :7000", cfg.Detector.Addr)
	}
	if cfg.Detector.AnalysisInterval != 2*time.Second {
		t.Errorf("Detector.AnalysisInterval = %v, want 2s", cfg.Detector.AnalysisInterval)
	}
	if cfg.Weather.APIKey != "from-env" {
		t.Errorf("Weather.APIKey = %q, want from-env", cfg.Weather.APIKey)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://b.example" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	// untouched defaults survive
	if cfg.Detector.PushInterval != time.Second {
		t.Errorf("Detector.PushInterval = %v, want 1s", cfg.Detector.PushInterval)
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := defaultConfig()
	cfg.Detector.ConfidenceThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for threshold above 1")
	}
}
