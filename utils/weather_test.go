package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Perceptus-Labs/roomscout/config"
)

const owmBody = `{"main":{"temp":21.5,"humidity":40},"weather":[{"main":"Clouds","description":"few clouds"}],"wind":{"speed":3.2}}`

func weatherServer(t *testing.T, calls *atomic.Int32, check func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/weather" {
			t.Errorf("path = %q, want /weather", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("appid") != "secret" || q.Get("units") != "metric" {
			t.Errorf("missing appid or units in %q", r.URL.RawQuery)
		}
		if check != nil {
			check(r)
		}
		_, _ = w.Write([]byte(owmBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWeatherByCoordsCachesResult(t *testing.T) {
	var calls atomic.Int32
	srv := weatherServer(t, &calls, func(r *http.Request) {
		if r.URL.Query().Get("lat") != "48.8566" {
			t.Errorf("lat = %q", r.URL.Query().Get("lat"))
		}
	})

	client := NewWeatherClient(config.WeatherConfig{APIKey: "secret", BaseURL: srv.URL, Timeout: time.Second, CacheTTL: time.Minute})
	w, err := client.ByCoords(t.Context(), 48.8566, 2.3522)
	if err != nil {
		t.Fatalf("ByCoords() error = %v", err)
	}
	if w.Temperature != 21.5 || w.Conditions != "clouds" || w.Humidity != 40 || w.WindSpeed != 3.2 {
		t.Errorf("weather = %+v", w)
	}

	// same point after rounding
	if _, err := client.ByCoords(t.Context(), 48.8571, 2.3519); err != nil {
		t.Fatalf("second ByCoords() error = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestWeatherByCity(t *testing.T) {
	var calls atomic.Int32
	srv := weatherServer(t, &calls, func(r *http.Request) {
		if r.URL.Query().Get("q") != "London" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
	})

	client := NewWeatherClient(config.WeatherConfig{APIKey: "secret", BaseURL: srv.URL, Timeout: time.Second})
	w, err := client.ByCity(t.Context(), " London ")
	if err != nil {
		t.Fatalf("ByCity() error = %v", err)
	}
	if w.Conditions != "clouds" {
		t.Errorf("conditions = %q", w.Conditions)
	}
}

func TestWeatherWithoutAPIKey(t *testing.T) {
	var calls atomic.Int32
	srv := weatherServer(t, &calls, nil)

	client := NewWeatherClient(config.WeatherConfig{BaseURL: srv.URL})
	w, err := client.ByCoords(t.Context(), 1, 2)
	if !errors.Is(err, ErrNoAPIKey) || w != nil {
		t.Fatalf("got (%v, %v), want (nil, ErrNoAPIKey)", w, err)
	}
	if calls.Load() != 0 {
		t.Error("no request should be made without an API key")
	}
}

func TestWeatherUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":401}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewWeatherClient(config.WeatherConfig{APIKey: "bad", BaseURL: srv.URL, Timeout: time.Second})
	if w, err := client.ByCoords(t.Context(), 1, 2); err == nil || w != nil {
		t.Fatalf("got (%v, %v), want error", w, err)
	}
}
