package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/Perceptus-Labs/roomscout/analyzer"
	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/handlers"
	"github.com/Perceptus-Labs/roomscout/models"
	"github.com/Perceptus-Labs/roomscout/utils"
)

func TestListenAddr(t *testing.T) {
	t.Setenv("PORT", "")
	if got := listenAddr(":5000"); got != ":5000" {
		t.Errorf("listenAddr() = %q, want :5000", got)
	}

	t.Setenv("PORT", "8080")
	if got := listenAddr(":5000"); got != ":8080" {
		t.Errorf("listenAddr() with PORT = %q, want :8080", got)
	}
}

func TestLoadRulesDefaults(t *testing.T) {
	rules, err := loadRules(&config.Config{})
	if err != nil {
		t.Fatalf("loadRules() error = %v", err)
	}
	if len(rules.Destinations) == 0 || len(rules.TrainingClasses) == 0 {
		t.Errorf("embedded rules look empty: %d destinations, %d classes", len(rules.Destinations), len(rules.TrainingClasses))
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := newLogger(&config.Config{LogLevel: "loud"}); err == nil {
		t.Error("expected error for unknown log level")
	}
	logger, err := newLogger(&config.Config{Environment: "development", LogLevel: "debug"})
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	_ = logger.Sync()
}

func TestConnectRedisDisabled(t *testing.T) {
	client, err := connectRedis(t.Context(), config.RedisConfig{})
	if err != nil || client != nil {
		t.Errorf("connectRedis() = %v, %v; want nil, nil", client, err)
	}
}

// endlessSource yields a frame every few milliseconds until cancelled.
type endlessSource struct{}

func (endlessSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
	}
	return []byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9}, nil
}

func (endlessSource) Close() error { return nil }

type emptyDetector struct{}

func (emptyDetector) Detect(context.Context, []byte, float64) ([]models.Detection, error) {
	return nil, nil
}

func TestServeShutsDownWithOpenVideoFeed(t *testing.T) {
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() error = %v", err)
	}
	cfg := config.DetectorConfig{
		Framerate:        50,
		AnalysisInterval: time.Second,
		PushInterval:     time.Second,
		StopTimeout:      2 * time.Second,
	}
	open := func(context.Context) (utils.FrameSource, error) { return endlessSource{}, nil }

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	hub := handlers.NewHub()
	go hub.Run(ctx)

	session := handlers.NewDetectionSession(cfg, open, emptyDetector{},
		analyzer.NewLabelMapper(rules.LabelMap), analyzer.New(rules), hub)
	if err := session.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	srv := &http.Server{Handler: handlers.NewDetectorServer(session, hub, cfg).Routes([]string{"*"})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, ln, "detector", stopSession(session, cfg.StopTimeout)) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/video_feed")
	if err != nil {
		t.Fatalf("GET /video_feed: %v", err)
	}
	defer resp.Body.Close()

	boundary := make([]byte, len("--frame"))
	if _, err := io.ReadFull(resp.Body, boundary); err != nil || string(boundary) != "--frame" {
		t.Fatalf("first part = %q, %v", boundary, err)
	}
	go io.Copy(io.Discard, resp.Body) //nolint:errcheck

	cancel()
	start := time.Now()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve() error = %v", err)
		}
	case <-time.After(shutdownTimeout / 2):
		t.Fatal("serve did not return while a video feed was open")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("shutdown took %v", elapsed)
	}
	if session.Running() {
		t.Error("session still running after shutdown")
	}
}
