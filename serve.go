package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/analyzer"
	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/handlers"
	"github.com/Perceptus-Labs/roomscout/models"
	"github.com/Perceptus-Labs/roomscout/recommender"
	"github.com/Perceptus-Labs/roomscout/utils"
)

const shutdownTimeout = 10 * time.Second

func runDetector(ctx context.Context, cfg *config.Config, rules *config.Rules) error {
	a, store, cleanup, err := newAnalyzer(ctx, cfg, rules)
	if err != nil {
		return err
	}
	defer cleanup()

	hub := handlers.NewHub()
	go hub.Run(ctx)

	session := handlers.NewDetectionSession(
		cfg.Detector,
		handlers.CameraSource(cfg.Detector),
		utils.NewInferenceClient(cfg.Detector),
		analyzer.NewLabelMapper(rules.LabelMap),
		a,
		hub,
	)

	var opts []handlers.DetectorOption
	if store != nil {
		opts = append(opts, handlers.WithHistoryArchive(store))
	}
	server := handlers.NewDetectorServer(session, hub, cfg.Detector, opts...)

	srv := &http.Server{
		Addr:              cfg.Detector.Addr,
		Handler:           server.Routes(cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return listenAndServe(ctx, srv, "detector", stopSession(session, cfg.Detector.StopTimeout))
}

// stopSession ends a running session so open /video_feed streams return
// before the server waits for its connections.
func stopSession(session *handlers.DetectionSession, timeout time.Duration) func() {
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := session.Stop(stopCtx); err != nil && !errors.Is(err, handlers.ErrNotRunning) {
			zap.L().Warn("Detection session did not stop cleanly", zap.Error(err))
		}
	}
}

func runRecommender(ctx context.Context, cfg *config.Config, rules *config.Rules) error {
	if cfg.Weather.APIKey == "" {
		zap.L().Warn("No weather API key configured, recommendations will skip weather scoring")
	}

	rec := recommender.New(rules.Destinations, recommender.WithTopN(cfg.Recommender.TopN))
	server := handlers.NewRecommenderServer(
		rec,
		utils.NewWeatherClient(cfg.Weather),
		utils.NewGeocoder(cfg.Weather),
		cfg.Recommender,
	)

	srv := &http.Server{
		Addr:              cfg.Recommender.Addr,
		Handler:           server.Routes(cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return listenAndServe(ctx, srv, "recommender", nil)
}

// runWatch runs a detection session without HTTP and prints every analysis.
func runWatch(ctx context.Context, cfg *config.Config, rules *config.Rules) error {
	a, _, cleanup, err := newAnalyzer(ctx, cfg, rules)
	if err != nil {
		return err
	}
	defer cleanup()

	session := handlers.NewDetectionSession(
		cfg.Detector,
		handlers.CameraSource(cfg.Detector),
		utils.NewInferenceClient(cfg.Detector),
		analyzer.NewLabelMapper(rules.LabelMap),
		a,
		nil,
		handlers.WithAnalysisCallback(func(result *models.AnalysisResult) {
			utils.PrintAnalysis(os.Stdout, result)
		}),
	)
	if err := session.Start(); err != nil {
		return fmt.Errorf("failed to start detection: %w", err)
	}
	zap.L().Info("Watching for room changes, press Ctrl+C to stop")

	select {
	case <-ctx.Done():
		zap.L().Info("Received shutdown signal")
	case <-session.Done():
		zap.L().Info("Video source ended")
	}

	stopSession(session, cfg.Detector.StopTimeout)()
	return nil
}

func listenAndServe(ctx context.Context, srv *http.Server, name string, beforeShutdown func()) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("%s server failed: %w", name, err)
	}
	return serve(ctx, srv, ln, name, beforeShutdown)
}

// serve runs srv on ln until ctx is cancelled, then runs beforeShutdown
// and shuts the server down gracefully.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, name string, beforeShutdown func()) error {
	logger := zap.L().With(zap.String("service", name))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if beforeShutdown != nil {
			beforeShutdown()
		}
		if err != nil {
			return fmt.Errorf("%s server failed: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	if beforeShutdown != nil {
		beforeShutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s server shutdown: %w", name, err)
	}
	logger.Info("Server stopped")
	return nil
}
