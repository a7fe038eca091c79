package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/analyzer"
	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/metrics"
	"github.com/Perceptus-Labs/roomscout/models"
	"github.com/Perceptus-Labs/roomscout/utils"
)

var (
	ErrAlreadyRunning = errors.New("detection already running")
	ErrNotRunning     = errors.New("detection not running")
)

// SourceFactory opens a frame source bound to the session context.
type SourceFactory func(ctx context.Context) (utils.FrameSource, error)

// CameraSource opens an ffmpeg capture for every session run.
func CameraSource(cfg config.DetectorConfig) SourceFactory {
	return func(ctx context.Context) (utils.FrameSource, error) {
		camera := utils.NewCameraCapture(cfg)
		if err := camera.Open(ctx); err != nil {
			return nil, err
		}
		return camera, nil
	}
}

// DetectionSession owns one detection loop and one push loop at a time.
// The latest analysis and frame survive Stop until the next Start.
type DetectionSession struct {
	ID     string
	Logger *zap.Logger

	cfg        config.DetectorConfig
	openSource SourceFactory
	detector   utils.Detector
	labels     *analyzer.LabelMapper
	analyzer   *analyzer.Analyzer
	hub        *Hub
	onAnalysis func(*models.AnalysisResult)
	now        func() time.Time

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	finished chan struct{}

	analysis atomic.Pointer[models.AnalysisResult]
	frame    atomic.Pointer[[]byte]
	stats    frameStats
}

type SessionOption func(*DetectionSession)

// WithAnalysisCallback runs fn on the detection goroutine after every analysis.
func WithAnalysisCallback(fn func(*models.AnalysisResult)) SessionOption {
	return func(s *DetectionSession) { s.onAnalysis = fn }
}

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *DetectionSession) { s.now = now }
}

func NewDetectionSession(cfg config.DetectorConfig, source SourceFactory, detector utils.Detector, labels *analyzer.LabelMapper, a *analyzer.Analyzer, hub *Hub, opts ...SessionOption) *DetectionSession {
	s := &DetectionSession{
		Logger:     zap.L(),
		cfg:        cfg,
		openSource: source,
		detector:   detector,
		labels:     labels,
		analyzer:   a,
		hub:        hub,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the source and launches the background loops.
func (s *DetectionSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	source, err := s.openSource(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open video source: %w", err)
	}

	s.ID = uuid.New().String()
	s.Logger = zap.L().With(zap.String("session_id", s.ID))
	s.running = true
	s.cancel = cancel
	s.finished = make(chan struct{})
	s.analysis.Store(nil)
	s.frame.Store(nil)
	s.stats.reset(s.now())
	metrics.SessionRunning.Set(1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		s.detectLoop(ctx, source)
	}()
	go func() {
		defer wg.Done()
		s.pushLoop(ctx)
	}()
	go s.finish(&wg, source, s.finished, s.Logger)

	s.Logger.Info("Detection session started")
	return nil
}

// finish releases the source once both loops have returned.
func (s *DetectionSession) finish(wg *sync.WaitGroup, source utils.FrameSource, finished chan struct{}, logger *zap.Logger) {
	wg.Wait()
	if err := source.Close(); err != nil {
		logger.Warn("Failed to close video source", zap.Error(err))
	}

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	metrics.SessionRunning.Set(0)
	logger.Info("Detection session stopped")
	close(finished)
}

// Stop cancels the session and waits for the loops to exit or ctx to expire.
func (s *DetectionSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel, finished, logger := s.cancel, s.finished, s.Logger
	s.mu.Unlock()

	logger.Info("Stopping detection session")
	cancel()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("detection loops did not exit: %w", ctx.Err())
	}
}

func (s *DetectionSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done is closed when the current run ends; nil before the first Start.
func (s *DetectionSession) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// CurrentAnalysis returns the latest analysis or nil.
func (s *DetectionSession) CurrentAnalysis() *models.AnalysisResult {
	return s.analysis.Load()
}

// LatestFrame returns the latest annotated JPEG or nil.
func (s *DetectionSession) LatestFrame() []byte {
	if f := s.frame.Load(); f != nil {
		return *f
	}
	return nil
}

func (s *DetectionSession) History() []models.InteractionRecord {
	return s.analyzer.History()
}

func (s *DetectionSession) Metrics() models.PerformanceMetrics {
	s.mu.Lock()
	running, id := s.running, s.ID
	s.mu.Unlock()

	m := s.stats.snapshot(s.now())
	m.SessionID = id
	m.Running = running
	if s.hub != nil {
		m.Subscribers = s.hub.Count()
	}
	return m
}

// frameStats is written by the detection loop and read by metrics requests.
type frameStats struct {
	startedAt      atomic.Int64
	windowStart    atomic.Int64
	windowFrames   atomic.Int64
	fps            atomic.Int64
	processed      atomic.Uint64
	dropped        atomic.Uint64
	lastDetections atomic.Int64
	inferenceNanos atomic.Int64
	inferenceCount atomic.Int64
	analyses       atomic.Uint64
	lastAnalysisAt atomic.Int64
}

func (f *frameStats) reset(now time.Time) {
	f.startedAt.Store(now.UnixNano())
	f.windowStart.Store(now.UnixNano())
	f.windowFrames.Store(0)
	f.fps.Store(0)
	f.processed.Store(0)
	f.dropped.Store(0)
	f.lastDetections.Store(0)
	f.inferenceNanos.Store(0)
	f.inferenceCount.Store(0)
	f.analyses.Store(0)
	f.lastAnalysisAt.Store(0)
}

// frame counts one processed frame; FPS is the frame count of the last
// completed one-second window.
func (f *frameStats) frame(now time.Time, detections int, inference time.Duration) {
	f.processed.Add(1)
	f.lastDetections.Store(int64(detections))
	f.inferenceNanos.Add(int64(inference))
	f.inferenceCount.Add(1)

	frames := f.windowFrames.Add(1)
	if now.UnixNano()-f.windowStart.Load() >= int64(time.Second) {
		f.fps.Store(frames)
		f.windowFrames.Store(0)
		f.windowStart.Store(now.UnixNano())
	}
}

func (f *frameStats) analysis(now time.Time) {
	f.analyses.Add(1)
	f.lastAnalysisAt.Store(now.UnixNano())
}

func (f *frameStats) snapshot(now time.Time) models.PerformanceMetrics {
	m := models.PerformanceMetrics{
		FPS:                 int(f.fps.Load()),
		FramesProcessed:     f.processed.Load(),
		FramesDropped:       f.dropped.Load(),
		DetectionsLastFrame: int(f.lastDetections.Load()),
		Analyses:            f.analyses.Load(),
	}
	if n := f.inferenceCount.Load(); n > 0 {
		m.AvgInferenceMs = float64(f.inferenceNanos.Load()) / float64(n) / float64(time.Millisecond)
	}
	if at := f.lastAnalysisAt.Load(); at != 0 {
		t := time.Unix(0, at)
		m.LastAnalysisAt = &t
	}
	if started := f.startedAt.Load(); started != 0 {
		m.UptimeSeconds = now.Sub(time.Unix(0, started)).Seconds()
	}
	return m
}
