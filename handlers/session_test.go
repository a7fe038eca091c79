package handlers

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Perceptus-Labs/roomscout/analyzer"
	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/models"
	"github.com/Perceptus-Labs/roomscout/utils"
)

// fakeSource yields a fixed frame; limit > 0 ends the stream after that
// many frames, and release != nil makes Next ignore ctx until closed.
type fakeSource struct {
	limit   int
	release chan struct{}
	served  atomic.Int32
	closed  atomic.Bool
}

func (f *fakeSource) Next(ctx context.Context) ([]byte, error) {
	if f.release != nil {
		<-f.release
		return nil, io.EOF
	}
	if f.limit > 0 && int(f.served.Load()) >= f.limit {
		return nil, io.EOF
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(2 * time.Millisecond):
	}
	f.served.Add(1)
	return []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}, nil
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeDetector struct {
	mu         sync.Mutex
	detections []models.Detection
	err        error
}

func (d *fakeDetector) Detect(ctx context.Context, frame []byte, threshold float64) ([]models.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detections, d.err
}

func testDetectorConfig() config.DetectorConfig {
	return config.DetectorConfig{
		Framerate:           100,
		ConfidenceThreshold: 0.5,
		AnalysisInterval:    10 * time.Millisecond,
		PushInterval:        10 * time.Millisecond,
		StopTimeout:         time.Second,
	}
}

func newTestSession(t *testing.T, src utils.FrameSource, det utils.Detector, hub *Hub, opts ...SessionOption) *DetectionSession {
	t.Helper()
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() error = %v", err)
	}
	open := func(ctx context.Context) (utils.FrameSource, error) { return src, nil }
	return NewDetectionSession(testDetectorConfig(), open, det,
		analyzer.NewLabelMapper(rules.LabelMap), analyzer.New(rules), hub, opts...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func bedDetections() []models.Detection {
	return []models.Detection{
		{Label: "bed", Confidence: 0.9},
		{Label: "TV", Confidence: 0.8},
		{Label: "chair", Confidence: 0.2}, // below threshold
	}
}

func TestSessionStartStop(t *testing.T) {
	src := &fakeSource{}
	s := newTestSession(t, src, &fakeDetector{detections: bedDetections()}, nil)

	if err := s.Stop(t.Context()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop() before Start = %v, want ErrNotRunning", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	waitFor(t, "first analysis", func() bool { return s.CurrentAnalysis() != nil })
	analysis := s.CurrentAnalysis()
	if analysis.RoomType == nil || *analysis.RoomType != "bedroom" {
		t.Errorf("room type = %v, want bedroom", analysis.RoomType)
	}
	for _, name := range analysis.DetectedObjects {
		if name == "chair" {
			t.Error("low-confidence detection should be dropped")
		}
	}
	if s.LatestFrame() == nil {
		t.Error("expected a published frame")
	}

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.Running() {
		t.Error("session still running after Stop")
	}
	if !src.closed.Load() {
		t.Error("source not closed")
	}
	if s.CurrentAnalysis() == nil {
		t.Error("analysis should survive Stop")
	}

	m := s.Metrics()
	if m.Running || m.FramesProcessed == 0 || m.Analyses == 0 || m.LastAnalysisAt == nil {
		t.Errorf("metrics = %+v", m)
	}
	if len(s.History()) == 0 {
		t.Error("expected recorded history")
	}

	// a stopped session can be started again
	if err := s.Start(); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	_ = s.Stop(ctx)
}

func TestSessionEndsWithSource(t *testing.T) {
	src := &fakeSource{limit: 3}
	s := newTestSession(t, src, &fakeDetector{detections: bedDetections()}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session did not stop at end of source")
	}
	if s.Running() {
		t.Error("session still running")
	}
	if got := s.Metrics().FramesProcessed; got != 3 {
		t.Errorf("frames processed = %d, want 3", got)
	}
	if err := s.Stop(t.Context()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() after end = %v, want ErrNotRunning", err)
	}
}

func TestSessionStopIsBounded(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	s := newTestSession(t, src, &fakeDetector{}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := s.Stop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop() = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Stop() did not honor its deadline")
	}

	close(src.release)
	<-s.Done()
}

func TestSessionCountsInferenceFailures(t *testing.T) {
	s := newTestSession(t, &fakeSource{limit: 4}, &fakeDetector{err: errors.New("model offline")}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-s.Done()

	m := s.Metrics()
	if m.FramesDropped != 4 || m.FramesProcessed != 0 {
		t.Errorf("dropped = %d processed = %d, want 4 and 0", m.FramesDropped, m.FramesProcessed)
	}
	if s.CurrentAnalysis() != nil {
		t.Error("no analysis expected without detections")
	}
}

func TestSessionAnalysisCallback(t *testing.T) {
	var calls atomic.Int32
	s := newTestSession(t, &fakeSource{limit: 2}, &fakeDetector{detections: bedDetections()}, nil,
		WithAnalysisCallback(func(*models.AnalysisResult) { calls.Add(1) }))
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-s.Done()
	if calls.Load() == 0 {
		t.Error("callback never invoked")
	}
}

// stepClock advances by step on every reading.
type stepClock struct {
	next atomic.Int64
	step time.Duration
}

func newStepClock(start time.Time, step time.Duration) *stepClock {
	c := &stepClock{step: step}
	c.next.Store(start.UnixNano())
	return c
}

func (c *stepClock) Now() time.Time {
	return time.Unix(0, c.next.Add(int64(c.step))-int64(c.step))
}

func TestSessionMetricsFollowClock(t *testing.T) {
	start := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	clock := newStepClock(start, 400*time.Millisecond)
	s := newTestSession(t, &fakeSource{limit: 3}, &fakeDetector{detections: bedDetections()}, nil,
		WithSessionClock(clock.Now))
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-s.Done()

	// Readings: Start at 0s, frames at 0.4s, 0.8s and 1.2s, Metrics at 1.6s.
	m := s.Metrics()
	if m.FPS != 3 {
		t.Errorf("FPS = %d, want 3 frames in the first window", m.FPS)
	}
	if m.UptimeSeconds < 1.599 || m.UptimeSeconds > 1.601 {
		t.Errorf("uptime = %v, want 1.6", m.UptimeSeconds)
	}
	if m.LastAnalysisAt == nil || !m.LastAnalysisAt.Equal(start.Add(1200*time.Millisecond)) {
		t.Errorf("last analysis at = %v", m.LastAnalysisAt)
	}
	if m.Analyses != 3 {
		t.Errorf("analyses = %d, want 3", m.Analyses)
	}
}
