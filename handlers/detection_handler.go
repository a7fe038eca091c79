package handlers

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/metrics"
	"github.com/Perceptus-Labs/roomscout/utils"
)

// detectLoop reads frames until the source ends or ctx is cancelled. Each
// frame is run through the detector and label mapper, annotated and
// published; every analysis interval the mapped objects are analyzed.
func (s *DetectionSession) detectLoop(ctx context.Context, source utils.FrameSource) {
	logger := s.Logger
	interval := s.cfg.AnalysisInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	threshold := s.cfg.ConfidenceThreshold

	logger.Info("Detection loop started",
		zap.Duration("analysis_interval", interval),
		zap.Float64("confidence_threshold", threshold))
	defer logger.Info("Detection loop stopped")

	var lastAnalysis time.Time
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Info("Video source ended")
				return
			}
			s.stats.dropped.Add(1)
			metrics.FramesDropped.WithLabelValues("capture").Inc()
			logger.Error("Failed to read frame", zap.Error(err))
			return
		}

		start := time.Now()
		detections, err := s.detector.Detect(ctx, frame, threshold)
		inference := time.Since(start)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.stats.dropped.Add(1)
			metrics.FramesDropped.WithLabelValues("inference").Inc()
			logger.Warn("Object detection failed", zap.Error(err))
			s.frame.Store(&frame)
			continue
		}

		now := s.now()
		objects := s.labels.Map(detections, threshold)
		s.stats.frame(now, len(detections), inference)
		metrics.FramesProcessed.Inc()

		annotated, err := utils.Annotate(frame, detections)
		if err != nil {
			logger.Debug("Failed to annotate frame", zap.Error(err))
			annotated = frame
		}
		s.frame.Store(&annotated)

		if !lastAnalysis.IsZero() && now.Sub(lastAnalysis) < interval {
			continue
		}
		lastAnalysis = now

		result := s.analyzer.Analyze(objects)
		s.analysis.Store(result)
		s.stats.analysis(now)
		metrics.RecordAnalysis(result.RoomType)

		logger.Debug("Room analysis updated",
			zap.String("analysis_id", result.ID),
			zap.Strings("objects", result.DetectedObjects))

		if s.onAnalysis != nil {
			s.onAnalysis(result)
		}
	}
}
