package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/models"
)

// pushLoop broadcasts the current analysis to websocket subscribers every
// push interval until ctx is cancelled. Nothing is sent before the first
// analysis exists.
func (s *DetectionSession) pushLoop(ctx context.Context) {
	logger := s.Logger
	if s.hub == nil {
		return
	}

	interval := s.cfg.PushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Push loop started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.hub.Broadcast(models.MessageSessionEnded, map[string]string{"session_id": s.sessionID()})
			logger.Info("Push loop stopped")
			return

		case <-ticker.C:
			analysis := s.analysis.Load()
			if analysis == nil {
				continue
			}
			s.hub.Broadcast(models.MessageRoomAnalysis, analysis)
		}
	}
}

func (s *DetectionSession) sessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ID
}
