package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/models"
)

// HistoryArchive is a persistent copy of the interaction history.
type HistoryArchive interface {
	Recent(ctx context.Context, n int) ([]models.InteractionRecord, error)
}

// DetectorServer exposes a detection session over HTTP and websocket.
type DetectorServer struct {
	session     *DetectionSession
	hub         *Hub
	archive     HistoryArchive
	historySize int
	stopTimeout time.Duration
	framePeriod time.Duration
}

type DetectorOption func(*DetectorServer)

// WithHistoryArchive serves the archived history while the in-memory one
// is empty, e.g. right after a restart.
func WithHistoryArchive(archive HistoryArchive) DetectorOption {
	return func(s *DetectorServer) { s.archive = archive }
}

type HistoryResponse struct {
	Status  string                     `json:"status"`
	History []models.InteractionRecord `json:"history"`
}

func NewDetectorServer(session *DetectionSession, hub *Hub, cfg config.DetectorConfig, opts ...DetectorOption) *DetectorServer {
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}
	framePeriod := 33 * time.Millisecond
	if cfg.Framerate > 0 {
		framePeriod = time.Second / time.Duration(cfg.Framerate)
	}
	s := &DetectorServer{
		session:     session,
		hub:         hub,
		historySize: cfg.HistorySize,
		stopTimeout: stopTimeout,
		framePeriod: framePeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DetectorServer) Routes(allowedOrigins []string) http.Handler {
	r := newRouter(allowedOrigins)

	r.Get("/healthz", HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Get("/start_detection", s.HandleStart)
		r.Post("/start_detection", s.HandleStart)
		r.Get("/stop_detection", s.HandleStop)
		r.Post("/stop_detection", s.HandleStop)
		r.Get("/video_feed", s.HandleVideoFeed)
		r.Get("/get_metrics", s.HandleMetrics)
		r.Get("/get_room_analysis", s.HandleRoomAnalysis)
		r.Get("/get_history", s.HandleHistory)
	})
	r.Get("/ws", s.hub.ServeWS)

	return r
}

func (s *DetectorServer) HandleStart(w http.ResponseWriter, r *http.Request) {
	err := s.session.Start()
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "Detection already running")
	case err != nil:
		zap.L().Error("Failed to start detection", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start detection")
	default:
		writeSuccess(w, "Detection started")
	}
}

func (s *DetectorServer) HandleStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.stopTimeout)
	defer cancel()

	err := s.session.Stop(ctx)
	switch {
	case errors.Is(err, ErrNotRunning):
		writeError(w, http.StatusConflict, "Detection not running")
	case err != nil:
		zap.L().Error("Failed to stop detection", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to stop detection")
	default:
		writeSuccess(w, "Detection stopped")
	}
}

// HandleVideoFeed streams annotated frames as multipart JPEG until the
// client leaves or the session stops.
func (s *DetectorServer) HandleVideoFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.framePeriod)
	defer ticker.Stop()

	var last *[]byte
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame := s.session.frame.Load()
		if frame != nil && frame != last {
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(*frame)); err != nil {
				return
			}
			if _, err := w.Write(*frame); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			flusher.Flush()
			last = frame
		}

		if !s.session.Running() {
			return
		}
	}
}

func (s *DetectorServer) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Metrics())
}

func (s *DetectorServer) HandleRoomAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis := s.session.CurrentAnalysis()
	if analysis == nil {
		writeError(w, http.StatusNotFound, "No analysis available")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *DetectorServer) HandleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.session.History()
	if len(history) == 0 && s.archive != nil {
		archived, err := s.archive.Recent(r.Context(), s.historySize)
		if err != nil {
			zap.L().Warn("Failed to read archived history", zap.Error(err))
		} else {
			history = archived
		}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Status: statusSuccess, History: history})
}
