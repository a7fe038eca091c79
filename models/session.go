package models

import (
	"time"
)

// Push channel message types.
const (
	MessageConnectionResponse = "connection_response"
	MessageRoomAnalysis       = "room_analysis"
	MessageSessionEnded       = "session_ended"
	MessagePing               = "ping"
	MessagePong               = "pong"
)

// PerformanceMetrics is the snapshot served by the detection service.
type PerformanceMetrics struct {
	SessionID           string     `json:"session_id,omitempty"`
	Running             bool       `json:"running"`
	FPS                 int        `json:"fps"`
	FramesProcessed     uint64     `json:"frames_processed"`
	FramesDropped       uint64     `json:"frames_dropped"`
	DetectionsLastFrame int        `json:"detections_last_frame"`
	AvgInferenceMs      float64    `json:"avg_inference_ms"`
	Analyses            uint64     `json:"analyses"`
	LastAnalysisAt      *time.Time `json:"last_analysis_at,omitempty"`
	UptimeSeconds       float64    `json:"uptime_seconds"`
	Subscribers         int        `json:"subscribers"`
}
