package models

import (
	"time"
)

// Detection is one object reported by the detection model for a frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Box is a bounding box in pixel coordinates.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// DetectedObjects is the set of normalized object names seen in one frame.
// Names keep first-seen order; Confidence holds the highest score per name.
type DetectedObjects struct {
	Names      []string
	Confidence map[string]float64
}

func NewDetectedObjects(names ...string) DetectedObjects {
	objects := DetectedObjects{Confidence: make(map[string]float64)}
	for _, name := range names {
		objects.Add(name, 0)
	}
	return objects
}

// Add inserts name if absent and keeps the highest confidence seen for it.
func (o *DetectedObjects) Add(name string, confidence float64) {
	if o.Confidence == nil {
		o.Confidence = make(map[string]float64)
	}
	prev, seen := o.Confidence[name]
	if !seen {
		o.Names = append(o.Names, name)
		o.Confidence[name] = confidence
		return
	}
	if confidence > prev {
		o.Confidence[name] = confidence
	}
}

func (o DetectedObjects) Has(name string) bool {
	_, ok := o.Confidence[name]
	return ok
}

// HasAny reports whether at least one of names is present.
func (o DetectedObjects) HasAny(names []string) bool {
	for _, name := range names {
		if o.Has(name) {
			return true
		}
	}
	return false
}

func (o DetectedObjects) Len() int {
	return len(o.Names)
}

// AnalysisResult is the per-interval output of the room analyzer.
// RoomType is nil when no profile scored above zero.
type AnalysisResult struct {
	ID               string             `json:"id"`
	RoomType         *string            `json:"room_type"`
	Suggestions      []string           `json:"suggestions"`
	Warnings         []string           `json:"warnings"`
	DetectedObjects  []string           `json:"detected_objects"`
	ConfidenceScores map[string]float64 `json:"confidence_scores,omitempty"`
	Timestamp        time.Time          `json:"timestamp"`
}

// InteractionRecord is one entry of the analyzer's bounded history.
type InteractionRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	DetectedObjects []string  `json:"detected_objects"`
	Suggestions     []string  `json:"suggestions"`
	Warnings        []string  `json:"warnings"`
}
