package analyzer

import (
	"strings"

	"github.com/Perceptus-Labs/roomscout/models"
)

// LabelMapper turns raw model detections into the analyzer's vocabulary.
type LabelMapper struct {
	mapping map[string]string
}

func NewLabelMapper(mapping map[string]string) *LabelMapper {
	normalized := make(map[string]string, len(mapping))
	for from, to := range mapping {
		normalized[Normalize(from)] = Normalize(to)
	}
	return &LabelMapper{mapping: normalized}
}

// Normalize lowercases a label and collapses surrounding and inner runs of
// whitespace.
func Normalize(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

func (m *LabelMapper) MapLabel(label string) string {
	name := Normalize(label)
	if mapped, ok := m.mapping[name]; ok {
		return mapped
	}
	return name
}

// Map keeps detections at or above threshold and returns their mapped names.
func (m *LabelMapper) Map(detections []models.Detection, threshold float64) models.DetectedObjects {
	objects := models.NewDetectedObjects()
	for _, d := range detections {
		if d.Confidence < threshold {
			continue
		}
		name := m.MapLabel(d.Label)
		if name == "" {
			continue
		}
		objects.Add(name, d.Confidence)
	}
	return objects
}
