package analyzer

import (
	"strings"

	"github.com/Perceptus-Labs/roomscout/models"
)

type SafetyChecker struct {
	items  []string
	prefix string
}

func NewSafetyChecker(items []string, warningPrefix string) *SafetyChecker {
	return &SafetyChecker{items: items, prefix: warningPrefix}
}

// Missing returns the checklist items absent from objects, in checklist order.
func (s *SafetyChecker) Missing(objects models.DetectedObjects) []string {
	var missing []string
	for _, item := range s.items {
		if !objects.Has(item) {
			missing = append(missing, item)
		}
	}
	return missing
}

// Warnings returns at most one warning naming every missing item.
func (s *SafetyChecker) Warnings(objects models.DetectedObjects) []string {
	missing := s.Missing(objects)
	if len(missing) == 0 {
		return nil
	}
	return []string{s.prefix + strings.Join(missing, ", ")}
}
