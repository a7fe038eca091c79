package analyzer

import (
	"sync"

	"github.com/Perceptus-Labs/roomscout/models"
)

const DefaultHistorySize = 100

// History is a fixed-capacity ring of interaction records; once full, each
// new record evicts the oldest.
type History struct {
	mu      sync.Mutex
	records []models.InteractionRecord
	next    int
	full    bool
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{records: make([]models.InteractionRecord, capacity)}
}

func (h *History) Add(record models.InteractionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[h.next] = record
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.records)
	}
	return h.next
}

// Records returns a copy, oldest first.
func (h *History) Records() []models.InteractionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]models.InteractionRecord, h.next)
		copy(out, h.records[:h.next])
		return out
	}
	out := make([]models.InteractionRecord, 0, len(h.records))
	out = append(out, h.records[h.next:]...)
	out = append(out, h.records[:h.next]...)
	return out
}
