// Package analyzer infers a room type from detected objects and selects
// suggestions and safety warnings from static rule tables.
package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/models"
)

// HistorySink receives a copy of every recorded interaction.
type HistorySink interface {
	Record(ctx context.Context, record models.InteractionRecord) error
}

type Option func(*Analyzer)

const (
	mirrorBacklog = 64
	mirrorTimeout = 2 * time.Second
)

// WithClock replaces the wall clock used by the time-of-day rules.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func WithHistorySize(size int) Option {
	return func(a *Analyzer) { a.history = NewHistory(size) }
}

func WithHistorySink(sink HistorySink) Option {
	return func(a *Analyzer) { a.sink = sink }
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

type Analyzer struct {
	classifier  *Classifier
	suggestions *SuggestionGenerator
	safety      *SafetyChecker
	history     *History
	sink        HistorySink
	logger      *zap.Logger
	now         func() time.Time

	mirrorMu     sync.Mutex
	mirror       chan models.InteractionRecord
	mirrorDone   chan struct{}
	mirrorClosed bool
}

func New(rules *config.Rules, opts ...Option) *Analyzer {
	a := &Analyzer{
		classifier:  NewClassifier(rules.Rooms),
		suggestions: NewSuggestionGenerator(rules.Rooms, rules.TimeRules),
		safety:      NewSafetyChecker(rules.SafetyItems, rules.SafetyWarning),
		history:     NewHistory(DefaultHistorySize),
		logger:      zap.L(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sink != nil {
		a.mirror = make(chan models.InteractionRecord, mirrorBacklog)
		a.mirrorDone = make(chan struct{})
		go a.mirrorLoop()
	}
	return a
}

// Analyze classifies the room, gathers suggestions and warnings, and records
// the interaction.
func (a *Analyzer) Analyze(objects models.DetectedObjects) *models.AnalysisResult {
	now := a.now()

	warnings := a.safety.Warnings(objects)

	var suggestions []string
	var roomType *string
	if room, ok := a.classifier.Classify(objects); ok {
		roomType = &room
		suggestions = append(suggestions, a.suggestions.ForRoom(room, objects)...)
	}
	suggestions = append(suggestions, a.suggestions.ForHour(now.Hour(), objects)...)

	if suggestions == nil {
		suggestions = []string{}
	}
	if warnings == nil {
		warnings = []string{}
	}

	names := append([]string{}, objects.Names...)
	scores := make(map[string]float64, len(objects.Confidence))
	for name, c := range objects.Confidence {
		scores[name] = c
	}

	result := &models.AnalysisResult{
		ID:               uuid.New().String(),
		RoomType:         roomType,
		Suggestions:      suggestions,
		Warnings:         warnings,
		DetectedObjects:  names,
		ConfidenceScores: scores,
		Timestamp:        now,
	}

	a.record(models.InteractionRecord{
		Timestamp:       now,
		DetectedObjects: names,
		Suggestions:     suggestions,
		Warnings:        warnings,
	})

	a.logger.Debug("Room analyzed",
		zap.Stringp("room_type", roomType),
		zap.Int("objects", len(names)),
		zap.Int("suggestions", len(suggestions)),
		zap.Int("warnings", len(warnings)))

	return result
}

func (a *Analyzer) record(record models.InteractionRecord) {
	a.history.Add(record)

	a.mirrorMu.Lock()
	defer a.mirrorMu.Unlock()
	if a.mirror == nil || a.mirrorClosed {
		return
	}
	select {
	case a.mirror <- record:
	default:
		a.logger.Warn("History mirror backlog full, dropping record")
	}
}

// mirrorLoop forwards records to the sink one at a time so the sink sees
// them in history order.
func (a *Analyzer) mirrorLoop() {
	defer close(a.mirrorDone)
	for record := range a.mirror {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		if err := a.sink.Record(ctx, record); err != nil {
			a.logger.Warn("Failed to mirror interaction record", zap.Error(err))
		}
		cancel()
	}
}

// Close flushes pending history records to the sink. Later analyses are
// still kept in memory but no longer mirrored.
func (a *Analyzer) Close() {
	a.mirrorMu.Lock()
	if a.mirror == nil || a.mirrorClosed {
		a.mirrorMu.Unlock()
		return
	}
	a.mirrorClosed = true
	close(a.mirror)
	a.mirrorMu.Unlock()

	<-a.mirrorDone
}

// History returns the recorded interactions, oldest first.
func (a *Analyzer) History() []models.InteractionRecord {
	return a.history.Records()
}

func (a *Analyzer) Classifier() *Classifier {
	return a.classifier
}

func (a *Analyzer) Safety() *SafetyChecker {
	return a.safety
}
