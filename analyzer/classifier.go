package analyzer

import (
	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/models"
)

const (
	requiredPoints = 2
	optionalPoints = 1
)

type RoomScore struct {
	Room  string `json:"room"`
	Score int    `json:"score"`
}

// Classifier picks the room profile that best explains a set of objects.
type Classifier struct {
	rooms []config.RoomProfile
}

func NewClassifier(rooms []config.RoomProfile) *Classifier {
	return &Classifier{rooms: rooms}
}

// Scores returns one score per profile in declaration order.
func (c *Classifier) Scores(objects models.DetectedObjects) []RoomScore {
	scores := make([]RoomScore, 0, len(c.rooms))
	for _, room := range c.rooms {
		score := 0
		if hasAll(objects, room.Required) {
			score += requiredPoints
		}
		for _, name := range room.Optional {
			if objects.Has(name) {
				score += optionalPoints
			}
		}
		scores = append(scores, RoomScore{Room: room.Name, Score: score})
	}
	return scores
}

// Classify returns the highest scoring room, or false when every profile
// scores zero. Equal scores resolve to the profile declared first.
func (c *Classifier) Classify(objects models.DetectedObjects) (string, bool) {
	best := RoomScore{}
	for _, s := range c.Scores(objects) {
		if s.Score > best.Score {
			best = s
		}
	}
	if best.Score == 0 {
		return "", false
	}
	return best.Room, true
}

// hasAll is false for an empty required list so that a profile without
// requirements cannot win on an empty frame.
func hasAll(objects models.DetectedObjects, names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if !objects.Has(name) {
			return false
		}
	}
	return true
}
