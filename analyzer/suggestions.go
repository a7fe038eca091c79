package analyzer

import (
	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/models"
)

// SuggestionGenerator selects canned suggestion text from the rule tables.
type SuggestionGenerator struct {
	rooms     map[string]config.RoomProfile
	timeRules []config.TimeRule
}

func NewSuggestionGenerator(rooms []config.RoomProfile, timeRules []config.TimeRule) *SuggestionGenerator {
	byName := make(map[string]config.RoomProfile, len(rooms))
	for _, room := range rooms {
		byName[room.Name] = room
	}
	return &SuggestionGenerator{rooms: byName, timeRules: timeRules}
}

// ForRoom returns the room default followed by every object rule that fires,
// in table order. Unknown rooms yield nothing.
func (g *SuggestionGenerator) ForRoom(room string, objects models.DetectedObjects) []string {
	profile, ok := g.rooms[room]
	if !ok {
		return nil
	}
	suggestions := []string{profile.Default}
	for _, rule := range profile.Rules {
		if objects.HasAny(rule.Any) {
			suggestions = append(suggestions, rule.Text)
		}
	}
	return suggestions
}

// ForHour applies the first time band covering hour.
func (g *SuggestionGenerator) ForHour(hour int, objects models.DetectedObjects) []string {
	for _, rule := range g.timeRules {
		if !rule.Covers(hour) {
			continue
		}
		if objects.HasAny(rule.Any) {
			return []string{rule.Text}
		}
		return nil
	}
	return nil
}
