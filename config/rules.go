package config

import (
	_ "embed"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/Perceptus-Labs/roomscout/models"
)

//go:embed defaults.yaml
var defaultRules []byte

// Rules holds every static table the analyzer and recommender read.
// A loaded Rules value is never mutated.
type Rules struct {
	Rooms           []RoomProfile        `koanf:"rooms"`
	TimeRules       []TimeRule           `koanf:"time_rules"`
	SafetyItems     []string             `koanf:"safety_items"`
	SafetyWarning   string               `koanf:"safety_warning"`
	LabelMap        map[string]string    `koanf:"label_map"`
	TrainingClasses []string             `koanf:"training_classes"`
	Destinations    []models.Destination `koanf:"destinations"`
}

// RoomProfile describes how a room type is recognized and what it suggests.
type RoomProfile struct {
	Name     string           `koanf:"name"`
	Required []string         `koanf:"required"`
	Optional []string         `koanf:"optional"`
	Default  string           `koanf:"default"`
	Rules    []SuggestionRule `koanf:"rules"`
}

// SuggestionRule fires when any of its objects is present.
type SuggestionRule struct {
	Key  string   `koanf:"key"`
	Any  []string `koanf:"any"`
	Text string   `koanf:"text"`
}

// TimeRule covers hours [FromHour, ToHour); it wraps midnight when
// FromHour > ToHour.
type TimeRule struct {
	FromHour int      `koanf:"from_hour"`
	ToHour   int      `koanf:"to_hour"`
	Any      []string `koanf:"any"`
	Text     string   `koanf:"text"`
}

func (r TimeRule) Covers(hour int) bool {
	if r.FromHour <= r.ToHour {
		return hour >= r.FromHour && hour < r.ToHour
	}
	return hour >= r.FromHour || hour < r.ToHour
}

// DefaultRules returns the embedded rule tables.
func DefaultRules() (*Rules, error) {
	return parseRules(rawbytes.Provider(defaultRules))
}

// LoadRules reads rule tables from path, or the embedded tables when path
// is empty. A file replaces the defaults wholesale.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	rules, err := parseRules(file.Provider(path))
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

func parseRules(provider koanf.Provider) (*Rules, error) {
	// Label names contain spaces but never slashes.
	k := koanf.New("/")
	if err := k.Load(provider, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	rules := &Rules{}
	if err := k.Unmarshal("", rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Validate checks the invariants the analyzer and recommender rely on.
func (r *Rules) Validate() error {
	if len(r.Rooms) == 0 {
		return fmt.Errorf("rules: at least one room profile is required")
	}
	seen := make(map[string]bool, len(r.Rooms))
	for i, room := range r.Rooms {
		if room.Name == "" {
			return fmt.Errorf("rules: room %d has no name", i)
		}
		if seen[room.Name] {
			return fmt.Errorf("rules: duplicate room %q", room.Name)
		}
		seen[room.Name] = true
		if room.Default == "" {
			return fmt.Errorf("rules: room %q has no default suggestion", room.Name)
		}
		for _, rule := range room.Rules {
			if len(rule.Any) == 0 || rule.Text == "" {
				return fmt.Errorf("rules: room %q rule %q needs objects and text", room.Name, rule.Key)
			}
		}
	}
	for i, tr := range r.TimeRules {
		if tr.FromHour < 0 || tr.FromHour > 23 || tr.ToHour < 0 || tr.ToHour > 24 {
			return fmt.Errorf("rules: time rule %d has hours out of range", i)
		}
	}
	for _, d := range r.Destinations {
		if d.Popularity < 0 || d.Popularity > 1 {
			return fmt.Errorf("rules: destination %q popularity %v outside [0,1]", d.Name, d.Popularity)
		}
	}
	return nil
}
