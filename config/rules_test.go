package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRules(t *testing.T) {
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() error = %v", err)
	}

	wantRooms := []string{"bedroom", "living_room", "kitchen", "office"}
	if len(rules.Rooms) != len(wantRooms) {
		t.Fatalf("got %d rooms, want %d", len(rules.Rooms), len(wantRooms))
	}
	for i, name := range wantRooms {
		if rules.Rooms[i].Name != name {
			t.Errorf("room %d = %q, want %q", i, rules.Rooms[i].Name, name)
		}
	}
	if got := rules.Rooms[0].Required; len(got) != 1 || got[0] != "bed" {
		t.Errorf("bedroom required = %v, want [bed]", got)
	}
	if len(rules.SafetyItems) != 4 {
		t.Errorf("got %d safety items, want 4", len(rules.SafetyItems))
	}
	if len(rules.TimeRules) != 4 {
		t.Errorf("got %d time rules, want 4", len(rules.TimeRules))
	}
	if rules.LabelMap["dining table"] != "table" {
		t.Errorf("label_map[dining table] = %q, want table", rules.LabelMap["dining table"])
	}
	if len(rules.Destinations) != 3 {
		t.Fatalf("got %d destinations, want 3", len(rules.Destinations))
	}
	if rules.Destinations[1].Name != "Paris, France" || rules.Destinations[1].Popularity != 0.95 {
		t.Errorf("destination[1] = %+v", rules.Destinations[1])
	}
	if len(rules.Destinations[0].Activities) != 3 {
		t.Errorf("Bali activities = %v", rules.Destinations[0].Activities)
	}
}

func TestTimeRuleCovers(t *testing.T) {
	tests := []struct {
		rule TimeRule
		hour int
		want bool
	}{
		{TimeRule{FromHour: 6, ToHour: 12}, 6, true},
		{TimeRule{FromHour: 6, ToHour: 12}, 11, true},
		{TimeRule{FromHour: 6, ToHour: 12}, 12, false},
		{TimeRule{FromHour: 22, ToHour: 6}, 23, true},
		{TimeRule{FromHour: 22, ToHour: 6}, 0, true},
		{TimeRule{FromHour: 22, ToHour: 6}, 5, true},
		{TimeRule{FromHour: 22, ToHour: 6}, 6, false},
		{TimeRule{FromHour: 22, ToHour: 6}, 21, false},
	}
	for _, tt := range tests {
		if got := tt.rule.Covers(tt.hour); got != tt.want {
			t.Errorf("%+v.Covers(%d) = %v, want %v", tt.rule, tt.hour, got, tt.want)
		}
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := []byte(`rooms:
  - name: garage
    required: [car]
    optional: [bicycle]
    default: "This looks like a garage."
safety_items: [smoke detector]
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules.Rooms) != 1 || rules.Rooms[0].Name != "garage" {
		t.Errorf("rooms = %+v, want only garage", rules.Rooms)
	}
	if len(rules.Destinations) != 0 {
		t.Errorf("file rules should not inherit default destinations, got %d", len(rules.Destinations))
	}
}

func TestRulesValidate(t *testing.T) {
	tests := []struct {
		name  string
		rules Rules
	}{
		{"no rooms", Rules{}},
		{"missing default", Rules{Rooms: []RoomProfile{{Name: "x"}}}},
		{"duplicate room", Rules{Rooms: []RoomProfile{{Name: "x", Default: "a"}, {Name: "x", Default: "b"}}}},
		{"bad hour", Rules{
			Rooms:     []RoomProfile{{Name: "x", Default: "a"}},
			TimeRules: []TimeRule{{FromHour: 30, ToHour: 2}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rules.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
