package models

// Destination is one row of the static recommendation table.
type Destination struct {
	ID          int      `json:"id" koanf:"id"`
	Name        string   `json:"name" koanf:"name"`
	Type        string   `json:"type" koanf:"type"`
	Climate     string   `json:"climate" koanf:"climate"`
	Activities  []string `json:"activities" koanf:"activities"`
	BestSeason  string   `json:"best_season" koanf:"best_season"`
	BudgetLevel string   `json:"budget_level" koanf:"budget_level"`
	Popularity  float64  `json:"popularity" koanf:"popularity"`
}

// Weather holds current conditions in metric units.
type Weather struct {
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address,omitempty"`
}

// Preferences are the user inputs of a recommendation request.
// An empty PreferredType means no preference was given.
type Preferences struct {
	PreferredType string `json:"preferred_type,omitempty" validate:"omitempty,max=64"`
}

type Recommendation struct {
	Destination Destination `json:"destination"`
	Score       float64     `json:"score"`
}
