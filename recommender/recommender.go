// Package recommender ranks the destination table against the current
// season, weather and user preferences.
package recommender

import (
	"sort"
	"strings"
	"time"

	"github.com/Perceptus-Labs/roomscout/models"
)

const (
	seasonWeight     = 0.3
	weatherWeight    = 0.3
	preferenceWeight = 0.2
	popularityWeight = 0.2

	neutralScore = 0.5

	DefaultTopN = 5
)

// comfortable temperature band in °C, inclusive
const (
	minComfortTemp = 15.0
	maxComfortTemp = 30.0
)

var fairConditions = map[string]bool{
	"clear":         true,
	"partly_cloudy": true,
}

type Option func(*Recommender)

func WithClock(now func() time.Time) Option {
	return func(r *Recommender) { r.now = now }
}

func WithTopN(n int) Option {
	return func(r *Recommender) {
		if n > 0 {
			r.topN = n
		}
	}
}

type Recommender struct {
	destinations []models.Destination
	topN         int
	now          func() time.Time
}

func New(destinations []models.Destination, opts ...Option) *Recommender {
	r := &Recommender{
		destinations: destinations,
		topN:         DefaultTopN,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Season maps a calendar month to a northern-hemisphere season name.
func Season(month time.Month) string {
	switch month {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "fall"
	}
}

func SeasonScore(d models.Destination, month time.Month) float64 {
	if d.BestSeason == Season(month) {
		return 1.0
	}
	return 0.5
}

// WeatherScore averages a temperature band check and a conditions check.
// Without weather data it is neutral.
func WeatherScore(w *models.Weather) float64 {
	if w == nil {
		return neutralScore
	}
	tempScore := 0.5
	if w.Temperature >= minComfortTemp && w.Temperature <= maxComfortTemp {
		tempScore = 1.0
	}
	conditions := strings.ToLower(w.Conditions)
	if conditions == "" {
		conditions = "clear"
	}
	conditionsScore := 0.7
	if fairConditions[conditions] {
		conditionsScore = 1.0
	}
	return (tempScore + conditionsScore) / 2
}

// PreferenceScore treats an empty preferred type the same as no preference.
func PreferenceScore(d models.Destination, prefs models.Preferences) float64 {
	if prefs.PreferredType == "" {
		return neutralScore
	}
	if prefs.PreferredType == d.Type {
		return 1.0
	}
	return 0.3
}

// Score is the weighted sum of the four sub-scores.
func Score(d models.Destination, month time.Month, w *models.Weather, prefs models.Preferences) float64 {
	return SeasonScore(d, month)*seasonWeight +
		WeatherScore(w)*weatherWeight +
		PreferenceScore(d, prefs)*preferenceWeight +
		d.Popularity*popularityWeight
}

// Recommend scores every destination and returns the best first, at most
// topN entries. Equal scores keep table order.
func (r *Recommender) Recommend(prefs models.Preferences, weather *models.Weather) []models.Recommendation {
	month := r.now().Month()

	ranked := make([]models.Recommendation, 0, len(r.destinations))
	for _, d := range r.destinations {
		ranked = append(ranked, models.Recommendation{
			Destination: d,
			Score:       Score(d, month, weather, prefs),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > r.topN {
		ranked = ranked[:r.topN]
	}
	return ranked
}
