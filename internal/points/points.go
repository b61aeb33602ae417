// Package points computes the reward for completing a request.
package points

import (
	"errors"
	"fmt"

	"github.com/yukikurage/favor-exchange-api/internal/models"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownUrgency  = errors.New("unknown urgency")
)

// MinimumAward is the floor applied to every calculation.
const MinimumAward = 1

var basePoints = map[models.Category]int{
	models.CategoryVisits:         10,
	models.CategoryTransportation: 15,
	models.CategoryErrands:        8,
	models.CategoryTutoring:       12,
	models.CategoryMeals:          10,
	models.CategoryHousehold:      10,
	models.CategoryTechnology:     12,
	models.CategoryOther:          8,
}

var urgencyBonus = map[models.Urgency]int{
	models.UrgencyLow:    0,
	models.UrgencyNormal: 0,
	models.UrgencyHigh:   5,
	models.UrgencyUrgent: 10,
}

// Modifier is a named adjustment summed into the award. Points may be negative.
type Modifier struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Predefined modifiers
var (
	LongDistance = Modifier{Name: "LONG_DISTANCE", Points: 5}
	LongDuration = Modifier{Name: "LONG_DURATION", Points: 5}
)

// Named returns the predefined modifier with the given name.
func Named(name string) (Modifier, bool) {
	switch name {
	case LongDistance.Name:
		return LongDistance, true
	case LongDuration.Name:
		return LongDuration, true
	}
	return Modifier{}, false
}

// Base returns the base points of a category.
func Base(category models.Category) (int, error) {
	base, ok := basePoints[category]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return base, nil
}

// Calculate returns base(category) + bonus(urgency) + sum(modifiers),
// floored at MinimumAward.
func Calculate(category models.Category, urgency models.Urgency, modifiers ...Modifier) (int, error) {
	base, err := Base(category)
	if err != nil {
		return 0, err
	}
	bonus, ok := urgencyBonus[urgency]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUrgency, urgency)
	}

	total := base + bonus
	for _, m := range modifiers {
		total += m.Points
	}

	if total < MinimumAward {
		return MinimumAward, nil
	}
	return total, nil
}

// MustCalculate is Calculate for inputs that were already validated.
// It panics on an unknown category or urgency.
func MustCalculate(category models.Category, urgency models.Urgency, modifiers ...Modifier) int {
	total, err := Calculate(category, urgency, modifiers...)
	if err != nil {
		panic(err)
	}
	return total
}
