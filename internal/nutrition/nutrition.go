// Package nutrition holds the per-100g reference table used to derive
// nutrition totals from a food type and a measured weight.
package nutrition

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/franckalain/foodanalysis/internal/models"
)

// Per100g are nutrient amounts for 100 grams of a food.
type Per100g struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	Fiber    float64
}

// Profile describes one known food.
type Profile struct {
	Name            string
	Per100g         Per100g
	ReferenceWeight float64 // typical portion in grams
	SampleImage     string  // file name used by the simulator
	Color           string  // placeholder card colour
	Suggestions     []string
}

var profiles = []Profile{
	{
		Name:            "Apple",
		Per100g:         Per100g{Calories: 52, Protein: 0.3, Carbs: 14, Fat: 0.2, Fiber: 2.4},
		ReferenceWeight: 185,
		SampleImage:     "apple.jpg",
		Color:           "#ff6b6b",
		Suggestions: []string{
			"Apples are rich in fiber and vitamin C",
			"Great for maintaining healthy blood sugar levels",
			"The fiber content helps with digestive health",
			"Consider pairing with protein for a balanced snack",
		},
	},
	{
		Name:            "Banana",
		Per100g:         Per100g{Calories: 89, Protein: 1.1, Carbs: 23, Fat: 0.3, Fiber: 2.6},
		ReferenceWeight: 120,
		SampleImage:     "banana.jpg",
		Color:           "#ffd93d",
		Suggestions: []string{
			"Bananas are a good source of potassium",
			"Quick energy before or after exercise",
			"Riper bananas contain more sugar",
		},
	},
	{
		Name:            "Orange",
		Per100g:         Per100g{Calories: 47, Protein: 0.9, Carbs: 12, Fat: 0.1, Fiber: 2.4},
		ReferenceWeight: 154,
		SampleImage:     "orange.jpg",
		Color:           "#ff8c42",
		Suggestions: []string{
			"Oranges are high in vitamin C",
			"Eat the whole fruit rather than juice to keep the fiber",
			"Hydrating snack with low calorie density",
		},
	},
	{
		Name:            "Sandwich",
		Per100g:         Per100g{Calories: 250, Protein: 11, Carbs: 30, Fat: 9, Fiber: 2.5},
		ReferenceWeight: 250,
		SampleImage:     "sandwich.jpg",
		Color:           "#6c7b7f",
		Suggestions: []string{
			"Choose whole-grain bread for more fiber",
			"Add vegetables to increase volume and micronutrients",
			"Watch portion size of spreads and cheese",
		},
	},
	{
		Name:            "Salad",
		Per100g:         Per100g{Calories: 20, Protein: 1.5, Carbs: 3.5, Fat: 0.2, Fiber: 1.8},
		ReferenceWeight: 200,
		SampleImage:     "salad.jpg",
		Color:           "#4ecdc4",
		Suggestions: []string{
			"Leafy greens are rich in folate and vitamin K",
			"Dressings can add most of the calories",
			"Add a protein source to keep you full longer",
		},
	},
}

// Profiles returns the known foods in a stable order.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	for i, p := range profiles {
		p.Suggestions = slices.Clone(p.Suggestions)
		out[i] = p
	}
	return out
}

// Names lists the known food names.
func Names() []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}

// Lookup finds a profile by name, ignoring case.
func Lookup(name string) (Profile, error) {
	for _, p := range profiles {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			p.Suggestions = slices.Clone(p.Suggestions)
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unknown food type: %q", name)
}

// Compute scales the per-100g coefficients to weight grams and rounds each
// total to the nearest integer.
func Compute(p Profile, weight float64) models.Nutrition {
	scale := func(per100 float64) int {
		return int(math.Round(per100 * weight / 100))
	}
	return models.Nutrition{
		Calories: scale(p.Per100g.Calories),
		Protein:  scale(p.Per100g.Protein),
		Carbs:    scale(p.Per100g.Carbs),
		Fat:      scale(p.Per100g.Fat),
		Fiber:    scale(p.Per100g.Fiber),
	}
}
