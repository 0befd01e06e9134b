package models

import "github.com/google/uuid"

// Recipe is a saved recipe suggestion.
type Recipe struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Information string    `json:"information"`
}

// MealType selects which recipe prompt is sent.
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// MealTypes lists every supported meal type.
var MealTypes = []MealType{MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack}

// Valid reports whether m is a known meal type.
func (m MealType) Valid() bool {
	switch m {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	default:
		return false
	}
}
