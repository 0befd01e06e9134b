package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/benvon/smart-pantry/internal/models"
	"github.com/go-playground/validator/v10"
)

const (
	// MaxNameLength is the maximum item name length in characters.
	MaxNameLength = 40
	// MaxPriorDays is the largest "days before expiration" offset.
	MaxPriorDays = 30
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	// ErrEmptyName is returned when a name is blank after sanitizing.
	ErrEmptyName = errors.New("item name is required")
)

func init() {
	Validate = validator.New()

	// Register custom validators for domain values
	// These should never fail in normal operation
	if err := Validate.RegisterValidation("item_name", validateItemNameField); err != nil {
		panic(fmt.Sprintf("failed to register item_name validator: %v", err))
	}
	if err := Validate.RegisterValidation("prior_days", validatePriorDaysField); err != nil {
		panic(fmt.Sprintf("failed to register prior_days validator: %v", err))
	}
	if err := Validate.RegisterValidation("meal_type", validateMealTypeField); err != nil {
		panic(fmt.Sprintf("failed to register meal_type validator: %v", err))
	}
}

func validateItemNameField(fl validator.FieldLevel) bool {
	_, err := ValidateItemName(fl.Field().String())
	return err == nil
}

func validatePriorDaysField(fl validator.FieldLevel) bool {
	return ValidatePriorDays(int(fl.Field().Int())) == nil
}

func validateMealTypeField(fl validator.FieldLevel) bool {
	return models.MealType(fl.Field().String()).Valid()
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateItemName sanitizes name and checks it is non-empty and at most
// MaxNameLength characters. It returns the sanitized name.
func ValidateItemName(name string) (string, error) {
	name = SanitizeText(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if n := utf8.RuneCountInString(name); n > MaxNameLength {
		return "", fmt.Errorf("item name is %d characters (must be at most %d)", n, MaxNameLength)
	}
	return name, nil
}

// TruncateName cuts name to MaxNameLength characters. Used where input is
// accepted as typed, such as the add-item form and decoded blobs.
func TruncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	return string([]rune(name)[:MaxNameLength])
}

// ValidatePriorDays checks that days is within [0, MaxPriorDays].
func ValidatePriorDays(days int) error {
	if days < 0 || days > MaxPriorDays {
		return fmt.Errorf("invalid prior days: %d (must be between 0 and %d)", days, MaxPriorDays)
	}
	return nil
}

// ClampPriorDays forces days into [0, MaxPriorDays].
func ClampPriorDays(days int) int {
	switch {
	case days < 0:
		return 0
	case days > MaxPriorDays:
		return MaxPriorDays
	default:
		return days
	}
}

// ValidateMealType validates a MealType string value
func ValidateMealType(value string) error {
	if !models.MealType(value).Valid() {
		return fmt.Errorf("invalid meal_type: %s (must be 'breakfast', 'lunch', 'dinner', or 'snack')", value)
	}
	return nil
}
