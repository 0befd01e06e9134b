// Package codec converts items, settings and favorite recipes to and from the
// JSON blobs kept in the key-value store.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/validation"
	"github.com/google/uuid"
)

// Keys of the persisted blobs.
const (
	ItemsKey     = "StoredItemsKey"
	SettingsKey  = "notificationSetting"
	FavoritesKey = "favoriteRecipes"
)

// storedItem mirrors models.Item but keeps the id as text so a missing or
// empty id can be detected and regenerated.
type storedItem struct {
	ID                    string     `json:"id,omitempty"`
	Name                  string     `json:"name"`
	ExpirationDate        *time.Time `json:"expirationDate,omitempty"`
	NotificationTime      *time.Time `json:"notificationTime,omitempty"`
	IsNotificationEnabled bool       `json:"isNotificationEnabled"`
	PriorDays             int        `json:"priordate"`
}

type storedSettings struct {
	DefaultPriorDays    *int                `json:"default_prior_day"`
	DefaultEnableNotify *bool               `json:"default_enable_notify"`
	DefaultNotifyTime   *calendar.TimeOfDay `json:"default_notify_time"`
}

type storedRecipe struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Information string `json:"information"`
}

// EncodeItems serializes the ordered item list.
func EncodeItems(items []models.Item) ([]byte, error) {
	if items == nil {
		items = []models.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode items: %w", err)
	}
	return data, nil
}

// DecodeItems parses an item list. Items without a usable id get a fresh one,
// names are cut to the maximum length and prior days are clamped into range.
func DecodeItems(data []byte) ([]models.Item, error) {
	var stored []storedItem
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}

	items := make([]models.Item, 0, len(stored))
	for _, s := range stored {
		items = append(items, models.Item{
			ID:                    parseOrNewID(s.ID),
			Name:                  validation.TruncateName(s.Name),
			ExpirationDate:        s.ExpirationDate,
			NotificationTime:      s.NotificationTime,
			IsNotificationEnabled: s.IsNotificationEnabled,
			PriorDays:             validation.ClampPriorDays(s.PriorDays),
		})
	}
	return items, nil
}

// EncodeSettings serializes the defaults.
func EncodeSettings(s models.Settings) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return data, nil
}

// DecodeSettings parses the defaults. Missing fields take the values of
// models.DefaultSettings.
func DecodeSettings(data []byte) (models.Settings, error) {
	var stored storedSettings
	if err := json.Unmarshal(data, &stored); err != nil {
		return models.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}

	s := models.DefaultSettings()
	if stored.DefaultPriorDays != nil {
		s.DefaultPriorDays = validation.ClampPriorDays(*stored.DefaultPriorDays)
	}
	if stored.DefaultEnableNotify != nil {
		s.DefaultEnableNotify = *stored.DefaultEnableNotify
	}
	if stored.DefaultNotifyTime != nil && stored.DefaultNotifyTime.Valid() {
		s.DefaultNotifyTime = *stored.DefaultNotifyTime
	}
	return s, nil
}

// EncodeRecipes serializes the favorite recipe list.
func EncodeRecipes(recipes []models.Recipe) ([]byte, error) {
	if recipes == nil {
		recipes = []models.Recipe{}
	}
	data, err := json.Marshal(recipes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recipes: %w", err)
	}
	return data, nil
}

// DecodeRecipes parses the favorite recipe list.
func DecodeRecipes(data []byte) ([]models.Recipe, error) {
	var stored []storedRecipe
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode recipes: %w", err)
	}

	recipes := make([]models.Recipe, 0, len(stored))
	for _, s := range stored {
		recipes = append(recipes, models.Recipe{
			ID:          parseOrNewID(s.ID),
			Name:        s.Name,
			Information: s.Information,
		})
	}
	return recipes, nil
}

func parseOrNewID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.New()
	}
	return id
}
