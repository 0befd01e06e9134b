package models

import "github.com/benvon/smart-pantry/internal/calendar"

// Settings are the defaults copied into newly created items.
type Settings struct {
	DefaultPriorDays    int                `json:"default_prior_day"`
	DefaultEnableNotify bool               `json:"default_enable_notify"`
	DefaultNotifyTime   calendar.TimeOfDay `json:"default_notify_time"`
}

// DefaultSettings is used when nothing has been persisted yet:
// notifications off, zero days prior, at midnight.
func DefaultSettings() Settings {
	return Settings{
		DefaultPriorDays:    0,
		DefaultEnableNotify: false,
		DefaultNotifyTime:   calendar.Midnight,
	}
}
