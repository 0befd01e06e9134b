package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/smart-pantry/internal/kv"
	"github.com/benvon/smart-pantry/internal/models"
	"go.uber.org/zap"
)

// Repository loads and saves the persisted blobs. Loads never fail: a missing
// or undecodable blob yields empty data (or default settings) and is logged.
type Repository struct {
	store  kv.Store
	logger *zap.Logger
}

// NewRepository creates a repository over store.
func NewRepository(store kv.Store, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{store: store, logger: logger}
}

// LoadItems returns the persisted item list, or an empty list.
func (r *Repository) LoadItems(ctx context.Context) []models.Item {
	data, ok := r.read(ctx, ItemsKey)
	if !ok {
		return []models.Item{}
	}
	items, err := DecodeItems(data)
	if err != nil {
		r.logger.Warn("stored_items_decode_failed", zap.Error(err))
		return []models.Item{}
	}
	return items
}

// SaveItems replaces the persisted item list.
func (r *Repository) SaveItems(ctx context.Context, items []models.Item) error {
	data, err := EncodeItems(items)
	if err != nil {
		return err
	}
	return r.write(ctx, ItemsKey, data)
}

// LoadSettings returns the persisted defaults, or models.DefaultSettings.
func (r *Repository) LoadSettings(ctx context.Context) models.Settings {
	data, ok := r.read(ctx, SettingsKey)
	if !ok {
		return models.DefaultSettings()
	}
	s, err := DecodeSettings(data)
	if err != nil {
		r.logger.Warn("stored_settings_decode_failed", zap.Error(err))
		return models.DefaultSettings()
	}
	return s
}

// SaveSettings replaces the persisted defaults.
func (r *Repository) SaveSettings(ctx context.Context, s models.Settings) error {
	data, err := EncodeSettings(s)
	if err != nil {
		return err
	}
	return r.write(ctx, SettingsKey, data)
}

// LoadFavorites returns the persisted favorite recipes, or an empty list.
func (r *Repository) LoadFavorites(ctx context.Context) []models.Recipe {
	data, ok := r.read(ctx, FavoritesKey)
	if !ok {
		return []models.Recipe{}
	}
	recipes, err := DecodeRecipes(data)
	if err != nil {
		r.logger.Warn("stored_favorites_decode_failed", zap.Error(err))
		return []models.Recipe{}
	}
	return recipes
}

// SaveFavorites replaces the persisted favorite recipes.
func (r *Repository) SaveFavorites(ctx context.Context, recipes []models.Recipe) error {
	data, err := EncodeRecipes(recipes)
	if err != nil {
		return err
	}
	return r.write(ctx, FavoritesKey, data)
}

func (r *Repository) read(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn("stored_blob_read_failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return data, true
}

func (r *Repository) write(ctx context.Context, key string, data []byte) error {
	if err := r.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
