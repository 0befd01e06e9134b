// Package cascade is the single entry point for every change to items and
// settings. It decides which items a change reaches, keeps reminders in step
// with item state and decides when state is persisted.
//
// Changes have three scopes:
//   - new-item defaults: settings are copied into an item when it is created
//     and never reach it again through that path;
//   - global defaults: editing settings changes settings only;
//   - bulk apply: an explicit action that rewrites every existing item and
//     never touches settings.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/inventory"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/recipes"
	"github.com/benvon/smart-pantry/internal/scheduler"
	"github.com/benvon/smart-pantry/internal/settings"
	"github.com/benvon/smart-pantry/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRecipeNotParsed is returned when a completion reply is not a recipe.
	ErrRecipeNotParsed = errors.New("reply is not a recipe")
	// ErrRecipeNotFound is returned when removing an unknown favorite.
	ErrRecipeNotFound = errors.New("recipe not found")
)

// Persister stores the item and favorites blobs.
type Persister interface {
	LoadItems(ctx context.Context) []models.Item
	SaveItems(ctx context.Context, items []models.Item) error
	LoadFavorites(ctx context.Context) []models.Recipe
	SaveFavorites(ctx context.Context, recipes []models.Recipe) error
}

// BulkView is the state of the "apply to all items" controls.
type BulkView struct {
	EnableAll  bool               `json:"enable_all"`
	NotifyTime calendar.TimeOfDay `json:"notify_time"`
	PriorDays  int                `json:"prior_days"`
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Items     *inventory.Store
	Settings  *settings.Store
	Engine    *scheduler.Engine
	Favorites *recipes.Favorites
	Persist   Persister
	Clock     calendar.Clock
	Logger    *zap.Logger
}

// Coordinator serializes every mutation on one main sequence.
type Coordinator struct {
	mu        sync.Mutex
	items     *inventory.Store
	settings  *settings.Store
	engine    *scheduler.Engine
	favorites *recipes.Favorites
	persist   Persister
	clock     calendar.Clock
	logger    *zap.Logger

	bulkNotifyTime calendar.TimeOfDay
	bulkPriorDays  int
	// guardArmed suppresses the first enable-all event after OpenSettings
	// when it only mirrors the loaded state.
	guardArmed bool
	guardValue bool

	// savedRev is the item store revision last loaded or written. Flushes
	// skip the item blob while it is current so another process sharing the
	// store keeps its writes.
	savedRev       uint64
	favoritesDirty bool
}

// New creates a coordinator.
func New(deps Deps) *Coordinator {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	current := deps.Settings.Current()
	return &Coordinator{
		items:          deps.Items,
		settings:       deps.Settings,
		engine:         deps.Engine,
		favorites:      deps.Favorites,
		persist:        deps.Persist,
		clock:          clock,
		logger:         log,
		bulkNotifyTime: current.DefaultNotifyTime,
		bulkPriorDays:  current.DefaultPriorDays,
	}
}

// Load reads items, favorites and settings from persistence.
func (c *Coordinator) Load(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Replace(localize(c.persist.LoadItems(ctx), c.clock.Now().Location()))
	c.savedRev = c.items.Revision()
	c.favorites.Replace(c.persist.LoadFavorites(ctx))
	c.favoritesDirty = false
	c.settings.Load(ctx)

	c.logger.Info("state_loaded",
		zap.Int("items", c.items.Len()),
		zap.Int("favorites", len(c.favorites.List())),
	)
}

// Items returns the ordered item list.
func (c *Coordinator) Items() []models.Item {
	return c.items.List()
}

// Item returns one item.
func (c *Coordinator) Item(id uuid.UUID) (models.Item, error) {
	return c.items.FindByID(id)
}

// Settings returns the current defaults.
func (c *Coordinator) Settings() models.Settings {
	return c.settings.Current()
}

// ReminderState returns the reminder lifecycle state of an item.
func (c *Coordinator) ReminderState(id uuid.UUID) scheduler.State {
	return c.engine.State(id)
}

// AddItem creates an item from the current defaults, issues its reminder and
// persists the item list.
func (c *Coordinator) AddItem(ctx context.Context, name string, expirationDate *time.Time) (models.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Reload so a stale in-memory copy never seeds a new item
	defaults := c.settings.Load(ctx)

	item, err := c.items.Create(name, expirationDate, defaults.DefaultNotifyTime, defaults.DefaultEnableNotify, defaults.DefaultPriorDays)
	if err != nil {
		return models.Item{}, err
	}
	c.engine.Issue(item)
	c.saveItems(ctx)

	c.logger.Info("item_created",
		zap.String("item_id", item.ID.String()),
		zap.Bool("notify", item.IsNotificationEnabled),
		zap.Int("prior_days", item.PriorDays),
	)
	return item, nil
}

// RenameItem changes an item's name. Pending reminders are reissued so they
// carry the new name.
func (c *Coordinator) RenameItem(ctx context.Context, id uuid.UUID, name string) (models.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, err := c.items.Update(id, models.ItemPatch{Name: &name})
	if err != nil {
		return models.Item{}, err
	}
	if item.IsNotificationEnabled {
		item = c.engine.Reschedule(item, c.timeBasis(item))
		item, err = c.store(item)
	}
	return item, err
}

// ChangeExpiration sets a new expiration date and reschedules. With
// keepTime the item keeps its own reminder time of day; otherwise the
// default time of day is used.
func (c *Coordinator) ChangeExpiration(ctx context.Context, id uuid.UUID, date time.Time, keepTime bool) (models.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, err := c.items.FindByID(id)
	if err != nil {
		return models.Item{}, err
	}
	tod := c.settings.Current().DefaultNotifyTime
	if keepTime {
		tod = c.timeBasis(item)
	}

	item, err = c.items.Update(id, models.ItemPatch{ExpirationDate: &date})
	if err != nil {
		return models.Item{}, err
	}
	item = c.engine.Recompute(item, tod)
	item = c.engine.Reschedule(item, tod)
	return c.store(item)
}

// UpdateItemNotification sets an item's prior days and reminder time of day.
func (c *Coordinator) UpdateItemNotification(ctx context.Context, id uuid.UUID, priorDays int, tod calendar.TimeOfDay) (models.Item, error) {
	if err := validation.ValidatePriorDays(priorDays); err != nil {
		return models.Item{}, err
	}
	if !tod.Valid() {
		return models.Item{}, fmt.Errorf("invalid notify time %s", tod)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	item, err := c.items.FindByID(id)
	if err != nil {
		return models.Item{}, err
	}
	item.PriorDays = priorDays
	item = c.engine.Recompute(item, tod)
	item = c.engine.Reschedule(item, tod)
	return c.store(item)
}

// SetItemNotificationEnabled turns one item's reminder on or off.
func (c *Coordinator) SetItemNotificationEnabled(ctx context.Context, id uuid.UUID, enabled bool) (models.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, err := c.items.FindByID(id)
	if err != nil {
		return models.Item{}, err
	}
	if item.IsNotificationEnabled == enabled {
		return item, nil
	}
	item = c.engine.SetEnabled(item, enabled, c.timeBasis(item))
	return c.store(item)
}

// RemoveItem deletes an item, cancels its reminder and persists the list.
func (c *Coordinator) RemoveItem(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, err := c.items.Remove(id)
	if err != nil {
		return err
	}
	c.engine.Cancel(item)
	c.engine.Forget(item.ID)
	c.saveItems(ctx)

	c.logger.Info("item_removed", zap.String("item_id", id.String()))
	return nil
}

// RemoveAllExpired deletes every item that expired before asOf's day and
// returns them. An empty result means nothing was expired.
func (c *Coordinator) RemoveAllExpired(ctx context.Context, asOf time.Time) []models.Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.items.RemoveAllExpired(asOf)
	if len(removed) == 0 {
		c.logger.Info("no_expired_items")
		return removed
	}
	for _, item := range removed {
		c.engine.Cancel(item)
		c.engine.Forget(item.ID)
	}
	c.saveItems(ctx)

	c.logger.Info("expired_items_removed", zap.Int("count", len(removed)))
	return removed
}

// SetDefaultPriorDays changes the default prior days. Existing items are not touched.
func (c *Coordinator) SetDefaultPriorDays(ctx context.Context, days int) (models.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.SetDefaultPriorDays(ctx, days)
}

// SetDefaultEnableNotify changes whether new items start with reminders on.
func (c *Coordinator) SetDefaultEnableNotify(ctx context.Context, enabled bool) (models.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.SetDefaultEnableNotify(ctx, enabled)
}

// SetDefaultNotifyTime changes the default reminder time of day.
func (c *Coordinator) SetDefaultNotifyTime(ctx context.Context, tod calendar.TimeOfDay) (models.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.SetDefaultNotifyTime(ctx, tod)
}

// OpenSettings returns the bulk controls as they should appear when the
// settings view opens and arms the enable-all guard.
func (c *Coordinator) OpenSettings(ctx context.Context) BulkView {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.settings.Load(ctx)
	c.bulkNotifyTime = current.DefaultNotifyTime
	c.bulkPriorDays = current.DefaultPriorDays

	view := BulkView{
		EnableAll:  c.allEnabled(),
		NotifyTime: c.bulkNotifyTime,
		PriorDays:  c.bulkPriorDays,
	}
	c.guardArmed = true
	c.guardValue = view.EnableAll
	return view
}

// BulkView returns the current bulk controls without arming the guard.
func (c *Coordinator) BulkView() BulkView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BulkView{EnableAll: c.allEnabled(), NotifyTime: c.bulkNotifyTime, PriorDays: c.bulkPriorDays}
}

// SetEnableAll turns every item's reminder on or off and returns the number
// of items changed. The first call after OpenSettings is ignored when it
// matches the state the view was opened with, and reports suppressed. With
// some items enabled the view opens off, so a first explicit disable is
// suppressed and has to be repeated.
func (c *Coordinator) SetEnableAll(ctx context.Context, enabled bool) (changed int, suppressed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.guardArmed {
		c.guardArmed = false
		if enabled == c.guardValue {
			c.logger.Debug("enable_all_initial_sync_suppressed", zap.Bool("enabled", enabled))
			return 0, true
		}
	}

	items := c.items.List()
	for _, item := range items {
		item = c.engine.SetEnabled(item, enabled, c.timeBasis(item))
		if _, err := c.store(item); err != nil {
			c.logger.Warn("bulk_update_item_failed", zap.String("item_id", item.ID.String()), zap.Error(err))
		}
	}

	c.logger.Info("enable_all_applied", zap.Bool("enabled", enabled), zap.Int("items", len(items)))
	return len(items), false
}

// ApplyNotifyTimeToAll recomputes every item with its own prior days and
// tod, rescheduling enabled items.
func (c *Coordinator) ApplyNotifyTimeToAll(ctx context.Context, tod calendar.TimeOfDay) (int, error) {
	if !tod.Valid() {
		return 0, fmt.Errorf("invalid notify time %s", tod)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.bulkNotifyTime = tod
	items := c.items.List()
	for _, item := range items {
		c.applyBulk(item, tod)
	}

	c.logger.Info("bulk_notify_time_applied", zap.String("notify_time", tod.String()), zap.Int("items", len(items)))
	return len(items), nil
}

// ApplyPriorDaysToAll sets every item's prior days and recomputes it with
// the bulk time of day, rescheduling enabled items.
func (c *Coordinator) ApplyPriorDaysToAll(ctx context.Context, days int) (int, error) {
	if err := validation.ValidatePriorDays(days); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.bulkPriorDays = days
	items := c.items.List()
	for _, item := range items {
		item.PriorDays = days
		c.applyBulk(item, c.bulkNotifyTime)
	}

	c.logger.Info("bulk_prior_days_applied", zap.Int("prior_days", days), zap.Int("items", len(items)))
	return len(items), nil
}

// Background flushes items and settings that changed since they were last
// loaded or saved.
func (c *Coordinator) Background(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.background(ctx)
}

// Terminate flushes unsaved items, settings and favorites. A session that
// changed nothing writes nothing.
func (c *Coordinator) Terminate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.background(ctx)
	if c.favoritesDirty {
		if favErr := c.persist.SaveFavorites(ctx, c.favorites.List()); favErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to save favorites: %w", favErr))
		} else {
			c.favoritesDirty = false
		}
	}
	return err
}

// RestoreReminders re-issues the reminders of enabled items that are still
// in the future. Used when the delivery backend keeps no state across restarts.
func (c *Coordinator) RestoreReminders(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	restored := 0
	for _, item := range c.items.List() {
		if !item.HasReminder() || !item.NotificationTime.After(now) {
			continue
		}
		if c.engine.Issue(item) {
			restored++
		}
	}
	c.logger.Info("reminders_restored", zap.Int("count", restored))
	return restored
}

// SaveFavoriteRecipe parses a recipe reply and adds it to the favorites
// unless one with the same name exists. It reports whether it was added.
func (c *Coordinator) SaveFavoriteRecipe(ctx context.Context, content string) (models.Recipe, bool, error) {
	recipe, ok := recipes.ParseRecipe(content)
	if !ok {
		return models.Recipe{}, false, ErrRecipeNotParsed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.favorites.Add(recipe) {
		return recipe, false, nil
	}
	c.saveFavorites(ctx)
	return recipe, true, nil
}

// RemoveFavorite deletes a favorite recipe.
func (c *Coordinator) RemoveFavorite(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.favorites.Remove(id) {
		return ErrRecipeNotFound
	}
	c.saveFavorites(ctx)
	return nil
}

// Favorites returns the favorite recipes.
func (c *Coordinator) Favorites() []models.Recipe {
	return c.favorites.List()
}

// Ingredients returns the item names used to prompt for recipes.
func (c *Coordinator) Ingredients() []string {
	items := c.items.List()
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

func (c *Coordinator) applyBulk(item models.Item, tod calendar.TimeOfDay) {
	item = c.engine.Recompute(item, tod)
	if item.IsNotificationEnabled {
		item = c.engine.Reschedule(item, tod)
	}
	if _, err := c.store(item); err != nil {
		c.logger.Warn("bulk_update_item_failed", zap.String("item_id", item.ID.String()), zap.Error(err))
	}
}

// timeBasis is the time of day an item's reminder is currently set for,
// or the default time of day if it has none.
func (c *Coordinator) timeBasis(item models.Item) calendar.TimeOfDay {
	if item.NotificationTime != nil {
		return calendar.TimeOfDayOf(*item.NotificationTime)
	}
	return c.settings.Current().DefaultNotifyTime
}

func (c *Coordinator) allEnabled() bool {
	items := c.items.List()
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !item.IsNotificationEnabled {
			return false
		}
	}
	return true
}

// localize moves decoded dates, which carry a fixed UTC offset, into loc.
// Expiration dates keep their calendar day; notification times keep their instant.
func localize(items []models.Item, loc *time.Location) []models.Item {
	for i := range items {
		if d := items[i].ExpirationDate; d != nil {
			local := calendar.DateIn(*d, loc)
			items[i].ExpirationDate = &local
		}
		if n := items[i].NotificationTime; n != nil {
			local := n.In(loc)
			items[i].NotificationTime = &local
		}
	}
	return items
}

// store writes the mutable fields of item back to the item store.
func (c *Coordinator) store(item models.Item) (models.Item, error) {
	return c.items.Update(item.ID, models.ItemPatch{
		NotificationTime:      item.NotificationTime,
		IsNotificationEnabled: &item.IsNotificationEnabled,
		PriorDays:             &item.PriorDays,
	})
}

func (c *Coordinator) background(ctx context.Context) error {
	var errs []error
	if rev := c.items.Revision(); rev != c.savedRev {
		if err := c.persist.SaveItems(ctx, c.items.List()); err != nil {
			errs = append(errs, fmt.Errorf("failed to save items: %w", err))
		} else {
			c.savedRev = rev
		}
	}
	if err := c.settings.Save(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Coordinator) saveItems(ctx context.Context) {
	rev := c.items.Revision()
	if err := c.persist.SaveItems(ctx, c.items.List()); err != nil {
		c.logger.Error("items_persist_failed", zap.Error(err))
		return
	}
	c.savedRev = rev
}

func (c *Coordinator) saveFavorites(ctx context.Context) {
	if err := c.persist.SaveFavorites(ctx, c.favorites.List()); err != nil {
		c.favoritesDirty = true
		c.logger.Error("favorites_persist_failed", zap.Error(err))
		return
	}
	c.favoritesDirty = false
}
